// Package roster loads the member roster from a YAML file.
//
//	members:
//	  - id: m1
//	    twitch_login: Alice
//	    discord_username: alice#0001
//	    display_name: Alice
//	    is_active: true
package roster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/raidstats/internal/domain/handle"
	"github.com/okian/raidstats/internal/domain/model"
)

// ErrInvalidRoster reports a roster file that cannot be used.
var ErrInvalidRoster = errors.New("invalid roster")

// Writer stores a roster snapshot.
type Writer interface {
	PutMembers(ctx context.Context, members []model.Member) error
}

type file struct {
	Members []model.Member `yaml:"members"`
}

// Parse decodes and validates a roster document.
func Parse(data []byte) ([]model.Member, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoster, err)
	}
	if err := validate(f.Members); err != nil {
		return nil, err
	}
	return f.Members, nil
}

// Load reads the roster file at path.
func Load(path string) ([]model.Member, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	return Parse(data)
}

// Sync loads path into w and returns the member count.
func Sync(ctx context.Context, path string, w Writer) (int, error) {
	members, err := Load(path)
	if err != nil {
		return 0, err
	}
	if err := w.PutMembers(ctx, members); err != nil {
		return 0, fmt.Errorf("store roster: %w", err)
	}
	return len(members), nil
}

// validate requires ids and logins, and rejects active members whose
// normalized identifiers collide, since first-match-wins would hide one.
func validate(members []model.Member) error {
	ids := make(map[string]bool, len(members))
	owners := make(map[string]string)
	for i, m := range members {
		if strings.TrimSpace(m.ID) == "" || handle.Normalize(m.TwitchLogin) == "" {
			return fmt.Errorf("%w: member %d needs id and twitch_login", ErrInvalidRoster, i)
		}
		if ids[m.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidRoster, m.ID)
		}
		ids[m.ID] = true
		if !m.IsActive {
			continue
		}
		for _, raw := range []string{m.TwitchLogin, m.DiscordUsername, m.DisplayName} {
			key := handle.Normalize(raw)
			if key == "" {
				continue
			}
			if owner, ok := owners[key]; ok && owner != m.ID {
				return fmt.Errorf("%w: %q matches both %s and %s", ErrInvalidRoster, key, owner, m.ID)
			}
			owners[key] = m.ID
		}
	}
	return nil
}
