// Package matcher resolves normalized handles to active roster members.
package matcher

import (
	"strings"

	"github.com/okian/raidstats/internal/domain/handle"
	"github.com/okian/raidstats/internal/domain/model"
)

// DefaultSearchLimit caps fuzzy search results.
const DefaultSearchLimit = 10

// Match scans roster for an active member whose login, Discord username or
// display name normalizes to key. First match wins; empty keys never match.
func Match(key string, roster []model.Member) *model.Member {
	if key == "" {
		return nil
	}
	for i := range roster {
		if !roster[i].IsActive {
			continue
		}
		for _, id := range identifiers(roster[i]) {
			if id == key {
				return &roster[i]
			}
		}
	}
	return nil
}

// Matcher is an indexed Match over one roster snapshot plus operator overrides.
// It is built per analysis pass and never outlives it.
type Matcher struct {
	active    []model.Member
	byKey     map[string]*model.Member
	byID      map[string]*model.Member
	overrides map[string]*model.Member
}

// New indexes the active members of roster.
func New(roster []model.Member) *Matcher {
	m := &Matcher{
		byKey:     make(map[string]*model.Member),
		byID:      make(map[string]*model.Member),
		overrides: make(map[string]*model.Member),
	}
	for _, mem := range roster {
		if mem.IsActive {
			m.active = append(m.active, mem)
		}
	}
	for i := range m.active {
		mem := &m.active[i]
		m.byID[mem.ID] = mem
		for _, id := range identifiers(*mem) {
			if _, taken := m.byKey[id]; !taken {
				m.byKey[id] = mem
			}
		}
	}
	return m
}

// Override binds a handle to a member id, taking precedence over automatic
// matching. It returns false when the member is not active in the roster.
func (m *Matcher) Override(raw, memberID string) bool {
	key := handle.Normalize(raw)
	mem, ok := m.byID[memberID]
	if key == "" || !ok {
		return false
	}
	m.overrides[key] = mem
	return true
}

// Match resolves key, honoring overrides.
func (m *Matcher) Match(key string) *model.Member {
	if key == "" {
		return nil
	}
	if mem, ok := m.overrides[key]; ok {
		return mem
	}
	return m.byKey[key]
}

// Search returns active members with an identifier containing the normalized
// query, in roster order, at most limit of them.
func (m *Matcher) Search(query string, limit int) []model.Member {
	q := handle.Normalize(query)
	if q == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	var out []model.Member
	for _, mem := range m.active {
		for _, id := range identifiers(mem) {
			if strings.Contains(id, q) {
				out = append(out, mem)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

// Active returns the number of active members indexed.
func (m *Matcher) Active() int {
	return len(m.active)
}

func identifiers(mem model.Member) []string {
	ids := make([]string, 0, 3)
	for _, raw := range []string{mem.TwitchLogin, mem.DiscordUsername, mem.DisplayName} {
		if k := handle.Normalize(raw); k != "" {
			ids = append(ids, k)
		}
	}
	return ids
}
