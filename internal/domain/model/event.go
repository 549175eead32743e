// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/raidstats/internal/domain/handle"
)

// Source identifies where a raid record came from.
type Source string

// Known sources.
const (
	SourceDiscord Source = "discord"
	SourceTwitch  Source = "twitch"
	SourceManual  Source = "manual"
)

// Sources lists every source in merge order.
var Sources = []Source{SourceDiscord, SourceTwitch, SourceManual}

// ParseSource maps a wire value to a Source.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceDiscord:
		return SourceDiscord, nil
	case SourceTwitch:
		return SourceTwitch, nil
	case SourceManual:
		return SourceManual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// Status is the derived classification of a RaidEvent.
type Status string

// Classification outcomes.
const (
	StatusOK      Status = "ok"
	StatusUnknown Status = "unknown"
	StatusIgnored Status = "ignored"
)

// Member is a roster entry. The roster itself is owned elsewhere; only
// active members take part in matching.
type Member struct {
	ID              string `json:"id" yaml:"id"`
	TwitchLogin     string `json:"twitch_login" yaml:"twitch_login"`
	DiscordUsername string `json:"discord_username,omitempty" yaml:"discord_username"`
	DisplayName     string `json:"display_name,omitempty" yaml:"display_name"`
	IsActive        bool   `json:"is_active" yaml:"is_active"`
}

// Key is the member's key in monthly aggregates.
func (m Member) Key() string {
	return handle.Normalize(m.TwitchLogin)
}

// RaidEvent is one raid action, raider -> target.
type RaidEvent struct {
	RaiderRaw string
	TargetRaw string
	RaiderKey string
	TargetKey string
	Timestamp time.Time
	Source    Source
	Count     int

	MatchedRaider *Member
	MatchedTarget *Member
	Status        Status
}

// NewRaidEvent builds an event and computes its matching keys. Counts below
// one are treated as a single raid.
func NewRaidEvent(raider, target string, ts time.Time, src Source, count int) RaidEvent {
	if count < 1 {
		count = 1
	}
	return RaidEvent{
		RaiderRaw: raider,
		TargetRaw: target,
		RaiderKey: handle.Normalize(raider),
		TargetKey: handle.Normalize(target),
		Timestamp: ts,
		Source:    src,
		Count:     count,
	}
}

// PairKey joins a raider and target key into one map key.
func PairKey(raiderKey, targetKey string) string {
	return raiderKey + "\x1f" + targetKey
}

// IgnoredRaidKey suppresses a (raider, target) pair for one month.
type IgnoredRaidKey struct {
	ID        string    `json:"id"`
	Month     string    `json:"month"`
	RaiderKey string    `json:"raiderKey"`
	TargetKey string    `json:"targetKey"`
	RawText   string    `json:"rawText"`
	CreatedAt time.Time `json:"createdAt"`
}

// AcceptedRaid is the persisted form of a raid the aggregator trusts.
type AcceptedRaid struct {
	ID     string    `json:"id"`
	Raider string    `json:"raider"`
	Target string    `json:"target"`
	Date   time.Time `json:"date"`
	Count  int       `json:"count"`
	Source Source    `json:"source"`
}

// Event converts the persisted record back into an unclassified RaidEvent.
func (a AcceptedRaid) Event() RaidEvent {
	return NewRaidEvent(a.Raider, a.Target, a.Date, a.Source, a.Count)
}
