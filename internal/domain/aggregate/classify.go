// Package aggregate classifies raid events and merges the sources of a
// month into a MonthlyRaidIndex.
package aggregate

import "github.com/okian/raidstats/internal/domain/model"

// Resolver looks a handle key up in the roster.
type Resolver interface {
	Match(key string) *model.Member
}

// IgnoreChecker answers ignore-list lookups.
type IgnoreChecker interface {
	IsIgnored(month, raiderKey, targetKey string) bool
}

// Reasons reported for unknown events.
const (
	ReasonRaiderNotFound = "raider not found"
	ReasonTargetNotFound = "target not found"
	ReasonBothNotFound   = "raider and target not found"
	ReasonSameMember     = "raider and target are the same member"
	ReasonOutsideMonth   = "date outside the analyzed month"
)

// Classify resolves both sides of ev and derives its status for month.
// An ignored pair stays ignored even when both sides match.
func Classify(ev model.RaidEvent, month string, members Resolver, ignored IgnoreChecker) model.RaidEvent {
	ev.MatchedRaider = members.Match(ev.RaiderKey)
	ev.MatchedTarget = members.Match(ev.TargetKey)

	switch {
	case ignored != nil && ignored.IsIgnored(month, ev.RaiderKey, ev.TargetKey):
		ev.Status = model.StatusIgnored
	case Reason(ev) != "":
		ev.Status = model.StatusUnknown
	default:
		ev.Status = model.StatusOK
	}
	return ev
}

// ClassifyAll classifies events in place order.
func ClassifyAll(events []model.RaidEvent, month string, members Resolver, ignored IgnoreChecker) []model.RaidEvent {
	out := make([]model.RaidEvent, len(events))
	for i, ev := range events {
		out[i] = Classify(ev, month, members, ignored)
	}
	return out
}

// Reason names what keeps a matched event from being ok; empty when nothing does.
func Reason(ev model.RaidEvent) string {
	switch {
	case ev.MatchedRaider == nil && ev.MatchedTarget == nil:
		return ReasonBothNotFound
	case ev.MatchedRaider == nil:
		return ReasonRaiderNotFound
	case ev.MatchedTarget == nil:
		return ReasonTargetNotFound
	case ev.MatchedRaider.ID == ev.MatchedTarget.ID:
		return ReasonSameMember
	}
	return ""
}
