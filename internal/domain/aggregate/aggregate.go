package aggregate

import "github.com/okian/raidstats/internal/domain/model"

// Filters toggles each source on or off.
type Filters struct {
	Discord bool `json:"discord"`
	Twitch  bool `json:"twitch"`
	Manual  bool `json:"manual"`
}

// AllSources enables every source.
func AllSources() Filters {
	return Filters{Discord: true, Twitch: true, Manual: true}
}

// Allows reports whether events of src pass the filter.
func (f Filters) Allows(src model.Source) bool {
	switch src {
	case model.SourceDiscord:
		return f.Discord
	case model.SourceTwitch:
		return f.Twitch
	case model.SourceManual:
		return f.Manual
	}
	return false
}

// Sources groups classified events by origin.
type Sources struct {
	Discord []model.RaidEvent
	Twitch  []model.RaidEvent
	Manual  []model.RaidEvent
}

// Split groups events by their Source field; unknown sources are dropped.
func Split(events []model.RaidEvent) Sources {
	var s Sources
	for _, ev := range events {
		switch ev.Source {
		case model.SourceDiscord:
			s.Discord = append(s.Discord, ev)
		case model.SourceTwitch:
			s.Twitch = append(s.Twitch, ev)
		case model.SourceManual:
			s.Manual = append(s.Manual, ev)
		}
	}
	return s
}

// Merged returns the events that pass filters, discord then twitch then manual.
func (s Sources) Merged(filters Filters) []model.RaidEvent {
	var out []model.RaidEvent
	if filters.Discord {
		out = append(out, s.Discord...)
	}
	if filters.Twitch {
		out = append(out, s.Twitch...)
	}
	if filters.Manual {
		out = append(out, s.Manual...)
	}
	return out
}

// Aggregate reduces the filtered events of month into an index. Only ok
// events count: the raider's done and targets grow by Count, the target's
// received grows by one per event.
func Aggregate(month string, sources Sources, filters Filters) *model.MonthlyRaidIndex {
	idx := model.NewMonthlyRaidIndex(month)
	for _, ev := range sources.Merged(filters) {
		switch ev.Status {
		case model.StatusOK:
		case model.StatusIgnored:
			idx.Ignored++
			continue
		default:
			idx.Unknown++
			continue
		}
		raider := ev.MatchedRaider.Key()
		target := ev.MatchedTarget.Key()
		idx.Member(raider).AddTarget(target, ev.Count)
		idx.Member(target).Received++
		idx.BySource[ev.Source]++
	}
	return idx
}
