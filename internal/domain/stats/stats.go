// Package stats reduces a MonthlyRaidIndex into totals, top entities and
// excessive-raid alerts.
package stats

import (
	"sort"

	"github.com/okian/raidstats/internal/domain/model"
)

// AlertThreshold is the per-month pair count that must be exceeded to alert.
// It is a fixed threshold, not an outlier test.
const AlertThreshold = 3

// Ranked is a member key with the count it was ranked by.
type Ranked struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Alert flags a raider that raided the same target too often.
type Alert struct {
	Raider string `json:"raider"`
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// Stats is the month summary.
type Stats struct {
	TotalDone          int     `json:"totalDone"`
	TotalReceived      int     `json:"totalReceived"`
	ActiveRaidersCount int     `json:"activeRaidersCount"`
	UniqueTargetsCount int     `json:"uniqueTargetsCount"`
	TopRaider          *Ranked `json:"topRaider,omitempty"`
	TopTarget          *Ranked `json:"topTarget,omitempty"`
	Alerts             []Alert `json:"alerts"`
}

// ComputeStats summarizes idx. Ties for top raider/target go to the member
// seen first in idx.Order.
func ComputeStats(idx *model.MonthlyRaidIndex) Stats {
	st := Stats{Alerts: []Alert{}}
	if idx == nil {
		return st
	}

	for _, key := range memberOrder(idx) {
		m, ok := idx.Members[key]
		if !ok {
			continue
		}
		st.TotalDone += m.Done
		st.TotalReceived += m.Received

		if m.Done > 0 {
			st.ActiveRaidersCount++
			if st.TopRaider == nil || m.Done > st.TopRaider.Count {
				st.TopRaider = &Ranked{Key: key, Count: m.Done}
			}
		}
		if m.Received > 0 {
			st.UniqueTargetsCount++
			if st.TopTarget == nil || m.Received > st.TopTarget.Count {
				st.TopTarget = &Ranked{Key: key, Count: m.Received}
			}
		}

		for _, target := range targetOrder(m) {
			if n := m.Targets[target]; n > AlertThreshold {
				st.Alerts = append(st.Alerts, Alert{Raider: key, Target: target, Count: n})
			}
		}
	}
	return st
}

// memberOrder is idx.Order followed by any members it misses, sorted.
func memberOrder(idx *model.MonthlyRaidIndex) []string {
	return withMissing(idx.Order, len(idx.Members), func(yield func(string)) {
		for k := range idx.Members {
			yield(k)
		}
	})
}

func targetOrder(m *model.MemberTotals) []string {
	return withMissing(m.TargetOrder, len(m.Targets), func(yield func(string)) {
		for k := range m.Targets {
			yield(k)
		}
	})
}

func withMissing(order []string, total int, each func(func(string))) []string {
	seen := make(map[string]bool, len(order))
	out := make([]string, 0, total)
	for _, k := range order {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	var missing []string
	each(func(k string) {
		if !seen[k] {
			missing = append(missing, k)
		}
	})
	sort.Strings(missing)
	return append(out, missing...)
}
