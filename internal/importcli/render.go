package importcli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/okian/raidstats/internal/domain/model"
	"github.com/okian/raidstats/internal/domain/types"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderAnalysis prints the review table followed by the summary line.
func renderAnalysis(w io.Writer, res types.AnalysisResult, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tDATE\tRAIDER\tTARGET\tSTATUS\tMATCH\tREASON")
	for _, row := range res.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.LineNumber,
			row.Date.Format("2006-01-02 15:04"),
			row.RaiderRaw,
			row.TargetRaw,
			row.Status,
			matchLabel(row),
			row.Reason,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	s := res.Summary
	_, err := fmt.Fprintf(w, "\n%s: %d lines, %d raids (%d ok, %d unknown, %d ignored)\n",
		res.Month, s.Lines, s.Total, s.OK, s.Unknown, s.Ignored)
	return err
}

func matchLabel(row types.AnalysisRow) string {
	name := func(m *types.MemberRef) string {
		if m == nil {
			return "?"
		}
		return m.TwitchLogin
	}
	if row.MatchedRaider == nil && row.MatchedTarget == nil {
		return "-"
	}
	return name(row.MatchedRaider) + " -> " + name(row.MatchedTarget)
}

// renderView prints member totals sorted by raids done, then the top
// members and alerts.
func renderView(w io.Writer, view types.MonthlyView, asJSON bool) error {
	if asJSON {
		return writeJSON(w, view)
	}
	idx := view.Index
	if idx == nil {
		idx = model.NewMonthlyRaidIndex(view.Month)
	}
	keys := make([]string, 0, len(idx.Members))
	for k := range idx.Members {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := idx.Members[keys[i]], idx.Members[keys[j]]
		if a.Done != b.Done {
			return a.Done > b.Done
		}
		return keys[i] < keys[j]
	})

	fmt.Fprintf(w, "%s (discord=%t twitch=%t manual=%t)\n\n",
		view.Month, view.Filters.Discord, view.Filters.Twitch, view.Filters.Manual)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MEMBER\tDONE\tRECEIVED")
	for _, k := range keys {
		m := idx.Members[k]
		fmt.Fprintf(tw, "%s\t%d\t%d\n", k, m.Done, m.Received)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	st := view.Stats
	fmt.Fprintf(w, "\ntotal done %d, received %d, active raiders %d, unique targets %d\n",
		st.TotalDone, st.TotalReceived, st.ActiveRaidersCount, st.UniqueTargetsCount)
	if st.TopRaider != nil {
		fmt.Fprintf(w, "top raider: %s (%d)\n", st.TopRaider.Key, st.TopRaider.Count)
	}
	if st.TopTarget != nil {
		fmt.Fprintf(w, "top target: %s (%d)\n", st.TopTarget.Key, st.TopTarget.Count)
	}
	fmt.Fprintf(w, "unknown %d, ignored %d\n", idx.Unknown, idx.Ignored)
	for _, a := range st.Alerts {
		fmt.Fprintf(w, "ALERT %s raided %s %d times\n", a.Raider, a.Target, a.Count)
	}
	return nil
}
