// Package types contains the JSON shapes shared by the HTTP layer and the
// import CLI.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/raidstats/internal/domain/aggregate"
	"github.com/okian/raidstats/internal/domain/model"
	"github.com/okian/raidstats/internal/domain/stats"
)

// ErrInvalidEvent reports a relay payload that cannot be ingested.
var ErrInvalidEvent = errors.New("invalid relay event")

// MemberRef is the roster entry shown next to a row.
type MemberRef struct {
	ID          string `json:"id"`
	TwitchLogin string `json:"twitchLogin"`
	DisplayName string `json:"displayName,omitempty"`
}

// RefOf returns nil for a nil member.
func RefOf(m *model.Member) *MemberRef {
	if m == nil {
		return nil
	}
	return &MemberRef{ID: m.ID, TwitchLogin: m.TwitchLogin, DisplayName: m.DisplayName}
}

// AnalyzeRequest is the body of POST /raids/analyze.
type AnalyzeRequest struct {
	Month string `json:"month"`
	Text  string `json:"text"`
	// Overrides binds a raw handle to a member id for this pass.
	Overrides map[string]string `json:"overrides,omitempty"`
}

// AnalysisRow is one candidate in the review table.
type AnalysisRow struct {
	LineNumber    int          `json:"lineNumber"`
	OriginalText  string       `json:"originalText"`
	RaiderRaw     string       `json:"raiderRaw"`
	TargetRaw     string       `json:"targetRaw"`
	RaiderKey     string       `json:"raiderKey"`
	TargetKey     string       `json:"targetKey"`
	Date          time.Time    `json:"date"`
	Status        model.Status `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	RaiderMissing bool         `json:"raiderMissing,omitempty"`
	TargetMissing bool         `json:"targetMissing,omitempty"`
	MatchedRaider *MemberRef   `json:"matchedRaider,omitempty"`
	MatchedTarget *MemberRef   `json:"matchedTarget,omitempty"`
}

// NewAnalysisRow renders a classified event found on lineNumber.
func NewAnalysisRow(lineNumber int, originalText string, ev model.RaidEvent) AnalysisRow {
	row := AnalysisRow{
		LineNumber:    lineNumber,
		OriginalText:  originalText,
		RaiderRaw:     ev.RaiderRaw,
		TargetRaw:     ev.TargetRaw,
		RaiderKey:     ev.RaiderKey,
		TargetKey:     ev.TargetKey,
		Date:          ev.Timestamp,
		Status:        ev.Status,
		MatchedRaider: RefOf(ev.MatchedRaider),
		MatchedTarget: RefOf(ev.MatchedTarget),
	}
	if ev.Status == model.StatusUnknown {
		row.Reason = aggregate.Reason(ev)
		row.RaiderMissing = ev.MatchedRaider == nil
		row.TargetMissing = ev.MatchedTarget == nil
	}
	return row
}

// Summary counts rows by status.
type Summary struct {
	Lines   int `json:"lines"`
	Total   int `json:"total"`
	OK      int `json:"ok"`
	Unknown int `json:"unknown"`
	Ignored int `json:"ignored"`
}

// Add counts one row.
func (s *Summary) Add(status model.Status) {
	s.Total++
	switch status {
	case model.StatusOK:
		s.OK++
	case model.StatusUnknown:
		s.Unknown++
	case model.StatusIgnored:
		s.Ignored++
	}
}

// AnalysisResult is the response of POST /raids/analyze.
type AnalysisResult struct {
	Month   string        `json:"month"`
	Rows    []AnalysisRow `json:"rows"`
	Summary Summary       `json:"summary"`
}

// IgnoreRequest is the body of POST /raids/ignore.
type IgnoreRequest struct {
	Month     string `json:"month"`
	RaiderKey string `json:"raiderKey"`
	TargetKey string `json:"targetKey"`
	RawText   string `json:"rawText"`
}

// AcceptedRow is one raid the operator keeps. RaiderID and TargetID, when
// set, persist a manual binding by storing the member's login instead of the
// raw handle.
type AcceptedRow struct {
	Raider   string       `json:"raider"`
	Target   string       `json:"target"`
	RaiderID string       `json:"raiderId,omitempty"`
	TargetID string       `json:"targetId,omitempty"`
	Date     time.Time    `json:"date"`
	Count    int          `json:"count"`
	Source   model.Source `json:"source,omitempty"`
}

// AcceptRequest is the body of POST /raids/accept.
type AcceptRequest struct {
	Month string        `json:"month"`
	Raids []AcceptedRow `json:"raids"`
}

// AcceptResponse reports how many raids were written.
type AcceptResponse struct {
	Accepted int `json:"accepted"`
}

// RelayEvent is the wire form of a relay push. Date accepts RFC 3339 or
// YYYY-MM-DD.
type RelayEvent struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Raider string `json:"raider"`
	Target string `json:"target"`
	Count  int    `json:"count"`
	Date   string `json:"date"`
}

// SourceEvent validates e. fallback is used when Source is empty (a Kafka
// topic implies its source).
func (e RelayEvent) SourceEvent(fallback model.Source) (model.SourceEvent, error) {
	if strings.TrimSpace(e.ID) == "" {
		return model.SourceEvent{}, fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	src := fallback
	if e.Source != "" {
		s, err := model.ParseSource(e.Source)
		if err != nil {
			return model.SourceEvent{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
		src = s
	}
	if src == "" {
		return model.SourceEvent{}, fmt.Errorf("%w: missing source", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.Raider) == "" || strings.TrimSpace(e.Target) == "" {
		return model.SourceEvent{}, fmt.Errorf("%w: missing raider or target", ErrInvalidEvent)
	}
	date, err := parseDate(e.Date)
	if err != nil {
		return model.SourceEvent{}, err
	}
	count := e.Count
	if count < 1 {
		count = 1
	}
	return model.SourceEvent{ID: e.ID, Source: src, Raider: e.Raider, Target: e.Target, Count: count, Date: date}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidEvent, s)
}

// Ingest outcomes.
const (
	IngestAccepted  = "accepted"
	IngestDuplicate = "duplicate"
)

// IngestResponse answers POST /raids/events.
type IngestResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// MonthlyView is the response of GET /raids/month/{month}.
type MonthlyView struct {
	Month   string                  `json:"month"`
	Filters aggregate.Filters       `json:"filters"`
	Index   *model.MonthlyRaidIndex `json:"index"`
	Stats   stats.Stats             `json:"stats"`
}

// MemberSearchResult answers GET /members/search.
type MemberSearchResult struct {
	Query   string      `json:"query"`
	Members []MemberRef `json:"members"`
}

// Error is the JSON error body.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
