// Package parser extracts raid events from pasted chat/log text.
//
// The grammar is a permissive regex alternation: anything that does not look
// like a date marker or a raid is skipped without error.
package parser

import (
	"strings"
	"time"
	"unicode"

	"github.com/okian/raidstats/internal/domain/datemark"
	"github.com/okian/raidstats/internal/domain/handle"
	"github.com/okian/raidstats/internal/domain/model"
)

// noisePrefixes are normalized line prefixes known to carry no raid.
var noisePrefixes = []string{"oups", "transfere", "n/a"}

// trailingPunct is stripped from a target after truncation ("@Bob," -> "Bob").
const trailingPunct = ".,;:!?)]}\"'"

// Context carries the effective timestamp between lines. Date lines update it.
type Context struct {
	Date     time.Time
	Location *time.Location
}

// NewContext starts a parse at now; loc is used for date markers.
func NewContext(now time.Time, loc *time.Location) *Context {
	if loc == nil {
		loc = time.UTC
	}
	return &Context{Date: now, Location: loc}
}

// Candidate is one raid found in a text, with where it came from.
type Candidate struct {
	LineNumber   int
	OriginalText string
	Event        model.RaidEvent
}

// ParseText parses text line by line, threading the date context.
// Line numbers are 1-based.
func ParseText(text string, c *Context) []Candidate {
	var out []Candidate
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		for _, ev := range ParseLine(line, c) {
			out = append(out, Candidate{LineNumber: i + 1, OriginalText: line, Event: ev})
		}
	}
	return out
}

// ParseLine returns the raids described by one line. A date line updates c;
// a log marker yields nothing while an ISO-dated row goes on to be scanned
// for raids dated that day.
func ParseLine(line string, c *Context) []model.RaidEvent {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || isNoise(trimmed) {
		return nil
	}
	if ts, rest, ok := datemark.ParseRow(trimmed, c.Location); ok {
		c.Date = ts
		if rest == "" {
			return nil
		}
		trimmed = rest
	}

	var events []model.RaidEvent
	for _, m := range raidPattern.FindAllStringSubmatch(trimmed, -1) {
		raider := strings.TrimSpace(m[1])
		target := cutTarget(m[2])
		if raider == "" || target == "" {
			continue
		}
		ev := model.NewRaidEvent(raider, target, c.Date, model.SourceManual, 1)
		if ev.RaiderKey == "" || ev.TargetKey == "" || ev.RaiderKey == ev.TargetKey {
			continue
		}
		events = append(events, ev)
	}
	return events
}

func isNoise(line string) bool {
	key := handle.Normalize(line)
	for _, p := range noisePrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// cutTarget keeps the handle and drops trailing commentary.
func cutTarget(s string) string {
	if s == "" || unicode.IsSpace(rune(s[0])) {
		return ""
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimRight(fields[0], trailingPunct)
}
