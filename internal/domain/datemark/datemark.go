// Package datemark recognizes the date/time marker lines that set the
// effective timestamp for the raid lines following them.
package datemark

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// DD/MM/YYYY HH:mm, optionally in brackets as chat exports print it.
	logMarker = regexp.MustCompile(`^\[?(\d{1,2})/(\d{1,2})/(\d{4})\s+(\d{1,2}):(\d{2})\]?$`)
	// YYYY-MM-DD at the start of a tabular row; the rest of the row is kept.
	isoDate = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:$|[\s,;]+(.*)$)`)
)

// TryParseDateLine is Parse in UTC.
func TryParseDateLine(line string) (time.Time, bool) {
	return Parse(line, time.UTC)
}

// Parse reports the timestamp carried by line when line is a date marker.
// Dates that do not exist on the calendar (31/02/2025) are rejected.
func Parse(line string, loc *time.Location) (time.Time, bool) {
	t, _, ok := ParseRow(line, loc)
	return t, ok
}

// ParseRow is Parse that also returns the text following the date. A log
// marker must fill the whole line, so its rest is always empty; an ISO date
// heads a tabular row whose remaining cells are returned trimmed.
func ParseRow(line string, loc *time.Location) (time.Time, string, bool) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(line)

	if m := logMarker.FindStringSubmatch(s); m != nil {
		t, ok := build(loc, m[3], m[2], m[1], m[4], m[5])
		return t, "", ok
	}
	if m := isoDate.FindStringSubmatch(s); m != nil {
		t, ok := build(loc, m[1], m[2], m[3], "0", "0")
		if !ok {
			return time.Time{}, "", false
		}
		return t, strings.TrimSpace(m[4]), true
	}
	return time.Time{}, "", false
}

func build(loc *time.Location, year, month, day, hour, minute string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	h, _ := strconv.Atoi(hour)
	mi, _ := strconv.Atoi(minute)
	if mo < 1 || mo > 12 || h > 23 || mi > 59 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, h, mi, 0, 0, loc)
	if t.Day() != d || int(t.Month()) != mo {
		return time.Time{}, false
	}
	return t, true
}
