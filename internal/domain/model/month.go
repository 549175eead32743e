package model

import (
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// MonthOf returns the YYYY-MM key of t.
func MonthOf(t time.Time) string {
	return t.Format(monthLayout)
}

// ParseMonth validates a YYYY-MM key.
func ParseMonth(s string) (string, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}
