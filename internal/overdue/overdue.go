// Package overdue decides whether manual entries are past their due date.
package overdue

import (
	"strings"
	"time"

	"github.com/dukerupert/katalog/internal/model"
)

// Layouts accepted for due dates, tried in order. Values without a zone
// are read as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDue parses a due-date string. ok is false for empty or unparsable values.
func ParseDue(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsOverdue reports whether the entry is not done and its due date lies
// strictly before now.
func IsOverdue(e model.ManualEntry, now time.Time) bool {
	if e.Done() {
		return false
	}
	due, ok := ParseDue(e.AbgabeBis)
	if !ok {
		return false
	}
	return due.Before(now)
}

// HasOverdue reports whether any entry is overdue.
func HasOverdue(entries []model.ManualEntry, now time.Time) bool {
	for _, e := range entries {
		if IsOverdue(e, now) {
			return true
		}
	}
	return false
}

// Overdue returns the overdue entries in their original order.
func Overdue(entries []model.ManualEntry, now time.Time) []model.ManualEntry {
	var out []model.ManualEntry
	for _, e := range entries {
		if IsOverdue(e, now) {
			out = append(out, e)
		}
	}
	return out
}
