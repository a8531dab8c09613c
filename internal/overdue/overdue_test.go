package overdue

import (
	"testing"
	"time"

	"github.com/dukerupert/katalog/internal/model"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestHasOverdue(t *testing.T) {
	tests := []struct {
		name    string
		entries []model.ManualEntry
		want    bool
	}{
		{"open and past", []model.ManualEntry{{Status: "offen", AbgabeBis: "2000-01-01"}}, true},
		{"done and past", []model.ManualEntry{{Status: model.StatusOfferReceived, AbgabeBis: "2000-01-01"}}, false},
		{"no due date", []model.ManualEntry{{Status: "offen"}}, false},
		{"empty", nil, false},
		{"unparsable", []model.ManualEntry{{Status: "offen", AbgabeBis: "bald"}}, false},
		{"future", []model.ManualEntry{{Status: "offen", AbgabeBis: "2026-03-11"}}, false},
		{"one of many", []model.ManualEntry{
			{Status: "offen", AbgabeBis: "2030-01-01"},
			{Status: model.StatusOfferReceived, AbgabeBis: "2001-01-01"},
			{Status: "in arbeit", AbgabeBis: "2026-03-10T11:59"},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasOverdue(tt.entries, now); got != tt.want {
				t.Errorf("HasOverdue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsOverdueStrictlyBefore(t *testing.T) {
	e := model.ManualEntry{Status: "offen", AbgabeBis: "2026-03-10T12:00:00Z"}
	if IsOverdue(e, now) {
		t.Error("due exactly now should not be overdue")
	}
	if !IsOverdue(e, now.Add(time.Nanosecond)) {
		t.Error("due just before now should be overdue")
	}
}

func TestParseDue(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2026-03-10", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), true},
		{"2026-03-10T08:30", time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC), true},
		{"2026-03-10T08:30:15", time.Date(2026, 3, 10, 8, 30, 15, 0, time.UTC), true},
		{"2026-03-10 08:30", time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC), true},
		{"2026-03-10 08:30:15", time.Date(2026, 3, 10, 8, 30, 15, 0, time.UTC), true},
		{"2026-03-10T08:30:00+02:00", time.Date(2026, 3, 10, 6, 30, 0, 0, time.UTC), true},
		{" 2026-03-10 ", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"10.03.2026", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseDue(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseDue(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("ParseDue(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOverdue(t *testing.T) {
	entries := []model.ManualEntry{
		{ID: "a", Status: "offen", AbgabeBis: "2000-01-01"},
		{ID: "b", Status: "offen"},
		{ID: "c", Status: "offen", AbgabeBis: "2001-01-01"},
	}
	got := Overdue(entries, now)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("Overdue = %+v, want entries a and c", got)
	}
}
