package tide

import (
	"time"

	"github.com/obcmarine/bridgegap/internal/models"
)

// DayIndex is the in-memory view of one parsed year, keyed by date. It is
// rebuilt wholesale whenever the backing raw year changes, never patched.
type DayIndex struct {
	days  map[string]*models.TideDay
	first time.Time
	last  time.Time
}

func dateKey(d time.Time) string {
	return d.Format("2006-01-02")
}

// NewDayIndex builds an index over parsed days.
func NewDayIndex(days []models.TideDay) *DayIndex {
	idx := &DayIndex{days: make(map[string]*models.TideDay, len(days))}
	for i := range days {
		day := days[i]
		idx.days[dateKey(day.Date)] = &day
		if idx.first.IsZero() || day.Date.Before(idx.first) {
			idx.first = day.Date
		}
		if day.Date.After(idx.last) {
			idx.last = day.Date
		}
	}
	return idx
}

// Day returns the entry for a date, or nil when the feed skipped it.
func (idx *DayIndex) Day(d time.Time) *models.TideDay {
	return idx.days[dateKey(d)]
}

// Covers reports whether a date falls inside the parsed span. A date that is
// covered but has no Day entry is a feed gap.
func (idx *DayIndex) Covers(d time.Time) bool {
	if idx.first.IsZero() {
		return false
	}
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	return !day.Before(idx.first) && !day.After(idx.last)
}

// Len returns the number of indexed days.
func (idx *DayIndex) Len() int {
	return len(idx.days)
}
