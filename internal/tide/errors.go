package tide

import (
	"fmt"
	"time"
)

// NoUsableDataError means either a whole year parsed to nothing, or a query
// landed on a date the feed is missing. It is surfaced, never papered over
// with extrapolation.
type NoUsableDataError struct {
	StationID string
	Year      int
	Date      *time.Time
	Reason    string
}

func (e *NoUsableDataError) Error() string {
	if e.Date != nil {
		return fmt.Sprintf("no usable tide data for %s on %s: %s",
			e.StationID, e.Date.Format("2006-01-02"), e.Reason)
	}
	return fmt.Sprintf("no usable tide data for %s %d: %s", e.StationID, e.Year, e.Reason)
}

// DegenerateIntervalError marks a zero-duration bracket between two extrema,
// a data defect that fails the single query without condemning the day.
type DegenerateIntervalError struct {
	Date   time.Time
	Minute int
}

func (e *DegenerateIntervalError) Error() string {
	return fmt.Sprintf("degenerate tide interval at %s minute %d",
		e.Date.Format("2006-01-02"), e.Minute)
}

// RowError is one rejected row from a tide table, kept as a diagnostic while
// the rest of the year parses on.
type RowError struct {
	Line   int
	Raw    string
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}
