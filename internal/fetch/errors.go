package fetch

import (
	"fmt"
	"strings"
)

// OutOfRangeError is returned before any network attempt when the requested
// year falls outside the station's published range.
type OutOfRangeError struct {
	StationID string
	Year      int
	FirstYear int
	LastYear  int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("year %d outside supported range %d-%d for station %s",
		e.Year, e.FirstYear, e.LastYear, e.StationID)
}

// FailureKind classifies why a single endpoint attempt failed.
type FailureKind string

const (
	FailureTimeout  FailureKind = "timeout"
	FailureRejected FailureKind = "rejected"
	FailureNetwork  FailureKind = "network"
)

// AttemptFailure records the outcome of one endpoint attempt.
type AttemptFailure struct {
	Endpoint   string
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (a AttemptFailure) String() string {
	switch a.Kind {
	case FailureRejected:
		return fmt.Sprintf("%s: rejected with status %d", a.Endpoint, a.StatusCode)
	case FailureTimeout:
		return fmt.Sprintf("%s: timed out", a.Endpoint)
	default:
		return fmt.Sprintf("%s: %v", a.Endpoint, a.Err)
	}
}

// FetchError aggregates the per-endpoint failures after the whole fallback
// chain has been exhausted, so callers can tell "everything timed out" from
// "everything was rejected".
type FetchError struct {
	StationID string
	Year      int
	Attempts  []AttemptFailure
}

func (e *FetchError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.String()
	}
	return fmt.Sprintf("fetching tides for %s %d: all endpoints failed: %s",
		e.StationID, e.Year, strings.Join(parts, "; "))
}

// AllTimedOut reports whether every attempt failed on the deadline.
func (e *FetchError) AllTimedOut() bool {
	for _, a := range e.Attempts {
		if a.Kind != FailureTimeout {
			return false
		}
	}
	return len(e.Attempts) > 0
}
