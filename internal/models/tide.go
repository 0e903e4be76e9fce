package models

import "time"

// TideKind marks a tide extremum as a high or low water.
type TideKind string

const (
	TideHigh TideKind = "HIGH"
	TideLow  TideKind = "LOW"
)

// Trend describes which way the water is moving at an instant.
type Trend string

const (
	TrendRising  Trend = "RISING"
	TrendFalling Trend = "FALLING"
)

// TideStation identifies a LINZ tide table source. URLTemplate contains a
// single %d verb that is substituted with the requested year.
type TideStation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URLTemplate string `json:"urlTemplate"`
	FirstYear   int    `json:"firstYear"`
	LastYear    int    `json:"lastYear"`
}

// InRange reports whether the station publishes tables for the given year.
func (s TideStation) InRange(year int) bool {
	return year >= s.FirstYear && year <= s.LastYear
}

// RawTideYear is one year of raw tide-table text for a station, as fetched
// from the network or recalled from the cache. Entries are immutable; a
// refresh produces a new value that replaces the old one wholesale.
type RawTideYear struct {
	StationID string    `json:"stationId" dynamodbav:"stationId"`
	Year      int       `json:"year" dynamodbav:"year"`
	Payload   string    `json:"payload" dynamodbav:"payload"`
	FetchedAt time.Time `json:"fetchedAt" dynamodbav:"fetchedAt,unixtime"`
	// Origin is "network:<proxy-id>" when freshly fetched, "cache" otherwise.
	Origin string `json:"origin" dynamodbav:"origin"`
	// Stale is set when the entry is past its TTL but was served anyway
	// because no fresh copy could be obtained.
	Stale bool `json:"stale" dynamodbav:"-"`
}

// AgeDays returns the whole days elapsed since the payload was fetched.
func (r RawTideYear) AgeDays(now time.Time) int {
	return int(now.Sub(r.FetchedAt).Hours() / 24)
}

// TideEvent is a single published extremum. MinuteOfDay is local time
// expressed as minutes after midnight. Kind is derived from neighbouring
// heights during parsing, never read from the feed.
type TideEvent struct {
	MinuteOfDay int      `json:"minuteOfDay"`
	Height      float64  `json:"height"`
	Kind        TideKind `json:"kind"`
}

// TideDay is one calendar date with its 1-4 extrema in ascending time order.
// Suspect is set when adjacent events share a kind, which indicates the feed
// dropped an extremum; the day is kept but flagged.
type TideDay struct {
	Date    time.Time   `json:"date"`
	Events  []TideEvent `json:"events"`
	Suspect bool        `json:"suspect"`
}

// YearStatus describes one cached year for the status endpoint.
type YearStatus struct {
	Year    int  `json:"year"`
	Present bool `json:"present"`
	AgeDays int  `json:"ageDays"`
	Stale   bool `json:"stale"`
}
