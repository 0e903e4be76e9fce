package models

import "time"

// ClearanceStatus classifies a passage attempt.
type ClearanceStatus string

const (
	StatusSafe    ClearanceStatus = "SAFE"
	StatusCaution ClearanceStatus = "CAUTION"
	StatusDanger  ClearanceStatus = "DANGER"
)

// ClearanceQuery is one passage question: can a boat of this height, with
// this margin, pass under this span at this local date and time.
type ClearanceQuery struct {
	Date         time.Time
	MinuteOfDay  int
	BridgeID     string
	SpanID       string
	BoatHeight   float64
	SafetyMargin float64
	ForceRefresh bool
}

// ClearanceResult is the verdict for a single instant. ActualClearance is
// the air gap under the span at that tide; SpareClearance is what remains
// after the boat and its margin are subtracted.
type ClearanceResult struct {
	TideHeight      float64         `json:"tideHeight"`
	ActualClearance float64         `json:"actualClearance"`
	SpareClearance  float64         `json:"spareClearance"`
	Status          ClearanceStatus `json:"status"`
	TideTrend       Trend           `json:"tideTrend"`
	// DataStale and DataAgeDays surface that the verdict was computed from
	// a cached tide table that could not be refreshed.
	DataStale   bool `json:"dataStale"`
	DataAgeDays int  `json:"dataAgeDays"`
}

// SafeWindow is a maximal span of time during which passage stays safe.
// Boundary times carry sub-minute precision from bisection refinement.
type SafeWindow struct {
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	ClearanceAtStart float64   `json:"clearanceAtStart"`
	ClearanceAtEnd   float64   `json:"clearanceAtEnd"`
	TrendAtStart     Trend     `json:"trendAtStart"`
	TrendAtEnd       Trend     `json:"trendAtEnd"`
}
