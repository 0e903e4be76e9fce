package clearance

import (
	"context"
	"time"

	"github.com/obcmarine/bridgegap/internal/bridge"
	"github.com/obcmarine/bridgegap/internal/models"
	"github.com/obcmarine/bridgegap/internal/tide"
)

// Safety thresholds in metres of spare clearance. Both boundaries are
// closed downward: exactly 0.5 is SAFE, exactly 0 is CAUTION.
const (
	SafeThreshold    = 0.5
	CautionThreshold = 0.0
)

const (
	minutesPerDay     = 1440
	trendProbeMinutes = 6.0
	maxBoatHeight     = 15.0
	maxSafetyMargin   = 5.0
)

// HeightProvider is the tide side of the engine, satisfied by tide.Service.
type HeightProvider interface {
	HeightAt(ctx context.Context, stationID string, date time.Time, minute float64, forceRefresh bool) (float64, *tide.DataMeta, error)
}

// Engine answers passage questions for one tide station. It holds no tide
// data of its own: every lower-layer error passes through unchanged.
type Engine struct {
	tides     HeightProvider
	bridges   *bridge.Registry
	stationID string
}

func NewEngine(tides HeightProvider, bridges *bridge.Registry, stationID string) *Engine {
	return &Engine{tides: tides, bridges: bridges, stationID: stationID}
}

// StatusFor classifies a spare clearance.
func StatusFor(spare float64) models.ClearanceStatus {
	switch {
	case spare >= SafeThreshold:
		return models.StatusSafe
	case spare >= CautionThreshold:
		return models.StatusCaution
	default:
		return models.StatusDanger
	}
}

// Classify answers a single point query: tide height at the queried moment,
// the air gap it leaves under the span, and the verdict.
func (e *Engine) Classify(ctx context.Context, q models.ClearanceQuery) (*models.ClearanceResult, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	b, span, err := e.bridges.FindSpan(q.BridgeID, q.SpanID)
	if err != nil {
		return nil, &InvalidQueryError{Field: "span", Reason: err.Error()}
	}

	height, meta, err := e.tides.HeightAt(ctx, e.stationID, q.Date, float64(q.MinuteOfDay), q.ForceRefresh)
	if err != nil {
		return nil, err
	}

	actual := span.ClearanceAtDatum - b.ChartDatumOffset - height
	spare := actual - (q.BoatHeight + q.SafetyMargin)

	trend, err := e.trendAt(ctx, q.Date, float64(q.MinuteOfDay))
	if err != nil {
		// The verdict stands even when the probe lands in bad data.
		trend = ""
	}

	result := &models.ClearanceResult{
		TideHeight:      height,
		ActualClearance: actual,
		SpareClearance:  spare,
		Status:          StatusFor(spare),
		TideTrend:       trend,
	}
	if meta != nil {
		result.DataStale = meta.Stale
		result.DataAgeDays = meta.AgeDays
	}
	return result, nil
}

// trendAt probes a few minutes ahead to tell rising from falling water.
// Near the end of the day it probes backwards instead so the comparison
// stays within reach.
func (e *Engine) trendAt(ctx context.Context, date time.Time, minute float64) (models.Trend, error) {
	here, _, err := e.tides.HeightAt(ctx, e.stationID, date, minute, false)
	if err != nil {
		return "", err
	}

	probe := minute + trendProbeMinutes
	if probe >= minutesPerDay {
		before, _, err := e.tides.HeightAt(ctx, e.stationID, date, minute-trendProbeMinutes, false)
		if err != nil {
			return "", err
		}
		if here >= before {
			return models.TrendRising, nil
		}
		return models.TrendFalling, nil
	}

	ahead, _, err := e.tides.HeightAt(ctx, e.stationID, date, probe, false)
	if err != nil {
		return "", err
	}
	if ahead >= here {
		return models.TrendRising, nil
	}
	return models.TrendFalling, nil
}

func validateQuery(q models.ClearanceQuery) error {
	if q.Date.IsZero() {
		return &InvalidQueryError{Field: "date", Reason: "missing"}
	}
	if q.MinuteOfDay < 0 || q.MinuteOfDay >= minutesPerDay {
		return &InvalidQueryError{Field: "time", Reason: "minute of day out of range"}
	}
	if q.BoatHeight <= 0 || q.BoatHeight > maxBoatHeight {
		return &InvalidQueryError{Field: "boatHeight", Reason: "must be positive and plausible"}
	}
	if q.SafetyMargin < 0 || q.SafetyMargin > maxSafetyMargin {
		return &InvalidQueryError{Field: "safetyMargin", Reason: "must be non-negative and plausible"}
	}
	return nil
}
