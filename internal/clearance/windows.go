package clearance

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obcmarine/bridgegap/internal/models"
	"github.com/obcmarine/bridgegap/internal/tide"
)

// WindowOptions tune the day search. IncludeCaution lowers the bar to the
// CAUTION threshold for skippers happy to shave the margin. SampleInterval
// sets the sweep granularity; zero means one minute. Bisection sharpens the
// boundaries afterwards, so a coarser sweep trades window detection (a safe
// stretch shorter than the interval can slip between samples) for fewer
// height evaluations, not boundary precision.
type WindowOptions struct {
	IncludeCaution bool
	ForceRefresh   bool
	SampleInterval time.Duration
}

// bisectionSteps on a one-minute bracket leaves the boundary well inside a
// second of the true crossing.
const bisectionSteps = 20

// FindSafeWindows scans a whole day at the configured sample interval for
// stretches where passage stays safe, then sharpens each boundary by
// bisection on the spare clearance inside the bracketing interval. An empty
// result means the day has no safe time; that is an answer, not an error.
func (e *Engine) FindSafeWindows(ctx context.Context, date time.Time, bridgeID, spanID string, boatHeight, safetyMargin float64, opts WindowOptions) ([]models.SafeWindow, error) {
	if err := validateQuery(models.ClearanceQuery{
		Date:         date,
		BridgeID:     bridgeID,
		SpanID:       spanID,
		BoatHeight:   boatHeight,
		SafetyMargin: safetyMargin,
	}); err != nil {
		return nil, err
	}

	b, span, err := e.bridges.FindSpan(bridgeID, spanID)
	if err != nil {
		return nil, &InvalidQueryError{Field: "span", Reason: err.Error()}
	}

	threshold := SafeThreshold
	if opts.IncludeCaution {
		threshold = CautionThreshold
	}

	// spareAt is a pure function of tide height once the span is fixed.
	needed := boatHeight + safetyMargin
	spareAt := func(minute float64) (float64, error) {
		height, _, err := e.tides.HeightAt(ctx, e.stationID, date, minute, false)
		if err != nil {
			return 0, err
		}
		return span.ClearanceAtDatum - b.ChartDatumOffset - height - needed, nil
	}

	// One priming call so a force refresh happens exactly once, not per
	// sample.
	if _, _, err := e.tides.HeightAt(ctx, e.stationID, date, 0, opts.ForceRefresh); err != nil {
		var degenerate *tide.DegenerateIntervalError
		if !errors.As(err, &degenerate) {
			return nil, err
		}
	}

	step := opts.SampleInterval.Minutes()
	if step <= 0 || step > minutesPerDay {
		step = 1
	}
	samples := int(math.Ceil(minutesPerDay / step))

	// Day sweep. A degenerate bracket poisons single samples, not the day:
	// those instants simply cannot host a window boundary.
	spares := make([]float64, samples)
	valid := make([]bool, samples)
	for i := 0; i < samples; i++ {
		s, err := spareAt(float64(i) * step)
		if err != nil {
			var degenerate *tide.DegenerateIntervalError
			if errors.As(err, &degenerate) {
				continue
			}
			return nil, err
		}
		spares[i] = s
		valid[i] = true
	}

	var windows []models.SafeWindow
	i := 0
	for i < samples {
		if !valid[i] || spares[i] < threshold {
			i++
			continue
		}

		start := i
		for i < samples && valid[i] && spares[i] >= threshold {
			i++
		}
		end := i - 1

		window, err := e.buildWindow(ctx, date, spareAt, threshold,
			float64(start)*step, float64(end)*step, end == samples-1, step, needed)
		if err != nil {
			return nil, err
		}
		windows = append(windows, *window)
	}

	log.Debug().
		Str("bridge", bridgeID).
		Str("span", spanID).
		Str("date", date.Format("2006-01-02")).
		Int("windows", len(windows)).
		Msg("Safe window search complete")

	return windows, nil
}

// buildWindow refines a run of satisfying samples, bounded by the minutes of
// its first and last sample, into a window with sub-minute boundaries.
func (e *Engine) buildWindow(ctx context.Context, date time.Time, spareAt func(float64) (float64, error), threshold, startSample, endSample float64, runsToDayEnd bool, step, needed float64) (*models.SafeWindow, error) {
	startMinute := startSample
	if startSample > 0 {
		refined, err := bisectCrossing(spareAt, threshold, startSample-step, startSample)
		if err == nil {
			startMinute = refined
		}
	}

	endMinute := float64(minutesPerDay)
	if !runsToDayEnd {
		refined, err := bisectCrossing(spareAt, threshold, endSample, endSample+step)
		if err == nil {
			endMinute = refined
		} else {
			endMinute = endSample
		}
	}

	clearanceAt := func(minute float64) (float64, error) {
		spare, err := spareAt(minute)
		if err != nil {
			return 0, err
		}
		return spare + needed, nil
	}

	startClearance, err := clearanceAt(startMinute)
	if err != nil {
		return nil, err
	}
	// The closed-end boundary sits a hair past the last samplable instant.
	endProbe := endMinute
	if endProbe >= minutesPerDay {
		endProbe = minutesPerDay - 0.001
	}
	endClearance, err := clearanceAt(endProbe)
	if err != nil {
		return nil, err
	}

	startTrend, err := e.trendAt(ctx, date, startMinute)
	if err != nil {
		startTrend = ""
	}
	endTrend, err := e.trendAt(ctx, date, endProbe)
	if err != nil {
		endTrend = ""
	}

	return &models.SafeWindow{
		Start:            minuteToTime(date, startMinute),
		End:              minuteToTime(date, endMinute),
		ClearanceAtStart: startClearance,
		ClearanceAtEnd:   endClearance,
		TrendAtStart:     startTrend,
		TrendAtEnd:       endTrend,
	}, nil
}

// bisectCrossing locates the threshold crossing of the spare-clearance
// curve inside [lo, hi], one sample interval wide, over which the curve is
// monotonic.
func bisectCrossing(spareAt func(float64) (float64, error), threshold, lo, hi float64) (float64, error) {
	fLo, err := spareAt(lo)
	if err != nil {
		return 0, err
	}
	fHi, err := spareAt(hi)
	if err != nil {
		return 0, err
	}

	loBelow := fLo-threshold < 0
	hiBelow := fHi-threshold < 0
	if loBelow == hiBelow {
		// No sign change; the quantized edge is the best answer available.
		return hi, nil
	}

	for i := 0; i < bisectionSteps; i++ {
		mid := (lo + hi) / 2
		fMid, err := spareAt(mid)
		if err != nil {
			return 0, err
		}
		if (fMid-threshold < 0) == loBelow {
			lo = mid
		} else {
			hi = mid
		}
	}

	// hi ends on the side that satisfies the threshold.
	if loBelow {
		return hi, nil
	}
	return lo, nil
}

func minuteToTime(date time.Time, minute float64) time.Time {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return day.Add(time.Duration(minute * float64(time.Minute)))
}
