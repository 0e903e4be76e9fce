package clearance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obcmarine/bridgegap/internal/models"
	"github.com/obcmarine/bridgegap/internal/tide"
)

// vShapedTide falls linearly from 3.0 m at midnight to 0.0 m at noon, then
// rises back to 3.0 m at the next midnight. With the base query (spare =
// 1.2 - tide), passage is safe while tide <= 0.7 m: minutes [552, 888].
func vShapedTide() *mockTides {
	return &mockTides{heightFunc: func(minute float64) float64 {
		if minute <= 720 {
			return 3.0 * (1 - minute/720)
		}
		return 3.0 * (minute - 720) / 720
	}}
}

func TestFindSafeWindowsAroundLowTide(t *testing.T) {
	engine := newTestEngine(vShapedTide())

	windows, err := engine.FindSafeWindows(context.Background(), queryDate,
		"panmure", "IN_OUT", 4.5, 0.5, WindowOptions{})
	require.NoError(t, err)
	require.Len(t, windows, 1)

	w := windows[0]
	startMinute := minutesInto(queryDate, w.Start)
	endMinute := minutesInto(queryDate, w.End)

	// Boundaries refined well inside the bracketing minute.
	assert.InDelta(t, 552, startMinute, 0.05)
	assert.InDelta(t, 888, endMinute, 1.0)

	assert.Equal(t, models.TrendFalling, w.TrendAtStart)
	assert.Equal(t, models.TrendRising, w.TrendAtEnd)

	// At the refined boundary the gap equals boat + margin + threshold.
	assert.InDelta(t, 5.5, w.ClearanceAtStart, 0.01)
	assert.InDelta(t, 5.5, w.ClearanceAtEnd, 0.02)
}

func TestFindSafeWindowsCoarserSampling(t *testing.T) {
	// A five-minute sweep finds the same window; bisection recovers the
	// sub-minute boundaries from the wider brackets.
	engine := newTestEngine(vShapedTide())

	windows, err := engine.FindSafeWindows(context.Background(), queryDate,
		"panmure", "IN_OUT", 4.5, 0.5, WindowOptions{SampleInterval: 5 * time.Minute})
	require.NoError(t, err)
	require.Len(t, windows, 1)

	assert.InDelta(t, 552, minutesInto(queryDate, windows[0].Start), 0.05)
	assert.InDelta(t, 888, minutesInto(queryDate, windows[0].End), 1.0)
}

func TestFindSafeWindowsNoSafeTime(t *testing.T) {
	// Tide never drops far enough: the empty result is an answer, not an
	// error.
	engine := newTestEngine(constantTide(2.5))

	windows, err := engine.FindSafeWindows(context.Background(), queryDate,
		"panmure", "IN_OUT", 4.5, 0.5, WindowOptions{})
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestFindSafeWindowsWholeDay(t *testing.T) {
	engine := newTestEngine(constantTide(0.2))

	windows, err := engine.FindSafeWindows(context.Background(), queryDate,
		"panmure", "IN_OUT", 4.5, 0.5, WindowOptions{})
	require.NoError(t, err)
	require.Len(t, windows, 1)

	w := windows[0]
	assert.Equal(t, 0.0, minutesInto(queryDate, w.Start))
	assert.Equal(t, 1440.0, minutesInto(queryDate, w.End))
}

func TestFindSafeWindowsIncludeCaution(t *testing.T) {
	// Constant 0.2 m spare: CAUTION all day. Excluded by default, a single
	// all-day window when the caller opts in.
	engine := newTestEngine(constantTide(1.0))

	windows, err := engine.FindSafeWindows(context.Background(), queryDate,
		"panmure", "IN_OUT", 4.5, 0.5, WindowOptions{})
	require.NoError(t, err)
	assert.Empty(t, windows)

	windows, err = engine.FindSafeWindows(context.Background(), queryDate,
		"panmure", "IN_OUT", 4.5, 0.5, WindowOptions{IncludeCaution: true})
	require.NoError(t, err)
	require.Len(t, windows, 1)
}

func TestFindSafeWindowsTwoLowTides(t *testing.T) {
	// Two dips below the threshold produce two distinct windows.
	wavy := &mockTides{heightFunc: func(minute float64) float64 {
		switch {
		case minute < 360:
			return 3.0 * (1 - minute/360)
		case minute < 720:
			return 3.0 * (minute - 360) / 360
		case minute < 1080:
			return 3.0 * (1 - (minute-720)/360)
		default:
			return 3.0 * (minute - 1080) / 360
		}
	}}
	engine := newTestEngine(wavy)

	windows, err := engine.FindSafeWindows(context.Background(), queryDate,
		"panmure", "IN_OUT", 4.5, 0.5, WindowOptions{})
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.True(t, windows[0].End.Before(windows[1].Start))
}

func TestFindSafeWindowsInvalidQuery(t *testing.T) {
	engine := newTestEngine(constantTide(1.0))

	_, err := engine.FindSafeWindows(context.Background(), queryDate,
		"panmure", "IN_OUT", -1, 0.5, WindowOptions{})
	var invalid *InvalidQueryError
	require.ErrorAs(t, err, &invalid)
}

func TestFindSafeWindowsPropagatesDataErrors(t *testing.T) {
	wantErr := &tide.NoUsableDataError{StationID: "auckland", Year: 2026, Reason: "date missing from tide table"}
	engine := newTestEngine(&mockTides{err: wantErr})

	_, err := engine.FindSafeWindows(context.Background(), queryDate,
		"panmure", "IN_OUT", 4.5, 0.5, WindowOptions{})
	var noData *tide.NoUsableDataError
	require.ErrorAs(t, err, &noData)
}

func minutesInto(date time.Time, instant time.Time) float64 {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return instant.Sub(day).Minutes()
}
