package tide

import (
	"math"
	"time"

	"github.com/obcmarine/bridgegap/internal/models"
)

// twelfthsTable holds the cumulative height fractions of the rule of
// twelfths: each sixth of a half-cycle contributes 1,2,3,3,2,1 twelfths of
// the total range.
var twelfthsTable = [7]float64{0, 1.0 / 12, 3.0 / 12, 6.0 / 12, 9.0 / 12, 11.0 / 12, 1}

const minutesPerDay = 1440

// HeightAtMinute interpolates the tide height for a moment of the given day
// using the rule of twelfths. minute may be fractional; window boundary
// refinement depends on that.
//
// Queries before the day's first extremum bracket against prevDay's last
// event and queries after the last extremum bracket against nextDay's first.
// A nil neighbour means the parsed range simply ends there, and the nearest
// recorded height is held flat, matching the published calculator. Pure
// function, no I/O.
func HeightAtMinute(day, prevDay, nextDay *models.TideDay, date time.Time, minute float64) (float64, error) {
	events := day.Events

	var prevMin, nextMin, prevHeight, nextHeight float64
	switch {
	case minute < float64(events[0].MinuteOfDay):
		if prevDay == nil || len(prevDay.Events) == 0 {
			return events[0].Height, nil
		}
		last := prevDay.Events[len(prevDay.Events)-1]
		prevMin = float64(last.MinuteOfDay - minutesPerDay)
		prevHeight = last.Height
		nextMin = float64(events[0].MinuteOfDay)
		nextHeight = events[0].Height

	case minute >= float64(events[len(events)-1].MinuteOfDay):
		if nextDay == nil || len(nextDay.Events) == 0 {
			return events[len(events)-1].Height, nil
		}
		last := events[len(events)-1]
		first := nextDay.Events[0]
		prevMin = float64(last.MinuteOfDay)
		prevHeight = last.Height
		nextMin = float64(first.MinuteOfDay + minutesPerDay)
		nextHeight = first.Height

	default:
		for i := 0; i < len(events)-1; i++ {
			if minute >= float64(events[i].MinuteOfDay) && minute < float64(events[i+1].MinuteOfDay) {
				prevMin = float64(events[i].MinuteOfDay)
				prevHeight = events[i].Height
				nextMin = float64(events[i+1].MinuteOfDay)
				nextHeight = events[i+1].Height
				break
			}
		}
	}

	duration := nextMin - prevMin
	if duration <= 0 {
		return 0, &DegenerateIntervalError{Date: date, Minute: int(minute)}
	}

	elapsed := (minute - prevMin) / duration
	if elapsed < 0 {
		elapsed = 0
	} else if elapsed > 1 {
		elapsed = 1
	}

	x := elapsed * 6
	i := int(math.Floor(x))
	if i > 5 {
		i = 5
	}
	frac := x - float64(i)
	cumulative := twelfthsTable[i] + (twelfthsTable[i+1]-twelfthsTable[i])*frac

	return prevHeight + (nextHeight-prevHeight)*cumulative, nil
}
