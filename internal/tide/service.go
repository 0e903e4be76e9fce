package tide

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obcmarine/bridgegap/internal/models"
	"github.com/obcmarine/bridgegap/internal/station"
)

// YearSource is the cache side of the service, satisfied by cache.YearCache.
type YearSource interface {
	Get(ctx context.Context, station *models.TideStation, year int, forceRefresh bool) (*models.RawTideYear, error)
}

// DataMeta tells the caller how trustworthy the underlying tide table is,
// so "cached from N days ago" can be presented differently from fresh data.
type DataMeta struct {
	Stale   bool
	AgeDays int
	Origin  string
}

// Service turns cached raw years into interpolated heights. Parsed day
// indexes are kept per station-year and rebuilt whenever the backing raw
// payload is replaced.
type Service struct {
	stations *station.Registry
	years    YearSource
	bounds   HeightBounds

	mu     sync.Mutex
	parsed map[string]*parsedYear
}

type parsedYear struct {
	fetchedAt time.Time
	stale     bool
	origin    string
	index     *DayIndex
}

func NewService(stations *station.Registry, years YearSource, bounds HeightBounds) *Service {
	return &Service{
		stations: stations,
		years:    years,
		bounds:   bounds,
		parsed:   make(map[string]*parsedYear),
	}
}

// HeightAt returns the interpolated tide height for a station at a local
// date and (possibly fractional) minute of day. The year table is fetched
// lazily; neighbouring days, and at year boundaries the neighbouring year,
// are consulted only when the bracket actually crosses midnight.
func (s *Service) HeightAt(ctx context.Context, stationID string, date time.Time, minute float64, forceRefresh bool) (float64, *DataMeta, error) {
	st, err := s.stations.Find(stationID)
	if err != nil {
		return 0, nil, err
	}

	py, err := s.yearFor(ctx, st, date.Year(), forceRefresh)
	if err != nil {
		return 0, nil, err
	}
	meta := &DataMeta{
		Stale:   py.stale,
		AgeDays: int(time.Since(py.fetchedAt).Hours() / 24),
		Origin:  py.origin,
	}

	day := py.index.Day(date)
	if day == nil {
		d := date
		return 0, meta, &NoUsableDataError{
			StationID: st.ID,
			Year:      date.Year(),
			Date:      &d,
			Reason:    "date missing from tide table",
		}
	}

	var prevDay, nextDay *models.TideDay
	if len(day.Events) > 0 && minute < float64(day.Events[0].MinuteOfDay) {
		prevDay, err = s.neighbourDay(ctx, st, py, date.AddDate(0, 0, -1))
		if err != nil {
			return 0, meta, err
		}
	}
	if len(day.Events) > 0 && minute >= float64(day.Events[len(day.Events)-1].MinuteOfDay) {
		nextDay, err = s.neighbourDay(ctx, st, py, date.AddDate(0, 0, 1))
		if err != nil {
			return 0, meta, err
		}
	}

	height, err := HeightAtMinute(day, prevDay, nextDay, date, minute)
	if err != nil {
		return 0, meta, err
	}
	return height, meta, nil
}

// neighbourDay resolves the day before or after a query date for cross-day
// bracketing. A date the feed should cover but does not is a gap and fails;
// a date beyond the published span returns nil, which holds the edge height
// flat instead.
func (s *Service) neighbourDay(ctx context.Context, st *models.TideStation, current *parsedYear, d time.Time) (*models.TideDay, error) {
	py := current
	if !py.index.Covers(d) {
		if !st.InRange(d.Year()) {
			return nil, nil
		}
		other, err := s.yearFor(ctx, st, d.Year(), false)
		if err != nil {
			// The adjacent year is unavailable; hold the edge flat rather
			// than failing a query that is answerable from this year.
			log.Debug().Err(err).Int("year", d.Year()).Msg("Neighbouring year unavailable")
			return nil, nil
		}
		py = other
		if !py.index.Covers(d) {
			return nil, nil
		}
	}

	day := py.index.Day(d)
	if day == nil {
		dd := d
		return nil, &NoUsableDataError{
			StationID: st.ID,
			Year:      d.Year(),
			Date:      &dd,
			Reason:    "bracketing interval spans a data gap",
		}
	}
	return day, nil
}

// yearFor returns the parsed index for a station-year, reusing the previous
// parse while the raw payload is unchanged.
func (s *Service) yearFor(ctx context.Context, st *models.TideStation, year int, forceRefresh bool) (*parsedYear, error) {
	raw, err := s.years.Get(ctx, st, year, forceRefresh)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:%d", st.ID, year)

	s.mu.Lock()
	defer s.mu.Unlock()

	if py, ok := s.parsed[key]; ok && py.fetchedAt.Equal(raw.FetchedAt) && py.stale == raw.Stale {
		return py, nil
	}

	days, rowErrs, err := ParseYear(raw, s.bounds)
	if err != nil {
		return nil, err
	}
	if len(rowErrs) > 0 {
		log.Debug().Int("rejected_rows", len(rowErrs)).Str("key", key).Msg("Tide table parsed with diagnostics")
	}

	py := &parsedYear{
		fetchedAt: raw.FetchedAt,
		stale:     raw.Stale,
		origin:    raw.Origin,
		index:     NewDayIndex(days),
	}
	s.parsed[key] = py
	return py, nil
}
