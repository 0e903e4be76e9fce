package station

import (
	"fmt"

	"github.com/obcmarine/bridgegap/internal/models"
)

// DefaultStationID is the tide station used when a query names none.
// The Tamaki River bridge sits inside the Auckland secondary port area, so
// the Auckland tables apply directly.
const DefaultStationID = "auckland"

// Registry holds the tide stations known at startup. Stations are static
// configuration; there is no runtime mutation.
type Registry struct {
	stations map[string]models.TideStation
}

// NewRegistry builds a registry from explicit stations, or from the built-in
// LINZ set when none are given.
func NewRegistry(stations ...models.TideStation) *Registry {
	if len(stations) == 0 {
		stations = defaultStations()
	}
	r := &Registry{stations: make(map[string]models.TideStation, len(stations))}
	for _, s := range stations {
		r.stations[s.ID] = s
	}
	return r
}

// Find returns the station with the given id.
func (r *Registry) Find(id string) (*models.TideStation, error) {
	s, ok := r.stations[id]
	if !ok {
		return nil, fmt.Errorf("station not found: %s", id)
	}
	return &s, nil
}

// All returns every registered station.
func (r *Registry) All() []models.TideStation {
	out := make([]models.TideStation, 0, len(r.stations))
	for _, s := range r.stations {
		out = append(out, s)
	}
	return out
}

// defaultStations lists the LINZ major-port CSV tables we know how to parse.
// LINZ publishes roughly four years at a time; the range is widened each
// time a new table is released.
func defaultStations() []models.TideStation {
	return []models.TideStation{
		{
			ID:          "auckland",
			Name:        "Auckland",
			URLTemplate: "https://static.charts.linz.govt.nz/tide-tables/maj-ports/csv/Auckland%%20%d.csv",
			FirstYear:   2024,
			LastYear:    2027,
		},
		{
			ID:          "onehunga",
			Name:        "Onehunga",
			URLTemplate: "https://static.charts.linz.govt.nz/tide-tables/maj-ports/csv/Onehunga%%20%d.csv",
			FirstYear:   2024,
			LastYear:    2027,
		},
		{
			ID:          "tauranga",
			Name:        "Tauranga",
			URLTemplate: "https://static.charts.linz.govt.nz/tide-tables/maj-ports/csv/Tauranga%%20%d.csv",
			FirstYear:   2024,
			LastYear:    2027,
		},
	}
}
