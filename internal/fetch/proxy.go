package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obcmarine/bridgegap/internal/models"
	"github.com/obcmarine/bridgegap/pkg/http/client"
)

// Endpoint is one indirection relay. Template contains a single %s verb that
// receives the URL-escaped target address.
type Endpoint struct {
	ID       string
	Template string
}

// DefaultEndpoints lists the public relays the original calculator shipped
// with, tried in order.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		{ID: "allorigins", Template: "https://api.allorigins.win/raw?url=%s"},
		{ID: "corsproxy", Template: "https://corsproxy.io/?%s"},
		{ID: "codetabs", Template: "https://api.codetabs.com/v1/proxy?quest=%s"},
	}
}

// Fetcher retrieves a year of raw tide-table text through an ordered list of
// relay endpoints. One pass over the list per call; retrying is the cache's
// business, bounded by user-initiated force refresh.
type Fetcher struct {
	httpClient     client.Interface
	endpoints      []Endpoint
	attemptTimeout time.Duration
}

type FetcherOptions struct {
	HTTPClient     client.Interface
	Endpoints      []Endpoint
	AttemptTimeout time.Duration
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.HTTPClient == nil {
		opts.HTTPClient = client.New(client.Options{})
	}
	if len(opts.Endpoints) == 0 {
		opts.Endpoints = DefaultEndpoints()
	}
	if opts.AttemptTimeout == 0 {
		opts.AttemptTimeout = 8 * time.Second
	}
	return &Fetcher{
		httpClient:     opts.HTTPClient,
		endpoints:      opts.Endpoints,
		attemptTimeout: opts.AttemptTimeout,
	}
}

// FetchYear downloads the raw tide table for one station-year. Each endpoint
// gets a single attempt with its own deadline; the first 2xx response with a
// non-empty body wins. A timeout cancels only that attempt, never the pass.
func (f *Fetcher) FetchYear(ctx context.Context, station *models.TideStation, year int) (*models.RawTideYear, error) {
	if !station.InRange(year) {
		return nil, &OutOfRangeError{
			StationID: station.ID,
			Year:      year,
			FirstYear: station.FirstYear,
			LastYear:  station.LastYear,
		}
	}

	target := fmt.Sprintf(station.URLTemplate, year)
	escaped := url.QueryEscape(target)

	var attempts []AttemptFailure
	for _, ep := range f.endpoints {
		relayURL := fmt.Sprintf(ep.Template, escaped)

		attemptCtx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
		resp, err := f.httpClient.Get(attemptCtx, relayURL)
		cancel()

		if err != nil {
			kind := FailureNetwork
			if errors.Is(err, context.DeadlineExceeded) {
				kind = FailureTimeout
			}
			log.Warn().
				Str("endpoint", ep.ID).
				Str("station_id", station.ID).
				Int("year", year).
				Err(err).
				Msg("Proxy attempt failed")
			attempts = append(attempts, AttemptFailure{Endpoint: ep.ID, Kind: kind, Err: err})
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 || len(resp.Body) == 0 {
			log.Warn().
				Str("endpoint", ep.ID).
				Int("status", resp.StatusCode).
				Int("body_bytes", len(resp.Body)).
				Msg("Proxy attempt rejected")
			attempts = append(attempts, AttemptFailure{
				Endpoint:   ep.ID,
				Kind:       FailureRejected,
				StatusCode: resp.StatusCode,
			})
			continue
		}

		log.Debug().
			Str("endpoint", ep.ID).
			Str("station_id", station.ID).
			Int("year", year).
			Int("body_bytes", len(resp.Body)).
			Msg("Fetched tide year")

		return &models.RawTideYear{
			StationID: station.ID,
			Year:      year,
			Payload:   string(resp.Body),
			FetchedAt: time.Now(),
			Origin:    "network:" + ep.ID,
		}, nil
	}

	return nil, &FetchError{StationID: station.ID, Year: year, Attempts: attempts}
}
