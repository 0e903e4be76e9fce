package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obcmarine/bridgegap/internal/api"
	"github.com/obcmarine/bridgegap/internal/cache"
	"github.com/obcmarine/bridgegap/internal/config"
	"github.com/obcmarine/bridgegap/internal/fetch"
	"github.com/obcmarine/bridgegap/internal/station"
)

var (
	yearCache *cache.YearCache
	stations  *station.Registry
	setupOnce sync.Once
)

func init() {
	setupOnce.Do(func() {
		// Initialize logger
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		levelStr := os.Getenv("LOG_LEVEL")
		if levelStr == "" {
			levelStr = "info"
		}
		level, err := zerolog.ParseLevel(levelStr)
		if err != nil {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)

		if env := os.Getenv("ENV"); env == "local" || env == "development" {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
		}

		cfg := config.LoadFromEnv()
		fetcher := fetch.NewFetcher(fetch.FetcherOptions{AttemptTimeout: cfg.FetchTimeout})

		yearCache, err = cache.NewYearCache(context.Background(), config.GetCacheConfig(), fetcher)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tide year cache")
		}
		stations = station.NewRegistry()
	})
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	params := request.QueryStringParameters
	log.Info().Msg("Handling cache status request")

	stationID := station.DefaultStationID
	if id, ok := params["station"]; ok {
		stationID = id
	}
	st, err := stations.Find(stationID)
	if err != nil {
		return api.Error(err.Error(), http.StatusNotFound)
	}

	years := requestedYears(params, st.FirstYear, st.LastYear)
	statuses := yearCache.Status(ctx, st, years...)

	return api.Success(api.NewStatusResponse(st.ID, statuses))
}

// requestedYears returns the single year asked for, or the station's whole
// published range when none is given.
func requestedYears(params map[string]string, first, last int) []int {
	if yearStr, ok := params["year"]; ok {
		if year, err := strconv.Atoi(yearStr); err == nil {
			return []int{year}
		}
	}
	years := make([]int, 0, last-first+1)
	for y := first; y <= last; y++ {
		years = append(years, y)
	}
	return years
}

func main() {
	lambda.Start(handleRequest)
}
