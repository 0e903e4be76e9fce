package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obcmarine/bridgegap/internal/api"
	"github.com/obcmarine/bridgegap/internal/bridge"
	"github.com/obcmarine/bridgegap/internal/cache"
	"github.com/obcmarine/bridgegap/internal/clearance"
	"github.com/obcmarine/bridgegap/internal/config"
	"github.com/obcmarine/bridgegap/internal/fetch"
	"github.com/obcmarine/bridgegap/internal/station"
	"github.com/obcmarine/bridgegap/internal/tide"
	"github.com/obcmarine/bridgegap/pkg/http/client"
)

var (
	engine         *clearance.Engine
	sampleInterval time.Duration
	setupOnce      sync.Once
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

		// Setup console logger for development
		if env := os.Getenv("ENV"); env == "local" || env == "development" {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
		}

		cfg := config.LoadFromEnv()
		sampleInterval = cfg.SampleInterval

		fetcher := fetch.NewFetcher(fetch.FetcherOptions{
			HTTPClient:     client.New(client.Options{Timeout: 30 * time.Second}),
			AttemptTimeout: cfg.FetchTimeout,
		})

		ctx := context.Background()
		cacheCfg := config.GetCacheConfig()
		yearCache, err := cache.NewYearCache(ctx, cacheCfg, fetcher)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tide year cache")
		}

		stations := station.NewRegistry()
		tideService := tide.NewService(stations, yearCache, tide.HeightBounds{
			Min: cfg.MinTideHeight,
			Max: cfg.MaxTideHeight,
		})

		s3Registry, err := bridge.NewS3RegistryFromEnv(ctx, cacheCfg.GetBridgeRegistryTTL())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize bridge registry loader")
		}
		bridges := s3Registry.Load(ctx)

		engine = clearance.NewEngine(tideService, bridges, station.DefaultStationID)
	})
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	params := request.QueryStringParameters
	log.Info().Msg("Handling clearance request")

	query, err := api.ParseClearanceParams(params, bridge.DefaultBridgeID, "IN_OUT")
	if err != nil {
		return api.Error(err.Error(), http.StatusBadRequest)
	}

	if api.ParseBool(params, "windows") {
		windows, err := engine.FindSafeWindows(ctx, query.Date, query.BridgeID, query.SpanID,
			query.BoatHeight, query.SafetyMargin, clearance.WindowOptions{
				IncludeCaution: api.ParseBool(params, "includeCaution"),
				ForceRefresh:   query.ForceRefresh,
				SampleInterval: sampleInterval,
			})
		if err != nil {
			return errorResponse(err)
		}
		return api.Success(api.NewWindowsResponse(query.BridgeID, query.SpanID, query.Date, windows))
	}

	result, err := engine.Classify(ctx, *query)
	if err != nil {
		return errorResponse(err)
	}
	return api.Success(api.NewClearanceResponse(query.BridgeID, query.SpanID, result))
}

// errorResponse maps the error taxonomy onto status codes. The message
// always travels to the UI: "no data at all" must read differently from
// "upstream unreachable".
func errorResponse(err error) (events.APIGatewayProxyResponse, error) {
	log.Error().Err(err).Msg("Error answering clearance query")

	var invalidQuery *clearance.InvalidQueryError
	var outOfRange *fetch.OutOfRangeError
	var fetchErr *fetch.FetchError
	var noData *tide.NoUsableDataError
	var degenerate *tide.DegenerateIntervalError

	switch {
	case errors.As(err, &invalidQuery), errors.As(err, &outOfRange):
		return api.Error(err.Error(), http.StatusBadRequest)
	case errors.As(err, &fetchErr):
		return api.Error(err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &noData):
		return api.Error(err.Error(), http.StatusBadGateway)
	case errors.As(err, &degenerate):
		return api.Error(err.Error(), http.StatusUnprocessableEntity)
	default:
		return api.Error("Error computing clearance", http.StatusInternalServerError)
	}
}

func main() {
	lambda.Start(handleRequest)
}
