package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/obcmarine/bridgegap/internal/config"
	"github.com/obcmarine/bridgegap/internal/fetch"
	"github.com/obcmarine/bridgegap/internal/models"
)

// YearFetcher is the network side of the cache, satisfied by fetch.Fetcher.
type YearFetcher interface {
	FetchYear(ctx context.Context, station *models.TideStation, year int) (*models.RawTideYear, error)
}

// lruEntry wraps a cached year for the in-memory layer. insertedAt bounds
// how long this copy is served without consulting DynamoDB again.
type lruEntry struct {
	Data       *models.RawTideYear
	insertedAt time.Time
}

// YearCache is the authority on raw tide years. Reads prefer the LRU layer,
// then DynamoDB, then the network. A fetch failure falls back to whatever
// copy exists, however old, flagged stale; only a total absence of data
// propagates the fetch error. Entries are immutable: a refresh installs a
// new value, it never mutates the old one.
//
// Two TTLs are at work: ttl bounds how long a payload counts as current,
// lruTTL bounds how long the in-memory copy is served before DynamoDB is
// consulted for anything newer.
type YearCache struct {
	lru     *lru.Cache[string, *lruEntry]
	dynamo  *DynamoYearCache
	fetcher YearFetcher
	ttl     time.Duration
	lruTTL  time.Duration
	clock   clock
	group   singleflight.Group

	lruHits      atomic.Uint64
	lruMisses    atomic.Uint64
	dynamoHits   atomic.Uint64
	dynamoMisses atomic.Uint64
	fetches      atomic.Uint64
	staleServes  atomic.Uint64
}

// NewYearCache creates the two-layer cache. Either layer can be disabled in
// config: no LRU means every read consults DynamoDB, no DynamoDB leaves a
// purely in-memory cache for local runs.
func NewYearCache(ctx context.Context, cfg *config.CacheConfig, fetcher YearFetcher) (*YearCache, error) {
	var lruCache *lru.Cache[string, *lruEntry]
	if cfg.EnableLRUCache {
		var err error
		lruCache, err = lru.New[string, *lruEntry](cfg.TideYearLRUSize)
		if err != nil {
			return nil, fmt.Errorf("creating LRU cache: %w", err)
		}
	}

	var dynamoCache *DynamoYearCache
	if cfg.EnableDynamoCache {
		dynamoClient, err := NewDynamoClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating DynamoDB client: %w", err)
		}
		dynamoCache = NewDynamoYearCache(dynamoClient, cfg.GetTideYearTTL())
	}

	return &YearCache{
		lru:     lruCache,
		dynamo:  dynamoCache,
		fetcher: fetcher,
		ttl:     cfg.GetTideYearTTL(),
		lruTTL:  cfg.GetLRUTTL(),
		clock:   systemClock{},
	}, nil
}

// NewYearCacheWithLayers wires explicit layers, used by tests and by callers
// that manage their own DynamoDB client. lruSize <= 0 disables the in-memory
// layer.
func NewYearCacheWithLayers(lruSize int, dynamo *DynamoYearCache, fetcher YearFetcher, ttl time.Duration) (*YearCache, error) {
	var lruCache *lru.Cache[string, *lruEntry]
	if lruSize > 0 {
		var err error
		lruCache, err = lru.New[string, *lruEntry](lruSize)
		if err != nil {
			return nil, fmt.Errorf("creating LRU cache: %w", err)
		}
	}
	return &YearCache{
		lru:     lruCache,
		dynamo:  dynamo,
		fetcher: fetcher,
		ttl:     ttl,
		lruTTL:  time.Hour,
		clock:   systemClock{},
	}, nil
}

func yearKey(stationID string, year int) string {
	return fmt.Sprintf("%s:%d", stationID, year)
}

func (c *YearCache) isFresh(raw *models.RawTideYear, now time.Time) bool {
	return now.Before(raw.FetchedAt.Add(c.ttl))
}

// Get returns the raw tide year for a station, fetching it if the cache has
// no fresh copy or forceRefresh is set. Concurrent refreshes for the same
// station-year are coalesced into one network pass.
func (c *YearCache) Get(ctx context.Context, station *models.TideStation, year int, forceRefresh bool) (*models.RawTideYear, error) {
	key := yearKey(station.ID, year)
	now := c.clock.Now()

	if !forceRefresh {
		var resident *lruEntry
		if c.lru != nil {
			if entry, ok := c.lru.Get(key); ok && c.isFresh(entry.Data, now) {
				if now.Before(entry.insertedAt.Add(c.lruTTL)) {
					c.lruHits.Add(1)
					return entry.Data, nil
				}
				resident = entry
			}
			c.lruMisses.Add(1)
		}

		if c.dynamo != nil {
			record, expired, err := c.dynamo.GetYear(ctx, station.ID, year, now)
			if err != nil {
				log.Warn().Err(err).Str("station_id", station.ID).Int("year", year).
					Msg("DynamoDB read failed, continuing to network")
			} else if record != nil && !expired {
				c.dynamoHits.Add(1)
				c.addToLRU(key, record, now)
				return record, nil
			} else if record == nil {
				c.dynamoMisses.Add(1)
			}
		}

		// The memory copy sat out its residency window and DynamoDB had
		// nothing newer; re-admit it rather than refetching current data.
		if resident != nil {
			c.addToLRU(key, resident.Data, now)
			return resident.Data, nil
		}
	}

	raw, err := c.refresh(ctx, station, year, key)
	if err == nil {
		return raw, nil
	}

	// Network is down or rejecting: any copy beats no copy.
	if stale := c.anyCopy(ctx, station.ID, year); stale != nil {
		c.staleServes.Add(1)
		log.Warn().
			Str("station_id", station.ID).
			Int("year", year).
			Int("age_days", stale.AgeDays(now)).
			Msg("Serving stale tide year after fetch failure")
		return stale, nil
	}

	return nil, err
}

// refresh performs the coalesced fetch-and-store. All callers waiting on the
// same key receive the same result.
func (c *YearCache) refresh(ctx context.Context, station *models.TideStation, year int, key string) (*models.RawTideYear, error) {
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.fetches.Add(1)
		raw, err := c.fetcher.FetchYear(ctx, station, year)
		if err != nil {
			return nil, err
		}

		c.addToLRU(key, raw, c.clock.Now())
		if c.dynamo != nil {
			if saveErr := c.dynamo.SaveYear(ctx, raw); saveErr != nil {
				log.Error().Err(saveErr).Str("station_id", station.ID).Int("year", year).
					Msg("Failed to persist tide year")
			}
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.RawTideYear), nil
}

func (c *YearCache) addToLRU(key string, raw *models.RawTideYear, now time.Time) {
	if c.lru == nil {
		return
	}
	c.lru.Add(key, &lruEntry{Data: raw, insertedAt: now})
}

// anyCopy digs out whatever entry exists for the key, expired or not. The
// returned value is a stale-flagged copy, never the cached entry itself:
// this path only runs after a failed refresh, so whatever it serves is by
// definition not the fresh data the caller asked for.
func (c *YearCache) anyCopy(ctx context.Context, stationID string, year int) *models.RawTideYear {
	if c.lru != nil {
		if entry, ok := c.lru.Get(yearKey(stationID, year)); ok {
			stale := *entry.Data
			stale.Stale = true
			stale.Origin = "cache"
			return &stale
		}
	}
	if c.dynamo != nil {
		record, _, err := c.dynamo.GetYear(ctx, stationID, year, c.clock.Now())
		if err == nil && record != nil {
			record.Stale = true
			return record
		}
	}
	return nil
}

// Status reports per-year presence and age without touching the network or
// modifying any entry.
func (c *YearCache) Status(ctx context.Context, station *models.TideStation, years ...int) []models.YearStatus {
	now := c.clock.Now()
	statuses := make([]models.YearStatus, 0, len(years))
	for _, year := range years {
		status := models.YearStatus{Year: year}
		if entry, ok := c.peek(station.ID, year); ok {
			status.Present = true
			status.AgeDays = entry.Data.AgeDays(now)
			status.Stale = !c.isFresh(entry.Data, now)
		} else if c.dynamo != nil {
			if record, expired, err := c.dynamo.GetYear(ctx, station.ID, year, now); err == nil && record != nil {
				status.Present = true
				status.AgeDays = record.AgeDays(now)
				status.Stale = expired
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// GetCacheStats returns statistics about cache hits and misses
func (c *YearCache) GetCacheStats() map[string]uint64 {
	return map[string]uint64{
		"lru_hits":      c.lruHits.Load(),
		"lru_misses":    c.lruMisses.Load(),
		"dynamo_hits":   c.dynamoHits.Load(),
		"dynamo_misses": c.dynamoMisses.Load(),
		"fetches":       c.fetches.Load(),
		"stale_serves":  c.staleServes.Load(),
	}
}

func (c *YearCache) peek(stationID string, year int) (*lruEntry, bool) {
	if c.lru == nil {
		return nil, false
	}
	return c.lru.Peek(yearKey(stationID, year))
}

// Clear removes all entries from the LRU layer.
func (c *YearCache) Clear() {
	if c.lru != nil {
		c.lru.Purge()
	}
}

var _ YearFetcher = (*fetch.Fetcher)(nil)
