package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obcmarine/bridgegap/internal/fetch"
	"github.com/obcmarine/bridgegap/internal/models"
)

// fakeClock implements a mock time source for testing
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type mockFetcher struct {
	calls     atomic.Int32
	fetchFunc func(ctx context.Context, station *models.TideStation, year int) (*models.RawTideYear, error)
}

func (m *mockFetcher) FetchYear(ctx context.Context, station *models.TideStation, year int) (*models.RawTideYear, error) {
	m.calls.Add(1)
	return m.fetchFunc(ctx, station, year)
}

type mockDynamoDBClient struct {
	getItemFunc func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	putItemFunc func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

func (m *mockDynamoDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func cacheStation() *models.TideStation {
	return &models.TideStation{
		ID:          "auckland",
		Name:        "Auckland",
		URLTemplate: "https://example.test/Auckland%%20%d.csv",
		FirstYear:   2024,
		LastYear:    2027,
	}
}

func fetcherReturning(payload string, clock clock) *mockFetcher {
	return &mockFetcher{
		fetchFunc: func(_ context.Context, st *models.TideStation, year int) (*models.RawTideYear, error) {
			return &models.RawTideYear{
				StationID: st.ID,
				Year:      year,
				Payload:   payload,
				FetchedAt: clock.Now(),
				Origin:    "network:allorigins",
			}, nil
		},
	}
}

func failingFetcher() *mockFetcher {
	return &mockFetcher{
		fetchFunc: func(_ context.Context, st *models.TideStation, year int) (*models.RawTideYear, error) {
			return nil, &fetch.FetchError{
				StationID: st.ID,
				Year:      year,
				Attempts: []fetch.AttemptFailure{
					{Endpoint: "allorigins", Kind: fetch.FailureTimeout},
				},
			}
		},
	}
}

func newTestCache(t *testing.T, fetcher YearFetcher, clk clock) *YearCache {
	t.Helper()
	c, err := NewYearCacheWithLayers(16, nil, fetcher, 30*24*time.Hour)
	require.NoError(t, err)
	c.clock = clk
	return c
}

func TestYearCacheRoundTripWithoutNetwork(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	fetcher := fetcherReturning("1,Th,1,2026,05:47,3.1,,,,,,", clk)
	c := newTestCache(t, fetcher, clk)
	ctx := context.Background()

	first, err := c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	second, err := c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, int32(1), fetcher.calls.Load(), "cached read must not touch the network")
}

func TestYearCacheTTLExpiryRefetches(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	fetcher := fetcherReturning("payload", clk)
	c := newTestCache(t, fetcher, clk)
	ctx := context.Background()

	_, err := c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)

	clk.Advance(31 * 24 * time.Hour)

	_, err = c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestYearCacheStaleFallback(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	good := fetcherReturning("old payload", clk)
	c := newTestCache(t, good, clk)
	ctx := context.Background()

	_, err := c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)

	// Push the entry past its TTL and break the network.
	clk.Advance(45 * 24 * time.Hour)
	c.fetcher = failingFetcher()

	raw, err := c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)
	assert.Equal(t, "old payload", raw.Payload)
	assert.True(t, raw.Stale)
	assert.Equal(t, "cache", raw.Origin)
	assert.Equal(t, 45, raw.AgeDays(clk.Now()))
}

func TestYearCacheNoEntryPropagatesFetchError(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	c := newTestCache(t, failingFetcher(), clk)

	_, err := c.Get(context.Background(), cacheStation(), 2026, false)

	var fetchErr *fetch.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, fetchErr.AllTimedOut())
}

func TestYearCacheForceRefreshBypassesFreshEntry(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	fetcher := fetcherReturning("payload", clk)
	c := newTestCache(t, fetcher, clk)
	ctx := context.Background()

	_, err := c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)

	_, err = c.Get(ctx, cacheStation(), 2026, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())

	// The forced fetch wrote a fresh entry; plain reads use it.
	_, err = c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestYearCacheForceRefreshFailureStillFallsBack(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	fetcher := fetcherReturning("payload", clk)
	c := newTestCache(t, fetcher, clk)
	ctx := context.Background()

	_, err := c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)

	c.fetcher = failingFetcher()
	raw, err := c.Get(ctx, cacheStation(), 2026, true)
	require.NoError(t, err)
	assert.Equal(t, "payload", raw.Payload)
	// The caller demanded fresh data and got a fallback copy instead; that
	// counts as stale even with the entry inside its TTL.
	assert.True(t, raw.Stale)
	assert.Equal(t, "cache", raw.Origin)
}

func TestYearCacheDisabledMemoryLayer(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	fetcher := fetcherReturning("payload", clk)

	var stored map[string]types.AttributeValue
	mock := &mockDynamoDBClient{
		getItemFunc: func(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: stored}, nil
		},
		putItemFunc: func(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			stored = params.Item
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	dc := NewDynamoYearCache(mock, 30*24*time.Hour)

	c, err := NewYearCacheWithLayers(0, dc, fetcher, 30*24*time.Hour)
	require.NoError(t, err)
	c.clock = clk
	ctx := context.Background()

	_, err = c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)

	raw, err := c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)
	assert.Equal(t, "payload", raw.Payload)
	assert.Equal(t, "cache", raw.Origin)
	assert.Equal(t, int32(1), fetcher.calls.Load(), "repeat reads come from the persistent layer")
	assert.Equal(t, uint64(1), c.GetCacheStats()["dynamo_hits"])
}

func TestYearCacheMemoryResidencyWindow(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	fetcher := fetcherReturning("payload", clk)
	c := newTestCache(t, fetcher, clk)
	c.lruTTL = 10 * time.Minute
	ctx := context.Background()

	_, err := c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)

	clk.Advance(5 * time.Minute)
	_, err = c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.GetCacheStats()["lru_hits"])

	// Past the residency window the memory copy is revalidated; with no
	// persistent layer and the payload well inside its TTL it is re-admitted
	// without touching the network.
	clk.Advance(30 * time.Minute)
	raw, err := c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)
	assert.Equal(t, "payload", raw.Payload)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.GreaterOrEqual(t, c.GetCacheStats()["lru_misses"], uint64(1))

	// Re-admission reset the window.
	_, err = c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), c.GetCacheStats()["lru_hits"])
}

func TestYearCacheCoalescesConcurrentFetches(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	gate := make(chan struct{})
	fetcher := &mockFetcher{}
	fetcher.fetchFunc = func(_ context.Context, st *models.TideStation, year int) (*models.RawTideYear, error) {
		<-gate
		return &models.RawTideYear{
			StationID: st.ID,
			Year:      year,
			Payload:   "payload",
			FetchedAt: clk.Now(),
			Origin:    "network:allorigins",
		}, nil
	}
	c := newTestCache(t, fetcher, clk)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*models.RawTideYear, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Get(context.Background(), cacheStation(), 2026, false)
		}(i)
	}

	// Let the callers pile up on the in-flight fetch, then release it.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load(), "concurrent misses must share one fetch")
	for i := range results {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, "payload", results[i].Payload)
	}
}

func TestYearCacheStatus(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	fetcher := fetcherReturning("payload", clk)
	c := newTestCache(t, fetcher, clk)
	ctx := context.Background()

	_, err := c.Get(ctx, cacheStation(), 2026, false)
	require.NoError(t, err)

	clk.Advance(10 * 24 * time.Hour)

	statuses := c.Status(ctx, cacheStation(), 2025, 2026)
	require.Len(t, statuses, 2)

	assert.False(t, statuses[0].Present)
	assert.True(t, statuses[1].Present)
	assert.Equal(t, 10, statuses[1].AgeDays)
	assert.False(t, statuses[1].Stale)

	clk.Advance(25 * 24 * time.Hour)
	statuses = c.Status(ctx, cacheStation(), 2026)
	assert.True(t, statuses[0].Stale)

	// Introspection never triggers a fetch.
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestDynamoYearCacheRoundTrip(t *testing.T) {
	var stored map[string]interface{}
	mock := &mockDynamoDBClient{
		putItemFunc: func(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			var record yearRecord
			require.NoError(t, attributevalue.UnmarshalMap(params.Item, &record))
			stored = map[string]interface{}{"record": record}
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	dc := NewDynamoYearCache(mock, 30*24*time.Hour)

	now := time.Now().Truncate(time.Second)
	raw := &models.RawTideYear{
		StationID: "auckland",
		Year:      2026,
		Payload:   "payload",
		FetchedAt: now,
		Origin:    "network:corsproxy",
	}
	require.NoError(t, dc.SaveYear(context.Background(), raw))

	record := stored["record"].(yearRecord)
	assert.Equal(t, "auckland", record.StationID)
	assert.Equal(t, 2026, record.Year)
	assert.Equal(t, now.Unix(), record.FetchedAt)
	assert.Equal(t, now.Add(30*24*time.Hour).Unix(), record.ExpiresAt)
}

func TestDynamoYearCacheReturnsExpiredEntries(t *testing.T) {
	now := time.Now()
	record := yearRecord{
		StationID: "auckland",
		Year:      2026,
		Payload:   "old payload",
		FetchedAt: now.Add(-40 * 24 * time.Hour).Unix(),
		Origin:    "network:allorigins",
		ExpiresAt: now.Add(-10 * 24 * time.Hour).Unix(),
	}
	item, err := attributevalue.MarshalMap(record)
	require.NoError(t, err)

	mock := &mockDynamoDBClient{
		getItemFunc: func(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: item}, nil
		},
	}
	dc := NewDynamoYearCache(mock, 30*24*time.Hour)

	raw, expired, err := dc.GetYear(context.Background(), "auckland", 2026, now)
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.True(t, expired, "expired entries stay readable for the stale fallback")
	assert.Equal(t, "old payload", raw.Payload)
	assert.Equal(t, "cache", raw.Origin)
}
