package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/redis"
)

const window = 12 * time.Hour

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newSQLStore(t *testing.T, clock *fakeClock, opts ...SQLOption) (*SQLStore, *database.Client) {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	opts = append(opts, WithSQLClock(clock.Now))
	s, err := NewSQLStore(context.Background(), db, window, opts...)
	require.NoError(t, err)
	return s, db
}

func skipIfNoRedis(t *testing.T, clock *fakeClock) *RedisStore {
	t.Helper()
	addr := os.Getenv("JK_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: addr, PoolSize: 4})
	if err != nil {
		t.Skipf("skipping redis test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	prefix := "jk:test:" + t.Name() + ":"
	s := NewRedisStore(client, prefix, window, WithRedisClock(clock.Now))
	_, err = s.PurgeAll(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.PurgeAll(context.Background()) })
	return s
}

// storeContract is shared by every backend.
func storeContract(t *testing.T, s Store, clock *fakeClock) {
	ctx := context.Background()

	t.Run("miss on empty", func(t *testing.T) {
		e, err := s.Lookup(ctx, "go developer")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("insert then hit", func(t *testing.T) {
		skills := []byte(`[{"name":"go","occurrences":3}]`)
		require.NoError(t, s.Insert(ctx, "go developer", skills, "cached_1.png"))

		e, err := s.Lookup(ctx, "go developer")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, skills, []byte(e.Skills))
		assert.Equal(t, "cached_1.png", e.ArtifactRef)
		assert.Equal(t, "go developer", e.SearchText)
	})

	t.Run("keys are verbatim", func(t *testing.T) {
		e, err := s.Lookup(ctx, "Go Developer")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("insert replaces", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, "go developer", []byte(`[]`), "cached_2.png"))
		e, err := s.Lookup(ctx, "go developer")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "cached_2.png", e.ArtifactRef)

		all, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("fresh at exactly the window", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, "edge", []byte(`[]`), "edge.png"))
		clock.Advance(window)
		e, err := s.Lookup(ctx, "edge")
		require.NoError(t, err)
		assert.NotNil(t, e)
	})

	t.Run("stale is evicted on read", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, "stale", []byte(`[]`), "stale.png"))
		clock.Advance(window + time.Nanosecond)
		e, err := s.Lookup(ctx, "stale")
		require.NoError(t, err)
		assert.Nil(t, e)

		all, err := s.List(ctx)
		require.NoError(t, err)
		for _, entry := range all {
			assert.NotEqual(t, "stale", entry.SearchText)
		}
	})

	t.Run("purge is idempotent", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, "a", []byte(`[]`), "a.png"))
		require.NoError(t, s.Insert(ctx, "b", []byte(`[]`), "b.png"))

		n, err := s.PurgeAll(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(2))

		n, err = s.PurgeAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		for _, k := range []string{"a", "b", "go developer"} {
			e, err := s.Lookup(ctx, k)
			require.NoError(t, err)
			assert.Nil(t, e, k)
		}
	})
}

func TestSQLStoreContract(t *testing.T) {
	clock := newFakeClock()
	s, _ := newSQLStore(t, clock)
	storeContract(t, s, clock)
}

func TestRedisStoreContract(t *testing.T) {
	clock := newFakeClock()
	s := skipIfNoRedis(t, clock)
	storeContract(t, s, clock)
}

func TestRedisKeyOutlivesFreshnessWindow(t *testing.T) {
	assert.Greater(t, keyTTL(window), window)

	clock := newFakeClock()
	s := skipIfNoRedis(t, clock)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, "go", []byte(`[]`), "cached_a.png"))
	ttl, err := s.client.TTL(ctx, s.prefix+"go")
	require.NoError(t, err)
	assert.Greater(t, ttl, window)

	clock.Advance(window)
	e, err := s.Lookup(ctx, "go")
	require.NoError(t, err)
	assert.NotNil(t, e, "an entry exactly one window old is still fresh")
}

func TestSQLStaleDeleteKeepsNewerInsert(t *testing.T) {
	clock := newFakeClock()
	s, db := newSQLStore(t, clock)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "race", []byte(`[]`), "old.png"))
	clock.Advance(window + time.Minute)

	// A concurrent writer lands a fresh entry after the stale row was read.
	var oldCreated int64
	require.NoError(t, db.DB.QueryRowContext(ctx,
		`SELECT created_at FROM cached_requests WHERE search_text = ?`, "race").Scan(&oldCreated))
	require.NoError(t, s.Insert(ctx, "race", []byte(`[]`), "new.png"))

	res, err := db.DB.ExecContext(ctx,
		`DELETE FROM cached_requests WHERE search_text = ? AND created_at = ?`, "race", oldCreated)
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Zero(t, n)

	e, err := s.Lookup(ctx, "race")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "new.png", e.ArtifactRef)
}

func TestSQLConcurrentLookupAndInsertConverge(t *testing.T) {
	clock := newFakeClock()
	s, _ := newSQLStore(t, clock)
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		require.NoError(t, s.Insert(ctx, "k", []byte(`[]`), "stale.png"))
		clock.Advance(window + time.Second)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Lookup(ctx, "k")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Insert(ctx, "k", []byte(`[]`), "fresh.png"))
		}()
		wg.Wait()

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1, "round %d", round)
		assert.Equal(t, "fresh.png", all[0].ArtifactRef)
	}
}

func TestSQLStoreCountsStaleEvictions(t *testing.T) {
	clock := newFakeClock()
	m := metrics.New(prometheus.NewRegistry())
	s, _ := newSQLStore(t, clock, WithSQLMetrics(m))
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "q", []byte(`[]`), "q.png"))
	clock.Advance(window + time.Hour)
	e, err := s.Lookup(ctx, "q")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheStaleTotal))
}
