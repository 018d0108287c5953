package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/redis"
)

type redisRecord struct {
	Skills      json.RawMessage `json:"skills"`
	ArtifactRef string          `json:"imageUrl"`
	CreatedAt   int64           `json:"createdAt"`
}

// RedisStore keeps one JSON value per key. Keys also carry a TTL equal to the
// freshness window so abandoned entries expire without a lookup.
type RedisStore struct {
	client  *pkgredis.Client
	prefix  string
	window  time.Duration
	now     Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type RedisOption func(*RedisStore)

func WithRedisClock(c Clock) RedisOption {
	return func(s *RedisStore) { s.now = c }
}

func WithRedisMetrics(m *metrics.Metrics) RedisOption {
	return func(s *RedisStore) { s.metrics = m }
}

func NewRedisStore(client *pkgredis.Client, prefix string, window time.Duration, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: prefix,
		window: window,
		now:    time.Now,
		logger: slog.Default().With("component", "redis-cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Lookup(ctx context.Context, key string) (*Entry, error) {
	raw, err := s.client.Get(ctx, s.prefix+key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up %q: %w", key, err)
	}
	var rec redisRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decoding entry %q: %w", key, err)
	}

	created := time.Unix(0, rec.CreatedAt)
	if !isFresh(created, s.now(), s.window) {
		deleted, err := s.client.DeleteIfEqual(ctx, s.prefix+key, raw)
		if err != nil {
			return nil, fmt.Errorf("evicting stale %q: %w", key, err)
		}
		if deleted && s.metrics != nil {
			s.metrics.CacheStaleTotal.Inc()
		}
		return nil, nil
	}
	return &Entry{
		SearchText:  key,
		Skills:      rec.Skills,
		ArtifactRef: rec.ArtifactRef,
		CreatedAt:   created,
	}, nil
}

func (s *RedisStore) Insert(ctx context.Context, key string, skills []byte, artifactRef string) error {
	data, err := json.Marshal(redisRecord{
		Skills:      skills,
		ArtifactRef: artifactRef,
		CreatedAt:   s.now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("encoding entry %q: %w", key, err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, keyTTL(s.window)); err != nil {
		return fmt.Errorf("caching %q: %w", key, err)
	}
	return nil
}

// keyTTL outlives the freshness window so the boundary instant is decided
// by isFresh, as it is for the SQL store, and not by Redis expiry.
func keyTTL(window time.Duration) time.Duration {
	return window + time.Second
}

func (s *RedisStore) PurgeAll(ctx context.Context) (int64, error) {
	n, err := s.client.FlushByPattern(ctx, s.prefix+"*")
	if err != nil {
		return n, fmt.Errorf("purging cache: %w", err)
	}
	s.logger.Info("cache purged", "deleted", n)
	return n, nil
}

func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	keys, err := s.client.ScanKeys(ctx, s.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		raw, err := s.client.Get(ctx, k)
		if err != nil {
			if pkgredis.IsNilError(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", k, err)
		}
		var rec redisRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Warn("skipping undecodable entry", "key", k, "error", err)
			continue
		}
		entries = append(entries, Entry{
			SearchText:  strings.TrimPrefix(k, s.prefix),
			Skills:      rec.Skills,
			ArtifactRef: rec.ArtifactRef,
			CreatedAt:   time.Unix(0, rec.CreatedAt).UTC(),
		})
	}
	return entries, nil
}
