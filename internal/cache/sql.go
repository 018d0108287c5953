package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/metrics"
)

const createCachedRequests = `
CREATE TABLE IF NOT EXISTS cached_requests (
	search_text TEXT NOT NULL PRIMARY KEY,
	skills      TEXT NOT NULL,
	image_url   TEXT NOT NULL,
	created_at  BIGINT NOT NULL
)`

// SQLStore keeps entries in the cached_requests table. created_at is stored
// as Unix nanoseconds so the guarded delete can compare it exactly.
type SQLStore struct {
	db      *database.Client
	window  time.Duration
	now     Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type SQLOption func(*SQLStore)

func WithSQLClock(c Clock) SQLOption {
	return func(s *SQLStore) { s.now = c }
}

func WithSQLMetrics(m *metrics.Metrics) SQLOption {
	return func(s *SQLStore) { s.metrics = m }
}

// NewSQLStore creates the table if it does not exist.
func NewSQLStore(ctx context.Context, db *database.Client, window time.Duration, opts ...SQLOption) (*SQLStore, error) {
	s := &SQLStore{
		db:     db,
		window: window,
		now:    time.Now,
		logger: slog.Default().With("component", "sql-cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := db.Migrate(ctx, createCachedRequests); err != nil {
		return nil, fmt.Errorf("migrating cached_requests: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Lookup(ctx context.Context, key string) (*Entry, error) {
	var (
		skills    string
		imageURL  string
		createdNs int64
	)
	err := s.db.DB.QueryRowContext(ctx,
		s.db.Rebind(`SELECT skills, image_url, created_at FROM cached_requests WHERE search_text = ?`),
		key,
	).Scan(&skills, &imageURL, &createdNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %q: %w", key, err)
	}

	created := time.Unix(0, createdNs)
	if !isFresh(created, s.now(), s.window) {
		// Only the row that was read is removed; a newer insert survives.
		res, err := s.db.DB.ExecContext(ctx,
			s.db.Rebind(`DELETE FROM cached_requests WHERE search_text = ? AND created_at = ?`),
			key, createdNs,
		)
		if err != nil {
			return nil, fmt.Errorf("evicting stale %q: %w", key, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			s.logger.Debug("evicted stale entry", "search_text", key, "age", s.now().Sub(created))
			if s.metrics != nil {
				s.metrics.CacheStaleTotal.Inc()
			}
		}
		return nil, nil
	}

	return &Entry{
		SearchText:  key,
		Skills:      []byte(skills),
		ArtifactRef: imageURL,
		CreatedAt:   created,
	}, nil
}

func (s *SQLStore) Insert(ctx context.Context, key string, skills []byte, artifactRef string) error {
	_, err := s.db.DB.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO cached_requests (search_text, skills, image_url, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (search_text) DO UPDATE SET
			skills = excluded.skills,
			image_url = excluded.image_url,
			created_at = excluded.created_at`),
		key, string(skills), artifactRef, s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("caching %q: %w", key, err)
	}
	return nil
}

func (s *SQLStore) PurgeAll(ctx context.Context) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx, `DELETE FROM cached_requests`)
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged rows: %w", err)
	}
	s.logger.Info("cache purged", "deleted", n)
	return n, nil
}

// List returns every stored entry, stale or not, ordered by key.
func (s *SQLStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT search_text, skills, image_url, created_at FROM cached_requests ORDER BY search_text`)
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e         Entry
			skills    string
			createdNs int64
		)
		if err := rows.Scan(&e.SearchText, &skills, &e.ArtifactRef, &createdNs); err != nil {
			return nil, fmt.Errorf("scanning cache row: %w", err)
		}
		e.Skills = []byte(skills)
		e.CreatedAt = time.Unix(0, createdNs).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
