// Package feedback stores free-text messages left by users of the search page.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/database"
	apperrors "github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/errors"
)

const maxMessageLen = 4000

const createFeedback = `
CREATE TABLE IF NOT EXISTS feedback_records (
	id         TEXT NOT NULL PRIMARY KEY,
	message    TEXT NOT NULL,
	ip_address TEXT NOT NULL,
	created_at BIGINT NOT NULL
)`

type Record struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	IPAddress string    `json:"ipAddress"`
}

type Store struct {
	db  *database.Client
	now func() time.Time
}

func NewStore(ctx context.Context, db *database.Client) (*Store, error) {
	if err := db.Migrate(ctx, createFeedback); err != nil {
		return nil, fmt.Errorf("migrating feedback_records: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Create stores message and returns its ULID. Blank messages are rejected as
// an invalid query.
func (s *Store) Create(ctx context.Context, message, ipAddress string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", apperrors.InvalidQuery("message must not be empty")
	}
	if len(message) > maxMessageLen {
		return "", apperrors.Newf(apperrors.ErrInvalidQuery, 400, "message exceeds %d bytes", maxMessageLen)
	}
	now := s.now()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	_, err := s.db.DB.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO feedback_records (id, message, ip_address, created_at)
		VALUES (?, ?, ?, ?)`),
		id, message, ipAddress, now.UnixNano(),
	)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrStorage, err, "saving feedback failed")
	}
	return id, nil
}

// List returns every record in creation order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, message, created_at, ip_address FROM feedback_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			r         Record
			createdNs int64
		)
		if err := rows.Scan(&r.ID, &r.Message, &createdNs, &r.IPAddress); err != nil {
			return nil, fmt.Errorf("scanning feedback row: %w", err)
		}
		r.CreatedAt = time.Unix(0, createdNs).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}
