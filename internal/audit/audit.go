// Package audit is the append-only log of served requests. Every request
// that reaches the pipeline and produces a result, hit or miss, gets exactly
// one record. Records are never updated or deleted.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/database"
)

const createRequests = `
CREATE TABLE IF NOT EXISTS requests (
	request_id  TEXT NOT NULL PRIMARY KEY,
	search_text TEXT NOT NULL,
	skills      TEXT NOT NULL,
	created_at  BIGINT NOT NULL,
	ip_address  TEXT
)`

type Record struct {
	RequestID  string          `json:"requestId"`
	SearchText string          `json:"searchText"`
	Skills     json.RawMessage `json:"skills"`
	CreatedAt  time.Time       `json:"createdAt"`
	IPAddress  string          `json:"ipAddress"`
}

// Log appends and lists Records.
type Log struct {
	db  *database.Client
	now func() time.Time
}

func NewLog(ctx context.Context, db *database.Client) (*Log, error) {
	if err := db.Migrate(ctx, createRequests); err != nil {
		return nil, fmt.Errorf("migrating requests: %w", err)
	}
	return &Log{db: db, now: time.Now}, nil
}

// Append stores rec. A zero CreatedAt is set to the current time.
func (l *Log) Append(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now()
	}
	_, err := l.db.DB.ExecContext(ctx, l.db.Rebind(`
		INSERT INTO requests (request_id, search_text, skills, created_at, ip_address)
		VALUES (?, ?, ?, ?, ?)`),
		rec.RequestID, rec.SearchText, string(rec.Skills), rec.CreatedAt.UnixNano(), rec.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("appending request %s: %w", rec.RequestID, err)
	}
	return nil
}

// List returns all records, oldest first.
func (l *Log) List(ctx context.Context) ([]Record, error) {
	rows, err := l.db.DB.QueryContext(ctx, `
		SELECT request_id, search_text, skills, created_at, ip_address
		FROM requests ORDER BY created_at, request_id`)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			rec       Record
			skills    string
			createdNs int64
			ip        *string
		)
		if err := rows.Scan(&rec.RequestID, &rec.SearchText, &skills, &createdNs, &ip); err != nil {
			return nil, fmt.Errorf("scanning request row: %w", err)
		}
		rec.Skills = []byte(skills)
		rec.CreatedAt = time.Unix(0, createdNs).UTC()
		if ip != nil {
			rec.IPAddress = *ip
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored records.
func (l *Log) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting requests: %w", err)
	}
	return n, nil
}
