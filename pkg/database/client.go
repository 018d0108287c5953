// Package database opens the relational store shared by the audit log, the
// SQL cache store and the feedback store. PostgreSQL (lib/pq) and embedded
// SQLite (modernc.org/sqlite) are supported behind one *sql.DB pool; queries
// are written with ? placeholders and rebound for the active dialect.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/config"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Client owns the connection pool. It is safe for concurrent use.
type Client struct {
	DB      *sql.DB
	dialect string
}

// Open connects to the store selected by cfg.Driver and verifies the
// connection with a ping.
func Open(cfg config.StorageConfig) (*Client, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return openPostgres(cfg.Postgres)
	case config.DriverSQLite:
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func openPostgres(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, dialect: config.DriverPostgres}, nil
}

// OpenSQLite opens a SQLite database file with WAL journaling. Writes are
// serialized through a single connection.
func OpenSQLite(path string) (*Client, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}
	return &Client{DB: db, dialect: config.DriverSQLite}, nil
}

// Dialect returns the driver name the client was opened with.
func (c *Client) Dialect() string {
	return c.dialect
}

// Rebind rewrites ? placeholders into the dialect's native form.
func (c *Client) Rebind(query string) string {
	if c.dialect != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrate executes schema statements in order. Statements must be idempotent.
func (c *Client) Migrate(ctx context.Context, statements ...string) error {
	for _, stmt := range statements {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
