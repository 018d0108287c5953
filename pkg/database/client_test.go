package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *Client {
	t.Helper()
	c, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRebind(t *testing.T) {
	pg := &Client{dialect: config.DriverPostgres}
	assert.Equal(t,
		"SELECT a FROM t WHERE x = $1 AND y = $2",
		pg.Rebind("SELECT a FROM t WHERE x = ? AND y = ?"),
	)

	lite := &Client{dialect: config.DriverSQLite}
	assert.Equal(t, "SELECT a FROM t WHERE x = ?", lite.Rebind("SELECT a FROM t WHERE x = ?"))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(config.StorageConfig{Driver: "oracle"})
	require.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	c := openTestDB(t)
	ctx := context.Background()
	stmt := `CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)`

	require.NoError(t, c.Migrate(ctx, stmt))
	require.NoError(t, c.Migrate(ctx, stmt))
	assert.Equal(t, config.DriverSQLite, c.Dialect())
	assert.NoError(t, c.Ping(ctx))
}

func TestInTxRollsBackOnError(t *testing.T) {
	c := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, c.Migrate(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)`))

	boom := errors.New("boom")
	err := c.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, c.Rebind(`INSERT INTO kv (k, v) VALUES (?, ?)`), "a", "1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, c.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, c.Rebind(`INSERT INTO kv (k, v) VALUES (?, ?)`), "a", "1")
		return err
	}))
	require.NoError(t, c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv`).Scan(&n))
	assert.Equal(t, 1, n)
}
