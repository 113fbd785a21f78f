package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/pvaezi/sql-gpt/pkg/logger"
	"github.com/pvaezi/sql-gpt/pkg/metrics"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestDuckDB(t *testing.T) *DuckDB {
	t.Helper()
	db, err := NewDuckDB(context.Background(), logger.New(false), DuckDBConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDuckDB_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("aliases advance per successful load", func(t *testing.T) {
		db := newTestDuckDB(t)
		orders := writeCSV(t, "orders.csv", "id,amount\n1,10.5\n2,20\n")
		users := writeCSV(t, "users.csv", "id,name\n1,ana\n")

		id, err := db.Register(ctx, orders)
		require.NoError(t, err)
		require.Equal(t, "df1", id)

		id, err = db.Register(ctx, users)
		require.NoError(t, err)
		require.Equal(t, "df2", id)
	})

	t.Run("failed load does not consume an alias", func(t *testing.T) {
		db := newTestDuckDB(t)
		_, err := db.Register(ctx, filepath.Join(t.TempDir(), "missing.csv"))
		require.Error(t, err)

		id, err := db.Register(ctx, writeCSV(t, "ok.csv", "a\n1\n"))
		require.NoError(t, err)
		require.Equal(t, "df1", id)
	})

	t.Run("empty source", func(t *testing.T) {
		db := newTestDuckDB(t)
		_, err := db.Register(ctx, "  ")
		require.ErrorIs(t, err, ErrEmptySource)
	})
}

func TestDuckDB_Execute(t *testing.T) {
	ctx := context.Background()
	db := newTestDuckDB(t)
	id, err := db.Register(ctx, writeCSV(t, "orders.csv", "id,customer\n1,ana\n2,bo\n3,ana\n"))
	require.NoError(t, err)

	t.Run("returns columns and rows", func(t *testing.T) {
		res, err := db.Execute(ctx, "SELECT customer, count(*) AS n FROM "+id+" GROUP BY customer ORDER BY customer;")
		require.NoError(t, err)
		require.Equal(t, []string{"customer", "n"}, res.Columns)
		require.Equal(t, 2, res.Len())
		require.Equal(t, "ana", res.Rows[0][0])
		require.EqualValues(t, 2, res.Rows[0][1])
	})

	t.Run("engine error carries native text", func(t *testing.T) {
		_, err := db.Execute(ctx, "SELECT nope FROM "+id)
		require.Error(t, err)
		require.Contains(t, err.Error(), "nope")
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := db.Execute(ctx, "")
		require.ErrorIs(t, err, ErrEmptyQuery)
	})
}

func TestDuckDB_InvalidConfig(t *testing.T) {
	_, err := NewDuckDB(context.Background(), logger.New(false), DuckDBConfig{Threads: -1})
	require.ErrorContains(t, err, "threads")
}

func TestRegistry_NewEngine(t *testing.T) {
	ctx := context.Background()
	log := logger.New(false)

	t.Run("unknown engine", func(t *testing.T) {
		_, err := New(ctx, log, "oracle", nil)
		require.ErrorIs(t, err, ErrUnknownEngine)
		require.Contains(t, err.Error(), "clickhouse, duckdb, postgres")
	})

	t.Run("unknown config field", func(t *testing.T) {
		_, err := New(ctx, log, "duckdb", []byte(`{"pth":"x.db"}`))
		require.ErrorContains(t, err, "pth")
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		_, err := New(ctx, log, "postgres", []byte(`{}`))
		require.ErrorContains(t, err, "dsn is required")
	})

	t.Run("duckdb executes are counted", func(t *testing.T) {
		e, err := New(ctx, log, "DuckDB", []byte(`{"threads":1}`))
		require.NoError(t, err)
		defer e.Close()

		before := testutil.ToFloat64(metrics.EngineQueries.WithLabelValues(EngineDuckDB, metrics.StatusSuccess))
		_, err = e.Execute(ctx, "SELECT 1")
		require.NoError(t, err)
		after := testutil.ToFloat64(metrics.EngineQueries.WithLabelValues(EngineDuckDB, metrics.StatusSuccess))
		require.Equal(t, before+1, after)
	})
}
