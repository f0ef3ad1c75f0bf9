package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sqliteDrivers = []string{"sqlite", "sqlite3"}

func newTestSQLite(t testing.TB, driver string) *SQLite {
	s, err := NewSQLite(driver, t.TempDir(), DefaultPragma())
	require.NoError(t, err, "open sqlite")
	return s
}

func countRows(t testing.TB, s *SQLite) int {
	var n int
	require.NoError(t, s.db.GetContext(context.Background(), &n, `SELECT COUNT(*) FROM bench_rows`))
	return n
}

func countIndexes(t testing.TB, s *SQLite) int {
	var n int
	require.NoError(t, s.db.GetContext(context.Background(), &n,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = 'bench_rows'`))
	return n
}

func TestSQLiteInsert(t *testing.T) {
	for _, driver := range sqliteDrivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := newTestSQLite(t, driver)
			defer s.Close()

			p := Params{RowsPerBatch: 10, ValuesPerRow: 4, IndexedPct: 50, Threads: 1}
			require.NoError(t, s.Setup(ctx, p, OpInsert))
			assert.Equal(t, 2, countIndexes(t, s))

			g := NewGenerator(p, 100, PayloadValue, 1)
			c := &Counters{}
			for i := 0; i < 3; i++ {
				require.NoError(t, s.Insert(ctx, g.InsertBatch(c)))
			}
			assert.Equal(t, 30, countRows(t, s))

			var value string
			require.NoError(t, s.db.GetContext(ctx, &value, `SELECT key3 FROM bench_rows WHERE key0 = 'value17'`))
			assert.Equal(t, "value17", value)

			// setup again starts from an empty table
			require.NoError(t, s.Setup(ctx, p, OpInsert))
			assert.Equal(t, 0, countRows(t, s))

			require.NoError(t, s.Teardown(ctx))
			assert.Equal(t, 0, countIndexes(t, s))
		})
	}
}

func TestSQLiteUpsert(t *testing.T) {
	for _, driver := range sqliteDrivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := newTestSQLite(t, driver)
			defer s.Close()

			p := Params{RowsPerBatch: 10, ValuesPerRow: 3, IndexedPct: 34, Threads: 1}
			require.NoError(t, s.Setup(ctx, p, OpUpsert))
			assert.Equal(t, 1, countIndexes(t, s))

			g := NewGenerator(p, 20, PayloadValue, 1)
			c := &Counters{}

			first := g.UpsertBatch(c)
			require.NoError(t, s.Upsert(ctx, first))
			assert.Equal(t, 10, countRows(t, s))

			// the same rows again update in place
			require.NoError(t, s.Upsert(ctx, first))
			assert.Equal(t, 10, countRows(t, s))

			for i := 0; i < 10; i++ {
				require.NoError(t, s.Upsert(ctx, g.UpsertBatch(c)))
			}
			n := countRows(t, s)
			assert.GreaterOrEqual(t, n, 10)
			assert.LessOrEqual(t, n, 20)
			assert.Equal(t, 110, c.Updates)
		})
	}
}

func TestSQLiteUpsertAllIndexed(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, "sqlite")
	defer s.Close()

	p := Params{RowsPerBatch: 5, ValuesPerRow: 2, IndexedPct: 100, Threads: 1}
	require.NoError(t, s.Setup(ctx, p, OpUpsert))

	batch := NewGenerator(p, 5, PayloadValue, 1).UpsertBatch(&Counters{})
	require.NoError(t, s.Upsert(ctx, batch))
	require.NoError(t, s.Upsert(ctx, batch))
	assert.Equal(t, 5, countRows(t, s))
}

func TestSQLitePopulate(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, "sqlite")
	defer s.Close()

	p := Params{RowsPerBatch: 1, ValuesPerRow: 2, IndexedPct: 50, Threads: 1}
	require.NoError(t, s.Setup(ctx, p, OpInsert))
	require.NoError(t, populate(ctx, s, p, 2500, 1000))
	assert.Equal(t, 2500, countRows(t, s))
}

func TestSQLiteCloseRemovesDir(t *testing.T) {
	s := newTestSQLite(t, "sqlite")
	path := s.path

	_, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestNewSQLiteUnknownDriver(t *testing.T) {
	_, err := NewSQLite("sqlite4", t.TempDir(), Pragma{})
	assert.Error(t, err)
}
