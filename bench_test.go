package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTarget 只计数的写入目标
type memTarget struct {
	mu        sync.Mutex
	setups    []Params
	teardowns int
	rows      atomic.Int64
	values    atomic.Int64

	unsupported func(Params) bool
	failAfter   int64
	calls       atomic.Int64
}

func (m *memTarget) Name() string { return "mem" }

func (m *memTarget) Setup(_ context.Context, p Params, _ Op) error {
	if m.unsupported != nil && m.unsupported(p) {
		return ErrUnsupported
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setups = append(m.setups, p)
	m.rows.Store(0)
	m.values.Store(0)
	return nil
}

func (m *memTarget) write(batch []Record) error {
	if n := m.calls.Add(1); m.failAfter > 0 && n > m.failAfter {
		return errors.New("boom")
	}
	m.rows.Add(int64(len(batch)))
	for _, r := range batch {
		m.values.Add(int64(len(r.Fields)))
	}
	return nil
}

func (m *memTarget) Insert(_ context.Context, batch []Record) error { return m.write(batch) }
func (m *memTarget) Upsert(_ context.Context, batch []Record) error { return m.write(batch) }

func (m *memTarget) Teardown(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardowns++
	return nil
}

func (m *memTarget) Close() error { return nil }

func testOptions(op Op) Options {
	return Options{
		Op:            op,
		Warmup:        1,
		Iterations:    2,
		IterationTime: 50 * time.Millisecond,
		KeySpace:      1000,
		PopulateBatch: 100,
		Payload:       PayloadValue,
	}
}

func TestRunnerRun(t *testing.T) {
	target := &memTarget{}
	runner := NewRunner(target, testOptions(OpInsert))

	combos := Matrix{
		RowsPerBatch: []int{10},
		ValuesPerRow: []int{5},
		IndexedPct:   []float64{20},
		Threads:      []int{1, 4},
	}.Combinations()

	var results []*Result
	require.NoError(t, runner.Run(context.Background(), combos, func(r *Result) {
		results = append(results, r)
	}))

	require.Len(t, results, 2*3)
	assert.Equal(t, combos, target.setups)
	assert.Equal(t, 2, target.teardowns)

	for _, r := range results {
		assert.Equal(t, runner.RunID(), r.RunID)
		assert.Equal(t, "mem", r.Target)
		assert.Greater(t, r.Batches, int64(0))
		assert.Equal(t, r.Batches*10, r.Rows)
		assert.Equal(t, r.Rows*5, r.Values)
		assert.GreaterOrEqual(t, r.Duration, 50*time.Millisecond)
		assert.Greater(t, r.RowsPerSecond(), 0.0)
	}

	assert.True(t, results[0].Warmup)
	assert.False(t, results[1].Warmup)
	assert.Equal(t, 1, results[2].Iteration)

	s := summarize(results[:3])
	require.NotNil(t, s)
	assert.Equal(t, 2, s.Iterations)
	assert.Equal(t, combos[0], s.Params)
}

func TestRunnerCountsMatchTarget(t *testing.T) {
	target := &memTarget{}
	opts := testOptions(OpUpsert)
	opts.Warmup = 0
	opts.Iterations = 1
	runner := NewRunner(target, opts)

	p := Params{RowsPerBatch: 7, ValuesPerRow: 3, IndexedPct: 50, Threads: 3}
	var res *Result
	require.NoError(t, runner.Run(context.Background(), []Params{p}, func(r *Result) { res = r }))
	require.NotNil(t, res)

	assert.Equal(t, target.rows.Load(), res.Rows)
	assert.Equal(t, target.values.Load(), res.Values)
}

func TestRunnerSkipsUnsupported(t *testing.T) {
	target := &memTarget{unsupported: func(p Params) bool { return p.ValuesPerRow == 1 }}
	runner := NewRunner(target, testOptions(OpInsert))

	combos := Matrix{
		RowsPerBatch: []int{1},
		ValuesPerRow: []int{1, 2},
		IndexedPct:   []float64{100},
		Threads:      []int{1},
	}.Combinations()

	var results []*Result
	require.NoError(t, runner.Run(context.Background(), combos, func(r *Result) {
		results = append(results, r)
	}))

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, 2, r.Params.ValuesPerRow)
	}
	assert.Equal(t, 1, target.teardowns)
}

func TestRunnerSkipsUpsertWithoutIndex(t *testing.T) {
	target := &memTarget{}
	runner := NewRunner(target, testOptions(OpUpsert))

	p := Params{RowsPerBatch: 1, ValuesPerRow: 10, IndexedPct: 0, Threads: 1}
	require.NoError(t, runner.Run(context.Background(), []Params{p}, func(*Result) {
		t.Fatal("no result expected")
	}))
	assert.Empty(t, target.setups)
}

func TestRunnerWriteErrorAborts(t *testing.T) {
	target := &memTarget{failAfter: 5}
	runner := NewRunner(target, testOptions(OpInsert))

	combos := Matrix{
		RowsPerBatch: []int{1},
		ValuesPerRow: []int{1, 2},
		IndexedPct:   []float64{0},
		Threads:      []int{2},
	}.Combinations()

	err := runner.Run(context.Background(), combos, func(*Result) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, target.setups, 1)
	assert.Equal(t, 1, target.teardowns)
}

func TestRunnerKeySpace(t *testing.T) {
	opts := testOptions(OpUpsert)
	opts.KeySpace = 10
	runner := NewRunner(&memTarget{}, opts)

	p := Params{RowsPerBatch: 100, ValuesPerRow: 1, IndexedPct: 100, Threads: 1}
	assert.Error(t, runner.Run(context.Background(), []Params{p}, func(*Result) {}))
}

func TestRunnerPopulate(t *testing.T) {
	target := &memTarget{}
	opts := testOptions(OpInsert)
	opts.Warmup = 0
	opts.Iterations = 0
	opts.PopulateRows = 250
	runner := NewRunner(target, opts)

	p := Params{RowsPerBatch: 1, ValuesPerRow: 4, IndexedPct: 0, Threads: 1}
	require.NoError(t, runner.Run(context.Background(), []Params{p}, func(*Result) {}))
	assert.Equal(t, int64(250), target.rows.Load())
	assert.Equal(t, int64(1000), target.values.Load())
	assert.Equal(t, int64(3), target.calls.Load())
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(&memTarget{}, testOptions(OpInsert))
	p := Params{RowsPerBatch: 1, ValuesPerRow: 1, Threads: 1}
	err := runner.Run(ctx, []Params{p}, func(*Result) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunnerSQLite(t *testing.T) {
	s := newTestSQLite(t, "sqlite")
	defer s.Close()

	opts := testOptions(OpUpsert)
	opts.IterationTime = 200 * time.Millisecond
	opts.PopulateRows = 100
	runner := NewRunner(s, opts)

	p := Params{RowsPerBatch: 20, ValuesPerRow: 4, IndexedPct: 25, Threads: 2}
	var results []*Result
	require.NoError(t, runner.Run(context.Background(), []Params{p}, func(r *Result) {
		results = append(results, r)
	}))

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Greater(t, r.Rows, int64(0))
		assert.Equal(t, r.Rows*4, r.Values)
	}
}
