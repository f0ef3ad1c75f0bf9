package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// Options 运行参数
type Options struct {
	Op            Op
	Warmup        int
	Iterations    int
	IterationTime time.Duration
	// KeySpace upsert 随机选行的范围
	KeySpace      int
	PopulateRows  int
	PopulateBatch int
	Payload       Payload
}

// Runner 对一个目标数据库依次测试参数组合
type Runner struct {
	target Target
	opts   Options
	runID  string
	seed   int64
}

func NewRunner(target Target, opts Options) *Runner {
	return &Runner{
		target: target,
		opts:   opts,
		runID:  uuid.NewString(),
		seed:   time.Now().UnixNano(),
	}
}

func (r *Runner) RunID() string { return r.runID }

// Run 每个组合 setup, populate, warmup, iterations, teardown
//
// 目标不支持的组合记录日志后跳过；其它错误直接返回，不再继续后面的组合
func (r *Runner) Run(ctx context.Context, combos []Params, report func(*Result)) error {
	for _, p := range combos {
		err := r.runCombination(ctx, p, report)
		switch {
		case err == nil:
		case errors.Is(err, ErrUnsupported), errors.Is(err, ErrNoIndexedValues):
			slog.Warn("skip combination",
				slog.String("target", r.target.Name()),
				slog.String("params", p.String()),
				slog.Any("reason", err))
		default:
			return fmt.Errorf("%s %s %s, %w", r.target.Name(), r.opts.Op, p, err)
		}
	}
	return nil
}

func (r *Runner) runCombination(ctx context.Context, p Params, report func(*Result)) (err error) {
	if err := p.Validate(r.opts.Op); err != nil {
		return err
	}
	if r.opts.Op == OpUpsert && p.RowsPerBatch > r.opts.KeySpace {
		return fmt.Errorf("rows per batch %d exceeds key space %d", p.RowsPerBatch, r.opts.KeySpace)
	}

	if err := r.target.Setup(ctx, p, r.opts.Op); err != nil {
		return err
	}
	defer func() {
		if teardownErr := r.target.Teardown(context.Background()); teardownErr != nil {
			err = errors.Join(err, fmt.Errorf("teardown, %w", teardownErr))
		}
	}()

	if err := populate(ctx, r.target, p, r.opts.PopulateRows, r.opts.PopulateBatch); err != nil {
		return err
	}

	slog.Debug("run combination",
		slog.String("run", r.runID),
		slog.String("target", r.target.Name()),
		slog.String("op", string(r.opts.Op)),
		slog.String("params", p.String()))

	for i := 0; i < r.opts.Warmup; i++ {
		res, err := r.iterate(ctx, p, i, true)
		if err != nil {
			return fmt.Errorf("warmup %d, %w", i, err)
		}
		report(res)
	}
	for i := 0; i < r.opts.Iterations; i++ {
		res, err := r.iterate(ctx, p, i, false)
		if err != nil {
			return fmt.Errorf("iteration %d, %w", i, err)
		}
		report(res)
	}
	return nil
}

// iterate p.Threads 个 worker 在 IterationTime 内不停地生成并写入批次
//
// 任何一次写入失败都会结束本次迭代，到期时被打断的批次不计数
func (r *Runner) iterate(ctx context.Context, p Params, iteration int, warmup bool) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := newBatchMetrics(r.target.Name(), r.opts.Op)
	defer m.stop()

	var (
		batches = xsync.NewCounter()
		rows    = xsync.NewCounter()
		values  = xsync.NewCounter()
	)

	ctx, cancel := context.WithTimeout(ctx, r.opts.IterationTime)
	defer cancel()

	startTime := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < p.Threads; w++ {
		seed := r.seed + int64(iteration*p.Threads+w)

		g.Go(func() error {
			gen := NewGenerator(p, r.opts.KeySpace, r.opts.Payload, seed)
			c := &Counters{}

			for gctx.Err() == nil {
				before := *c
				batch := gen.Batch(r.opts.Op, c)

				start := time.Now()
				if err := write(gctx, r.target, r.opts.Op, batch); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					m.errors.Inc()
					return err
				}

				n, v := c.Updates-before.Updates, c.UpdatedValues-before.UpdatedValues
				m.observe(time.Since(start), n, v)
				batches.Inc()
				rows.Add(int64(n))
				values.Add(int64(v))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	latency := m.percentiles(0.5, 0.99)
	return &Result{
		RunID:     r.runID,
		Target:    r.target.Name(),
		Op:        r.opts.Op,
		Params:    p,
		Warmup:    warmup,
		Iteration: iteration,
		Duration:  time.Since(startTime),
		Batches:   batches.Value(),
		Rows:      rows.Value(),
		Values:    values.Value(),
		BatchP50:  latency[0],
		BatchP99:  latency[1],
	}, nil
}
