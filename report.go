package main

import (
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Result 一次迭代的吞吐结果
type Result struct {
	RunID     string        `json:"run_id"`
	Target    string        `json:"target"`
	Op        Op            `json:"op"`
	Params    Params        `json:"params"`
	Warmup    bool          `json:"warmup"`
	Iteration int           `json:"iteration"`
	Duration  time.Duration `json:"duration_ns"`
	Batches   int64         `json:"batches"`
	Rows      int64         `json:"rows"`
	Values    int64         `json:"values"`
	BatchP50  time.Duration `json:"batch_p50_ns"`
	BatchP99  time.Duration `json:"batch_p99_ns"`
}

func (r *Result) RowsPerSecond() float64 {
	return float64(r.Rows) / r.Duration.Seconds()
}

func (r *Result) ValuesPerSecond() float64 {
	return float64(r.Values) / r.Duration.Seconds()
}

func (r *Result) String() string {
	kind := "iteration"
	if r.Warmup {
		kind = "warmup"
	}
	return fmt.Sprintf("%s %s %s %d, duration: %s, batches: %d, rows: %d, values: %d, rows/s: %.2f, values/s: %.2f, batch p50: %s, p99: %s",
		r.Target, r.Op, kind, r.Iteration, r.Duration, r.Batches, r.Rows, r.Values,
		r.RowsPerSecond(), r.ValuesPerSecond(), r.BatchP50, r.BatchP99)
}

// Summary 同一组合所有正式迭代的平均值
type Summary struct {
	Target          string  `json:"target"`
	Op              Op      `json:"op"`
	Params          Params  `json:"params"`
	Iterations      int     `json:"iterations"`
	RowsPerSecond   float64 `json:"rows_per_second"`
	ValuesPerSecond float64 `json:"values_per_second"`
}

func (s *Summary) String() string {
	return fmt.Sprintf("%s %s %s, iterations: %d, rows/s: %.2f, values/s: %.2f",
		s.Target, s.Op, s.Params, s.Iterations, s.RowsPerSecond, s.ValuesPerSecond)
}

func summarize(results []*Result) *Summary {
	var s *Summary
	for _, r := range results {
		if r.Warmup {
			continue
		}
		if s == nil {
			s = &Summary{Target: r.Target, Op: r.Op, Params: r.Params}
		}
		s.Iterations++
		s.RowsPerSecond += r.RowsPerSecond()
		s.ValuesPerSecond += r.ValuesPerSecond()
	}
	if s != nil {
		s.RowsPerSecond /= float64(s.Iterations)
		s.ValuesPerSecond /= float64(s.Iterations)
	}
	return s
}

// Report JSON 输出
type Report struct {
	RunID     string     `json:"run_id"`
	Results   []*Result  `json:"results"`
	Summaries []*Summary `json:"summaries"`
}

func writeReport(path string, report *Report) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report, %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
