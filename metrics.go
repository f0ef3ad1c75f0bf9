package main

import (
	"fmt"
	"net"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/valyala/fasthttp"
	"golang.org/x/exp/slog"
)

// batchMetrics 写入指标
//
// prometheus 计数器按 target/op 累计，timer 只记录当前这一次迭代的批次耗时
type batchMetrics struct {
	rows    *vm.Counter
	values  *vm.Counter
	errors  *vm.Counter
	latency *vm.Histogram
	timer   gometrics.Timer
}

func newBatchMetrics(target string, op Op) *batchMetrics {
	labels := fmt.Sprintf(`{target=%q,op=%q}`, target, op)
	return &batchMetrics{
		rows:    vm.GetOrCreateCounter("dbbench_rows_total" + labels),
		values:  vm.GetOrCreateCounter("dbbench_values_total" + labels),
		errors:  vm.GetOrCreateCounter("dbbench_write_errors_total" + labels),
		latency: vm.GetOrCreateHistogram("dbbench_batch_duration_seconds" + labels),
		timer:   gometrics.NewTimer(),
	}
}

func (m *batchMetrics) observe(d time.Duration, rows, values int) {
	m.rows.Add(rows)
	m.values.Add(values)
	m.latency.Update(d.Seconds())
	m.timer.Update(d)
}

// percentiles 批次耗时分位数
func (m *batchMetrics) percentiles(ps ...float64) []time.Duration {
	result := make([]time.Duration, len(ps))
	for i, v := range m.timer.Percentiles(ps) {
		result[i] = time.Duration(v)
	}
	return result
}

func (m *batchMetrics) stop() {
	m.timer.Stop()
}

func metricsHandler(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/metrics":
		ctx.SetContentType("text/plain; version=0.0.4")
		vm.WritePrometheus(ctx, true)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

// serveMetrics 在 addr 上提供 /metrics，返回关闭函数
func serveMetrics(addr string) (func() error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s, %w", addr, err)
	}

	server := &fasthttp.Server{
		Handler:     metricsHandler,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil {
			slog.Warn("metrics server stopped", slog.String("addr", addr), slog.Any("err", err))
		}
	}()

	slog.Info("serving metrics", slog.String("addr", ln.Addr().String()))
	return server.Shutdown, nil
}
