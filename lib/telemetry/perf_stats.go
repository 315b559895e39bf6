package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("davisweb.runtime")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var heapGauge, _ = meter.Int64Gauge("heap_mb")
var goroutineGauge, _ = meter.Int64Gauge("goroutine_count")

func recordPerfStats(ctx context.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	heapGauge.Record(ctx, int64(memStats.Alloc/1_000_000))
	goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))

	// cpu.Percent blocks for the sampling window
	usage, err := cpu.Percent(time.Minute, false)
	if err != nil {
		slog.Warn("failed to read cpu usage", "err", err)
		return
	}
	cpuGauge.Record(ctx, usage[0])
}

// InstrumentPerfStats samples process cpu, heap, and goroutine counts
// every 30 seconds until ctx is canceled.
func InstrumentPerfStats(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Second * 30)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				recordPerfStats(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}
