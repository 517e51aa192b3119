package infrastructure

import (
	"context"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RuntimeMetrics samples Go runtime resource usage at stage boundaries.
// The in-memory transform holds every table at once, so heap growth per
// stage is the figure worth watching on large exports.
type RuntimeMetrics struct {
	goRoutines      metric.Int64Gauge
	memoryAllocated metric.Int64Gauge
	memorySystem    metric.Int64Gauge
	gcCount         metric.Int64Gauge
}

// RuntimeStats is one runtime sample
type RuntimeStats struct {
	Goroutines     int
	HeapAllocBytes uint64
	SysBytes       uint64
	NumGC          uint32
}

// NewRuntimeMetrics creates the runtime gauges
func NewRuntimeMetrics(meter metric.Meter) (*RuntimeMetrics, error) {
	goRoutines, err := meter.Int64Gauge(
		"etl.runtime.goroutines",
		metric.WithDescription("Number of active goroutines"),
	)
	if err != nil {
		return nil, err
	}

	memoryAllocated, err := meter.Int64Gauge(
		"etl.runtime.heap_alloc",
		metric.WithDescription("Heap bytes allocated by the Go runtime"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	memorySystem, err := meter.Int64Gauge(
		"etl.runtime.sys",
		metric.WithDescription("Memory obtained from the OS"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	gcCount, err := meter.Int64Gauge(
		"etl.runtime.gc_count",
		metric.WithDescription("Completed garbage collection cycles"),
	)
	if err != nil {
		return nil, err
	}

	return &RuntimeMetrics{
		goRoutines:      goRoutines,
		memoryAllocated: memoryAllocated,
		memorySystem:    memorySystem,
		gcCount:         gcCount,
	}, nil
}

// ReadRuntimeStats samples the runtime
func ReadRuntimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeStats{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: m.HeapAlloc,
		SysBytes:       m.Sys,
		NumGC:          m.NumGC,
	}
}

// Record samples the runtime and records it against the stage
func (rm *RuntimeMetrics) Record(ctx context.Context, stage string) RuntimeStats {
	stats := ReadRuntimeStats()
	if rm == nil {
		return stats
	}
	attrs := metric.WithAttributes(attribute.String("stage", stage))
	rm.goRoutines.Record(ctx, int64(stats.Goroutines), attrs)
	rm.memoryAllocated.Record(ctx, int64(stats.HeapAllocBytes), attrs)
	rm.memorySystem.Record(ctx, int64(stats.SysBytes), attrs)
	rm.gcCount.Record(ctx, int64(stats.NumGC), attrs)
	return stats
}
