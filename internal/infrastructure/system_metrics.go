package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SystemMetrics records process runtime gauges for the health endpoints.
type SystemMetrics struct {
	startTime   time.Time
	goRoutines  metric.Int64Gauge
	memoryUsage metric.Int64Gauge
	uptime      metric.Float64Gauge
}

// SystemStats holds current system statistics
type SystemStats struct {
	GoRoutines    int64         `json:"goroutines"`
	MemoryUsage   int64         `json:"memory_bytes"`
	GCCount       uint32        `json:"gc_count"`
	CPUCount      int           `json:"cpu_count"`
	ProcessUptime time.Duration `json:"uptime_ns"`
	Timestamp     time.Time     `json:"timestamp"`
}

// NewSystemMetrics creates a new system metrics collector
func NewSystemMetrics(meter metric.Meter, startTime time.Time) (*SystemMetrics, error) {
	goRoutines, err := meter.Int64Gauge(
		"system_goroutines",
		metric.WithDescription("Number of active goroutines"),
	)
	if err != nil {
		return nil, err
	}

	memoryUsage, err := meter.Int64Gauge(
		"system_memory_usage_bytes",
		metric.WithDescription("Memory usage in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	uptime, err := meter.Float64Gauge(
		"system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &SystemMetrics{
		startTime:   startTime,
		goRoutines:  goRoutines,
		memoryUsage: memoryUsage,
		uptime:      uptime,
	}, nil
}

// Collect collects and records system metrics
func (sm *SystemMetrics) Collect(ctx context.Context) *SystemStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := &SystemStats{
		GoRoutines:    int64(runtime.NumGoroutine()),
		MemoryUsage:   int64(memStats.Alloc),
		GCCount:       memStats.NumGC,
		CPUCount:      runtime.NumCPU(),
		ProcessUptime: time.Since(sm.startTime),
		Timestamp:     time.Now(),
	}

	sm.goRoutines.Record(ctx, stats.GoRoutines)
	sm.memoryUsage.Record(ctx, stats.MemoryUsage)
	sm.uptime.Record(ctx, stats.ProcessUptime.Seconds())

	return stats
}

// StartTime reports when the collector's process clock started.
func (sm *SystemMetrics) StartTime() time.Time {
	return sm.startTime
}
