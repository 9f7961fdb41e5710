// metrics.go - Metrics collection for the ledger daemon
package main

import (
	"sync"
	"time"
)

// MetricsCollector tracks per-operation counters and latencies.
type MetricsCollector struct {
	mu        sync.RWMutex
	started   time.Time
	calls     map[string]int64
	errors    map[string]int64
	latencies map[string][]float64
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		started:   time.Now(),
		calls:     make(map[string]int64),
		errors:    make(map[string]int64),
		latencies: make(map[string][]float64),
	}
}

// RecordCall records one completed operation with its outcome and duration.
func (mc *MetricsCollector) RecordCall(op string, err error, d time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.calls[op]++
	if err != nil {
		mc.errors[op]++
	}
	mc.latencies[op] = append(mc.latencies[op], d.Seconds())

	// Keep only last 1000 values for memory efficiency
	if len(mc.latencies[op]) > 1000 {
		mc.latencies[op] = mc.latencies[op][len(mc.latencies[op])-1000:]
	}
}

// Summary returns a snapshot of all metrics for the metrics endpoint.
func (mc *MetricsCollector) Summary() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	summary := make(map[string]interface{})
	summary["uptime_seconds"] = time.Since(mc.started).Seconds()

	calls := make(map[string]int64, len(mc.calls))
	for op, n := range mc.calls {
		calls[op] = n
	}
	summary["calls"] = calls

	errors := make(map[string]int64, len(mc.errors))
	for op, n := range mc.errors {
		errors[op] = n
	}
	summary["errors"] = errors

	latencies := make(map[string]map[string]float64, len(mc.latencies))
	for op, values := range mc.latencies {
		if len(values) == 0 {
			continue
		}
		stats := map[string]float64{
			"count": float64(len(values)),
			"min":   values[0],
			"max":   values[0],
			"sum":   0,
		}
		for _, v := range values {
			if v < stats["min"] {
				stats["min"] = v
			}
			if v > stats["max"] {
				stats["max"] = v
			}
			stats["sum"] += v
		}
		stats["avg"] = stats["sum"] / stats["count"]
		latencies[op] = stats
	}
	summary["latency_seconds"] = latencies

	return summary
}
