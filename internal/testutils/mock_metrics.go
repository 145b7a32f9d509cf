package testutils

import (
	"slices"
	"sync"
	"time"

	"github.com/clamsproject/dashboard/internal/ports"
)

// MockMetrics records every call made through ports.MetricsCollector.
// Counters accumulate and gauges keep the last value; both are keyed by
// metric name plus the sorted label values.
type MockMetrics struct {
	mu        sync.Mutex
	counters  map[string]float64
	gauges    map[string]float64
	latencies map[string]int
}

// NewMockMetrics creates an empty recorder.
func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		counters:  make(map[string]float64),
		gauges:    make(map[string]float64),
		latencies: make(map[string]int),
	}
}

// RecordLatency counts latency observations per operation.
func (m *MockMetrics) RecordLatency(operation string, _ time.Duration, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[operation]++
}

// RecordCounter adds value to the counter.
func (m *MockMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[MetricKey(metric, labels)] += value
}

// RecordGauge sets the gauge.
func (m *MockMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[MetricKey(metric, labels)] = value
}

// Counter returns the accumulated counter value.
func (m *MockMetrics) Counter(metric string, labels map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[MetricKey(metric, labels)]
}

// Gauge returns the last gauge value.
func (m *MockMetrics) Gauge(metric string, labels map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[MetricKey(metric, labels)]
}

// Latencies returns how many latencies were observed for operation.
func (m *MockMetrics) Latencies(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latencies[operation]
}

// MetricKey renders a metric name with its labels in key order.
func MetricKey(metric string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	key := metric
	for _, k := range keys {
		key += "," + k + "=" + labels[k]
	}
	return key
}

var _ ports.MetricsCollector = (*MockMetrics)(nil)
