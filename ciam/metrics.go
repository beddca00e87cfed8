package ciam

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MetricsCollector collects and reports client metrics
type MetricsCollector interface {
	// RecordTokenExchange records an authorization code exchange
	RecordTokenExchange(success bool, duration time.Duration)
	// RecordTokenRefresh records a token refresh that reached the network
	RecordTokenRefresh(success bool, duration time.Duration)
	// RecordAPIRequest records a typed API call, keyed by "METHOD /path"
	RecordAPIRequest(operation string, success bool, duration time.Duration)
	// RecordError records an error by operation and type (a Status, "decode",
	// "protocol" or "transport")
	RecordError(operation string, errorType string)
	// GetMetrics returns current metrics
	GetMetrics() *Metrics
	// Reset resets all metrics
	Reset()
}

// Metrics represents collected client metrics
type Metrics struct {
	TokenExchanges MetricCounter            `json:"token_exchanges"`
	TokenRefreshes MetricCounter            `json:"token_refreshes"`
	APIRequests    MetricCounter            `json:"api_requests"`
	Operations     map[string]MetricCounter `json:"operations"`

	// Errors keyed by "operation:type"
	Errors map[string]int64 `json:"errors"`

	ResponseTimes map[string]ResponseTime `json:"response_times"`

	StartTime     time.Time `json:"start_time"`
	LastResetTime time.Time `json:"last_reset_time"`
}

// MetricCounter represents a counter metric
type MetricCounter struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
}

func (m *MetricCounter) add(success bool) {
	m.Total++
	if success {
		m.Success++
	} else {
		m.Failed++
	}
}

// ResponseTime represents response time statistics
type ResponseTime struct {
	Count   int64         `json:"count"`
	Total   time.Duration `json:"total"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Average time.Duration `json:"average"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
}

const maxDurationSamples = 1000

// DefaultMetricsCollector implements MetricsCollector with in-memory storage
type DefaultMetricsCollector struct {
	mu        sync.Mutex
	metrics   Metrics
	durations map[string][]time.Duration
}

// NewDefaultMetricsCollector creates a new default metrics collector
func NewDefaultMetricsCollector() *DefaultMetricsCollector {
	c := &DefaultMetricsCollector{}
	c.Reset()
	return c
}

// RecordTokenExchange records an authorization code exchange
func (c *DefaultMetricsCollector) RecordTokenExchange(success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.TokenExchanges.add(success)
	c.recordDuration("token_exchange", duration)
}

// RecordTokenRefresh records a token refresh
func (c *DefaultMetricsCollector) RecordTokenRefresh(success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.TokenRefreshes.add(success)
	c.recordDuration("token_refresh", duration)
}

// RecordAPIRequest records a typed API call
func (c *DefaultMetricsCollector) RecordAPIRequest(operation string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.APIRequests.add(success)
	counter := c.metrics.Operations[operation]
	counter.add(success)
	c.metrics.Operations[operation] = counter

	c.recordDuration("api_request", duration)
	c.recordDuration(operation, duration)
}

// RecordError records an error
func (c *DefaultMetricsCollector) RecordError(operation string, errorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.Errors[fmt.Sprintf("%s:%s", operation, errorType)]++
}

// GetMetrics returns a copy of the current metrics
func (c *DefaultMetricsCollector) GetMetrics() *Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.metrics
	out.Operations = make(map[string]MetricCounter, len(c.metrics.Operations))
	for k, v := range c.metrics.Operations {
		out.Operations[k] = v
	}
	out.Errors = make(map[string]int64, len(c.metrics.Errors))
	for k, v := range c.metrics.Errors {
		out.Errors[k] = v
	}
	out.ResponseTimes = make(map[string]ResponseTime, len(c.durations))
	for k, d := range c.durations {
		out.ResponseTimes[k] = calculateResponseTimeStats(d)
	}
	return &out
}

// Reset resets all metrics
func (c *DefaultMetricsCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.metrics = Metrics{
		Operations:    make(map[string]MetricCounter),
		Errors:        make(map[string]int64),
		ResponseTimes: make(map[string]ResponseTime),
		StartTime:     now,
		LastResetTime: now,
	}
	c.durations = make(map[string][]time.Duration)
}

func (c *DefaultMetricsCollector) recordDuration(key string, d time.Duration) {
	samples := append(c.durations[key], d)
	if len(samples) > maxDurationSamples {
		samples = samples[len(samples)-maxDurationSamples:]
	}
	c.durations[key] = samples
}

func calculateResponseTimeStats(durations []time.Duration) ResponseTime {
	if len(durations) == 0 {
		return ResponseTime{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	return ResponseTime{
		Count:   int64(len(sorted)),
		Total:   total,
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Average: total / time.Duration(len(sorted)),
		P50:     sorted[len(sorted)*50/100],
		P95:     sorted[len(sorted)*95/100],
		P99:     sorted[len(sorted)*99/100],
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordTokenExchange(bool, time.Duration) {}
func (nopMetrics) RecordTokenRefresh(bool, time.Duration) {}
func (nopMetrics) RecordAPIRequest(string, bool, time.Duration) {}
func (nopMetrics) RecordError(string, string) {}
func (nopMetrics) GetMetrics() *Metrics { return &Metrics{} }
func (nopMetrics) Reset() {}
