package ciam

import (
	"context"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a health check result
type HealthCheck struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status      HealthStatus  `json:"status"`
	Message     string        `json:"message,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	LastChecked time.Time     `json:"last_checked"`
}

// HealthCheck fetches provider metadata and pings the cache. A failing
// provider is unhealthy, a failing cache is degraded.
func (c *Client) HealthCheck(ctx context.Context) *HealthCheck {
	health := &HealthCheck{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, 2),
	}

	provider := runCheck(ctx, func(ctx context.Context) error {
		// bypass the discovery cache so the provider is actually contacted
		_, err := Send[ProviderMetadata](ctx, c, Request{Method: "GET", Path: pathDiscovery, Anonymous: true})
		return err
	})
	if provider.Status == HealthStatusHealthy {
		provider.Message = "provider metadata reachable"
	}
	health.Checks["provider"] = provider

	store := runCheck(ctx, c.ping)
	health.Checks["cache"] = store

	switch {
	case provider.Status != HealthStatusHealthy:
		health.Status = HealthStatusUnhealthy
	case store.Status != HealthStatusHealthy:
		health.Status = HealthStatusDegraded
	}
	return health
}

func runCheck(ctx context.Context, check func(context.Context) error) CheckResult {
	start := time.Now()
	err := check(ctx)
	result := CheckResult{
		Status:      HealthStatusHealthy,
		Duration:    time.Since(start),
		LastChecked: time.Now(),
	}
	if err != nil {
		result.Status = HealthStatusUnhealthy
		result.Error = err.Error()
	}
	return result
}
