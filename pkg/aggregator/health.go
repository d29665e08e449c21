package aggregator

import (
	"context"
	"time"
)

// Health reports the reachability of each data source.
type Health struct {
	Status    string          `json:"status"` // healthy or degraded
	Checks    map[string]bool `json:"checks"`
	Timestamp time.Time       `json:"timestamp"`
}

// HealthCheck probes every configured source with a minimal query. A nil or
// failing source is reported unhealthy; the aggregator itself stays up.
func (a *Aggregator) HealthCheck(ctx context.Context) Health {
	now := a.now().UTC()
	checks := map[string]bool{
		"sales":     false,
		"inventory": false,
		"alerts":    false,
	}

	if a.sales != nil {
		_, err := a.sales.PeriodSummary(ctx, now.Add(-time.Hour), now)
		checks["sales"] = err == nil
	}
	if a.inventory != nil {
		_, err := a.inventory.Summary(ctx)
		checks["inventory"] = err == nil
	}
	if a.alerts != nil {
		_, err := a.alerts.OpenAlerts(ctx, 1)
		checks["alerts"] = err == nil
	}

	status := "healthy"
	for _, ok := range checks {
		if !ok {
			status = "degraded"
			break
		}
	}

	return Health{Status: status, Checks: checks, Timestamp: now}
}
