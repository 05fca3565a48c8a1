package database

import (
	"context"
	"time"
)

// HealthStatus describes database reachability for the health endpoint.
type HealthStatus struct {
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Health pings the database and reports round-trip latency.
func Health(ctx context.Context, client *Client) HealthStatus {
	start := time.Now()
	if err := client.pool.Ping(ctx); err != nil {
		return HealthStatus{
			Reachable: false,
			LatencyMS: time.Since(start).Milliseconds(),
			Error:     err.Error(),
		}
	}
	return HealthStatus{
		Reachable: true,
		LatencyMS: time.Since(start).Milliseconds(),
	}
}
