// Package health reports database connectivity and synchronizer progress.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/narvanalabs/lnsync/internal/synchronizer"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates the component is operational but with issues.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates the component is not operational.
	StatusUnhealthy Status = "unhealthy"
)

// ComponentStatus represents the health status of a single component.
type ComponentStatus struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Response represents the health check response.
type Response struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
}

// Pinger is an interface for components that can be pinged.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SyncReporter exposes the synchronizer's progress.
type SyncReporter interface {
	State() synchronizer.State
	LastResult() (synchronizer.Result, bool)
}

// Checker performs health checks for the service.
type Checker struct {
	pinger    Pinger
	sync      SyncReporter
	startTime time.Time
	version   string
	timeout   time.Duration
	mu        sync.RWMutex
}

// NewChecker creates a new health checker. sync may be nil when no
// synchronizer runs in this process.
func NewChecker(pinger Pinger, sync SyncReporter, version string) *Checker {
	return &Checker{
		pinger:    pinger,
		sync:      sync,
		startTime: time.Now(),
		version:   version,
		timeout:   5 * time.Second,
	}
}

// SetTimeout sets the timeout for health checks.
func (c *Checker) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// Check performs all health checks and returns the aggregated response.
func (c *Checker) Check(ctx context.Context) *Response {
	c.mu.RLock()
	timeout := c.timeout
	c.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	components := map[string]ComponentStatus{
		"database": c.checkDatabase(checkCtx),
	}
	if c.sync != nil {
		components["sync"] = c.checkSync()
	}

	overallStatus := StatusHealthy
	for _, comp := range components {
		if comp.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			break
		}
		if comp.Status == StatusDegraded {
			overallStatus = StatusDegraded
		}
	}

	return &Response{
		Status:     overallStatus,
		Components: components,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
	}
}

// checkDatabase verifies database connectivity.
func (c *Checker) checkDatabase(ctx context.Context) ComponentStatus {
	if c.pinger == nil {
		return ComponentStatus{
			Status:  StatusUnhealthy,
			Message: "database connection not configured",
		}
	}

	if err := c.pinger.Ping(ctx); err != nil {
		return ComponentStatus{
			Status:  StatusUnhealthy,
			Message: "database ping failed: " + err.Error(),
		}
	}

	return ComponentStatus{
		Status:  StatusHealthy,
		Message: "connected",
	}
}

// checkSync reports the outcome of the latest cycle. A failed cycle only
// degrades the service since stored rows are still served.
func (c *Checker) checkSync() ComponentStatus {
	details := map[string]any{
		"state": string(c.sync.State()),
	}

	result, ok := c.sync.LastResult()
	if !ok {
		return ComponentStatus{
			Status:  StatusDegraded,
			Message: "no sync cycle completed yet",
			Details: details,
		}
	}

	details["cycle_id"] = result.CycleID
	details["started_at"] = result.StartedAt.UTC().Format(time.RFC3339)
	details["duration"] = result.Duration.Round(time.Millisecond).String()

	if !result.Succeeded() {
		details["phase"] = result.Phase
		return ComponentStatus{
			Status:  StatusDegraded,
			Message: "last sync cycle failed: " + result.Err.Error(),
			Details: details,
		}
	}

	details["nodes"] = result.Fetched
	return ComponentStatus{
		Status:  StatusHealthy,
		Message: "last sync cycle succeeded",
		Details: details,
	}
}

// Handler returns an HTTP handler for health checks.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")

		switch response.Status {
		case StatusHealthy, StatusDegraded:
			w.WriteHeader(http.StatusOK)
		case StatusUnhealthy:
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(response)
	}
}
