// Package health provides liveness and readiness checks for the
// permissions service: /healthz and /ready endpoints for Kubernetes
// and load balancers, plus a full report with per-check latency.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the result of a single health check.
type Check struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Report is the overall health report.
type Report struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// CheckFunc performs one health check.
type CheckFunc func(ctx context.Context) error

// Manager runs registered checks and serves the HTTP endpoints.
type Manager struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	names   []string
	version string
	timeout time.Duration
}

// NewManager creates a health manager.
func NewManager(version string) *Manager {
	return &Manager{
		checks:  make(map[string]CheckFunc),
		version: version,
		timeout: 5 * time.Second,
	}
}

// Register adds a named health check. Registration order is preserved
// in reports.
func (m *Manager) Register(name string, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.checks[name]; !ok {
		m.names = append(m.names, name)
	}
	m.checks[name] = fn
}

// Check runs every registered check and returns the report.
func (m *Manager) Check(ctx context.Context) *Report {
	m.mu.RLock()
	names := make([]string, len(m.names))
	copy(names, m.names)
	checks := make(map[string]CheckFunc, len(m.checks))
	for name, fn := range m.checks {
		checks[name] = fn
	}
	m.mu.RUnlock()

	report := &Report{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
		Checks:    make([]Check, 0, len(names)),
	}

	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		start := time.Now()
		err := checks[name](checkCtx)
		cancel()

		check := Check{
			Name:      name,
			Status:    StatusHealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Timestamp: time.Now(),
		}
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
			report.Status = StatusUnhealthy
		}
		report.Checks = append(report.Checks, check)
	}

	return report
}

// IsReady reports whether the service can accept traffic.
func (m *Manager) IsReady(ctx context.Context) bool {
	return m.Check(ctx).Status != StatusUnhealthy
}

// LiveHandler serves liveness probes. Liveness never consults the
// checks: a wedged dependency must not restart the process.
func (m *Manager) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// ReadyHandler serves readiness probes.
func (m *Manager) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if m.IsReady(r.Context()) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
	}
}

// FullHandler serves the complete health report.
func (m *Manager) FullHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := m.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(report)
	}
}
