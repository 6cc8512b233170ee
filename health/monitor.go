package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Check reports the current health of one connection
type Check func(ctx context.Context) Status

// Monitor runs registered checks on demand and aggregates their results
type Monitor struct {
	name    string
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]Check
}

// NewMonitor creates a monitor reporting under the given system name
func NewMonitor(name string) *Monitor {
	return &Monitor{
		name:    name,
		timeout: 2 * time.Second,
		checks:  make(map[string]Check),
	}
}

// Register adds or replaces the check for a named component
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Remove stops checking a component
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checks, name)
}

// Count returns the number of registered checks
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.checks)
}

// Check runs every registered check and aggregates the results
func (m *Monitor) Check(ctx context.Context) Status {
	m.mu.RLock()
	checks := make(map[string]Check, len(m.checks))
	for name, c := range m.checks {
		checks[name] = c
	}
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	subs := make([]Status, 0, len(checks))
	for name, check := range checks {
		s := check(ctx)
		s.Component = name
		subs = append(subs, s)
	}
	return Aggregate(m.name, subs)
}

// Handler serves the aggregate status as JSON. Unhealthy systems answer
// 503 so load balancers and probes can act on the code alone.
func (m *Monitor) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := m.Check(r.Context())

		code := http.StatusOK
		if status.IsUnhealthy() {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
}
