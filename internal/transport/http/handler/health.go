package handler

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler reports liveness plus the state of each registered check.
type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
}

func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	env := HealthEnvelope{Status: "ok"}
	status := http.StatusOK
	if len(h.checks) > 0 {
		env.Checks = make(map[string]string, len(h.checks))
	}
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			env.Checks[c.Name] = err.Error()
			env.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		env.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, env)
}
