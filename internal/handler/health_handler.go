package handler

import (
	"context"
	"net/http"
	"sort"
	"time"
)

type HealthCheck func(ctx context.Context) error

// HealthHandler reports liveness of the backing stores.
type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	overall := "ok"
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			components[name] = "down"
			status = http.StatusServiceUnavailable
			overall = "degraded"
			continue
		}
		components[name] = "up"
	}

	writeSuccess(w, status, "", map[string]any{
		"status":     overall,
		"components": components,
	})
}
