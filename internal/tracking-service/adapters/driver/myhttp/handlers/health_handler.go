package handlers

import (
	"context"
	"net/http"
	"time"

	"bus-tracker/internal/mylogger"
)

// HealthCheck checks one dependency. A nil error means healthy.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	checks []HealthCheck
	log    mylogger.Logger
}

func NewHealthHandler(checks []HealthCheck, log mylogger.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, log: log}
}

func (hh *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	deps := make(map[string]string, len(hh.checks))
	for _, c := range hh.checks {
		if err := c.Check(ctx); err != nil {
			hh.log.Action("health_check_failed").Warn("dependency unhealthy", "dependency", c.Name, "error", err.Error())
			deps[c.Name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[c.Name] = "ok"
	}

	jsonResponse(w, code, map[string]interface{}{
		"status":       status,
		"dependencies": deps,
	})
}
