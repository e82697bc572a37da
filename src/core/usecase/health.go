package usecase

import (
	"context"
	"log/slog"
	"time"

	"postcontest/src/core/ports"
)

// HealthService reports the health of the engine's dependencies.
type HealthService struct {
	log        *slog.Logger
	components map[string]ports.ExternalService
}

// NewHealthService creates a HealthService checking the given components,
// keyed by the name reported in HealthStatus.
func NewHealthService(log *slog.Logger, components map[string]ports.ExternalService) *HealthService {
	return &HealthService{
		log:        log,
		components: components,
	}
}

// HealthStatus represents the health of the application.
type HealthStatus struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Check performs a health check of all application components.
// Any unhealthy component degrades the overall status.
func (s *HealthService) Check(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:     "ok",
		Components: make(map[string]ComponentHealth, len(s.components)),
	}

	for name, c := range s.components {
		start := time.Now()
		err := c.Health(ctx)
		h := ComponentHealth{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
		if err != nil {
			status.Status = "degraded"
			h.Status = "unhealthy"
			h.Message = err.Error()
			s.log.Warn("health check failed", "component", name, "error", err)
		}
		status.Components[name] = h
	}

	return status
}

// Health implements ports.ExternalService so the service can be composed.
func (s *HealthService) Health(ctx context.Context) error {
	if st := s.Check(ctx); st.Status != "ok" {
		return &healthError{status: st.Status}
	}
	return nil
}

var _ ports.ExternalService = (*HealthService)(nil)

type healthError struct {
	status string
}

func (e *healthError) Error() string {
	return "health check failed: " + e.status
}
