package services

import (
	"context"
	"time"

	"finlink/internal/domain"
	"finlink/internal/repository"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is one component check result.
type HealthCheck struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
}

// HealthResponse is the aggregate health report.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Version   string        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    time.Duration `json:"uptime"`
	Checks    []HealthCheck `json:"checks"`
}

// HealthChecker is a single component health probe.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) HealthCheck
}

// HealthService aggregates component health checks.
type HealthService struct {
	startTime time.Time
	version   string
	checkers  []HealthChecker
}

// NewHealthService creates a health service.
func NewHealthService(version string) *HealthService {
	return &HealthService{
		startTime: time.Now(),
		version:   version,
	}
}

// RegisterChecker adds a component probe.
func (h *HealthService) RegisterChecker(checker HealthChecker) {
	h.checkers = append(h.checkers, checker)
}

// Check runs all probes; any unhealthy component makes the whole report
// unhealthy.
func (h *HealthService) Check(ctx context.Context) HealthResponse {
	checks := make([]HealthCheck, 0, len(h.checkers))
	status := HealthStatusHealthy
	for _, checker := range h.checkers {
		check := checker.Check(ctx)
		if check.Status == HealthStatusUnhealthy {
			status = HealthStatusUnhealthy
		}
		checks = append(checks, check)
	}
	return HealthResponse{
		Status:    status,
		Version:   h.version,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.startTime),
		Checks:    checks,
	}
}

// SessionStoreChecker probes the session repository with a lookup of a
// token that cannot exist; a NOT_FOUND answer proves the store responds.
type SessionStoreChecker struct {
	sessions repository.SessionRepository
}

// NewSessionStoreChecker creates a session store probe.
func NewSessionStoreChecker(sessions repository.SessionRepository) *SessionStoreChecker {
	return &SessionStoreChecker{sessions: sessions}
}

func (c *SessionStoreChecker) Name() string { return "session_store" }

func (c *SessionStoreChecker) Check(ctx context.Context) HealthCheck {
	check := HealthCheck{Name: c.Name(), LastChecked: time.Now()}

	_, err := c.sessions.Get(ctx, "health-probe")
	if err == nil || domain.HasCode(err, domain.CodeSessionNotFound) {
		check.Status = HealthStatusHealthy
		check.Message = "Session store is responding"
		return check
	}
	check.Status = HealthStatusUnhealthy
	check.Error = "Session store is not responding"
	return check
}
