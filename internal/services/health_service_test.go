package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"finlink/internal/domain"
	"finlink/internal/repository"
)

type staticChecker struct {
	name   string
	status HealthStatus
}

func (c staticChecker) Name() string { return c.name }

func (c staticChecker) Check(context.Context) HealthCheck {
	return HealthCheck{Name: c.name, Status: c.status}
}

func TestHealthService_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("no checkers is healthy", func(t *testing.T) {
		service := NewHealthService("test")
		response := service.Check(ctx)
		assert.Equal(t, HealthStatusHealthy, response.Status)
		assert.Equal(t, "test", response.Version)
		assert.Empty(t, response.Checks)
	})

	t.Run("one unhealthy component degrades the report", func(t *testing.T) {
		service := NewHealthService("test")
		service.RegisterChecker(staticChecker{name: "a", status: HealthStatusHealthy})
		service.RegisterChecker(staticChecker{name: "b", status: HealthStatusUnhealthy})

		response := service.Check(ctx)
		assert.Equal(t, HealthStatusUnhealthy, response.Status)
		assert.Len(t, response.Checks, 2)
	})
}

func TestSessionStoreChecker(t *testing.T) {
	ctx := context.Background()

	t.Run("responding store is healthy", func(t *testing.T) {
		checker := NewSessionStoreChecker(repository.NewMemorySessionRepository())
		check := checker.Check(ctx)
		assert.Equal(t, HealthStatusHealthy, check.Status)
		assert.Equal(t, "session_store", check.Name)
	})

	t.Run("failing store is unhealthy", func(t *testing.T) {
		checker := NewSessionStoreChecker(failingSessionStore{})
		check := checker.Check(ctx)
		assert.Equal(t, HealthStatusUnhealthy, check.Status)
	})
}

// failingSessionStore errors on every call.
type failingSessionStore struct{}

var errStoreDown = errors.New("store down")

func (failingSessionStore) Create(context.Context, *domain.LinkingSession) error { return errStoreDown }

func (failingSessionStore) Get(context.Context, string) (*domain.LinkingSession, error) {
	return nil, errStoreDown
}

func (failingSessionStore) Update(context.Context, string, func(*domain.LinkingSession) error) error {
	return errStoreDown
}

func (failingSessionStore) Delete(context.Context, string) error { return errStoreDown }

func (failingSessionStore) DeleteExpired(context.Context) (int, error) { return 0, errStoreDown }
