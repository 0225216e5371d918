package testutil

import (
	"context"
	"sync"

	"finlink/internal/domain"
	"finlink/internal/repository"
)

// FailingConnectionRepository wraps a ConnectionRepository and fails the
// next N CreateWithAccounts calls, for exercising persistence rollback
// paths.
type FailingConnectionRepository struct {
	mu       sync.Mutex
	inner    repository.ConnectionRepository
	failures int
	err      error
}

// NewFailingConnectionRepository wraps inner so the next `failures`
// writes return err.
func NewFailingConnectionRepository(inner repository.ConnectionRepository, failures int, err error) *FailingConnectionRepository {
	return &FailingConnectionRepository{inner: inner, failures: failures, err: err}
}

// CountUsage delegates to the wrapped repository.
func (r *FailingConnectionRepository) CountUsage(ctx context.Context, userID string) (domain.TierUsage, error) {
	return r.inner.CountUsage(ctx, userID)
}

// CreateWithAccounts fails while failures remain, then delegates.
func (r *FailingConnectionRepository) CreateWithAccounts(
	ctx context.Context,
	connection *domain.LinkedConnection,
	accounts []*domain.LinkedAccount,
	precommit func(usage domain.TierUsage) error,
) error {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		err := r.err
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()
	return r.inner.CreateWithAccounts(ctx, connection, accounts, precommit)
}

// GetConnection delegates to the wrapped repository.
func (r *FailingConnectionRepository) GetConnection(ctx context.Context, id string) (*domain.LinkedConnection, error) {
	return r.inner.GetConnection(ctx, id)
}

// ListAccounts delegates to the wrapped repository.
func (r *FailingConnectionRepository) ListAccounts(ctx context.Context, connectionID string) ([]*domain.LinkedAccount, error) {
	return r.inner.ListAccounts(ctx, connectionID)
}
