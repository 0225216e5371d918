package repository

import (
	"context"

	"finlink/internal/domain"
)

// ConnectionRepository persists established connections and their
// accounts.
//
// CreateWithAccounts runs as one atomic unit: the precommit callback is
// invoked with the user's usage as observed inside the transaction, and a
// non-nil return aborts the whole write with nothing visible. This is
// how the persistence writer re-runs the admission gate without a race
// window between the usage read and the insert.
type ConnectionRepository interface {
	// CountUsage returns the user's current active connections/accounts.
	CountUsage(ctx context.Context, userID string) (domain.TierUsage, error)

	// CreateWithAccounts atomically writes the connection and all of its
	// accounts. Partial writes are never observable.
	CreateWithAccounts(
		ctx context.Context,
		connection *domain.LinkedConnection,
		accounts []*domain.LinkedAccount,
		precommit func(usage domain.TierUsage) error,
	) error

	// GetConnection returns a persisted connection by id.
	GetConnection(ctx context.Context, id string) (*domain.LinkedConnection, error)

	// ListAccounts returns the accounts under a connection.
	ListAccounts(ctx context.Context, connectionID string) ([]*domain.LinkedAccount, error)
}
