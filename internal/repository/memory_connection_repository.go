package repository

import (
	"context"
	"sync"

	"finlink/internal/domain"
)

// memoryConnectionRepository is an in-memory ConnectionRepository. One
// mutex covers all writes, which is exactly what gives CreateWithAccounts
// its all-or-nothing and admission-recheck guarantees in process.
type memoryConnectionRepository struct {
	mu          sync.RWMutex
	connections map[string]*domain.LinkedConnection
	accounts    map[string][]*domain.LinkedAccount
}

// NewMemoryConnectionRepository creates an in-memory connection repository.
func NewMemoryConnectionRepository() ConnectionRepository {
	return &memoryConnectionRepository{
		connections: make(map[string]*domain.LinkedConnection),
		accounts:    make(map[string][]*domain.LinkedAccount),
	}
}

func (r *memoryConnectionRepository) CountUsage(_ context.Context, userID string) (domain.TierUsage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countUsageLocked(userID), nil
}

func (r *memoryConnectionRepository) countUsageLocked(userID string) domain.TierUsage {
	usage := domain.TierUsage{}
	for _, connection := range r.connections {
		if connection.UserID != userID || connection.Status != domain.ConnectionActive {
			continue
		}
		usage.Connections++
		usage.Accounts += len(r.accounts[connection.ID])
	}
	return usage
}

func (r *memoryConnectionRepository) CreateWithAccounts(
	_ context.Context,
	connection *domain.LinkedConnection,
	accounts []*domain.LinkedAccount,
	precommit func(usage domain.TierUsage) error,
) error {
	if err := connection.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if precommit != nil {
		if err := precommit(r.countUsageLocked(connection.UserID)); err != nil {
			return err
		}
	}

	if _, exists := r.connections[connection.ID]; exists {
		return domain.NewConflictError("CONNECTION_EXISTS", "A connection with this ID already exists")
	}

	stored := *connection
	r.connections[connection.ID] = &stored
	rows := make([]*domain.LinkedAccount, len(accounts))
	for i, account := range accounts {
		row := *account
		rows[i] = &row
	}
	r.accounts[connection.ID] = rows
	return nil
}

func (r *memoryConnectionRepository) GetConnection(_ context.Context, id string) (*domain.LinkedConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connection, exists := r.connections[id]
	if !exists {
		return nil, domain.NewNotFoundError("CONNECTION_NOT_FOUND", "Connection not found")
	}
	copied := *connection
	return &copied, nil
}

func (r *memoryConnectionRepository) ListAccounts(_ context.Context, connectionID string) ([]*domain.LinkedAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.accounts[connectionID]
	result := make([]*domain.LinkedAccount, len(rows))
	for i, row := range rows {
		copied := *row
		result[i] = &copied
	}
	return result, nil
}
