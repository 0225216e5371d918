// Package testutil provides testing utilities and mock implementations.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"finlink/internal/domain"
	"finlink/internal/services"
)

// MockProvider implements services.ProviderAdapter with overridable hooks
// and call counting. Defaults behave like a cooperative provider that
// requires no sub-flows.
type MockProvider struct {
	mu sync.Mutex

	CreateHandshakeFunc func(ctx context.Context, userID string) (string, error)
	ExchangeFunc        func(ctx context.Context, publicToken string) (*services.ExchangeResult, error)
	BalancesFunc        func(ctx context.Context, credential string) ([]domain.ExternalAccountRef, error)
	VerifyMfaFunc       func(ctx context.Context, credential string, answers []string) (bool, error)
	TeardownFunc        func(ctx context.Context, handshakeToken string) error

	HandshakeCalls int
	ExchangeCalls  int
	VerifyCalls    int
	TeardownCalls  int
	TornDown       []string
}

// NewMockProvider creates a mock provider with default behavior.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// DefaultAccounts is the account set the mock returns unless overridden.
func DefaultAccounts() []domain.ExternalAccountRef {
	return []domain.ExternalAccountRef{
		{
			ExternalID:   "ext-checking",
			Name:         "Everyday Checking",
			Mask:         "4321",
			Type:         "depository",
			Subtype:      "checking",
			BalanceMinor: 125000,
			Currency:     "USD",
		},
		{
			ExternalID:   "ext-savings",
			Name:         "Rainy Day Savings",
			Mask:         "8765",
			Type:         "depository",
			Subtype:      "savings",
			BalanceMinor: 560000,
			Currency:     "USD",
		},
	}
}

// CreateHandshakeToken implements services.ProviderAdapter.
func (m *MockProvider) CreateHandshakeToken(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	m.HandshakeCalls++
	calls := m.HandshakeCalls
	fn := m.CreateHandshakeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, userID)
	}
	return fmt.Sprintf("handshake-%s-%d", userID, calls), nil
}

// ExchangePublicToken implements services.ProviderAdapter.
func (m *MockProvider) ExchangePublicToken(ctx context.Context, publicToken string) (*services.ExchangeResult, error) {
	m.mu.Lock()
	m.ExchangeCalls++
	fn := m.ExchangeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, publicToken)
	}
	return &services.ExchangeResult{
		Credential:      "credential-" + publicToken,
		InstitutionID:   "ins_mock",
		InstitutionName: "Mock Bank",
		Accounts:        DefaultAccounts(),
	}, nil
}

// FetchAccountBalances implements services.ProviderAdapter.
func (m *MockProvider) FetchAccountBalances(ctx context.Context, credential string) ([]domain.ExternalAccountRef, error) {
	m.mu.Lock()
	fn := m.BalancesFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, credential)
	}
	return DefaultAccounts(), nil
}

// VerifyMfaAnswers implements services.ProviderAdapter.
func (m *MockProvider) VerifyMfaAnswers(ctx context.Context, credential string, answers []string) (bool, error) {
	m.mu.Lock()
	m.VerifyCalls++
	fn := m.VerifyMfaFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, credential, answers)
	}
	return true, nil
}

// TeardownHandshake implements services.ProviderAdapter.
func (m *MockProvider) TeardownHandshake(ctx context.Context, handshakeToken string) error {
	m.mu.Lock()
	m.TeardownCalls++
	m.TornDown = append(m.TornDown, handshakeToken)
	fn := m.TeardownFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, handshakeToken)
	}
	return nil
}
