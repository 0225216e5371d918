// Package services implements the account linking orchestration engine.
package services

import (
	"context"
	"time"

	"finlink/internal/domain"
)

// ProviderTimeout bounds every call to the external account-data provider.
const ProviderTimeout = 10 * time.Second

// ExchangeResult is what the provider returns when a public token is
// swapped for a durable credential.
type ExchangeResult struct {
	Credential      string
	InstitutionID   string
	InstitutionName string
	Accounts        []domain.ExternalAccountRef

	// MfaRequired and VerificationRequired are the provider's flags for
	// which sub-flows must run before the link is usable.
	MfaRequired          bool
	VerificationRequired bool

	// Mfa describes the challenge when MfaRequired is set.
	MfaType    domain.MfaChallengeType
	MfaPrompts []string

	// VerificationMethod and DepositsMinor describe the ownership check
	// when VerificationRequired is set.
	VerificationMethod domain.VerificationMethod
	DepositsMinor      []int64
	ExpectedCode       string
}

// ProviderAdapter is the engine's view of the external account-data
// provider. Implementations must classify failures: transport-level
// problems surface as retryable EXTERNAL_PROVIDER_UNAVAILABLE errors,
// provider-side rejections as non-retryable EXTERNAL_PROVIDER_REJECTED.
type ProviderAdapter interface {
	// CreateHandshakeToken issues the short-lived token that initializes
	// the client-side linking UI.
	CreateHandshakeToken(ctx context.Context, userID string) (string, error)

	// ExchangePublicToken swaps the public token produced by the linking
	// UI for a durable credential plus account metadata.
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error)

	// FetchAccountBalances refreshes balances for a credential.
	FetchAccountBalances(ctx context.Context, credential string) ([]domain.ExternalAccountRef, error)

	// VerifyMfaAnswers checks MFA answers against provider expectations.
	VerifyMfaAnswers(ctx context.Context, credential string, answers []string) (bool, error)

	// TeardownHandshake releases a provider-side handshake. Adapters
	// without explicit teardown return nil.
	TeardownHandshake(ctx context.Context, handshakeToken string) error
}

// NewProviderUnavailableError builds the retryable provider failure.
func NewProviderUnavailableError(cause error) *domain.Error {
	return domain.NewExternalServiceError(domain.CodeProviderUnavailable,
		"The account data provider is temporarily unavailable", true, cause)
}

// NewProviderRejectedError builds the non-retryable provider failure.
func NewProviderRejectedError(cause error) *domain.Error {
	return domain.NewExternalServiceError(domain.CodeProviderRejected,
		"The account data provider rejected the request", false, cause)
}
