package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"finlink/internal/domain"
)

// SandboxProvider is a deterministic in-process ProviderAdapter for
// development and tests. Public tokens encode the scenario they trigger:
// a "public-mfa-..." token produces an MFA requirement, "public-verify-..."
// an ownership verification requirement, "public-both-..." both in
// sequence, and anything else links immediately.
type SandboxProvider struct {
	mu         sync.Mutex
	handshakes map[string]string

	// MfaAnswer is the answer VerifyMfaAnswers accepts.
	MfaAnswer string
	// DepositsMinor are the micro-deposit amounts issued with
	// verification requirements.
	DepositsMinor []int64
}

// NewSandboxProvider creates a sandbox provider with fixed expectations:
// MFA answer "7392" and micro-deposits of 32 and 45 minor units.
func NewSandboxProvider() *SandboxProvider {
	return &SandboxProvider{
		handshakes:    make(map[string]string),
		MfaAnswer:     "7392",
		DepositsMinor: []int64{32, 45},
	}
}

func (p *SandboxProvider) CreateHandshakeToken(_ context.Context, userID string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", NewProviderUnavailableError(err)
	}
	token := "hs_" + base64.RawURLEncoding.EncodeToString(buf)

	p.mu.Lock()
	p.handshakes[token] = userID
	p.mu.Unlock()
	return token, nil
}

func (p *SandboxProvider) ExchangePublicToken(_ context.Context, publicToken string) (*ExchangeResult, error) {
	if !strings.HasPrefix(publicToken, "public-") {
		return nil, NewProviderRejectedError(fmt.Errorf("unknown public token format"))
	}

	result := &ExchangeResult{
		Credential:      "cred_" + strings.TrimPrefix(publicToken, "public-"),
		InstitutionID:   "ins_sandbox",
		InstitutionName: "Sandbox Bank",
		Accounts: []domain.ExternalAccountRef{
			{
				ExternalID:   "acct_checking",
				Name:         "Everyday Checking",
				Mask:         "0001",
				Type:         "depository",
				Subtype:      "checking",
				BalanceMinor: 125_000,
				Currency:     "USD",
			},
			{
				ExternalID:   "acct_savings",
				Name:         "Rainy Day Savings",
				Mask:         "0002",
				Type:         "depository",
				Subtype:      "savings",
				BalanceMinor: 640_000,
				Currency:     "USD",
			},
		},
	}

	switch {
	case strings.HasPrefix(publicToken, "public-mfa-"):
		result.MfaRequired = true
		result.MfaType = domain.MfaTypeOneTimeCode
		result.MfaPrompts = []string{"Enter the code sent to your phone"}
	case strings.HasPrefix(publicToken, "public-verify-"):
		result.VerificationRequired = true
		result.VerificationMethod = domain.VerificationMicroDeposit
		result.DepositsMinor = append([]int64(nil), p.DepositsMinor...)
	case strings.HasPrefix(publicToken, "public-both-"):
		result.MfaRequired = true
		result.MfaType = domain.MfaTypeOneTimeCode
		result.MfaPrompts = []string{"Enter the code sent to your phone"}
		result.VerificationRequired = true
		result.VerificationMethod = domain.VerificationMicroDeposit
		result.DepositsMinor = append([]int64(nil), p.DepositsMinor...)
	}
	return result, nil
}

func (p *SandboxProvider) FetchAccountBalances(_ context.Context, credential string) ([]domain.ExternalAccountRef, error) {
	if !strings.HasPrefix(credential, "cred_") {
		return nil, NewProviderRejectedError(fmt.Errorf("invalid credential"))
	}
	return []domain.ExternalAccountRef{
		{ExternalID: "acct_checking", Name: "Everyday Checking", Mask: "0001", Type: "depository", Subtype: "checking", BalanceMinor: 125_000, Currency: "USD"},
		{ExternalID: "acct_savings", Name: "Rainy Day Savings", Mask: "0002", Type: "depository", Subtype: "savings", BalanceMinor: 640_000, Currency: "USD"},
	}, nil
}

func (p *SandboxProvider) VerifyMfaAnswers(_ context.Context, credential string, answers []string) (bool, error) {
	if !strings.HasPrefix(credential, "cred_") {
		return false, NewProviderRejectedError(fmt.Errorf("invalid credential"))
	}
	return len(answers) == 1 && answers[0] == p.MfaAnswer, nil
}

func (p *SandboxProvider) TeardownHandshake(_ context.Context, handshakeToken string) error {
	p.mu.Lock()
	delete(p.handshakes, handshakeToken)
	p.mu.Unlock()
	return nil
}
