package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"

	"finlink/internal/domain"
)

// HTTPProvider is a ProviderAdapter over the provider's REST API,
// authenticating with OAuth2 client credentials. Calls are bounded by
// ProviderTimeout through the request context.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// HTTPProviderConfig configures the REST adapter.
type HTTPProviderConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// NewHTTPProvider creates a REST provider adapter.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	oauth := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	client := oauth.Client(context.Background())
	client.Timeout = ProviderTimeout

	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		client:  client,
	}
}

func (p *HTTPProvider) CreateHandshakeToken(ctx context.Context, userID string) (string, error) {
	var out struct {
		HandshakeToken string `json:"handshake_token"`
	}
	err := p.post(ctx, "/link/handshake", map[string]string{"user_id": userID}, &out)
	if err != nil {
		return "", err
	}
	return out.HandshakeToken, nil
}

func (p *HTTPProvider) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error) {
	var out struct {
		Credential      string                      `json:"credential"`
		InstitutionID   string                      `json:"institution_id"`
		InstitutionName string                      `json:"institution_name"`
		Accounts        []domain.ExternalAccountRef `json:"accounts"`
		MfaRequired     bool                        `json:"mfa_required"`
		MfaType         string                      `json:"mfa_type"`
		MfaPrompts      []string                    `json:"mfa_prompts"`
		Verification    string                      `json:"verification_method"`
		DepositsMinor   []int64                     `json:"deposits_minor"`
	}
	if err := p.post(ctx, "/link/exchange", map[string]string{"public_token": publicToken}, &out); err != nil {
		return nil, err
	}

	result := &ExchangeResult{
		Credential:      out.Credential,
		InstitutionID:   out.InstitutionID,
		InstitutionName: out.InstitutionName,
		Accounts:        out.Accounts,
		MfaRequired:     out.MfaRequired,
		MfaType:         domain.MfaChallengeType(out.MfaType),
		MfaPrompts:      out.MfaPrompts,
	}
	if out.Verification != "" {
		result.VerificationRequired = true
		result.VerificationMethod = domain.VerificationMethod(out.Verification)
		result.DepositsMinor = out.DepositsMinor
	}
	return result, nil
}

func (p *HTTPProvider) FetchAccountBalances(ctx context.Context, credential string) ([]domain.ExternalAccountRef, error) {
	var out struct {
		Accounts []domain.ExternalAccountRef `json:"accounts"`
	}
	if err := p.post(ctx, "/accounts/balances", map[string]string{"credential": credential}, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

func (p *HTTPProvider) VerifyMfaAnswers(ctx context.Context, credential string, answers []string) (bool, error) {
	var out struct {
		Correct bool `json:"correct"`
	}
	payload := map[string]interface{}{"credential": credential, "answers": answers}
	if err := p.post(ctx, "/link/mfa/verify", payload, &out); err != nil {
		return false, err
	}
	return out.Correct, nil
}

func (p *HTTPProvider) TeardownHandshake(ctx context.Context, handshakeToken string) error {
	return p.post(ctx, "/link/handshake/teardown", map[string]string{"handshake_token": handshakeToken}, nil)
}

// post sends a JSON request and decodes the response. 5xx and transport
// failures are retryable; 4xx means the provider rejected the request.
func (p *HTTPProvider) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.NewInternalError("PROVIDER_ENCODE_FAILED", "Failed to encode provider request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ProviderTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.NewInternalError("PROVIDER_REQUEST_FAILED", "Failed to build provider request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return NewProviderUnavailableError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		return NewProviderUnavailableError(fmt.Errorf("provider returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return NewProviderRejectedError(fmt.Errorf("provider returned %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewProviderUnavailableError(err)
	}
	return nil
}
