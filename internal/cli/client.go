package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// APIClient talks to the account linking API.
type APIClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewAPIClient creates an API client.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewAPIClientFromProfile creates an API client from a profile.
func NewAPIClientFromProfile(profile *Profile) *APIClient {
	if profile == nil {
		return nil
	}
	return NewAPIClient(profile.ServerURL, profile.Token)
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (%d) %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// StartSessionOutput mirrors the start-session response payload.
type StartSessionOutput struct {
	SessionToken   string          `json:"session_token"`
	HandshakeToken string          `json:"handshake_token"`
	ExpiresAt      time.Time       `json:"expires_at"`
	UpgradeOffer   json.RawMessage `json:"upgrade_offer,omitempty"`
}

// ChallengeOutput mirrors an MFA or verification challenge payload.
type ChallengeOutput struct {
	Type              string    `json:"type,omitempty"`
	Method            string    `json:"method,omitempty"`
	Prompts           []string  `json:"prompts,omitempty"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// NextStepOutput mirrors the next-step response payload.
type NextStepOutput struct {
	State           string           `json:"state"`
	Mfa             *ChallengeOutput `json:"mfa,omitempty"`
	Verification    *ChallengeOutput `json:"verification,omitempty"`
	ReadyToFinalize bool             `json:"ready_to_finalize"`
}

// ConnectionOutput mirrors the finalize response payload.
type ConnectionOutput struct {
	ConnectionID string   `json:"connection_id"`
	AccountIDs   []string `json:"account_ids"`
}

// StatusOutput mirrors the session status payload.
type StatusOutput struct {
	Token           string    `json:"token"`
	State           string    `json:"state"`
	ProgressPercent int       `json:"progress_percent"`
	InstitutionName string    `json:"institution_name,omitempty"`
	AccountCount    int       `json:"account_count"`
	FailureCode     string    `json:"failure_code,omitempty"`
	Expired         bool      `json:"expired"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// StartSession begins a linking session.
func (c *APIClient) StartSession(ctx context.Context, institutionHint string) (*StartSessionOutput, error) {
	body := map[string]string{"institution_hint": institutionHint}
	var out StartSessionOutput
	if err := c.call(ctx, http.MethodPost, "/api/link/sessions", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SelectAccounts submits the provider public token and chosen accounts.
func (c *APIClient) SelectAccounts(ctx context.Context, sessionToken, publicToken string, accountIDs []string) (*NextStepOutput, error) {
	body := map[string]interface{}{
		"public_token": publicToken,
		"account_ids":  accountIDs,
	}
	var out NextStepOutput
	if err := c.call(ctx, http.MethodPost, "/api/link/sessions/"+sessionToken+"/accounts", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMfaChallenge fetches the pending MFA challenge.
func (c *APIClient) GetMfaChallenge(ctx context.Context, sessionToken string) (*ChallengeOutput, error) {
	var out ChallengeOutput
	if err := c.call(ctx, http.MethodGet, "/api/link/sessions/"+sessionToken+"/mfa", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteMfa submits MFA answers.
func (c *APIClient) CompleteMfa(ctx context.Context, sessionToken string, answers []string) (*NextStepOutput, error) {
	body := map[string]interface{}{"answers": answers}
	var out NextStepOutput
	if err := c.call(ctx, http.MethodPost, "/api/link/sessions/"+sessionToken+"/mfa", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteVerification submits micro-deposit amounts or a verification code.
func (c *APIClient) CompleteVerification(ctx context.Context, sessionToken string, amountsMinor []int64, code string) (*NextStepOutput, error) {
	body := map[string]interface{}{}
	if len(amountsMinor) > 0 {
		body["amounts_minor"] = amountsMinor
	}
	if code != "" {
		body["code"] = code
	}
	var out NextStepOutput
	if err := c.call(ctx, http.MethodPost, "/api/link/sessions/"+sessionToken+"/verification", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Finalize persists the connection.
func (c *APIClient) Finalize(ctx context.Context, sessionToken string) (*ConnectionOutput, error) {
	var out ConnectionOutput
	if err := c.call(ctx, http.MethodPost, "/api/link/sessions/"+sessionToken+"/finalize", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel abandons a session.
func (c *APIClient) Cancel(ctx context.Context, sessionToken string) error {
	return c.call(ctx, http.MethodDelete, "/api/link/sessions/"+sessionToken, nil, nil)
}

// GetStatus fetches the session status.
func (c *APIClient) GetStatus(ctx context.Context, sessionToken string) (*StatusOutput, error) {
	var out StatusOutput
	if err := c.call(ctx, http.MethodGet, "/api/link/sessions/"+sessionToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call performs a request and decodes the data envelope into result.
func (c *APIClient) call(ctx context.Context, method, endpoint string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	fullURL, err := url.JoinPath(c.BaseURL, endpoint)
	if err != nil {
		return fmt.Errorf("failed to join URL path: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if result == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, result); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}
