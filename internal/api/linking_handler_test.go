package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finlink/internal/api/middleware"
	"finlink/internal/domain"
	"finlink/internal/repository"
	"finlink/internal/services"
)

const testJWTSecret = "handler-test-secret"

type handlerFixture struct {
	router   *gin.Engine
	sessions repository.SessionRepository
	catalog  interface {
		AssignTier(userID string, tier domain.Tier)
	}
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog := repository.NewStaticTierCatalog()
	sessions := repository.NewMemorySessionRepository()
	connections := repository.NewMemoryConnectionRepository()
	gate := services.NewAdmissionGate(catalog, connections)
	provider := services.NewSandboxProvider()

	cipher, err := services.NewCredentialCipher(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	linking := services.NewLinkingService(
		sessions, connections, gate, provider, cipher, services.NewLogNotifier(nil), 0, nil)

	router := gin.New()
	router.Use(middleware.CorrelationMiddleware())
	auth := middleware.NewAuthMiddleware(testJWTSecret)
	group := router.Group("/api/link")
	group.Use(auth.RequireAuth())
	NewLinkingHandler(linking, nil).RegisterRoutes(group)

	return &handlerFixture{router: router, sessions: sessions, catalog: catalog}
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

func (f *handlerFixture) do(t *testing.T, method, path, userID string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, userID))
	}

	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)

	var parsed envelope
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &parsed))
	}
	return recorder, parsed
}

// startSession creates a plus-tier session and returns its token.
func (f *handlerFixture) startSession(t *testing.T, userID string) string {
	t.Helper()
	f.catalog.AssignTier(userID, domain.TierPlus)

	recorder, body := f.do(t, http.MethodPost, "/api/link/sessions", userID, nil)
	require.Equal(t, http.StatusCreated, recorder.Code)

	var result services.StartResult
	require.NoError(t, json.Unmarshal(body.Data, &result))
	require.NotEmpty(t, result.SessionToken)
	return result.SessionToken
}

func TestLinkingHandler_Authentication(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("missing token", func(t *testing.T) {
		recorder, _ := f.do(t, http.MethodPost, "/api/link/sessions", "", nil)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/link/sessions", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		recorder := httptest.NewRecorder()
		f.router.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("some-other-secret"))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/link/sessions", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		recorder := httptest.NewRecorder()
		f.router.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestLinkingHandler_StartSession(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.catalog.AssignTier("user-1", domain.TierPlus)

		recorder, body := f.do(t, http.MethodPost, "/api/link/sessions", "user-1",
			map[string]string{"institution_hint": "Sandbox Bank"})
		assert.Equal(t, http.StatusCreated, recorder.Code)
		assert.True(t, body.Success)
		assert.NotEmpty(t, body.CorrelationID)

		var result services.StartResult
		require.NoError(t, json.Unmarshal(body.Data, &result))
		assert.NotEmpty(t, result.HandshakeToken)
	})

	t.Run("free tier forbidden", func(t *testing.T) {
		f := newHandlerFixture(t)

		recorder, body := f.do(t, http.MethodPost, "/api/link/sessions", "free-user", nil)
		assert.Equal(t, http.StatusForbidden, recorder.Code)
		assert.False(t, body.Success)
		assert.Equal(t, domain.CodeAdmissionDenied, body.Error.Code)
		assert.Equal(t, string(domain.DenyNoAccessForTier), body.Error.Details["reason"])
	})
}

func TestLinkingHandler_SelectAccounts(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newHandlerFixture(t)
		token := f.startSession(t, "user-1")

		recorder, body := f.do(t, http.MethodPost, "/api/link/sessions/"+token+"/accounts", "user-1",
			map[string]interface{}{
				"public_token": "public-e2e",
				"account_ids":  []string{"acct_checking", "acct_savings"},
			})
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.NotEmpty(t, body.CorrelationID)

		var next services.NextStep
		require.NoError(t, json.Unmarshal(body.Data, &next))
		assert.Equal(t, domain.StateAccountsSelected, next.State)
		assert.True(t, next.ReadyToFinalize)
	})

	t.Run("missing body", func(t *testing.T) {
		f := newHandlerFixture(t)
		token := f.startSession(t, "user-1")

		recorder, _ := f.do(t, http.MethodPost, "/api/link/sessions/"+token+"/accounts", "user-1", nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.catalog.AssignTier("user-1", domain.TierPlus)

		recorder, body := f.do(t, http.MethodPost, "/api/link/sessions/lnk_missing/accounts", "user-1",
			map[string]interface{}{
				"public_token": "public-e2e",
				"account_ids":  []string{"acct_checking"},
			})
		assert.Equal(t, http.StatusNotFound, recorder.Code)
		assert.Equal(t, domain.CodeSessionNotFound, body.Error.Code)
	})
}

func TestLinkingHandler_MfaFlow(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.startSession(t, "user-1")

	recorder, body := f.do(t, http.MethodPost, "/api/link/sessions/"+token+"/accounts", "user-1",
		map[string]interface{}{
			"public_token": "public-mfa-e2e",
			"account_ids":  []string{"acct_checking"},
		})
	require.Equal(t, http.StatusOK, recorder.Code)

	var next services.NextStep
	require.NoError(t, json.Unmarshal(body.Data, &next))
	require.Equal(t, domain.StateMfaRequired, next.State)

	// The challenge is readable before answering.
	recorder, body = f.do(t, http.MethodGet, "/api/link/sessions/"+token+"/mfa", "user-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var challenge services.MfaChallengeInfo
	require.NoError(t, json.Unmarshal(body.Data, &challenge))
	assert.Equal(t, domain.MfaMaxAttempts, challenge.AttemptsRemaining)
	assert.NotEmpty(t, challenge.Prompts)

	// A wrong answer is a 422 carrying the remaining attempts.
	recorder, body = f.do(t, http.MethodPost, "/api/link/sessions/"+token+"/mfa", "user-1",
		map[string]interface{}{"answers": []string{"0000"}})
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Equal(t, domain.CodeMfaIncorrect, body.Error.Code)
	assert.Equal(t, float64(domain.MfaMaxAttempts-1), body.Error.Details["attempts_remaining"])

	// The correct answer completes the sub-flow.
	recorder, body = f.do(t, http.MethodPost, "/api/link/sessions/"+token+"/mfa", "user-1",
		map[string]interface{}{"answers": []string{"7392"}})
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(body.Data, &next))
	assert.Equal(t, domain.StateMfaCompleted, next.State)
	assert.True(t, next.ReadyToFinalize)
}

func TestLinkingHandler_VerificationFlow(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.startSession(t, "user-1")

	recorder, body := f.do(t, http.MethodPost, "/api/link/sessions/"+token+"/accounts", "user-1",
		map[string]interface{}{
			"public_token": "public-verify-e2e",
			"account_ids":  []string{"acct_checking"},
		})
	require.Equal(t, http.StatusOK, recorder.Code)

	var next services.NextStep
	require.NoError(t, json.Unmarshal(body.Data, &next))
	require.Equal(t, domain.StateVerificationRequired, next.State)

	recorder, body = f.do(t, http.MethodPost, "/api/link/sessions/"+token+"/verification", "user-1",
		map[string]interface{}{"amounts_minor": []int64{32, 45}})
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(body.Data, &next))
	assert.Equal(t, domain.StateOwnershipVerified, next.State)
	assert.True(t, next.ReadyToFinalize)
}

func TestLinkingHandler_FinalizeAndStatus(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.startSession(t, "user-1")

	recorder, _ := f.do(t, http.MethodPost, "/api/link/sessions/"+token+"/accounts", "user-1",
		map[string]interface{}{
			"public_token": "public-e2e",
			"account_ids":  []string{"acct_checking", "acct_savings"},
		})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder, body := f.do(t, http.MethodPost, "/api/link/sessions/"+token+"/finalize", "user-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var result domain.ConnectionResult
	require.NoError(t, json.Unmarshal(body.Data, &result))
	assert.NotEmpty(t, result.ConnectionID)
	assert.Len(t, result.AccountIDs, 2)

	recorder, body = f.do(t, http.MethodGet, "/api/link/sessions/"+token, "user-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var status services.SessionStatus
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.Equal(t, domain.StateConnectionEstablished, status.State)
	assert.Equal(t, 100, status.ProgressPercent)

	// Finalizing when nothing is selected is a conflict.
	second := f.startSession(t, "user-1")
	recorder, body = f.do(t, http.MethodPost, "/api/link/sessions/"+second+"/finalize", "user-1", nil)
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, domain.CodeIllegalTransition, body.Error.Code)
}

func TestLinkingHandler_Cancel(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.startSession(t, "user-1")

	recorder, _ := f.do(t, http.MethodDelete, "/api/link/sessions/"+token, "user-1", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	// The cancelled session rejects further work.
	recorder, body := f.do(t, http.MethodPost, "/api/link/sessions/"+token+"/accounts", "user-1",
		map[string]interface{}{
			"public_token": "public-e2e",
			"account_ids":  []string{"acct_checking"},
		})
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, domain.CodeIllegalTransition, body.Error.Code)
}

func TestLinkingHandler_ExpiredSession(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.startSession(t, "user-1")

	err := f.sessions.Update(context.Background(), token, func(s *domain.LinkingSession) error {
		s.ExpiresAt = time.Now().Add(-time.Minute)
		return nil
	})
	require.NoError(t, err)

	recorder, body := f.do(t, http.MethodPost, "/api/link/sessions/"+token+"/accounts", "user-1",
		map[string]interface{}{
			"public_token": "public-e2e",
			"account_ids":  []string{"acct_checking"},
		})
	assert.Equal(t, http.StatusGone, recorder.Code)
	assert.Equal(t, domain.CodeSessionExpired, body.Error.Code)
}
