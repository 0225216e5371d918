// Package domain provides the core entities of the account linking engine.
package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// SessionState is the state of a linking session. The set is closed; any
// value outside it is rejected by Validate.
type SessionState string

const (
	StateInitialized           SessionState = "INITIALIZED"
	StateTierChecked           SessionState = "TIER_CHECKED"
	StateHandshakeCreated      SessionState = "HANDSHAKE_CREATED"
	StateAccountsSelected      SessionState = "ACCOUNTS_SELECTED"
	StateMfaRequired           SessionState = "MFA_REQUIRED"
	StateMfaCompleted          SessionState = "MFA_COMPLETED"
	StateVerificationRequired  SessionState = "VERIFICATION_REQUIRED"
	StateOwnershipVerified     SessionState = "OWNERSHIP_VERIFIED"
	StateConnectionEstablished SessionState = "CONNECTION_ESTABLISHED"
	StateFailed                SessionState = "FAILED"
	StateCancelled             SessionState = "CANCELLED"
)

func (s SessionState) IsValid() bool {
	switch s {
	case StateInitialized, StateTierChecked, StateHandshakeCreated,
		StateAccountsSelected, StateMfaRequired, StateMfaCompleted,
		StateVerificationRequired, StateOwnershipVerified,
		StateConnectionEstablished, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is permitted from s.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateConnectionEstablished, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// sessionTransitions is the only source of truth for legal transitions.
// FAILED and CANCELLED are reachable from every non-terminal state and are
// handled in CanTransitionTo rather than listed here.
var sessionTransitions = map[SessionState][]SessionState{
	StateInitialized:          {StateTierChecked},
	StateTierChecked:          {StateHandshakeCreated},
	StateHandshakeCreated:     {StateAccountsSelected},
	StateAccountsSelected:     {StateMfaRequired, StateVerificationRequired, StateConnectionEstablished},
	StateMfaRequired:          {StateMfaCompleted},
	StateMfaCompleted:         {StateVerificationRequired, StateConnectionEstablished},
	StateVerificationRequired: {StateOwnershipVerified},
	StateOwnershipVerified:    {StateConnectionEstablished},
}

// progressSteps is the canonical ordered step list used to compute the
// progress percentage reported by GetStatus.
var progressSteps = []SessionState{
	StateInitialized,
	StateTierChecked,
	StateHandshakeCreated,
	StateAccountsSelected,
	StateMfaRequired,
	StateMfaCompleted,
	StateVerificationRequired,
	StateOwnershipVerified,
	StateConnectionEstablished,
}

// ExternalAccountRef identifies one account at the external provider as
// selected by the user during the linking UI flow.
type ExternalAccountRef struct {
	ExternalID   string `json:"external_id"`
	Name         string `json:"name"`
	Mask         string `json:"mask"`
	Type         string `json:"type"`
	Subtype      string `json:"subtype,omitempty"`
	BalanceMinor int64  `json:"balance_minor"`
	Currency     string `json:"currency"`
}

// DefaultSessionTTL is the absolute lifetime of a linking session.
const DefaultSessionTTL = 2 * time.Hour

// LinkingSession is the aggregate root of one account linking attempt.
// The provider credential is never serialized.
type LinkingSession struct {
	Token              string                 `json:"token"`
	UserID             string                 `json:"user_id"`
	State              SessionState           `json:"state"`
	HandshakeToken     string                 `json:"-"`
	ProviderCredential string                 `json:"-"`
	InstitutionID      string                 `json:"institution_id,omitempty"`
	InstitutionName    string                 `json:"institution_name,omitempty"`
	SelectedAccounts   []ExternalAccountRef   `json:"selected_accounts,omitempty"`
	Mfa                *MfaChallenge          `json:"mfa,omitempty"`
	Verification       *VerificationChallenge `json:"verification,omitempty"`
	Metadata           map[string]string      `json:"metadata,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
	ExpiresAt          time.Time              `json:"expires_at"`
}

// NewLinkingSession creates a session in INITIALIZED with a fresh
// unguessable token and the default TTL.
func NewLinkingSession(userID string) (*LinkingSession, error) {
	return NewLinkingSessionWithTTL(userID, DefaultSessionTTL)
}

// NewLinkingSessionWithTTL creates a session whose absolute expiry is ttl
// from now. A non-positive ttl falls back to DefaultSessionTTL.
func NewLinkingSessionWithTTL(userID string, ttl time.Duration) (*LinkingSession, error) {
	token, err := GenerateSessionToken()
	if err != nil {
		return nil, NewInternalError("TOKEN_GENERATION_FAILED", "Failed to generate session token", err)
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()
	return &LinkingSession{
		Token:     token,
		UserID:    userID,
		State:     StateInitialized,
		Metadata:  make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// GenerateSessionToken returns a 192-bit random token in URL-safe base64.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "lnk_" + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Validate checks structural invariants of the session.
func (s *LinkingSession) Validate() error {
	if s.Token == "" {
		return NewValidationError("token", "Session token is required", nil)
	}
	if s.UserID == "" {
		return NewValidationError("user_id", "User ID is required", nil)
	}
	if !s.State.IsValid() {
		return NewValidationError("state", "Invalid session state", nil)
	}
	if s.ExpiresAt.Before(s.CreatedAt) {
		return NewValidationError("expires_at", "Expiry must not precede creation", nil)
	}
	return nil
}

// IsExpired reports whether the session is past its absolute expiry.
func (s *LinkingSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// CanTransitionTo reports whether moving to next is legal from the current
// state. Terminal states accept nothing; FAILED and CANCELLED are legal
// targets from any non-terminal state.
func (s *LinkingSession) CanTransitionTo(next SessionState) bool {
	if !next.IsValid() || s.State.IsTerminal() {
		return false
	}
	if next == StateFailed || next == StateCancelled {
		return true
	}
	for _, allowed := range sessionTransitions[s.State] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the session to next or returns an
// ILLEGAL_STATE_TRANSITION conflict, leaving the session unchanged.
func (s *LinkingSession) TransitionTo(next SessionState) error {
	if !s.CanTransitionTo(next) {
		return NewConflictError(CodeIllegalTransition,
			"Cannot transition from "+string(s.State)+" to "+string(next))
	}
	s.State = next
	s.UpdatedAt = time.Now()
	return nil
}

// Fail forces the session to FAILED and records the failure code in the
// session metadata. Calling Fail on a terminal session is a no-op.
func (s *LinkingSession) Fail(code string) {
	if s.State.IsTerminal() {
		return
	}
	s.State = StateFailed
	s.UpdatedAt = time.Now()
	if s.Metadata == nil {
		s.Metadata = make(map[string]string)
	}
	s.Metadata["failure_code"] = code
}

// ProgressPercent maps the current state onto the canonical step list.
// FAILED and CANCELLED report the progress of the step they were reached
// from, which the step list cannot recover, so they report 0 and 100 is
// reserved for CONNECTION_ESTABLISHED.
func (s *LinkingSession) ProgressPercent() int {
	if s.State == StateFailed || s.State == StateCancelled {
		return 0
	}
	for i, step := range progressSteps {
		if step == s.State {
			return (i + 1) * 100 / len(progressSteps)
		}
	}
	return 0
}

// ReadyToFinalize reports whether the session sits at the pre-terminal
// point with no outstanding sub-flow.
func (s *LinkingSession) ReadyToFinalize() bool {
	switch s.State {
	case StateAccountsSelected:
		return s.Mfa == nil && s.Verification == nil
	case StateMfaCompleted:
		return s.Verification == nil
	case StateOwnershipVerified:
		return true
	default:
		return false
	}
}
