package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"finlink/internal/domain"
	"finlink/internal/repository"
)

// LinkingService is the session-driven state machine coordinating an
// account linking attempt: admission pre-check, provider handshake,
// account selection, MFA and ownership verification sub-flows, and final
// persistence.
type LinkingService interface {
	// StartSession runs the admission pre-check, requests a provider
	// handshake token and creates the session. A failed provider call
	// leaves no session behind.
	StartSession(ctx context.Context, userID, institutionHint string) (*StartResult, error)

	// SelectAccounts exchanges the public token, re-checks admission
	// against the actual selection and enters the required sub-flows.
	SelectAccounts(ctx context.Context, token, publicToken string, accountIDs []string) (*NextStep, error)

	// IssueMfaChallenge returns the session's MFA challenge. Re-issuing
	// before expiry returns the identical challenge.
	IssueMfaChallenge(ctx context.Context, token string) (*MfaChallengeInfo, error)

	// CompleteMfa submits MFA answers.
	CompleteMfa(ctx context.Context, token string, answers []string) (*NextStep, error)

	// CompleteVerification submits an ownership verification payload.
	CompleteVerification(ctx context.Context, token string, payload VerificationSubmission) (*NextStep, error)

	// Finalize atomically persists the connection and its accounts.
	Finalize(ctx context.Context, token string) (*domain.ConnectionResult, error)

	// Cancel moves any non-terminal session to CANCELLED. Cancelling an
	// already cancelled session is a no-op.
	Cancel(ctx context.Context, token string) error

	// GetStatus returns a read-only view of the session.
	GetStatus(ctx context.Context, token string) (*SessionStatus, error)
}

// StartResult is returned by StartSession.
type StartResult struct {
	SessionToken   string               `json:"session_token"`
	HandshakeToken string               `json:"handshake_token"`
	ExpiresAt      time.Time            `json:"expires_at"`
	UpgradeOffer   *domain.UpgradeOffer `json:"upgrade_offer,omitempty"`
}

// MfaChallengeInfo is the caller-visible shape of an MFA challenge.
type MfaChallengeInfo struct {
	Type              domain.MfaChallengeType `json:"type"`
	Prompts           []string                `json:"prompts"`
	AttemptsRemaining int                     `json:"attempts_remaining"`
	ExpiresAt         time.Time               `json:"expires_at"`
}

// VerificationInfo is the caller-visible shape of a verification challenge.
type VerificationInfo struct {
	Method            domain.VerificationMethod `json:"method"`
	AttemptsRemaining int                       `json:"attempts_remaining"`
	ExpiresAt         time.Time                 `json:"expires_at"`
}

// VerificationSubmission carries the payload for CompleteVerification.
// AmountsMinor serves the micro-deposit method; Code serves phone and
// document methods.
type VerificationSubmission struct {
	AmountsMinor []int64 `json:"amounts_minor,omitempty"`
	Code         string  `json:"code,omitempty"`
}

// NextStep tells the caller what the session needs next.
type NextStep struct {
	State           domain.SessionState `json:"state"`
	Mfa             *MfaChallengeInfo   `json:"mfa,omitempty"`
	Verification    *VerificationInfo   `json:"verification,omitempty"`
	ReadyToFinalize bool                `json:"ready_to_finalize"`
}

// SessionStatus is the read-only session view returned by GetStatus.
type SessionStatus struct {
	Token           string              `json:"token"`
	State           domain.SessionState `json:"state"`
	ProgressPercent int                 `json:"progress_percent"`
	InstitutionName string              `json:"institution_name,omitempty"`
	AccountCount    int                 `json:"account_count"`
	FailureCode     string              `json:"failure_code,omitempty"`
	Expired         bool                `json:"expired"`
	CreatedAt       time.Time           `json:"created_at"`
	ExpiresAt       time.Time           `json:"expires_at"`
}

type linkingService struct {
	sessions    repository.SessionRepository
	connections repository.ConnectionRepository
	gate        AdmissionGate
	provider    ProviderAdapter
	cipher      *CredentialCipher
	notifier    Notifier
	sessionTTL  time.Duration
	logger      *slog.Logger
}

// NewLinkingService creates the linking state machine. A non-positive
// sessionTTL falls back to domain.DefaultSessionTTL.
func NewLinkingService(
	sessions repository.SessionRepository,
	connections repository.ConnectionRepository,
	gate AdmissionGate,
	provider ProviderAdapter,
	cipher *CredentialCipher,
	notifier Notifier,
	sessionTTL time.Duration,
	logger *slog.Logger,
) LinkingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &linkingService{
		sessions:    sessions,
		connections: connections,
		gate:        gate,
		provider:    provider,
		cipher:      cipher,
		notifier:    notifier,
		sessionTTL:  sessionTTL,
		logger:      logger,
	}
}

// metadata keys used on the session.
const (
	metaSelectionFingerprint = "selection_fingerprint"
	metaInstitutionHint      = "institution_hint"
	metaTierSnapshot         = "tier_snapshot"
	metaConnectionID         = "connection_id"
	metaAccountIDs           = "account_ids"
	metaDenyReason           = "deny_reason"
	metaProviderError        = "provider_error"
)

func (s *linkingService) StartSession(ctx context.Context, userID, institutionHint string) (*StartResult, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "User ID is required", nil)
	}

	decision, err := s.gate.CheckAdmission(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, admissionDenied(decision.DenyReason)
	}

	session, err := domain.NewLinkingSessionWithTTL(userID, s.sessionTTL)
	if err != nil {
		return nil, err
	}
	session.Metadata[metaTierSnapshot] = string(decision.Limits.Tier)
	if institutionHint != "" {
		session.Metadata[metaInstitutionHint] = institutionHint
	}
	if err := session.TransitionTo(domain.StateTierChecked); err != nil {
		return nil, err
	}

	// The handshake call happens before the session is stored so a
	// provider failure leaves nothing to clean up.
	callCtx, cancel := context.WithTimeout(ctx, ProviderTimeout)
	handshake, err := s.provider.CreateHandshakeToken(callCtx, userID)
	cancel()
	if err != nil {
		return nil, err
	}
	session.HandshakeToken = handshake
	if err := session.TransitionTo(domain.StateHandshakeCreated); err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, LinkEvent{
		Type:         EventSessionStarted,
		UserID:       userID,
		SessionToken: session.Token,
		OccurredAt:   time.Now(),
	})
	s.logger.Info("linking session started", "session_token", session.Token, "user_id", userID)

	return &StartResult{
		SessionToken:   session.Token,
		HandshakeToken: handshake,
		ExpiresAt:      session.ExpiresAt,
		UpgradeOffer:   decision.UpgradeOffer,
	}, nil
}

func (s *linkingService) SelectAccounts(ctx context.Context, token, publicToken string, accountIDs []string) (*NextStep, error) {
	if publicToken == "" {
		return nil, domain.NewValidationError("public_token", "Provider public token is required", nil)
	}
	if len(accountIDs) == 0 {
		return nil, domain.NewValidationError("account_ids", "At least one account must be selected", nil)
	}
	fingerprint := selectionFingerprint(publicToken, accountIDs)

	var next *NextStep
	err := s.sessions.Update(ctx, token, func(session *domain.LinkingSession) error {
		if err := guardMutable(session); err != nil {
			return err
		}

		// Retrying the same selection against a session that already
		// processed it returns the current next step unchanged.
		if session.State != domain.StateHandshakeCreated {
			if session.Metadata[metaSelectionFingerprint] == fingerprint {
				next = nextStepFor(session)
				return nil
			}
			return illegalTransition(session.State, domain.StateAccountsSelected)
		}

		callCtx, cancel := context.WithTimeout(ctx, ProviderTimeout)
		exchange, err := s.provider.ExchangePublicToken(callCtx, publicToken)
		cancel()
		if err != nil {
			// Retryable failures leave the session in HANDSHAKE_CREATED
			// so the caller can retry the same operation. A rejection is
			// final and fails the session.
			return s.handleProviderError(ctx, session, err)
		}

		selected, err := filterAccounts(exchange.Accounts, accountIDs)
		if err != nil {
			return err
		}

		// Admission re-check against the actual selection size: the user
		// may have selected more accounts than originally hinted.
		limits, err := s.gate.LimitsFor(ctx, session.UserID)
		if err != nil {
			return err
		}
		usage, err := s.connections.CountUsage(ctx, session.UserID)
		if err != nil {
			return err
		}
		if decision := s.gate.Evaluate(limits, usage, len(selected)); !decision.Allowed {
			session.Metadata[metaDenyReason] = string(decision.DenyReason)
			s.failSession(ctx, session, domain.CodeAdmissionDenied)
			return repository.Commit(admissionDenied(decision.DenyReason))
		}

		session.ProviderCredential = exchange.Credential
		session.InstitutionID = exchange.InstitutionID
		session.InstitutionName = exchange.InstitutionName
		session.SelectedAccounts = selected
		session.Metadata[metaSelectionFingerprint] = fingerprint
		if err := session.TransitionTo(domain.StateAccountsSelected); err != nil {
			return err
		}

		if exchange.VerificationRequired {
			challenge := domain.NewVerificationChallenge(exchange.VerificationMethod, 0)
			challenge.DepositsMinor = append([]int64(nil), exchange.DepositsMinor...)
			challenge.ExpectedCode = exchange.ExpectedCode
			session.Verification = challenge
		}
		if exchange.MfaRequired {
			session.Mfa = domain.NewMfaChallenge(exchange.MfaType, exchange.MfaPrompts)
			if err := session.TransitionTo(domain.StateMfaRequired); err != nil {
				return err
			}
		} else if exchange.VerificationRequired {
			if err := session.TransitionTo(domain.StateVerificationRequired); err != nil {
				return err
			}
		}

		next = nextStepFor(session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *linkingService) IssueMfaChallenge(ctx context.Context, token string) (*MfaChallengeInfo, error) {
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, domain.NewExpiredError(domain.CodeSessionExpired, "Linking session has expired")
	}
	if session.Mfa == nil {
		return nil, domain.NewConflictError(domain.CodeIllegalTransition, "Session has no MFA challenge")
	}
	if session.Mfa.IsExpired() {
		return nil, domain.NewExpiredError(domain.CodeMfaExpired, "The MFA challenge has expired")
	}
	return mfaInfo(session.Mfa), nil
}

func (s *linkingService) CompleteMfa(ctx context.Context, token string, answers []string) (*NextStep, error) {
	var next *NextStep
	err := s.sessions.Update(ctx, token, func(session *domain.LinkingSession) error {
		if err := guardMutable(session); err != nil {
			return err
		}
		if session.State != domain.StateMfaRequired || session.Mfa == nil {
			// A repeated submit after completion is answered from the
			// session as it stands.
			if session.Mfa != nil && session.Mfa.Completed {
				next = nextStepFor(session)
				return nil
			}
			return illegalTransition(session.State, domain.StateMfaCompleted)
		}

		challenge := session.Mfa
		if challenge.IsExpired() {
			s.failSession(ctx, session, domain.CodeMfaExpired)
			s.publishChallengeFailure(ctx, session, EventMfaFailed, "expired")
			return repository.Commit(domain.NewExpiredError(domain.CodeMfaExpired, "The MFA challenge has expired"))
		}
		if challenge.Exhausted() {
			return domain.NewChallengeError(domain.CodeMfaExhausted, "No MFA attempts remain", 0)
		}

		callCtx, cancel := context.WithTimeout(ctx, ProviderTimeout)
		correct, err := s.provider.VerifyMfaAnswers(callCtx, session.ProviderCredential, answers)
		cancel()
		if err != nil {
			return s.handleProviderError(ctx, session, err)
		}

		if !correct {
			remaining := challenge.RecordFailure()
			s.publishChallengeFailure(ctx, session, EventMfaFailed, "incorrect")
			if remaining <= 0 {
				s.failSession(ctx, session, domain.CodeMfaExhausted)
				return repository.Commit(domain.NewChallengeError(domain.CodeMfaExhausted,
					"MFA attempts exhausted", 0))
			}
			return repository.Commit(domain.NewChallengeError(domain.CodeMfaIncorrect,
				"Incorrect MFA answer", remaining))
		}

		challenge.Complete()
		if err := session.TransitionTo(domain.StateMfaCompleted); err != nil {
			return err
		}
		if session.Verification != nil && !session.Verification.Completed {
			if err := session.TransitionTo(domain.StateVerificationRequired); err != nil {
				return err
			}
		}
		next = nextStepFor(session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *linkingService) CompleteVerification(ctx context.Context, token string, payload VerificationSubmission) (*NextStep, error) {
	var next *NextStep
	err := s.sessions.Update(ctx, token, func(session *domain.LinkingSession) error {
		if err := guardMutable(session); err != nil {
			return err
		}
		if session.State != domain.StateVerificationRequired || session.Verification == nil {
			if session.Verification != nil && session.Verification.Completed {
				next = nextStepFor(session)
				return nil
			}
			return illegalTransition(session.State, domain.StateOwnershipVerified)
		}

		challenge := session.Verification
		if challenge.IsExpired() {
			s.failSession(ctx, session, domain.CodeVerificationExpired)
			s.publishChallengeFailure(ctx, session, EventVerificationFailed, "expired")
			return repository.Commit(domain.NewExpiredError(domain.CodeVerificationExpired,
				"The verification challenge has expired"))
		}
		if challenge.Exhausted() {
			return domain.NewChallengeError(domain.CodeVerificationExhausted, "No verification attempts remain", 0)
		}

		correct := false
		switch challenge.Method {
		case domain.VerificationMicroDeposit:
			correct = challenge.MatchesDeposits(payload.AmountsMinor)
		case domain.VerificationPhoneCode, domain.VerificationDocument:
			correct = payload.Code != "" && payload.Code == challenge.ExpectedCode
		}

		if !correct {
			remaining := challenge.RecordFailure()
			s.publishChallengeFailure(ctx, session, EventVerificationFailed, "incorrect")
			if remaining <= 0 {
				s.failSession(ctx, session, domain.CodeVerificationExhausted)
				return repository.Commit(domain.NewChallengeError(domain.CodeVerificationExhausted,
					"Verification attempts exhausted", 0))
			}
			return repository.Commit(domain.NewChallengeError(domain.CodeVerificationIncorrect,
				"Verification payload did not match", remaining))
		}

		challenge.Complete()
		if err := session.TransitionTo(domain.StateOwnershipVerified); err != nil {
			return err
		}
		next = nextStepFor(session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *linkingService) Finalize(ctx context.Context, token string) (*domain.ConnectionResult, error) {
	var result *domain.ConnectionResult
	err := s.sessions.Update(ctx, token, func(session *domain.LinkingSession) error {
		// A finalized session answers repeated Finalize calls with the
		// stored result.
		if session.State == domain.StateConnectionEstablished {
			result = resultFromMetadata(session)
			return nil
		}
		if err := guardMutable(session); err != nil {
			return err
		}
		if !session.ReadyToFinalize() {
			return illegalTransition(session.State, domain.StateConnectionEstablished)
		}

		encrypted, err := s.cipher.Encrypt(session.ProviderCredential)
		if err != nil {
			return err
		}

		connection := &domain.LinkedConnection{
			ID:                  uuid.New().String(),
			UserID:              session.UserID,
			InstitutionID:       session.InstitutionID,
			InstitutionName:     session.InstitutionName,
			EncryptedCredential: encrypted,
			Status:              domain.ConnectionActive,
			SessionToken:        session.Token,
			CreatedAt:           time.Now(),
		}
		accounts := make([]*domain.LinkedAccount, len(session.SelectedAccounts))
		for i, ref := range session.SelectedAccounts {
			accounts[i] = &domain.LinkedAccount{
				ID:           uuid.New().String(),
				ConnectionID: connection.ID,
				UserID:       session.UserID,
				ExternalID:   ref.ExternalID,
				Name:         ref.Name,
				Mask:         ref.Mask,
				Type:         ref.Type,
				Subtype:      ref.Subtype,
				BalanceMinor: ref.BalanceMinor,
				Currency:     ref.Currency,
			}
			accounts[i].CreatedAt = connection.CreatedAt
		}

		limits, err := s.gate.LimitsFor(ctx, session.UserID)
		if err != nil {
			return err
		}

		// The admission gate runs again inside the storage transaction.
		// Two concurrent sessions may both have passed the pre-check;
		// only the usage observed here is authoritative.
		writeErr := s.connections.CreateWithAccounts(ctx, connection, accounts,
			func(usage domain.TierUsage) error {
				if decision := s.gate.Evaluate(limits, usage, len(accounts)); !decision.Allowed {
					return admissionDenied(decision.DenyReason)
				}
				return nil
			})
		if writeErr != nil {
			if domain.HasCode(writeErr, domain.CodeAdmissionDenied) {
				s.failSession(ctx, session, domain.CodeAdmissionDenied)
				return repository.Commit(writeErr)
			}
			s.failSession(ctx, session, domain.CodePersistenceFailed)
			return repository.Commit(domain.NewInternalError(domain.CodePersistenceFailed,
				"Failed to persist the connection", writeErr))
		}

		if err := session.TransitionTo(domain.StateConnectionEstablished); err != nil {
			return err
		}
		// The plaintext credential has served its purpose; only the
		// encrypted copy survives.
		session.ProviderCredential = ""
		session.Metadata[metaConnectionID] = connection.ID
		session.Metadata[metaAccountIDs] = joinIDs(accounts)

		result = &domain.ConnectionResult{ConnectionID: connection.ID, AccountIDs: accountIDs(accounts)}
		s.notifier.Publish(ctx, LinkEvent{
			Type:         EventConnectionEstablished,
			UserID:       session.UserID,
			SessionToken: session.Token,
			Detail:       map[string]string{"connection_id": connection.ID},
			OccurredAt:   time.Now(),
		})
		s.logger.Info("connection established",
			"session_token", session.Token, "user_id", session.UserID,
			"connection_id", connection.ID, "accounts", len(accounts))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *linkingService) Cancel(ctx context.Context, token string) error {
	var handshake string
	err := s.sessions.Update(ctx, token, func(session *domain.LinkingSession) error {
		if session.State == domain.StateCancelled {
			return nil
		}
		if session.State.IsTerminal() {
			return illegalTransition(session.State, domain.StateCancelled)
		}
		handshake = session.HandshakeToken
		return session.TransitionTo(domain.StateCancelled)
	})
	if err != nil {
		return err
	}

	// Best-effort provider teardown after the cancellation is recorded;
	// a teardown failure does not undo the cancel.
	if handshake != "" {
		callCtx, cancel := context.WithTimeout(ctx, ProviderTimeout)
		if err := s.provider.TeardownHandshake(callCtx, handshake); err != nil {
			s.logger.Warn("handshake teardown failed", "session_token", token, "error", err)
		}
		cancel()
	}
	return nil
}

func (s *linkingService) GetStatus(ctx context.Context, token string) (*SessionStatus, error) {
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	return &SessionStatus{
		Token:           session.Token,
		State:           session.State,
		ProgressPercent: session.ProgressPercent(),
		InstitutionName: session.InstitutionName,
		AccountCount:    len(session.SelectedAccounts),
		FailureCode:     session.Metadata["failure_code"],
		Expired:         session.IsExpired(),
		CreatedAt:       session.CreatedAt,
		ExpiresAt:       session.ExpiresAt,
	}, nil
}

// handleProviderError decides what a provider failure does to the session.
// Retryable errors are returned unchanged and the session keeps its state;
// anything else records the failure on the session and forces FAILED, with
// the mutation persisted alongside the error.
func (s *linkingService) handleProviderError(ctx context.Context, session *domain.LinkingSession, err error) error {
	if domain.IsRetryable(err) {
		return err
	}
	code := domain.CodeProviderRejected
	detail := err.Error()
	if domainErr, ok := err.(*domain.Error); ok {
		code = domainErr.Code
		detail = domainErr.Message
	}
	session.Metadata[metaProviderError] = detail
	s.failSession(ctx, session, code)
	return repository.Commit(err)
}

// failSession forces FAILED and emits the connection_failed event.
func (s *linkingService) failSession(ctx context.Context, session *domain.LinkingSession, code string) {
	session.Fail(code)
	s.notifier.Publish(ctx, LinkEvent{
		Type:         EventConnectionFailed,
		UserID:       session.UserID,
		SessionToken: session.Token,
		Detail:       map[string]string{"failure_code": code},
		OccurredAt:   time.Now(),
	})
}

func (s *linkingService) publishChallengeFailure(ctx context.Context, session *domain.LinkingSession, event LinkEventType, reason string) {
	s.notifier.Publish(ctx, LinkEvent{
		Type:         event,
		UserID:       session.UserID,
		SessionToken: session.Token,
		Detail:       map[string]string{"reason": reason},
		OccurredAt:   time.Now(),
	})
}

// guardMutable rejects mutations of expired or terminal sessions.
func guardMutable(session *domain.LinkingSession) error {
	if session.IsExpired() {
		return domain.NewExpiredError(domain.CodeSessionExpired, "Linking session has expired")
	}
	if session.State.IsTerminal() {
		return domain.NewConflictError(domain.CodeIllegalTransition,
			"Session is in terminal state "+string(session.State))
	}
	return nil
}

func illegalTransition(from, to domain.SessionState) error {
	return domain.NewConflictError(domain.CodeIllegalTransition,
		"Cannot transition from "+string(from)+" to "+string(to))
}

func admissionDenied(reason domain.DenyReason) *domain.Error {
	message := "Your subscription tier does not allow more linked accounts"
	if reason == domain.DenyNoAccessForTier {
		message = "Your subscription tier does not include bank account linking"
	}
	return domain.NewAdmissionError(reason, message)
}

func nextStepFor(session *domain.LinkingSession) *NextStep {
	step := &NextStep{
		State:           session.State,
		ReadyToFinalize: session.ReadyToFinalize(),
	}
	if session.State == domain.StateMfaRequired && session.Mfa != nil {
		step.Mfa = mfaInfo(session.Mfa)
	}
	if session.State == domain.StateVerificationRequired && session.Verification != nil {
		step.Verification = &VerificationInfo{
			Method:            session.Verification.Method,
			AttemptsRemaining: session.Verification.AttemptsRemaining,
			ExpiresAt:         session.Verification.ExpiresAt,
		}
	}
	return step
}

func mfaInfo(challenge *domain.MfaChallenge) *MfaChallengeInfo {
	return &MfaChallengeInfo{
		Type:              challenge.Type,
		Prompts:           append([]string(nil), challenge.Prompts...),
		AttemptsRemaining: challenge.AttemptsRemaining,
		ExpiresAt:         challenge.ExpiresAt,
	}
}

// selectionFingerprint identifies one SelectAccounts input so retries of
// the same call are recognized without storing the public token itself.
func selectionFingerprint(publicToken string, accountIDs []string) string {
	h := sha256.New()
	h.Write([]byte(publicToken))
	for _, id := range accountIDs {
		h.Write([]byte{0})
		h.Write([]byte(id))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func filterAccounts(available []domain.ExternalAccountRef, accountIDs []string) ([]domain.ExternalAccountRef, error) {
	byID := make(map[string]domain.ExternalAccountRef, len(available))
	for _, ref := range available {
		byID[ref.ExternalID] = ref
	}

	selected := make([]domain.ExternalAccountRef, 0, len(accountIDs))
	seen := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		ref, ok := byID[id]
		if !ok {
			return nil, domain.NewValidationError("account_ids",
				"Selected account is not offered by the provider",
				map[string]interface{}{"account_id": id})
		}
		selected = append(selected, ref)
	}
	return selected, nil
}

func accountIDs(accounts []*domain.LinkedAccount) []string {
	ids := make([]string, len(accounts))
	for i, account := range accounts {
		ids[i] = account.ID
	}
	return ids
}

func joinIDs(accounts []*domain.LinkedAccount) string {
	return strings.Join(accountIDs(accounts), ",")
}

func resultFromMetadata(session *domain.LinkingSession) *domain.ConnectionResult {
	result := &domain.ConnectionResult{ConnectionID: session.Metadata[metaConnectionID]}
	if raw := session.Metadata[metaAccountIDs]; raw != "" {
		result.AccountIDs = strings.Split(raw, ",")
	}
	return result
}
