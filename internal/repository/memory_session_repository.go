package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"finlink/internal/domain"
)

// memorySessionRepository is an in-memory SessionRepository with a lock
// per session token. Suited to single-process deployments and tests; the
// redis implementation covers multi-process ones.
type memorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*sessionSlot
}

// sessionSlot pairs a stored session with its writer lock. The slot lock
// serializes mutations for one token without blocking other sessions.
type sessionSlot struct {
	mu      sync.Mutex
	session *domain.LinkingSession
}

// NewMemorySessionRepository creates an in-memory session repository.
func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepository{
		sessions: make(map[string]*sessionSlot),
	}
}

func (r *memorySessionRepository) Create(_ context.Context, session *domain.LinkingSession) error {
	if err := session.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.Token]; exists {
		return domain.NewConflictError("SESSION_EXISTS", "A session with this token already exists")
	}
	r.sessions[session.Token] = &sessionSlot{session: cloneSession(session)}
	return nil
}

func (r *memorySessionRepository) Get(_ context.Context, token string) (*domain.LinkingSession, error) {
	r.mu.RLock()
	slot, exists := r.sessions[token]
	r.mu.RUnlock()
	if !exists {
		return nil, domain.NewNotFoundError(domain.CodeSessionNotFound, "Linking session not found")
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	return cloneSession(slot.session), nil
}

func (r *memorySessionRepository) Update(
	_ context.Context,
	token string,
	mutate func(*domain.LinkingSession) error,
) error {
	r.mu.RLock()
	slot, exists := r.sessions[token]
	r.mu.RUnlock()
	if !exists {
		return domain.NewNotFoundError(domain.CodeSessionNotFound, "Linking session not found")
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	working := cloneSession(slot.session)
	err := mutate(working)
	inner, persistAnyway := UnwrapCommit(err)
	if err == nil || persistAnyway {
		slot.session = working
	}
	return inner
}

func (r *memorySessionRepository) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, token)
	return nil
}

func (r *memorySessionRepository) DeleteExpired(_ context.Context) (int, error) {
	r.mu.RLock()
	tokens := make([]string, 0, len(r.sessions))
	for token := range r.sessions {
		tokens = append(tokens, token)
	}
	r.mu.RUnlock()

	now := time.Now()
	reaped := 0
	for _, token := range tokens {
		r.mu.RLock()
		slot, exists := r.sessions[token]
		r.mu.RUnlock()
		if !exists {
			continue
		}

		// Take the slot lock so a session mid-transition is not evicted
		// under a writer.
		slot.mu.Lock()
		expired := slot.session.ExpiresAt.Before(now)
		slot.mu.Unlock()

		if expired {
			r.mu.Lock()
			delete(r.sessions, token)
			r.mu.Unlock()
			reaped++
		}
	}
	return reaped, nil
}

// cloneSession deep-copies a session through JSON for the exported fields
// and copies the sensitive fields by hand, since they are excluded from
// serialization.
func cloneSession(session *domain.LinkingSession) *domain.LinkingSession {
	data, err := json.Marshal(session)
	if err != nil {
		// Sessions are plain data; marshalling cannot fail in practice.
		copied := *session
		return &copied
	}
	var copied domain.LinkingSession
	if err := json.Unmarshal(data, &copied); err != nil {
		fallback := *session
		return &fallback
	}
	copied.HandshakeToken = session.HandshakeToken
	copied.ProviderCredential = session.ProviderCredential
	if session.Verification != nil && copied.Verification != nil {
		copied.Verification.DepositsMinor = append([]int64(nil), session.Verification.DepositsMinor...)
		copied.Verification.ExpectedCode = session.Verification.ExpectedCode
	}
	return &copied
}
