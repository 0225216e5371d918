package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"finlink/internal/domain"
)

const (
	sessionKeyPrefix  = "finlink:session:"
	sessionLockPrefix = "finlink:session-lock:"

	// lockTTL bounds how long a crashed writer can hold a session lock.
	lockTTL = 10 * time.Second
	// lockRetryDelay is the poll interval while waiting for a lock.
	lockRetryDelay = 25 * time.Millisecond
)

// redisSessionRepository is a Redis-backed SessionRepository. TTL-based
// eviction rides on Redis key expiry; DeleteExpired only has to handle
// sessions whose domain expiry is shorter than the key TTL.
type redisSessionRepository struct {
	client *redis.Client
}

// NewRedisSessionRepository creates a Redis-backed session repository.
func NewRedisSessionRepository(client *redis.Client) SessionRepository {
	return &redisSessionRepository{client: client}
}

// storedSession is the persistence envelope. The sensitive fields are
// excluded from the domain type's JSON form on purpose, so the envelope
// carries them explicitly. Redis contents are expected to be protected at
// the deployment level; durable credential storage is always encrypted by
// the persistence writer before it leaves the session store.
type storedSession struct {
	Session            *domain.LinkingSession `json:"session"`
	HandshakeToken     string                 `json:"handshake_token,omitempty"`
	ProviderCredential string                 `json:"provider_credential,omitempty"`
	DepositsMinor      []int64                `json:"deposits_minor,omitempty"`
	ExpectedCode       string                 `json:"expected_code,omitempty"`
}

func wrapSession(session *domain.LinkingSession) *storedSession {
	stored := &storedSession{
		Session:            session,
		HandshakeToken:     session.HandshakeToken,
		ProviderCredential: session.ProviderCredential,
	}
	if session.Verification != nil {
		stored.DepositsMinor = session.Verification.DepositsMinor
		stored.ExpectedCode = session.Verification.ExpectedCode
	}
	return stored
}

func (s *storedSession) unwrap() *domain.LinkingSession {
	session := s.Session
	session.HandshakeToken = s.HandshakeToken
	session.ProviderCredential = s.ProviderCredential
	if session.Verification != nil {
		session.Verification.DepositsMinor = s.DepositsMinor
		session.Verification.ExpectedCode = s.ExpectedCode
	}
	return session
}

func (r *redisSessionRepository) Create(ctx context.Context, session *domain.LinkingSession) error {
	if err := session.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(wrapSession(session))
	if err != nil {
		return domain.NewInternalError("SESSION_ENCODE_FAILED", "Failed to encode session", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return domain.NewExpiredError(domain.CodeSessionExpired, "Linking session has expired")
	}

	ok, err := r.client.SetNX(ctx, sessionKeyPrefix+session.Token, data, ttl).Result()
	if err != nil {
		return domain.NewInternalError("SESSION_STORE_FAILED", "Failed to store session", err)
	}
	if !ok {
		return domain.NewConflictError("SESSION_EXISTS", "A session with this token already exists")
	}
	return nil
}

func (r *redisSessionRepository) Get(ctx context.Context, token string) (*domain.LinkingSession, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.NewNotFoundError(domain.CodeSessionNotFound, "Linking session not found")
	}
	if err != nil {
		return nil, domain.NewInternalError("SESSION_LOAD_FAILED", "Failed to load session", err)
	}

	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, domain.NewInternalError("SESSION_DECODE_FAILED", "Failed to decode session", err)
	}
	return stored.unwrap(), nil
}

func (r *redisSessionRepository) Update(
	ctx context.Context,
	token string,
	mutate func(*domain.LinkingSession) error,
) error {
	unlock, err := r.acquireLock(ctx, token)
	if err != nil {
		return err
	}
	defer unlock()

	session, err := r.Get(ctx, token)
	if err != nil {
		return err
	}

	mutateErr := mutate(session)
	inner, persistAnyway := UnwrapCommit(mutateErr)
	if mutateErr != nil && !persistAnyway {
		return inner
	}

	data, err := json.Marshal(wrapSession(session))
	if err != nil {
		return domain.NewInternalError("SESSION_ENCODE_FAILED", "Failed to encode session", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+token, data, ttl).Err(); err != nil {
		return domain.NewInternalError("SESSION_STORE_FAILED", "Failed to store session", err)
	}
	return inner
}

func (r *redisSessionRepository) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return domain.NewInternalError("SESSION_DELETE_FAILED", "Failed to delete session", err)
	}
	return nil
}

func (r *redisSessionRepository) DeleteExpired(ctx context.Context) (int, error) {
	// Redis evicts expired keys itself; report zero swept by us.
	return 0, nil
}

// acquireLock takes the per-session writer lock, polling until the lock
// is free or the context ends.
func (r *redisSessionRepository) acquireLock(ctx context.Context, token string) (func(), error) {
	key := sessionLockPrefix + token
	for {
		ok, err := r.client.SetNX(ctx, key, "1", lockTTL).Result()
		if err != nil {
			return nil, domain.NewInternalError("SESSION_LOCK_FAILED", "Failed to acquire session lock", err)
		}
		if ok {
			return func() { r.client.Del(context.WithoutCancel(ctx), key) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, domain.NewInternalError("SESSION_LOCK_FAILED", "Context ended while waiting for session lock", ctx.Err())
		case <-time.After(lockRetryDelay):
		}
	}
}
