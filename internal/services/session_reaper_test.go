package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finlink/internal/domain"
	"finlink/internal/repository"
)

// newExpiredSession stores a fresh session and then backdates its expiry;
// Validate rejects a session created already expired.
func newExpiredSession(t *testing.T, ctx context.Context, sessions repository.SessionRepository, userID string) *domain.LinkingSession {
	t.Helper()
	session, err := domain.NewLinkingSession(userID)
	require.NoError(t, err)
	require.NoError(t, sessions.Create(ctx, session))
	require.NoError(t, sessions.Update(ctx, session.Token, func(s *domain.LinkingSession) error {
		s.ExpiresAt = time.Now().Add(-time.Minute)
		return nil
	}))
	return session
}

func TestSessionReaper_Sweep(t *testing.T) {
	ctx := context.Background()
	sessions := repository.NewMemorySessionRepository()

	expired := newExpiredSession(t, ctx, sessions, "user-1")

	live, err := domain.NewLinkingSession("user-2")
	require.NoError(t, err)
	require.NoError(t, sessions.Create(ctx, live))

	reaper := NewSessionReaper(sessions, time.Hour, nil)
	reaped, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	_, err = sessions.Get(ctx, expired.Token)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeSessionNotFound))

	_, err = sessions.Get(ctx, live.Token)
	require.NoError(t, err)

	// A second sweep finds nothing left to evict.
	reaped, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, reaped)
}

func TestSessionReaper_StartAndStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := repository.NewMemorySessionRepository()

	expired := newExpiredSession(t, ctx, sessions, "user-1")

	reaper := NewSessionReaper(sessions, 5*time.Millisecond, nil)
	reaper.Start(ctx)
	// Starting again must not spawn a second goroutine.
	reaper.Start(ctx)
	defer reaper.Stop()

	assert.Eventually(t, func() bool {
		_, err := sessions.Get(ctx, expired.Token)
		return domain.HasCode(err, domain.CodeSessionNotFound)
	}, time.Second, 10*time.Millisecond)
}
