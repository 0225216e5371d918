// Package repository provides data access interfaces and implementations
// for the account linking engine.
package repository

import (
	"context"

	"finlink/internal/domain"
)

// SessionRepository stores in-flight linking sessions keyed by their
// opaque token.
//
// Update is the single-writer entry point: implementations must guarantee
// mutual exclusion per session token, so two concurrent mutations of the
// same session serialize and neither observes a half-applied peer. Get
// returns a quiesced snapshot and may proceed concurrently with writers.
type SessionRepository interface {
	// Create stores a new session. Fails if the token already exists.
	Create(ctx context.Context, session *domain.LinkingSession) error

	// Get returns a snapshot of the session, or SESSION_NOT_FOUND.
	Get(ctx context.Context, token string) (*domain.LinkingSession, error)

	// Update applies mutate under the per-session lock. A nil return
	// persists the mutated session. A plain error discards the mutation
	// and surfaces the error. An error wrapped by Commit persists the
	// mutation and still surfaces the inner error.
	Update(ctx context.Context, token string, mutate func(*domain.LinkingSession) error) error

	// Delete removes the session. Removing an absent session is a no-op.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes every session past its expiry, honoring the
	// same per-session locks as Update, and returns how many went.
	DeleteExpired(ctx context.Context) (int, error)
}

// CommitError wraps an error returned from an Update mutate callback whose
// session changes must be persisted anyway. The state machine uses this
// for transitions that both fail the caller and move the session, such as
// an exhausted MFA attempt forcing FAILED.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string { return e.Err.Error() }

func (e *CommitError) Unwrap() error { return e.Err }

// Commit marks err as a failure whose session mutation must still be
// persisted by Update.
func Commit(err error) error {
	return &CommitError{Err: err}
}

// UnwrapCommit strips a CommitError wrapper, if present, and reports
// whether the mutation should be persisted.
func UnwrapCommit(err error) (error, bool) {
	if commitErr, ok := err.(*CommitError); ok {
		return commitErr.Err, true
	}
	return err, false
}
