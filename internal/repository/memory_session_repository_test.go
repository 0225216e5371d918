package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"finlink/internal/domain"
)

func newStoredSession(t *testing.T, repo SessionRepository) *domain.LinkingSession {
	t.Helper()
	session, err := domain.NewLinkingSession("user-123")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	session.HandshakeToken = "hs_test"
	session.ProviderCredential = "cred_test"
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("Expected create to succeed, got %v", err)
	}
	return session
}

func TestMemorySessionRepository_CreateAndGet(t *testing.T) {
	repo := NewMemorySessionRepository()
	session := newStoredSession(t, repo)

	got, err := repo.Get(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.UserID != "user-123" {
		t.Errorf("Expected user-123, got %s", got.UserID)
	}
	if got.HandshakeToken != "hs_test" || got.ProviderCredential != "cred_test" {
		t.Error("Sensitive fields must survive the store roundtrip")
	}

	// The returned session is a copy; mutating it must not leak back.
	got.State = domain.StateFailed
	again, err := repo.Get(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if again.State != domain.StateInitialized {
		t.Errorf("Stored session mutated through a returned copy, state %s", again.State)
	}
}

func TestMemorySessionRepository_CreateDuplicate(t *testing.T) {
	repo := NewMemorySessionRepository()
	session := newStoredSession(t, repo)

	err := repo.Create(context.Background(), session)
	if err == nil {
		t.Fatal("Expected duplicate create to fail")
	}
}

func TestMemorySessionRepository_GetMissing(t *testing.T) {
	repo := NewMemorySessionRepository()

	_, err := repo.Get(context.Background(), "lnk_missing")
	if !domain.HasCode(err, domain.CodeSessionNotFound) {
		t.Errorf("Expected %s, got %v", domain.CodeSessionNotFound, err)
	}
}

func TestMemorySessionRepository_UpdatePersistsOnNil(t *testing.T) {
	repo := NewMemorySessionRepository()
	session := newStoredSession(t, repo)

	err := repo.Update(context.Background(), session.Token, func(s *domain.LinkingSession) error {
		return s.TransitionTo(domain.StateTierChecked)
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, _ := repo.Get(context.Background(), session.Token)
	if got.State != domain.StateTierChecked {
		t.Errorf("Expected %s, got %s", domain.StateTierChecked, got.State)
	}
}

func TestMemorySessionRepository_UpdateDiscardsOnError(t *testing.T) {
	repo := NewMemorySessionRepository()
	session := newStoredSession(t, repo)

	wantErr := domain.NewExternalServiceError(domain.CodeProviderUnavailable, "down", true, nil)
	err := repo.Update(context.Background(), session.Token, func(s *domain.LinkingSession) error {
		s.State = domain.StateFailed
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("Expected the mutation error back, got %v", err)
	}

	got, _ := repo.Get(context.Background(), session.Token)
	if got.State != domain.StateInitialized {
		t.Errorf("Plain error must discard the mutation, state %s", got.State)
	}
}

func TestMemorySessionRepository_UpdateCommitPersistsDespiteError(t *testing.T) {
	repo := NewMemorySessionRepository()
	session := newStoredSession(t, repo)

	inner := domain.NewChallengeError(domain.CodeMfaIncorrect, "wrong", 2)
	err := repo.Update(context.Background(), session.Token, func(s *domain.LinkingSession) error {
		s.Fail(domain.CodeMfaExhausted)
		return Commit(inner)
	})
	if err != inner {
		t.Fatalf("Expected the wrapped error back, got %v", err)
	}

	got, _ := repo.Get(context.Background(), session.Token)
	if got.State != domain.StateFailed {
		t.Errorf("Commit-wrapped error must persist the mutation, state %s", got.State)
	}
	if got.Metadata["failure_code"] != domain.CodeMfaExhausted {
		t.Errorf("Expected failure code to persist, got %s", got.Metadata["failure_code"])
	}
}

func TestMemorySessionRepository_ConcurrentUpdatesSerialize(t *testing.T) {
	repo := NewMemorySessionRepository()
	session, err := domain.NewLinkingSession("user-123")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	session.State = domain.StateMfaRequired
	session.Mfa = domain.NewMfaChallenge(domain.MfaTypeOneTimeCode, nil)
	session.Mfa.AttemptsRemaining = 100
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("Expected create to succeed, got %v", err)
	}

	// 50 goroutines each consume one attempt. Lost updates would leave
	// more than 50 attempts behind.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Update(context.Background(), session.Token, func(s *domain.LinkingSession) error {
				s.Mfa.RecordFailure()
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := repo.Get(context.Background(), session.Token)
	if got.Mfa.AttemptsRemaining != 50 {
		t.Errorf("Expected 50 attempts remaining, got %d", got.Mfa.AttemptsRemaining)
	}
}

func TestMemorySessionRepository_DeleteExpired(t *testing.T) {
	repo := NewMemorySessionRepository()

	live := newStoredSession(t, repo)

	expired, err := domain.NewLinkingSession("user-456")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := repo.Create(context.Background(), expired); err != nil {
		t.Fatalf("Expected create to succeed, got %v", err)
	}
	err = repo.Update(context.Background(), expired.Token, func(s *domain.LinkingSession) error {
		s.ExpiresAt = time.Now().Add(-time.Minute)
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	reaped, err := repo.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if reaped != 1 {
		t.Errorf("Expected 1 reaped session, got %d", reaped)
	}

	if _, err := repo.Get(context.Background(), expired.Token); !domain.HasCode(err, domain.CodeSessionNotFound) {
		t.Errorf("Expected expired session to be gone, got %v", err)
	}
	if _, err := repo.Get(context.Background(), live.Token); err != nil {
		t.Errorf("Live session must survive the sweep, got %v", err)
	}
}

func TestMemorySessionRepository_VerificationSecretsSurviveClone(t *testing.T) {
	repo := NewMemorySessionRepository()
	session, err := domain.NewLinkingSession("user-123")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	session.Verification = domain.NewVerificationChallenge(domain.VerificationMicroDeposit, 0)
	session.Verification.DepositsMinor = []int64{32, 45}
	session.Verification.ExpectedCode = "481516"
	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("Expected create to succeed, got %v", err)
	}

	got, err := repo.Get(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !got.Verification.MatchesDeposits([]int64{32, 45}) {
		t.Error("Deposit amounts must survive the store roundtrip")
	}
	if got.Verification.ExpectedCode != "481516" {
		t.Error("Expected code must survive the store roundtrip")
	}
}
