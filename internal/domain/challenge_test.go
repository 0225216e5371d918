package domain_test

import (
	"testing"
	"time"

	"finlink/internal/domain"
)

func TestMfaChallenge_Attempts(t *testing.T) {
	challenge := domain.NewMfaChallenge(domain.MfaTypeQuestions, []string{"Mother's maiden name?"})

	if challenge.AttemptsRemaining != domain.MfaMaxAttempts {
		t.Errorf("Expected %d attempts, got %d", domain.MfaMaxAttempts, challenge.AttemptsRemaining)
	}
	if challenge.Exhausted() {
		t.Error("Fresh challenge must not be exhausted")
	}

	for i := domain.MfaMaxAttempts - 1; i >= 0; i-- {
		remaining := challenge.RecordFailure()
		if remaining != i {
			t.Errorf("Expected %d attempts remaining, got %d", i, remaining)
		}
	}

	if !challenge.Exhausted() {
		t.Error("Challenge must be exhausted after all attempts consumed")
	}

	// Attempts never go below zero.
	if remaining := challenge.RecordFailure(); remaining != 0 {
		t.Errorf("Expected attempts to stay at 0, got %d", remaining)
	}
}

func TestMfaChallenge_CompletedIsImmutable(t *testing.T) {
	challenge := domain.NewMfaChallenge(domain.MfaTypeOneTimeCode, nil)
	challenge.RecordFailure()
	challenge.Complete()

	before := challenge.AttemptsRemaining
	if remaining := challenge.RecordFailure(); remaining != before {
		t.Errorf("Completed challenge must not lose attempts, got %d", remaining)
	}
	if !challenge.Completed {
		t.Error("Challenge must stay completed")
	}
}

func TestMfaChallenge_Expiry(t *testing.T) {
	challenge := domain.NewMfaChallenge(domain.MfaTypeOneTimeCode, nil)

	if challenge.IsExpired() {
		t.Error("Fresh challenge must not be expired")
	}

	ttl := challenge.ExpiresAt.Sub(challenge.CreatedAt)
	if ttl != domain.MfaChallengeTTL {
		t.Errorf("Expected TTL %v, got %v", domain.MfaChallengeTTL, ttl)
	}

	challenge.ExpiresAt = time.Now().Add(-time.Second)
	if !challenge.IsExpired() {
		t.Error("Challenge past its expiry must report expired")
	}
}

func TestNewVerificationChallenge_TTLDefaults(t *testing.T) {
	micro := domain.NewVerificationChallenge(domain.VerificationMicroDeposit, 0)
	if ttl := micro.ExpiresAt.Sub(micro.CreatedAt); ttl != domain.MicroDepositTTL {
		t.Errorf("Expected micro-deposit TTL %v, got %v", domain.MicroDepositTTL, ttl)
	}

	phone := domain.NewVerificationChallenge(domain.VerificationPhoneCode, 0)
	if ttl := phone.ExpiresAt.Sub(phone.CreatedAt); ttl != domain.DefaultVerificationTTL {
		t.Errorf("Expected phone TTL %v, got %v", domain.DefaultVerificationTTL, ttl)
	}

	custom := domain.NewVerificationChallenge(domain.VerificationDocument, 30*time.Minute)
	if ttl := custom.ExpiresAt.Sub(custom.CreatedAt); ttl != 30*time.Minute {
		t.Errorf("Expected custom TTL 30m, got %v", ttl)
	}
}

func TestVerificationChallenge_MatchesDeposits(t *testing.T) {
	challenge := domain.NewVerificationChallenge(domain.VerificationMicroDeposit, 0)
	challenge.DepositsMinor = []int64{32, 45}

	tests := []struct {
		name     string
		observed []int64
		match    bool
	}{
		{"exact match", []int64{32, 45}, true},
		{"wrong order", []int64{45, 32}, false},
		{"one off by a cent", []int64{32, 46}, false},
		{"too few", []int64{32}, false},
		{"too many", []int64{32, 45, 10}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := challenge.MatchesDeposits(tt.observed); got != tt.match {
				t.Errorf("MatchesDeposits(%v) = %v, want %v", tt.observed, got, tt.match)
			}
		})
	}
}

func TestVerificationChallenge_MatchesDeposits_NoExpected(t *testing.T) {
	challenge := domain.NewVerificationChallenge(domain.VerificationMicroDeposit, 0)
	if challenge.MatchesDeposits(nil) {
		t.Error("Challenge without expected deposits must never match")
	}
}

func TestVerificationChallenge_Attempts(t *testing.T) {
	challenge := domain.NewVerificationChallenge(domain.VerificationPhoneCode, 0)
	challenge.ExpectedCode = "481516"

	for i := domain.VerificationMaxAttempts - 1; i >= 0; i-- {
		remaining := challenge.RecordFailure()
		if remaining != i {
			t.Errorf("Expected %d attempts remaining, got %d", i, remaining)
		}
	}
	if !challenge.Exhausted() {
		t.Error("Challenge must be exhausted after all attempts consumed")
	}
	if remaining := challenge.RecordFailure(); remaining != 0 {
		t.Errorf("Expected attempts to stay at 0, got %d", remaining)
	}
}
