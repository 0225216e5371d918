package domain

import "time"

// VerificationMethod is the closed set of ownership verification methods.
type VerificationMethod string

const (
	VerificationMicroDeposit VerificationMethod = "micro_deposit"
	VerificationPhoneCode    VerificationMethod = "phone_code"
	VerificationDocument     VerificationMethod = "document"
)

func (m VerificationMethod) IsValid() bool {
	switch m {
	case VerificationMicroDeposit, VerificationPhoneCode, VerificationDocument:
		return true
	default:
		return false
	}
}

const (
	// VerificationMaxAttempts is the number of submissions allowed.
	VerificationMaxAttempts = 3
	// MicroDepositTTL accommodates asynchronous bank statement checking.
	MicroDepositTTL = 7 * 24 * time.Hour
	// DefaultVerificationTTL applies to phone and document methods unless
	// the caller specifies something shorter.
	DefaultVerificationTTL = time.Hour
)

// VerificationChallenge is the bounded-attempt ownership verification
// sub-flow state nested in a linking session. At most one per session.
//
// Micro-deposit amounts are integer minor currency units; floating point
// never enters the comparison.
type VerificationChallenge struct {
	Method            VerificationMethod `json:"method"`
	DepositsMinor     []int64            `json:"-"`
	ExpectedCode      string             `json:"-"`
	AttemptsRemaining int                `json:"attempts_remaining"`
	Completed         bool               `json:"completed"`
	CreatedAt         time.Time          `json:"created_at"`
	ExpiresAt         time.Time          `json:"expires_at"`
}

// NewVerificationChallenge creates a pending challenge. A non-positive ttl
// selects the method default: 7 days for micro-deposits, 1 hour otherwise.
func NewVerificationChallenge(method VerificationMethod, ttl time.Duration) *VerificationChallenge {
	if ttl <= 0 {
		if method == VerificationMicroDeposit {
			ttl = MicroDepositTTL
		} else {
			ttl = DefaultVerificationTTL
		}
	}
	now := time.Now()
	return &VerificationChallenge{
		Method:            method,
		AttemptsRemaining: VerificationMaxAttempts,
		CreatedAt:         now,
		ExpiresAt:         now.Add(ttl),
	}
}

// IsExpired reports whether the challenge can no longer be answered.
func (c *VerificationChallenge) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Exhausted reports whether no attempts remain.
func (c *VerificationChallenge) Exhausted() bool {
	return c.AttemptsRemaining <= 0
}

// RecordFailure consumes one attempt and returns the attempts left.
// Attempts never go below zero; completed challenges are immutable.
func (c *VerificationChallenge) RecordFailure() int {
	if c.Completed || c.AttemptsRemaining <= 0 {
		return c.AttemptsRemaining
	}
	c.AttemptsRemaining--
	return c.AttemptsRemaining
}

// Complete marks the challenge as passed.
func (c *VerificationChallenge) Complete() {
	if c.Completed {
		return
	}
	c.Completed = true
}

// MatchesDeposits compares observed amounts against the expected amounts
// in order, exact match in minor units.
func (c *VerificationChallenge) MatchesDeposits(observedMinor []int64) bool {
	if len(observedMinor) != len(c.DepositsMinor) || len(c.DepositsMinor) == 0 {
		return false
	}
	for i, expected := range c.DepositsMinor {
		if observedMinor[i] != expected {
			return false
		}
	}
	return true
}
