package domain

import "time"

// MfaChallengeType is the closed set of supported MFA challenge kinds.
type MfaChallengeType string

const (
	MfaTypeOneTimeCode   MfaChallengeType = "one_time_code"
	MfaTypeQuestions     MfaChallengeType = "questions"
	MfaTypeAuthenticator MfaChallengeType = "authenticator"
)

func (t MfaChallengeType) IsValid() bool {
	switch t {
	case MfaTypeOneTimeCode, MfaTypeQuestions, MfaTypeAuthenticator:
		return true
	default:
		return false
	}
}

const (
	// MfaMaxAttempts is the number of submissions allowed per challenge.
	MfaMaxAttempts = 3
	// MfaChallengeTTL is how long a challenge stays answerable.
	MfaChallengeTTL = 15 * time.Minute
)

// MfaChallenge is the bounded-attempt MFA sub-flow state nested in a
// linking session. At most one exists per session.
type MfaChallenge struct {
	Type              MfaChallengeType `json:"type"`
	Prompts           []string         `json:"prompts"`
	AttemptsRemaining int              `json:"attempts_remaining"`
	Completed         bool             `json:"completed"`
	CreatedAt         time.Time        `json:"created_at"`
	ExpiresAt         time.Time        `json:"expires_at"`
}

// NewMfaChallenge creates a pending challenge with full attempts and the
// default 15 minute expiry.
func NewMfaChallenge(challengeType MfaChallengeType, prompts []string) *MfaChallenge {
	now := time.Now()
	return &MfaChallenge{
		Type:              challengeType,
		Prompts:           prompts,
		AttemptsRemaining: MfaMaxAttempts,
		CreatedAt:         now,
		ExpiresAt:         now.Add(MfaChallengeTTL),
	}
}

// IsExpired reports whether the challenge can no longer be answered.
func (c *MfaChallenge) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Exhausted reports whether no attempts remain.
func (c *MfaChallenge) Exhausted() bool {
	return c.AttemptsRemaining <= 0
}

// RecordFailure consumes one attempt and returns the attempts left.
// Attempts never go below zero; completed challenges are immutable.
func (c *MfaChallenge) RecordFailure() int {
	if c.Completed || c.AttemptsRemaining <= 0 {
		return c.AttemptsRemaining
	}
	c.AttemptsRemaining--
	return c.AttemptsRemaining
}

// Complete marks the challenge as passed. Completed challenges are
// immutable from then on.
func (c *MfaChallenge) Complete() {
	if c.Completed {
		return
	}
	c.Completed = true
}
