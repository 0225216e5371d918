package domain

import "time"

// ConnectionStatus is the lifecycle status of a persisted connection.
// Lifecycle beyond creation is owned by account management, not by the
// linking engine.
type ConnectionStatus string

const (
	ConnectionActive  ConnectionStatus = "active"
	ConnectionRevoked ConnectionStatus = "revoked"
)

// LinkedConnection is the durable record of an established link to one
// external institution. It references the originating session token for
// audit traceability but outlives the session.
//
// EncryptedCredential is the provider credential after encryption at
// rest; the plaintext never reaches storage or serialization.
type LinkedConnection struct {
	ID                  string           `json:"id" db:"id"`
	UserID              string           `json:"user_id" db:"user_id"`
	InstitutionID       string           `json:"institution_id" db:"institution_id"`
	InstitutionName     string           `json:"institution_name" db:"institution_name"`
	EncryptedCredential string           `json:"-" db:"encrypted_credential"`
	Status              ConnectionStatus `json:"status" db:"status"`
	SessionToken        string           `json:"session_token" db:"session_token"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
}

// LinkedAccount is one durable account row under a connection.
type LinkedAccount struct {
	ID           string    `json:"id" db:"id"`
	ConnectionID string    `json:"connection_id" db:"connection_id"`
	UserID       string    `json:"user_id" db:"user_id"`
	ExternalID   string    `json:"external_id" db:"external_id"`
	Name         string    `json:"name" db:"name"`
	Mask         string    `json:"mask" db:"mask"`
	Type         string    `json:"type" db:"type"`
	Subtype      string    `json:"subtype" db:"subtype"`
	BalanceMinor int64     `json:"balance_minor" db:"balance_minor"`
	Currency     string    `json:"currency" db:"currency"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ConnectionResult is what Finalize returns to the caller.
type ConnectionResult struct {
	ConnectionID string   `json:"connection_id"`
	AccountIDs   []string `json:"account_ids"`
}

// Validate checks structural invariants of the connection record.
func (c *LinkedConnection) Validate() error {
	if c.UserID == "" {
		return NewValidationError("user_id", "User ID is required", nil)
	}
	if c.InstitutionID == "" {
		return NewValidationError("institution_id", "Institution ID is required", nil)
	}
	if c.EncryptedCredential == "" {
		return NewValidationError("credential", "Encrypted credential is required", nil)
	}
	return nil
}
