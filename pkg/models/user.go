package models

import "time"

// User is a platform account. Accounts are provisioned on first
// authenticated request; the identity provider owns passwords and sessions.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	CreditsBalance int       `json:"credits_balance"`
	IsActive       bool      `json:"is_active"`
	IsAdmin        bool      `json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreditTransaction is one row of the append-only credit ledger. Amount is
// positive for top-ups and negative for usage; BalanceAfter snapshots the
// user's balance for auditing.
type CreditTransaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Amount       int       `json:"amount"`
	ReferenceID  string    `json:"reference_id,omitempty"`
	Description  string    `json:"description"`
	BalanceAfter int       `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserCredential references a secret held by the execution engine. Only the
// engine-side id is stored, never the secret itself.
type UserCredential struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	Name               string    `json:"name"`
	CredentialType     string    `json:"credential_type"`
	EngineCredentialID string    `json:"engine_credential_id"`
	CreatedAt          time.Time `json:"created_at"`
}
