package domain

import "time"

// Credential is one API key bound to an account. Only the SHA-256 hash of the
// raw key is ever stored; KeyPrefix is a short non-secret fragment for display.
// At most one credential per account is active at a time; issuing a new one
// deactivates all prior ones.
type Credential struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"account_id"`
	KeyPrefix  string     `json:"key_prefix"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
