package domain

import (
	"encoding/json"
	"time"
)

// Delivery record statuses. A failed attempt that still has retries left
// keeps the record in "queued"; "sent" and "dead" are terminal.
const (
	StatusQueued = "queued"
	StatusSent   = "sent"
	StatusDead   = "dead"
)

// Email types accepted by POST /v1/send.
const (
	TypeOTP           = "otp"
	TypeMagicLink     = "magic_link"
	TypePasswordReset = "password_reset"
	TypeWelcome       = "welcome"
	TypeCustom        = "custom"
)

// ValidEmailType reports whether t is one of the recognized email types.
func ValidEmailType(t string) bool {
	switch t {
	case TypeOTP, TypeMagicLink, TypePasswordReset, TypeWelcome, TypeCustom:
		return true
	}
	return false
}

// DeliveryRecord is the durable state of one requested message, created at
// admission time and mutated only by the worker afterwards. Params holds the
// template parameters so an orphaned record can be re-enqueued.
type DeliveryRecord struct {
	ID                string          `json:"id"`
	AccountID         string          `json:"account_id"`
	CredentialID      string          `json:"credential_id"`
	IdempotencyKey    *string         `json:"idempotency_key,omitempty"`
	Recipient         string          `json:"recipient"`
	EmailType         string          `json:"email_type"`
	Status            string          `json:"status"`
	ErrorMessage      *string         `json:"error_message,omitempty"`
	ProviderMessageID *string         `json:"provider_message_id,omitempty"`
	AttemptCount      int             `json:"attempt_count"`
	Params            json.RawMessage `json:"params,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	SentAt            *time.Time      `json:"sent_at,omitempty"`
}
