package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snigdhasv/email-delivery-service/internal/auth"
	"github.com/snigdhasv/email-delivery-service/internal/domain"
	"github.com/snigdhasv/email-delivery-service/internal/queue"
	"github.com/snigdhasv/email-delivery-service/internal/quota"
	"github.com/snigdhasv/email-delivery-service/internal/store"
)

// idempotencyWindow is how far back a caller-supplied Idempotency-Key
// deduplicates, sliding relative to now.
const idempotencyWindow = 24 * time.Hour

// Authenticator resolves a raw API key to an account and credential.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*domain.Account, *domain.Credential, error)
}

// QuotaGate reports usage against the account's monthly ceiling.
type QuotaGate interface {
	Check(ctx context.Context, account *domain.Account) (used, limit int, err error)
}

// SendStore is the slice of the record store admission needs.
type SendStore interface {
	FindDeliveryByIdempotencyKey(ctx context.Context, accountID, key string, window time.Duration) (*domain.DeliveryRecord, error)
	CreateDeliveryRecord(ctx context.Context, p store.CreateDeliveryParams) (*domain.DeliveryRecord, error)
}

// Enqueuer pushes a job onto the delivery queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.EmailJob) error
}

// SendHandler is the admission controller for POST /v1/send. It validates,
// authenticates, enforces quota, deduplicates, creates the delivery record
// and enqueues the job, in that order, returning as soon as the job is
// durably queued.
type SendHandler struct {
	auth        Authenticator
	quota       QuotaGate
	store       SendStore
	queue       Enqueuer
	logger      *slog.Logger
	fromEmail   string
	fromName    string
	maxAttempts int
}

func NewSendHandler(a Authenticator, q QuotaGate, s SendStore, e Enqueuer, fromEmail, fromName string, maxAttempts int, logger *slog.Logger) *SendHandler {
	return &SendHandler{
		auth:        a,
		quota:       q,
		store:       s,
		queue:       e,
		logger:      logger,
		fromEmail:   fromEmail,
		fromName:    fromName,
		maxAttempts: maxAttempts,
	}
}

type sendRequest struct {
	To         string `json:"to"`
	Type       string `json:"type"`
	Subject    string `json:"subject,omitempty"`
	Token      string `json:"token,omitempty"`
	Name       string `json:"name,omitempty"`
	CustomHTML string `json:"custom_html,omitempty"`
}

// jobParams is the subset of the request persisted on the delivery record so
// an orphaned record can be rebuilt into a job.
type jobParams struct {
	Subject    string `json:"subject,omitempty"`
	Token      string `json:"token,omitempty"`
	Name       string `json:"name,omitempty"`
	CustomHTML string `json:"custom_html,omitempty"`
}

type quotaSnapshot struct {
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
	Plan  string `json:"plan"`
}

type sendResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	RecordID string        `json:"record_id"`
	Quota    quotaSnapshot `json:"quota"`
}

type duplicateResponse struct {
	Message    string `json:"message"`
	RecordID   string `json:"record_id"`
	Status     string `json:"status"`
	Idempotent bool   `json:"idempotent"`
}

func (h *SendHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = domain.TypeCustom
	}

	// Validation: fail fast, first violation wins.
	if req.To == "" || !strings.Contains(req.To, "@") {
		respondError(w, http.StatusBadRequest, "`to` must be a valid email address.")
		return
	}
	if !domain.ValidEmailType(req.Type) {
		respondError(w, http.StatusBadRequest, "Invalid `type`. Must be otp | magic_link | password_reset | welcome | custom.")
		return
	}
	if req.Type == domain.TypeCustom && (req.Subject == "" || req.CustomHTML == "") {
		respondError(w, http.StatusBadRequest, "For type=custom, `subject` and `custom_html` are required.")
		return
	}
	switch req.Type {
	case domain.TypeOTP, domain.TypeMagicLink, domain.TypePasswordReset:
		if req.Token == "" {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("`token` is required for type=%s.", req.Type))
			return
		}
	}

	rawKey, ok := bearerToken(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Missing or invalid Authorization header. Use: Bearer sk_live_...")
		return
	}

	account, cred, err := h.auth.Authenticate(r.Context(), rawKey)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMalformedCredential):
			respondError(w, http.StatusUnauthorized, "Invalid API key format.")
		case errors.Is(err, auth.ErrUnauthenticated):
			respondError(w, http.StatusUnauthorized, "Invalid or revoked API key.")
		default:
			h.logger.Error("authentication failed", "error", err)
			respondError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	// Quota runs before any record is created, so over-quota requests leave
	// zero side effects.
	used, limit, err := h.quota.Check(r.Context(), account)
	if err != nil {
		var exceeded *quota.ExceededError
		if errors.As(err, &exceeded) {
			respondJSON(w, http.StatusPaymentRequired, map[string]interface{}{
				"error": "Monthly quota exceeded.",
				"used":  exceeded.Used,
				"limit": exceeded.Limit,
				"plan":  exceeded.Tier,
			})
			return
		}
		h.logger.Error("quota check failed", "error", err, "account_id", account.ID)
		respondError(w, http.StatusInternalServerError, "could not verify quota")
		return
	}

	// Idempotency dedup. Best-effort: two concurrent requests with the same
	// key can both miss this lookup and both create records; the window
	// absorbs client retries, it is not a linearizable guarantee.
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		existing, err := h.store.FindDeliveryByIdempotencyKey(r.Context(), account.ID, idemKey, idempotencyWindow)
		if err != nil {
			h.logger.Error("idempotency lookup failed", "error", err, "account_id", account.ID)
		} else if existing != nil {
			respondJSON(w, http.StatusOK, duplicateResponse{
				Message:    "Duplicate request — email already queued.",
				RecordID:   existing.ID,
				Status:     existing.Status,
				Idempotent: true,
			})
			return
		}
	}

	params, err := json.Marshal(jobParams{
		Subject:    req.Subject,
		Token:      req.Token,
		Name:       req.Name,
		CustomHTML: req.CustomHTML,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// The record must exist durably before the job is enqueued: a crash in
	// between leaves an orphaned queued record, which reconciliation can
	// re-enqueue. The reverse order could leave a job with no record to update.
	rec, err := h.store.CreateDeliveryRecord(r.Context(), store.CreateDeliveryParams{
		ID:             uuid.NewString(),
		AccountID:      account.ID,
		CredentialID:   cred.ID,
		IdempotencyKey: idemKey,
		Recipient:      req.To,
		EmailType:      req.Type,
		Params:         params,
	})
	if err != nil {
		h.logger.Error("failed to create delivery record", "error", err, "account_id", account.ID)
		respondError(w, http.StatusInternalServerError, "failed to create delivery record")
		return
	}

	job := queue.EmailJob{
		RecordID:    rec.ID,
		AccountID:   account.ID,
		To:          req.To,
		Type:        req.Type,
		Subject:     req.Subject,
		Token:       req.Token,
		Name:        req.Name,
		CustomHTML:  req.CustomHTML,
		FromEmail:   h.fromEmail,
		FromName:    h.fromName,
		Attempt:     1,
		MaxAttempts: h.maxAttempts,
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		// The record stays queued and orphaned for reconciliation rather
		// than being silently deleted.
		h.logger.Error("failed to enqueue delivery job",
			"error", err,
			"record_id", rec.ID,
		)
		respondError(w, http.StatusInternalServerError, "failed to enqueue delivery")
		return
	}

	respondJSON(w, http.StatusOK, sendResponse{
		Success:  true,
		Message:  "Email queued for delivery.",
		RecordID: rec.ID,
		Quota: quotaSnapshot{
			Used:  used + 1,
			Limit: limit,
			Plan:  account.PlanTier,
		},
	})
}
