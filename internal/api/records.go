package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/snigdhasv/email-delivery-service/internal/domain"
	"github.com/snigdhasv/email-delivery-service/internal/queue"
	"github.com/snigdhasv/email-delivery-service/internal/store"
)

// RecordHandler exposes delivery records for inspection and manual
// remediation on internal routes.
type RecordHandler struct {
	store       *store.PostgresStore
	queue       Enqueuer
	logger      *slog.Logger
	fromEmail   string
	fromName    string
	maxAttempts int
}

func NewRecordHandler(s *store.PostgresStore, e Enqueuer, fromEmail, fromName string, maxAttempts int, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{
		store:       s,
		queue:       e,
		logger:      logger,
		fromEmail:   fromEmail,
		fromName:    fromName,
		maxAttempts: maxAttempts,
	}
}

func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	status := r.URL.Query().Get("status")
	limitStr := r.URL.Query().Get("limit")

	limit := 50
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.store.ListDeliveryRecords(r.Context(), accountID, status, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list delivery records")
		return
	}

	respondJSON(w, http.StatusOK, records)
}

func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetDeliveryRecord(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get delivery record")
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "delivery record not found")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// Requeue rebuilds and re-enqueues the job for an orphaned queued record or
// a dead record being manually remediated. Sent records are immutable.
func (h *RecordHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetDeliveryRecord(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get delivery record")
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "delivery record not found")
		return
	}
	if rec.Status == domain.StatusSent {
		respondError(w, http.StatusConflict, "delivery record already sent")
		return
	}

	var params struct {
		Subject    string `json:"subject,omitempty"`
		Token      string `json:"token,omitempty"`
		Name       string `json:"name,omitempty"`
		CustomHTML string `json:"custom_html,omitempty"`
	}
	if len(rec.Params) > 0 {
		if err := json.Unmarshal(rec.Params, &params); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to decode record params")
			return
		}
	}

	rec, err = h.store.RequeueDeliveryRecord(r.Context(), id)
	if err != nil || rec == nil {
		respondError(w, http.StatusInternalServerError, "failed to requeue delivery record")
		return
	}

	job := queue.EmailJob{
		RecordID:    rec.ID,
		AccountID:   rec.AccountID,
		To:          rec.Recipient,
		Type:        rec.EmailType,
		Subject:     params.Subject,
		Token:       params.Token,
		Name:        params.Name,
		CustomHTML:  params.CustomHTML,
		FromEmail:   h.fromEmail,
		FromName:    h.fromName,
		Attempt:     1,
		MaxAttempts: h.maxAttempts,
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("failed to re-enqueue delivery job", "error", err, "record_id", rec.ID)
		respondError(w, http.StatusInternalServerError, "failed to enqueue delivery")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "requeued",
		"record_id": rec.ID,
	})
}
