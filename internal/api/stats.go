package api

import (
	"context"
	"net/http"

	"github.com/snigdhasv/email-delivery-service/internal/store"
)

// QueueDepther reports the number of pending jobs in the queue.
type QueueDepther interface {
	Depth(ctx context.Context) (int64, error)
}

// StatsHandler returns aggregated delivery statistics.
type StatsHandler struct {
	store *store.PostgresStore
	queue QueueDepther
}

func NewStatsHandler(s *store.PostgresStore, q QueueDepther) *StatsHandler {
	return &StatsHandler{store: s, queue: q}
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.store.GetDeliveryMetrics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	queueDepth, err := h.queue.Depth(r.Context())
	if err != nil {
		queueDepth = 0
	}

	type statsResponse struct {
		store.DeliveryMetrics
		QueueDepth int64 `json:"queue_depth"`
	}

	respondJSON(w, http.StatusOK, statsResponse{
		DeliveryMetrics: *metrics,
		QueueDepth:      queueDepth,
	})
}
