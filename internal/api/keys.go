package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/snigdhasv/email-delivery-service/internal/auth"
	"github.com/snigdhasv/email-delivery-service/internal/domain"
)

// KeyStore is the slice of the record store credential issuance needs.
type KeyStore interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	IssueCredential(ctx context.Context, id, accountID, keyHash, keyPrefix string) (*domain.Credential, error)
}

// KeyHandler issues API credentials. It sits behind sessionAuth: callers
// authenticate with a dashboard session token, never with an API key.
type KeyHandler struct {
	store  KeyStore
	logger *slog.Logger
}

func NewKeyHandler(s KeyStore, logger *slog.Logger) *KeyHandler {
	return &KeyHandler{store: s, logger: logger}
}

type generateKeyResponse struct {
	Key     string `json:"key"`
	Prefix  string `json:"prefix"`
	Warning string `json:"warning"`
}

// Generate revokes all active credentials for the session's account and
// issues one new key. The raw key is returned exactly once; only its hash
// and display prefix are stored.
func (h *KeyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	accountID := sessionAccountID(r.Context())

	account, err := h.store.GetAccount(r.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to load account for key issuance", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to generate key")
		return
	}
	if account == nil {
		respondError(w, http.StatusUnauthorized, "invalid session")
		return
	}

	rawKey, err := auth.GenerateKey()
	if err != nil {
		h.logger.Error("failed to generate key", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to generate key")
		return
	}

	cred, err := h.store.IssueCredential(r.Context(), uuid.NewString(), account.ID, auth.HashKey(rawKey), auth.KeyPrefix(rawKey))
	if err != nil {
		h.logger.Error("failed to issue credential", "error", err, "account_id", account.ID)
		respondError(w, http.StatusInternalServerError, "failed to generate key")
		return
	}

	respondJSON(w, http.StatusCreated, generateKeyResponse{
		Key:     rawKey,
		Prefix:  cred.KeyPrefix,
		Warning: "Copy this key now. It will NOT be shown again.",
	})
}
