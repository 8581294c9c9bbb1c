package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/snigdhasv/email-delivery-service/internal/domain"
)

var (
	// ErrMalformedCredential means the presented key does not have the
	// recognized format prefix.
	ErrMalformedCredential = errors.New("malformed API key")

	// ErrUnauthenticated means no active credential matches the presented key.
	ErrUnauthenticated = errors.New("invalid or revoked API key")
)

// CredentialStore is the slice of the record store the authenticator needs.
type CredentialStore interface {
	GetActiveCredentialByHash(ctx context.Context, keyHash string) (*domain.Credential, *domain.Account, error)
	TouchCredential(ctx context.Context, id string) error
}

// Authenticator maps a presented API key to an account and credential.
type Authenticator struct {
	store  CredentialStore
	logger *slog.Logger
}

func NewAuthenticator(store CredentialStore, logger *slog.Logger) *Authenticator {
	return &Authenticator{store: store, logger: logger}
}

// Authenticate validates a raw bearer key. On success it also records a
// last-used timestamp in the background; that update is best-effort and can
// never fail the request.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (*domain.Account, *domain.Credential, error) {
	if !HasKeyPrefix(rawKey) {
		return nil, nil, ErrMalformedCredential
	}

	cred, account, err := a.store.GetActiveCredentialByHash(ctx, HashKey(rawKey))
	if err != nil {
		return nil, nil, err
	}
	if cred == nil {
		return nil, nil, ErrUnauthenticated
	}

	// Fire and forget: don't delay the response on this write.
	go func() {
		touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.TouchCredential(touchCtx, cred.ID); err != nil {
			a.logger.Warn("failed to update credential last_used_at",
				"error", err,
				"credential_id", cred.ID,
			)
		}
	}()

	return account, cred, nil
}
