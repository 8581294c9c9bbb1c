package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/snigdhasv/email-delivery-service/internal/domain"
)

// GetActiveCredentialByHash looks up an active credential by key hash,
// returning it together with its owning account. Both are nil when no active
// credential matches.
func (s *PostgresStore) GetActiveCredentialByHash(ctx context.Context, keyHash string) (*domain.Credential, *domain.Account, error) {
	var cred domain.Credential
	var acc domain.Account
	err := s.pool.QueryRow(ctx, `
		SELECT c.id, c.account_id, c.key_prefix, c.is_active, c.last_used_at, c.created_at,
		       a.id, a.email, a.plan_tier, a.created_at
		FROM api_credentials c
		JOIN accounts a ON a.id = c.account_id
		WHERE c.key_hash = $1 AND c.is_active
	`, keyHash).Scan(
		&cred.ID, &cred.AccountID, &cred.KeyPrefix, &cred.IsActive, &cred.LastUsedAt, &cred.CreatedAt,
		&acc.ID, &acc.Email, &acc.PlanTier, &acc.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("querying credential: %w", err)
	}
	return &cred, &acc, nil
}

// IssueCredential deactivates all active credentials for the account and
// inserts a new one in the same transaction, so at most one credential per
// account is ever active.
func (s *PostgresStore) IssueCredential(ctx context.Context, id, accountID, keyHash, keyPrefix string) (*domain.Credential, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE api_credentials SET is_active = FALSE
		WHERE account_id = $1 AND is_active
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("revoking prior credentials: %w", err)
	}

	var cred domain.Credential
	err = tx.QueryRow(ctx, `
		INSERT INTO api_credentials (id, account_id, key_hash, key_prefix, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, account_id, key_prefix, is_active, last_used_at, created_at
	`, id, accountID, keyHash, keyPrefix).Scan(
		&cred.ID, &cred.AccountID, &cred.KeyPrefix, &cred.IsActive, &cred.LastUsedAt, &cred.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting credential: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return &cred, nil
}

// TouchCredential records when a credential was last used for authentication.
func (s *PostgresStore) TouchCredential(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE api_credentials SET last_used_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("updating credential last_used_at: %w", err)
	}
	return nil
}
