package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/snigdhasv/email-delivery-service/internal/domain"
)

// GetAccount returns an account by ID, or nil if it does not exist.
func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var acc domain.Account
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, plan_tier, created_at
		FROM accounts WHERE id = $1
	`, id).Scan(&acc.ID, &acc.Email, &acc.PlanTier, &acc.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return &acc, nil
}

// MonthlyUsage counts delivery records created by this account in the
// current calendar month. Every admitted request counts, whatever its
// eventual delivery outcome.
func (s *PostgresStore) MonthlyUsage(ctx context.Context, accountID string) (int, error) {
	var used int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM delivery_records
		WHERE account_id = $1 AND created_at >= date_trunc('month', NOW())
	`, accountID).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("counting monthly usage: %w", err)
	}
	return used, nil
}
