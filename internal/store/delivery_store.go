package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/snigdhasv/email-delivery-service/internal/domain"
)

const deliveryColumns = `id, account_id, credential_id, idempotency_key, recipient, email_type,
	status, error_message, provider_message_id, attempt_count, params, created_at, sent_at`

func scanDeliveryRecord(row pgx.Row) (*domain.DeliveryRecord, error) {
	var rec domain.DeliveryRecord
	err := row.Scan(
		&rec.ID, &rec.AccountID, &rec.CredentialID, &rec.IdempotencyKey,
		&rec.Recipient, &rec.EmailType, &rec.Status, &rec.ErrorMessage,
		&rec.ProviderMessageID, &rec.AttemptCount, &rec.Params,
		&rec.CreatedAt, &rec.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateDeliveryParams holds data for inserting a delivery record.
type CreateDeliveryParams struct {
	ID             string
	AccountID      string
	CredentialID   string
	IdempotencyKey string
	Recipient      string
	EmailType      string
	Params         json.RawMessage
}

// CreateDeliveryRecord inserts a new delivery record with status "queued".
func (s *PostgresStore) CreateDeliveryRecord(ctx context.Context, p CreateDeliveryParams) (*domain.DeliveryRecord, error) {
	var idemKey *string
	if p.IdempotencyKey != "" {
		idemKey = &p.IdempotencyKey
	}

	rec, err := scanDeliveryRecord(s.pool.QueryRow(ctx, `
		INSERT INTO delivery_records (id, account_id, credential_id, idempotency_key, recipient, email_type, status, params)
		VALUES ($1, $2, $3, $4, $5, $6, 'queued', $7)
		RETURNING `+deliveryColumns,
		p.ID, p.AccountID, p.CredentialID, idemKey, p.Recipient, p.EmailType, p.Params,
	))
	if err != nil {
		return nil, fmt.Errorf("inserting delivery record: %w", err)
	}
	return rec, nil
}

// FindDeliveryByIdempotencyKey returns the most recent delivery record for
// (account, key) created within the window, or nil if none exists. The window
// slides relative to now, not to the original creation time.
func (s *PostgresStore) FindDeliveryByIdempotencyKey(ctx context.Context, accountID, key string, window time.Duration) (*domain.DeliveryRecord, error) {
	cutoff := time.Now().Add(-window)

	rec, err := scanDeliveryRecord(s.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+` FROM delivery_records
		WHERE account_id = $1 AND idempotency_key = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1
	`, accountID, key, cutoff))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying delivery record by idempotency key: %w", err)
	}
	return rec, nil
}

// GetDeliveryRecord returns a single delivery record by ID.
func (s *PostgresStore) GetDeliveryRecord(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	rec, err := scanDeliveryRecord(s.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+` FROM delivery_records WHERE id = $1
	`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying delivery record: %w", err)
	}
	return rec, nil
}

// ListDeliveryRecords returns delivery records with optional filtering.
func (s *PostgresStore) ListDeliveryRecords(ctx context.Context, accountID, status string, limit int) ([]domain.DeliveryRecord, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_records`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if accountID != "" {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", argIdx))
		args = append(args, accountID)
		argIdx++
	}
	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, status)
		argIdx++
	}

	if len(conditions) > 0 {
		query += " WHERE "
		for i, c := range conditions {
			if i > 0 {
				query += " AND "
			}
			query += c
		}
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery records: %w", err)
	}
	defer rows.Close()

	var records []domain.DeliveryRecord
	for rows.Next() {
		rec, err := scanDeliveryRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery record: %w", err)
		}
		records = append(records, *rec)
	}

	if records == nil {
		records = []domain.DeliveryRecord{}
	}

	return records, nil
}

// MarkDeliverySent moves a queued record to the terminal "sent" status.
// Records already in a terminal status are never updated.
func (s *PostgresStore) MarkDeliverySent(ctx context.Context, id, providerMessageID string, attempt int) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE delivery_records
		SET status = 'sent', provider_message_id = $2, attempt_count = $3, sent_at = NOW()
		WHERE id = $1 AND status = 'queued'
	`, id, providerMessageID, attempt)
	if err != nil {
		return fmt.Errorf("marking delivery sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("delivery record %s not found or not queued", id)
	}
	return nil
}

// RecordDeliveryFailure stores the error detail and attempt count for a
// failed attempt that still has retries left. The status stays "queued".
func (s *PostgresStore) RecordDeliveryFailure(ctx context.Context, id, errMsg string, attempt int) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE delivery_records
		SET error_message = $2, attempt_count = $3
		WHERE id = $1 AND status = 'queued'
	`, id, errMsg, attempt)
	if err != nil {
		return fmt.Errorf("recording delivery failure: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("delivery record %s not found or not queued", id)
	}
	return nil
}

// MarkDeliveryDead moves a queued record to the terminal "dead" status after
// its attempts are exhausted.
func (s *PostgresStore) MarkDeliveryDead(ctx context.Context, id, errMsg string, attempt int) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE delivery_records
		SET status = 'dead', error_message = $2, attempt_count = $3
		WHERE id = $1 AND status = 'queued'
	`, id, errMsg, attempt)
	if err != nil {
		return fmt.Errorf("marking delivery dead: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("delivery record %s not found or not queued", id)
	}
	return nil
}

// RequeueDeliveryRecord resets a queued or dead record so it can be
// re-enqueued: orphaned queued records after an enqueue failure, or dead
// records being manually remediated. Sent records are never touched.
func (s *PostgresStore) RequeueDeliveryRecord(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	rec, err := scanDeliveryRecord(s.pool.QueryRow(ctx, `
		UPDATE delivery_records
		SET status = 'queued', error_message = NULL
		WHERE id = $1 AND status IN ('queued', 'dead')
		RETURNING `+deliveryColumns,
		id,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("requeueing delivery record: %w", err)
	}
	return rec, nil
}
