package store

import (
	"context"
	"fmt"
)

// DeliveryMetrics holds aggregated delivery statistics.
type DeliveryMetrics struct {
	TotalRecords  int `json:"total_records"`
	QueuedCount   int `json:"queued_count"`
	SentCount     int `json:"sent_count"`
	DeadCount     int `json:"dead_count"`
	SentThisMonth int `json:"sent_this_month"`
}

// GetDeliveryMetrics returns aggregated delivery statistics from the database.
func (s *PostgresStore) GetDeliveryMetrics(ctx context.Context) (*DeliveryMetrics, error) {
	var m DeliveryMetrics

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'queued') AS queued,
			COUNT(*) FILTER (WHERE status = 'sent') AS sent,
			COUNT(*) FILTER (WHERE status = 'dead') AS dead,
			COUNT(*) FILTER (WHERE status = 'sent' AND created_at >= date_trunc('month', NOW())) AS sent_this_month
		FROM delivery_records
	`).Scan(&m.TotalRecords, &m.QueuedCount, &m.SentCount, &m.DeadCount, &m.SentThisMonth)
	if err != nil {
		return nil, fmt.Errorf("querying delivery metrics: %w", err)
	}

	return &m, nil
}
