package repository

import (
	"context"
	"fmt"

	"github.com/Iurilui616/APICHARLENO/internal/model"
)

// BulkInsertAuthEvents inserts a batch of auth events in a single transaction.
// Used by the audit worker; individual row failures abort the whole batch.
func (r *Repository) BulkInsertAuthEvents(ctx context.Context, events []*model.AuthEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO auth_events (id, event, username, key_prefix, ip_hash, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	for _, ev := range events {
		if _, err := tx.Exec(ctx, query,
			ev.ID,
			ev.Event,
			ev.Username,
			ev.KeyPrefix,
			ev.IPHash,
			ev.OccurredAt,
		); err != nil {
			return fmt.Errorf("insert auth event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit auth events: %w", err)
	}

	return nil
}

// CountAuthEvents returns the total number of recorded auth events.
// Surfaces as the auth_events figure in GET /api/stats.
func (r *Repository) CountAuthEvents(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM auth_events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count auth events: %w", err)
	}
	return count, nil
}
