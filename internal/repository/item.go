package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Iurilui616/APICHARLENO/internal/model"
)

// Common errors for item repository operations.
var (
	ErrItemNotFound = errors.New("item not found")
)

// CreateItem inserts a new item and populates its sequence number.
func (r *Repository) CreateItem(ctx context.Context, item *model.Item) error {
	payload, err := json.Marshal(item.Payload)
	if err != nil {
		return fmt.Errorf("marshal item payload: %w", err)
	}

	query := `
		INSERT INTO items (id, name, payload, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`

	err = r.pool.QueryRow(ctx, query,
		item.ID,
		item.Name,
		payload,
		item.CreatedBy,
		item.CreatedAt,
	).Scan(&item.Seq)

	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	return nil
}

// ListItems retrieves items in insertion order, up to limit.
func (r *Repository) ListItems(ctx context.Context, limit int) ([]*model.Item, error) {
	query := `
		SELECT id, seq, name, payload, created_by, created_at
		FROM items
		ORDER BY seq ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

// GetItemByID retrieves a single item by its ID.
func (r *Repository) GetItemByID(ctx context.Context, id string) (*model.Item, error) {
	query := `
		SELECT id, seq, name, payload, created_by, created_at
		FROM items
		WHERE id = $1
	`

	item, err := scanItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

// CountItems returns the total number of stored items.
func (r *Repository) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// scanItem scans a row into an Item model.
func scanItem(row pgx.Row) (*model.Item, error) {
	var item model.Item
	var payload []byte

	err := row.Scan(
		&item.ID,
		&item.Seq,
		&item.Name,
		&payload,
		&item.CreatedBy,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &item.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal item payload: %w", err)
		}
	}

	return &item, nil
}
