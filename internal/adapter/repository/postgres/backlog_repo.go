package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/chainledger/internal/domain"
)

// BacklogRepository implements usecase.BacklogRepository over the
// audit_backlog table. Items land here when the best-effort companion
// audit event of a committed ledger write failed; the audit worker
// drains them.
type BacklogRepository struct {
	pool *pgxpool.Pool
}

// NewBacklogRepository creates a new BacklogRepository.
func NewBacklogRepository(pool *pgxpool.Pool) *BacklogRepository {
	return &BacklogRepository{pool: pool}
}

// Enqueue inserts a backlog item.
func (r *BacklogRepository) Enqueue(ctx context.Context, item *domain.BacklogItem) error {
	var details []byte
	if item.Details != nil {
		var err error
		details, err = json.Marshal(item.Details)
		if err != nil {
			return err
		}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_backlog (
			id, actor_id, action, resource, resource_id,
			details, severity, category, attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID,
		item.ActorID,
		item.Action,
		item.Resource,
		item.ResourceID,
		details,
		string(item.Severity),
		string(item.Category),
		item.Attempts,
		timeToPgTimestamptz(item.CreatedAt),
	)

	return err
}

// ListPending returns unprocessed items, oldest first.
func (r *BacklogRepository) ListPending(ctx context.Context, limit int) ([]*domain.BacklogItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_id, action, resource, resource_id,
		       details, severity, category, attempts, last_error, created_at, processed_at
		FROM audit_backlog
		WHERE processed_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBacklogItems(rows)
}

// MarkProcessed marks an item as re-emitted.
func (r *BacklogRepository) MarkProcessed(ctx context.Context, id string, processedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE audit_backlog SET processed_at = $2 WHERE id = $1`,
		id, timeToPgTimestamptz(processedAt))

	return err
}

// MarkFailed bumps the attempt counter and records the failure.
func (r *BacklogRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE audit_backlog SET attempts = attempts + 1, last_error = $2 WHERE id = $1`,
		id, lastError)

	return err
}

// CountPending returns the number of unprocessed items.
func (r *BacklogRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_backlog WHERE processed_at IS NULL`).Scan(&count)

	return count, err
}

// DeleteProcessed removes processed items older than the given time.
func (r *BacklogRepository) DeleteProcessed(ctx context.Context, before time.Time) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM audit_backlog WHERE processed_at IS NOT NULL AND processed_at < $1`,
		timeToPgTimestamptz(before))

	return err
}

func scanBacklogItems(rows pgx.Rows) ([]*domain.BacklogItem, error) {
	var items []*domain.BacklogItem

	for rows.Next() {
		var item domain.BacklogItem
		var details []byte
		var severity, category string
		var lastError *string

		err := rows.Scan(
			&item.ID,
			&item.ActorID,
			&item.Action,
			&item.Resource,
			&item.ResourceID,
			&details,
			&severity,
			&category,
			&item.Attempts,
			&lastError,
			&item.CreatedAt,
			&item.ProcessedAt,
		)
		if err != nil {
			return nil, err
		}

		if details != nil {
			_ = json.Unmarshal(details, &item.Details)
		}
		if lastError != nil {
			item.LastError = *lastError
		}
		item.Severity = domain.Severity(severity)
		item.Category = domain.AuditCategory(category)

		items = append(items, &item)
	}

	return items, rows.Err()
}
