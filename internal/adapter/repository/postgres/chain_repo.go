package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/chainledger/internal/domain"
	"github.com/iho/chainledger/internal/usecase"
)

// ChainRepository implements usecase.ChainStore and
// usecase.TransactionIndex over the chain_records and chain_tails
// tables. The tail row per chain is the serialization point: Append
// locks it FOR UPDATE and compares against the expected prev hash, so
// two writers can never both extend the same tail.
type ChainRepository struct {
	pool *pgxpool.Pool
}

// NewChainRepository creates a new ChainRepository.
func NewChainRepository(pool *pgxpool.Pool) *ChainRepository {
	return &ChainRepository{pool: pool}
}

// Append appends a record to a chain within the given transaction. The
// compare-and-swap against expectedPrevHash fails with
// domain.ErrChainConflict when another writer advanced the chain first.
func (r *ChainRepository) Append(ctx context.Context, tx usecase.Transaction, rec *domain.ChainRecord, expectedPrevHash string) (int64, error) {
	pgxTx := tx.(*Tx).PgxTx()

	var tailHash string
	var position int64

	err := pgxTx.QueryRow(ctx,
		`SELECT tail_hash, position FROM chain_tails WHERE chain_id = $1 FOR UPDATE`,
		rec.ChainID,
	).Scan(&tailHash, &position)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		tailHash, position = domain.GenesisHash, 0
	case err != nil:
		return 0, fmt.Errorf("lock chain tail: %w", err)
	}

	if tailHash != expectedPrevHash {
		return 0, domain.ErrChainConflict
	}

	newPosition := position + 1

	if position == 0 {
		// Two writers racing on an empty chain both miss the tail row;
		// the primary key turns the loser's insert into a conflict.
		_, err = pgxTx.Exec(ctx,
			`INSERT INTO chain_tails (chain_id, tail_hash, position) VALUES ($1, $2, $3)`,
			rec.ChainID, rec.Hash, newPosition)
	} else {
		_, err = pgxTx.Exec(ctx,
			`UPDATE chain_tails SET tail_hash = $2, position = $3 WHERE chain_id = $1`,
			rec.ChainID, rec.Hash, newPosition)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrChainConflict
		}
		return 0, fmt.Errorf("advance chain tail: %w", err)
	}

	_, err = pgxTx.Exec(ctx, `
		INSERT INTO chain_records (
			chain_id, position, hash, prev_hash,
			signature, algorithm, key_version, payload, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ChainID,
		newPosition,
		rec.Hash,
		rec.PrevHash,
		rec.Signature,
		rec.Algorithm,
		rec.KeyVersion,
		rec.Payload,
		timeToPgTimestamptz(rec.RecordedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrChainConflict
		}
		return 0, fmt.Errorf("insert chain record: %w", err)
	}

	return newPosition, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// GetTail returns the latest record of a chain, or nil for an empty chain.
func (r *ChainRepository) GetTail(ctx context.Context, chainID string) (*domain.ChainRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT chain_id, position, hash, prev_hash,
		       signature, algorithm, key_version, payload, recorded_at
		FROM chain_records
		WHERE chain_id = $1
		ORDER BY position DESC
		LIMIT 1`,
		chainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	return scanChainRecord(rows)
}

// Range returns records of a chain in position order, bounded by the query.
func (r *ChainRepository) Range(ctx context.Context, chainID string, q domain.ChainQuery) ([]*domain.ChainRecord, error) {
	query := `
		SELECT chain_id, position, hash, prev_hash,
		       signature, algorithm, key_version, payload, recorded_at
		FROM chain_records
		WHERE chain_id = $1`
	args := []any{chainID}

	if !q.From.IsZero() {
		args = append(args, q.From)
		query += fmt.Sprintf(" AND recorded_at >= $%d", len(args))
	}

	if !q.To.IsZero() {
		args = append(args, q.To)
		query += fmt.Sprintf(" AND recorded_at <= $%d", len(args))
	}

	query += " ORDER BY position ASC"

	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.ChainRecord
	for rows.Next() {
		rec, err := scanChainRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Count returns the number of records of a chain within the query window.
func (r *ChainRepository) Count(ctx context.Context, chainID string, q domain.ChainQuery) (int64, error) {
	query := `SELECT COUNT(*) FROM chain_records WHERE chain_id = $1`
	args := []any{chainID}

	if !q.From.IsZero() {
		args = append(args, q.From)
		query += fmt.Sprintf(" AND recorded_at >= $%d", len(args))
	}

	if !q.To.IsZero() {
		args = append(args, q.To)
		query += fmt.Sprintf(" AND recorded_at <= $%d", len(args))
	}

	var count int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// PendingTotal sums the absolute amounts of pending financial records
// for an account, straight off the canonical payloads.
func (r *ChainRepository) PendingTotal(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var total string
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(ABS((payload->>'amount')::numeric)), 0)
		FROM chain_records
		WHERE chain_id = $1
		  AND payload->>'account_id' = $2
		  AND payload->>'status' = $3`,
		domain.ChainFinancial, accountID, string(domain.StatusPending),
	).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromString(total)
}

// ListByAccount returns decoded financial records for an account, newest
// first.
func (r *ChainRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.TransactionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT chain_id, position, hash, prev_hash,
		       signature, algorithm, key_version, payload, recorded_at
		FROM chain_records
		WHERE chain_id = $1 AND payload->>'account_id' = $2
		ORDER BY position DESC
		LIMIT $3 OFFSET $4`,
		domain.ChainFinancial, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.TransactionRecord
	for rows.Next() {
		rec, err := scanChainRecord(rows)
		if err != nil {
			return nil, err
		}

		record, err := domain.TransactionFromPayload(rec)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func scanChainRecord(rows pgx.Rows) (*domain.ChainRecord, error) {
	var rec domain.ChainRecord
	err := rows.Scan(
		&rec.ChainID,
		&rec.Position,
		&rec.Hash,
		&rec.PrevHash,
		&rec.Signature,
		&rec.Algorithm,
		&rec.KeyVersion,
		&rec.Payload,
		&rec.RecordedAt,
	)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}
