package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/chainledger/internal/domain"
	"github.com/iho/chainledger/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	pool *pgxpool.Pool
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{pool: pool}
}

const entryColumns = `id, account_id, transaction_id, amount, entry_type,
	resulting_balance, description, reference, created_at, metadata`

// Create inserts a ledger entry within the given transaction.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	pgxTx := tx.(*Tx).PgxTx()

	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
	}

	_, err := pgxTx.Exec(ctx, `
		INSERT INTO ledger_entries (
			id, account_id, transaction_id, amount, entry_type,
			resulting_balance, description, reference, created_at, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID,
		entry.AccountID,
		entry.TransactionID,
		decimalToNumeric(entry.Amount),
		string(entry.Type),
		decimalToNumeric(entry.ResultingBalance),
		entry.Description,
		entry.Reference,
		timeToPgTimestamptz(entry.Timestamp),
		metadata,
	)

	return err
}

// GetByAccount retrieves entries for an account, newest first.
func (r *EntryRepository) GetByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetByTransaction retrieves all entries of a transaction.
func (r *EntryRepository) GetByTransaction(ctx context.Context, transactionID string) ([]*domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		WHERE transaction_id = $1
		ORDER BY created_at ASC`,
		transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListForReplay returns every entry of an account oldest first, the
// order balance replay walks them in.
func (r *EntryRepository) ListForReplay(ctx context.Context, accountID string) ([]*domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at ASC, id ASC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry

	for rows.Next() {
		var entry domain.LedgerEntry
		var amount, resultingBalance pgtype.Numeric
		var entryType string
		var metadata []byte

		err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.TransactionID,
			&amount,
			&entryType,
			&resultingBalance,
			&entry.Description,
			&entry.Reference,
			&entry.Timestamp,
			&metadata,
		)
		if err != nil {
			return nil, err
		}

		entry.Amount = numericToDecimal(amount)
		entry.ResultingBalance = numericToDecimal(resultingBalance)
		entry.Type = domain.EntryType(entryType)

		if metadata != nil {
			_ = json.Unmarshal(metadata, &entry.Metadata)
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
