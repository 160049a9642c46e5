package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chainledger/internal/domain"
)

// ChainStore is the durable append-only store contract. Append is a
// compare-and-swap on the chain's current tail hash: it fails with
// domain.ErrChainConflict when another writer advanced the chain past
// expectedPrevHash. The store never allows two writers to extend the
// same chain without collision detection.
type ChainStore interface {
	Append(ctx context.Context, tx Transaction, rec *domain.ChainRecord, expectedPrevHash string) (int64, error)
	GetTail(ctx context.Context, chainID string) (*domain.ChainRecord, error)
	Range(ctx context.Context, chainID string, q domain.ChainQuery) ([]*domain.ChainRecord, error)
	Count(ctx context.Context, chainID string, q domain.ChainQuery) (int64, error)
}

// TransactionIndex provides relational queries over the financial chain.
type TransactionIndex interface {
	PendingTotal(ctx context.Context, accountID string) (decimal.Decimal, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.TransactionRecord, error)
}

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	GetByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error)
	GetByTransaction(ctx context.Context, transactionID string) ([]*domain.LedgerEntry, error)
	// ListForReplay returns every entry of an account ordered by
	// timestamp, oldest first, for balance replay checks.
	ListForReplay(ctx context.Context, accountID string) ([]*domain.LedgerEntry, error)
}

// BacklogRepository defines data access for the audit retry backlog.
type BacklogRepository interface {
	Enqueue(ctx context.Context, item *domain.BacklogItem) error
	ListPending(ctx context.Context, limit int) ([]*domain.BacklogItem, error)
	MarkProcessed(ctx context.Context, id string, processedAt time.Time) error
	MarkFailed(ctx context.Context, id string, lastError string) error
	CountPending(ctx context.Context) (int64, error)
	DeleteProcessed(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
