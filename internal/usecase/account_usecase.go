package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chainledger/internal/domain"
)

// entryPoster is the narrow slice of LedgerEngine account creation needs
// for opening balances.
type entryPoster interface {
	PostEntry(ctx context.Context, input PostEntryInput) (*domain.LedgerEntry, error)
}

// AccountUseCase handles account lifecycle. Balances are never set
// directly: an opening balance is posted as a regular credit entry so it
// lands on the financial chain like any other mutation.
type AccountUseCase struct {
	accounts AccountRepository
	ledger   entryPoster
	audit    auditRecorder
	idGen    IDGenerator
	now      func() time.Time
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(accounts AccountRepository, ledger entryPoster, audit auditRecorder, idGen IDGenerator) *AccountUseCase {
	return &AccountUseCase{
		accounts: accounts,
		ledger:   ledger,
		audit:    audit,
		idGen:    idGen,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	UserID         string
	Currency       string
	OpeningBalance decimal.Decimal
}

// CreateAccount creates a zero-balance account, then posts the opening
// balance as a credit entry when one is given.
func (u *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if input.UserID == "" {
		return nil, fmt.Errorf("%w: user_id", domain.ErrMissingField)
	}

	if err := domain.ValidateCurrency(input.Currency); err != nil {
		return nil, err
	}

	if input.OpeningBalance.IsNegative() {
		return nil, fmt.Errorf("%w: opening balance must not be negative", domain.ErrInvalidAmount)
	}

	now := u.now()
	account := &domain.Account{
		ID:        u.idGen.Generate(),
		UserID:    input.UserID,
		Currency:  input.Currency,
		Balance:   decimal.Zero,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := u.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	if input.OpeningBalance.IsPositive() {
		entry, err := u.ledger.PostEntry(ctx, PostEntryInput{
			AccountID:   account.ID,
			UserID:      input.UserID,
			Amount:      input.OpeningBalance,
			EntryType:   domain.EntryCredit,
			Currency:    input.Currency,
			Description: "opening balance",
			Reference:   "open-" + account.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("account %s created, opening balance failed: %w", account.ID, err)
		}
		account.Balance = entry.ResultingBalance
	}

	_, _ = u.audit.RecordEvent(ctx, RecordEventInput{
		ActorID:    input.UserID,
		Action:     domain.ActionAccountCreated,
		Resource:   "account",
		ResourceID: account.ID,
		Details: domain.JSON{
			"currency":        account.Currency,
			"opening_balance": input.OpeningBalance.String(),
		},
		Severity: domain.SeverityLow,
		Category: domain.CategoryDataModification,
	})

	return account, nil
}

// GetAccount returns an account by ID.
func (u *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: account id", domain.ErrMissingField)
	}
	return u.accounts.GetByID(ctx, id)
}

// ListAccounts returns accounts with pagination.
func (u *AccountUseCase) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return u.accounts.List(ctx, limit, offset)
}
