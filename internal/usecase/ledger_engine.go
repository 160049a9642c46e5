package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/chainledger/internal/domain"
	"github.com/iho/chainledger/internal/hashchain"
)

// auditRecorder is the narrow slice of AuditTrail the engine needs for
// companion events.
type auditRecorder interface {
	RecordEvent(ctx context.Context, input RecordEventInput) (*domain.AuditEvent, error)
}

// LedgerEngine posts balance-affecting entries. It exclusively owns each
// account's balance and the financial chain's tail: balance update,
// chain append and entry insert happen inside one database transaction,
// so balance and chain can never diverge.
type LedgerEngine struct {
	txManager  TransactionManager
	accounts   AccountRepository
	entries    EntryRepository
	chains     ChainStore
	txIndex    TransactionIndex
	keys       hashchain.KeyProvider
	idGen      IDGenerator
	audit      auditRecorder
	backlog    BacklogRepository
	cache      Cache
	logger     zerolog.Logger
	maxRetries int
	now        func() time.Time
}

// LedgerEngineConfig holds LedgerEngine dependencies.
type LedgerEngineConfig struct {
	TxManager TransactionManager
	Accounts  AccountRepository
	Entries   EntryRepository
	Chains    ChainStore
	TxIndex   TransactionIndex
	Keys      hashchain.KeyProvider
	IDGen     IDGenerator
	Audit     auditRecorder
	Backlog   BacklogRepository
	Cache     Cache
	Logger    zerolog.Logger
}

// NewLedgerEngine creates a new LedgerEngine.
func NewLedgerEngine(cfg LedgerEngineConfig) *LedgerEngine {
	return &LedgerEngine{
		txManager:  cfg.TxManager,
		accounts:   cfg.Accounts,
		entries:    cfg.Entries,
		chains:     cfg.Chains,
		txIndex:    cfg.TxIndex,
		keys:       cfg.Keys,
		idGen:      cfg.IDGen,
		audit:      cfg.Audit,
		backlog:    cfg.Backlog,
		cache:      cfg.Cache,
		logger:     cfg.Logger,
		maxRetries: DefaultAppendRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// PostEntryInput represents input for posting a ledger entry.
type PostEntryInput struct {
	AccountID       string
	TransactionID   string
	UserID          string
	CounterpartyID  string
	Amount          decimal.Decimal
	EntryType       domain.EntryType
	TransactionType domain.TransactionType
	Status          domain.TransactionStatus
	Currency        string
	Description     string
	Reference       string
	RiskScore       int
	ComplianceFlags []string
	Metadata        domain.JSON
}

// PostEntry applies one balance mutation: it locks the account row,
// appends the chained transaction record, inserts the ledger entry with
// the resulting balance and updates the account, all in one transaction.
// A chain CAS conflict rolls the whole unit back and retries up to the
// bound. The companion audit event is best-effort: its failure never
// rolls back the committed financial entry, it goes to the retry backlog.
func (e *LedgerEngine) PostEntry(ctx context.Context, input PostEntryInput) (*domain.LedgerEntry, error) {
	if input.AccountID == "" {
		return nil, fmt.Errorf("%w: account_id", domain.ErrMissingField)
	}

	if input.EntryType != domain.EntryDebit && input.EntryType != domain.EntryCredit {
		return nil, fmt.Errorf("%w: entry type", domain.ErrMissingField)
	}

	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	if err := domain.ValidateMetadata(input.Metadata); err != nil {
		return nil, err
	}

	if input.TransactionType == "" {
		if input.EntryType == domain.EntryCredit {
			input.TransactionType = domain.TransactionIncome
		} else {
			input.TransactionType = domain.TransactionExpense
		}
	}

	if input.Status == "" {
		input.Status = domain.StatusCompleted
	}

	var entry *domain.LedgerEntry
	var record *domain.TransactionRecord
	var err error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		entry, record, err = e.tryPost(ctx, input)
		if errors.Is(err, domain.ErrChainConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		e.invalidateBalance(ctx, input.AccountID)
		e.emitEntryAudit(ctx, entry, record)

		return entry, nil
	}

	return nil, fmt.Errorf("%w: financial chain, account=%s", domain.ErrChainAppendFailure, input.AccountID)
}

func (e *LedgerEngine) tryPost(ctx context.Context, input PostEntryInput) (*domain.LedgerEntry, *domain.TransactionRecord, error) {
	tx, err := e.txManager.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	account, err := e.accounts.GetByIDForUpdate(ctx, tx, input.AccountID)
	if err != nil {
		return nil, nil, err
	}

	if input.Currency != "" && input.Currency != account.Currency {
		return nil, nil, domain.ErrCurrencyMismatch
	}

	tail, err := e.chains.GetTail(ctx, domain.ChainFinancial)
	if err != nil {
		return nil, nil, err
	}

	prevHash := domain.GenesisHash
	if tail != nil {
		prevHash = tail.Hash
	}

	now := e.now()
	newBalance := account.Apply(input.EntryType, input.Amount)

	txID := input.TransactionID
	if txID == "" {
		txID = e.idGen.Generate()
	}

	signedAmount := input.Amount
	if input.EntryType == domain.EntryDebit {
		signedAmount = signedAmount.Neg()
	}

	record := &domain.TransactionRecord{
		ID:              txID,
		Timestamp:       now,
		UserID:          input.UserID,
		Type:            input.TransactionType,
		Amount:          signedAmount,
		Currency:        account.Currency,
		AccountID:       account.ID,
		CounterpartyID:  input.CounterpartyID,
		Status:          input.Status,
		ComplianceFlags: input.ComplianceFlags,
		RiskScore:       input.RiskScore,
		PrevHash:        prevHash,
	}

	payload, err := record.CanonicalPayload()
	if err != nil {
		return nil, nil, err
	}

	record.Hash = hashchain.ComputeHash(payload, prevHash)

	signer, keyVersion, err := e.keys.ActiveSigner(PurposeFinancial)
	if err != nil {
		return nil, nil, err
	}

	record.Signature, err = signer.Sign(hashchain.SigningInput(record.Hash, payload))
	if err != nil {
		return nil, nil, err
	}
	record.Algorithm = signer.Algorithm()
	record.KeyVersion = keyVersion

	position, err := e.chains.Append(ctx, tx, &domain.ChainRecord{
		ChainID:    domain.ChainFinancial,
		Hash:       record.Hash,
		PrevHash:   record.PrevHash,
		Signature:  record.Signature,
		Algorithm:  record.Algorithm,
		KeyVersion: record.KeyVersion,
		Payload:    payload,
		RecordedAt: now,
	}, prevHash)
	if err != nil {
		return nil, nil, err
	}
	record.Position = position

	entry := &domain.LedgerEntry{
		ID:               e.idGen.Generate(),
		AccountID:        account.ID,
		TransactionID:    txID,
		Amount:           input.Amount,
		Type:             input.EntryType,
		ResultingBalance: newBalance,
		Description:      input.Description,
		Reference:        input.Reference,
		Timestamp:        now,
		Metadata:         input.Metadata,
	}

	if err := e.entries.Create(ctx, tx, entry); err != nil {
		return nil, nil, err
	}

	if err := e.accounts.UpdateBalance(ctx, tx, account.ID, newBalance, now); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	return entry, record, nil
}

// emitEntryAudit records the companion audit event. On failure the event
// is queued in the backlog; a persistent backlog is itself reported by
// the compliance reporter.
func (e *LedgerEngine) emitEntryAudit(ctx context.Context, entry *domain.LedgerEntry, record *domain.TransactionRecord) {
	input := RecordEventInput{
		ActorID:    record.UserID,
		Action:     domain.ActionLedgerEntryCreated,
		Resource:   "ledger_entry",
		ResourceID: entry.ID,
		Details: domain.JSON{
			"account_id":        entry.AccountID,
			"transaction_id":    entry.TransactionID,
			"amount":            entry.Amount.String(),
			"entry_type":        string(entry.Type),
			"resulting_balance": entry.ResultingBalance.String(),
			"reference":         entry.Reference,
		},
		Severity: domain.SeverityLow,
		Category: domain.CategoryPayment,
	}

	_, err := e.audit.RecordEvent(ctx, input)
	if err == nil {
		return
	}

	e.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("companion audit event failed, queueing to backlog")

	item := &domain.BacklogItem{
		ID:         e.idGen.Generate(),
		ActorID:    input.ActorID,
		Action:     input.Action,
		Resource:   input.Resource,
		ResourceID: input.ResourceID,
		Details:    input.Details,
		Severity:   input.Severity,
		Category:   input.Category,
		CreatedAt:  e.now(),
	}

	if err := e.backlog.Enqueue(ctx, item); err != nil {
		e.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("audit backlog enqueue failed")
	}
}

func (e *LedgerEngine) invalidateBalance(ctx context.Context, accountID string) {
	if e.cache == nil {
		return
	}

	if err := e.cache.Delete(ctx, balanceCacheKey(accountID)); err != nil {
		e.logger.Warn().Err(err).Str("account_id", accountID).Msg("balance cache invalidation failed")
	}
}

func balanceCacheKey(accountID string) string {
	return "balance:" + accountID
}

type cachedBalances struct {
	Current   string `json:"current"`
	Available string `json:"available"`
	Pending   string `json:"pending"`
}

// GetBalance returns the current, available and pending balance view.
// Available is current minus the sum of pending financial-chain records
// for the account.
func (e *LedgerEngine) GetBalance(ctx context.Context, accountID string) (*domain.Balances, error) {
	if e.cache != nil {
		if data, err := e.cache.Get(ctx, balanceCacheKey(accountID)); err == nil && data != nil {
			var c cachedBalances
			if json.Unmarshal(data, &c) == nil {
				current, err1 := decimal.NewFromString(c.Current)
				available, err2 := decimal.NewFromString(c.Available)
				pending, err3 := decimal.NewFromString(c.Pending)
				if err1 == nil && err2 == nil && err3 == nil {
					return &domain.Balances{Current: current, Available: available, Pending: pending}, nil
				}
			}
		}
	}

	account, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	pending, err := e.txIndex.PendingTotal(ctx, accountID)
	if err != nil {
		return nil, err
	}

	balances := &domain.Balances{
		Current:   account.Balance,
		Available: account.Balance.Sub(pending),
		Pending:   pending,
	}

	if e.cache != nil {
		data, err := json.Marshal(cachedBalances{
			Current:   balances.Current.String(),
			Available: balances.Available.String(),
			Pending:   balances.Pending.String(),
		})
		if err == nil {
			_ = e.cache.Set(ctx, balanceCacheKey(accountID), data, BalanceCacheTTL)
		}
	}

	return balances, nil
}

// CreateAdjustmentEntry posts a signed adjustment. The entry type is
// derived from the sign of adjustmentAmount; metadata carries the
// adjustment marker. Used by the reconciliation engine and manual
// compliance overrides only.
func (e *LedgerEngine) CreateAdjustmentEntry(ctx context.Context, accountID string, adjustmentAmount decimal.Decimal, reason, reference string) (*domain.LedgerEntry, error) {
	if adjustmentAmount.IsZero() {
		return nil, domain.ErrInvalidAmount
	}

	entryType := domain.EntryCredit
	txType := domain.TransactionIncome
	if adjustmentAmount.IsNegative() {
		entryType = domain.EntryDebit
		txType = domain.TransactionExpense
	}

	return e.PostEntry(ctx, PostEntryInput{
		AccountID:       accountID,
		Amount:          adjustmentAmount.Abs(),
		EntryType:       entryType,
		TransactionType: txType,
		Description:     reason,
		Reference:       reference,
		ComplianceFlags: []string{"reconciliation_adjustment"},
		Metadata: domain.JSON{
			"adjustment": true,
			"reason":     reason,
		},
	})
}

// ListEntries returns ledger entries for an account, newest first.
func (e *LedgerEngine) ListEntries(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return e.entries.GetByAccount(ctx, accountID, limit, offset)
}

// ReplayResult reports a balance replay over an account's entries.
type ReplayResult struct {
	AccountID      string
	EntriesChecked int
	Consistent     bool
	Detail         string
}

// ReplayBalance re-derives the account balance from its full entry
// sequence and checks the running resulting-balance invariant plus the
// final balance against the account aggregate.
func (e *LedgerEngine) ReplayBalance(ctx context.Context, accountID string) (*ReplayResult, error) {
	account, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	entries, err := e.entries.ListForReplay(ctx, accountID)
	if err != nil {
		return nil, err
	}

	result := &ReplayResult{AccountID: accountID, EntriesChecked: len(entries), Consistent: true}

	// Accounts are created at zero and opening balances are posted as
	// entries, so the first entry must replay from zero.
	if len(entries) > 0 {
		want := entries[0].Signed()
		if !entries[0].ResultingBalance.Equal(want) {
			result.Consistent = false
			result.Detail = fmt.Sprintf("entry %s: resulting balance %s, expected %s from zero",
				entries[0].ID, entries[0].ResultingBalance, want)
			return result, nil
		}
	}

	for i := 1; i < len(entries); i++ {
		want := entries[i-1].ResultingBalance.Add(entries[i].Signed())
		if !entries[i].ResultingBalance.Equal(want) {
			result.Consistent = false
			result.Detail = fmt.Sprintf("entry %s: resulting balance %s, expected %s",
				entries[i].ID, entries[i].ResultingBalance, want)
			return result, nil
		}
	}

	if len(entries) > 0 {
		last := entries[len(entries)-1].ResultingBalance
		if !account.Balance.Equal(last) {
			result.Consistent = false
			result.Detail = fmt.Sprintf("account balance %s does not match last entry balance %s",
				account.Balance, last)
		}
	}

	return result, nil
}
