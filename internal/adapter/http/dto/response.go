package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chainledger/internal/domain"
	"github.com/iho/chainledger/internal/usecase"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Currency:  a.Currency,
		Balance:   a.Balance,
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse wraps a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// BalancesResponse represents the three-way balance view.
type BalancesResponse struct {
	AccountID string          `json:"account_id"`
	Current   decimal.Decimal `json:"current"`
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
}

// BalancesFromDomain converts domain balances to response.
func BalancesFromDomain(accountID string, b *domain.Balances) *BalancesResponse {
	return &BalancesResponse{
		AccountID: accountID,
		Current:   b.Current,
		Available: b.Available,
		Pending:   b.Pending,
	}
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID               string          `json:"id"`
	AccountID        string          `json:"account_id"`
	TransactionID    string          `json:"transaction_id"`
	Amount           decimal.Decimal `json:"amount"`
	Type             string          `json:"type"`
	ResultingBalance decimal.Decimal `json:"resulting_balance"`
	Description      string          `json:"description,omitempty"`
	Reference        string          `json:"reference,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
}

// EntryFromDomain converts domain entry to response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	return &EntryResponse{
		ID:               e.ID,
		AccountID:        e.AccountID,
		TransactionID:    e.TransactionID,
		Amount:           e.Amount,
		Type:             string(e.Type),
		ResultingBalance: e.ResultingBalance,
		Description:      e.Description,
		Reference:        e.Reference,
		Timestamp:        e.Timestamp,
		Metadata:         e.Metadata,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// AuditEventResponse represents an audit event in API responses.
type AuditEventResponse struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Severity   string         `json:"severity"`
	Category   string         `json:"category"`
	Hash       string         `json:"hash"`
	PrevHash   string         `json:"prev_hash"`
	Position   int64          `json:"position"`
}

// AuditEventFromDomain converts domain audit event to response.
func AuditEventFromDomain(e *domain.AuditEvent) *AuditEventResponse {
	return &AuditEventResponse{
		ID:         e.ID,
		Timestamp:  e.Timestamp,
		ActorID:    e.ActorID,
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		Details:    e.Details,
		Severity:   string(e.Severity),
		Category:   string(e.Category),
		Hash:       e.Hash,
		PrevHash:   e.PrevHash,
		Position:   e.Position,
	}
}

// AuditEventsFromDomain converts domain audit events to responses.
func AuditEventsFromDomain(events []*domain.AuditEvent) []*AuditEventResponse {
	result := make([]*AuditEventResponse, len(events))
	for i, e := range events {
		result[i] = AuditEventFromDomain(e)
	}
	return result
}

// VerificationResponse represents a chain verification outcome.
type VerificationResponse struct {
	ChainID              string    `json:"chain_id"`
	Valid                bool      `json:"valid"`
	FirstInvalidPosition *int64    `json:"first_invalid_position,omitempty"`
	CheckedCount         int64     `json:"checked_count"`
	VerifiedAt           time.Time `json:"verified_at"`
}

// VerificationFromDomain converts a verification result to response.
func VerificationFromDomain(v *domain.VerificationResult) *VerificationResponse {
	return &VerificationResponse{
		ChainID:              v.ChainID,
		Valid:                v.Valid,
		FirstInvalidPosition: v.FirstInvalidPosition,
		CheckedCount:         v.CheckedCount,
		VerifiedAt:           v.VerifiedAt,
	}
}

// ReconciliationResponse represents a reconciliation verdict.
type ReconciliationResponse struct {
	AccountID         string          `json:"account_id"`
	InternalBalance   decimal.Decimal `json:"internal_balance"`
	ExternalBalance   decimal.Decimal `json:"external_balance"`
	Difference        decimal.Decimal `json:"difference"`
	Tolerance         decimal.Decimal `json:"tolerance"`
	WithinTolerance   bool            `json:"within_tolerance"`
	Status            string          `json:"status"`
	AdjustmentEntryID string          `json:"adjustment_entry_id,omitempty"`
	Reference         string          `json:"reference,omitempty"`
	CheckedAt         time.Time       `json:"checked_at"`
}

// ReconciliationFromDomain converts a reconciliation result to response.
func ReconciliationFromDomain(r *domain.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountID:         r.AccountID,
		InternalBalance:   r.InternalBalance,
		ExternalBalance:   r.ExternalBalance,
		Difference:        r.Difference,
		Tolerance:         r.Tolerance,
		WithinTolerance:   r.WithinTolerance,
		Status:            string(r.Status),
		AdjustmentEntryID: r.AdjustmentEntryID,
		Reference:         r.Reference,
		CheckedAt:         r.CheckedAt,
	}
}

// ViolationResponse represents one compliance finding.
type ViolationResponse struct {
	Type       string    `json:"type"`
	Severity   string    `json:"severity"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ComplianceReportResponse represents a compliance report.
type ComplianceReportResponse struct {
	PeriodFrom        time.Time             `json:"period_from"`
	PeriodTo          time.Time             `json:"period_to"`
	TotalEvents       int64                 `json:"total_events"`
	TotalTransactions int64                 `json:"total_transactions"`
	ComplianceScore   int                   `json:"compliance_score"`
	Violations        []ViolationResponse   `json:"violations"`
	AuditIntegrity    *VerificationResponse `json:"audit_integrity"`
	LedgerIntegrity   *VerificationResponse `json:"ledger_integrity"`
	GeneratedAt       time.Time             `json:"generated_at"`
}

// ComplianceReportFromDomain converts a compliance report to response.
func ComplianceReportFromDomain(r *domain.ComplianceReport) *ComplianceReportResponse {
	violations := make([]ViolationResponse, len(r.Violations))
	for i, v := range r.Violations {
		violations[i] = ViolationResponse{
			Type:       string(v.Type),
			Severity:   string(v.Severity),
			Resource:   v.Resource,
			ResourceID: v.ResourceID,
			Detail:     v.Detail,
			OccurredAt: v.OccurredAt,
		}
	}

	return &ComplianceReportResponse{
		PeriodFrom:        r.Period.From,
		PeriodTo:          r.Period.To,
		TotalEvents:       r.TotalEvents,
		TotalTransactions: r.TotalTransactions,
		ComplianceScore:   r.ComplianceScore,
		Violations:        violations,
		AuditIntegrity:    VerificationFromDomain(&r.AuditIntegrity),
		LedgerIntegrity:   VerificationFromDomain(&r.LedgerIntegrity),
		GeneratedAt:       r.GeneratedAt,
	}
}

// ReplayResponse represents a balance replay verdict.
type ReplayResponse struct {
	AccountID      string `json:"account_id"`
	EntriesChecked int    `json:"entries_checked"`
	Consistent     bool   `json:"consistent"`
	Detail         string `json:"detail,omitempty"`
}

// ReplayFromUseCase converts a replay result to response.
func ReplayFromUseCase(r *usecase.ReplayResult) *ReplayResponse {
	return &ReplayResponse{
		AccountID:      r.AccountID,
		EntriesChecked: r.EntriesChecked,
		Consistent:     r.Consistent,
		Detail:         r.Detail,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
