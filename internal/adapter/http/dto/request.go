package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/chainledger/internal/domain"
	"github.com/iho/chainledger/internal/usecase"
)

// CreateAccountRequest represents a request to create an account.
type CreateAccountRequest struct {
	UserID         string          `json:"user_id"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		UserID:         r.UserID,
		Currency:       r.Currency,
		OpeningBalance: r.OpeningBalance,
	}
}

// PostEntryRequest represents a request to post a ledger entry.
type PostEntryRequest struct {
	AccountID       string          `json:"account_id"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	UserID          string          `json:"user_id"`
	CounterpartyID  string          `json:"counterparty_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	EntryType       string          `json:"entry_type"`
	TransactionType string          `json:"transaction_type,omitempty"`
	Status          string          `json:"status,omitempty"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	RiskScore       int             `json:"risk_score,omitempty"`
	ComplianceFlags []string        `json:"compliance_flags,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *PostEntryRequest) ToUseCaseInput() usecase.PostEntryInput {
	return usecase.PostEntryInput{
		AccountID:       r.AccountID,
		TransactionID:   r.TransactionID,
		UserID:          r.UserID,
		CounterpartyID:  r.CounterpartyID,
		Amount:          r.Amount,
		EntryType:       domain.EntryType(r.EntryType),
		TransactionType: domain.TransactionType(r.TransactionType),
		Status:          domain.TransactionStatus(r.Status),
		Currency:        r.Currency,
		Description:     r.Description,
		Reference:       r.Reference,
		RiskScore:       r.RiskScore,
		ComplianceFlags: r.ComplianceFlags,
		Metadata:        r.Metadata,
	}
}

// RecordEventRequest represents a request to record an audit event.
type RecordEventRequest struct {
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Severity   string         `json:"severity,omitempty"`
	Category   string         `json:"category,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *RecordEventRequest) ToUseCaseInput() usecase.RecordEventInput {
	return usecase.RecordEventInput{
		ActorID:    r.ActorID,
		Action:     r.Action,
		Resource:   r.Resource,
		ResourceID: r.ResourceID,
		Details:    r.Details,
		Severity:   domain.Severity(r.Severity),
		Category:   domain.AuditCategory(r.Category),
	}
}

// ReconcileRequest represents a request to reconcile an account against
// an externally reported balance.
type ReconcileRequest struct {
	ExternalBalance decimal.Decimal  `json:"external_balance"`
	Tolerance       *decimal.Decimal `json:"tolerance,omitempty"`
}

// ToleranceOrDefault returns the requested tolerance, falling back to
// the engine default.
func (r *ReconcileRequest) ToleranceOrDefault() decimal.Decimal {
	if r.Tolerance != nil {
		return *r.Tolerance
	}
	return domain.DefaultReconciliationTolerance
}
