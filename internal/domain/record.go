package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a balance-affecting financial event.
type TransactionType string

const (
	TransactionIncome   TransactionType = "income"
	TransactionExpense  TransactionType = "expense"
	TransactionTransfer TransactionType = "transfer"
	TransactionPayment  TransactionType = "payment"
	TransactionRefund   TransactionType = "refund"
)

// TransactionStatus is the settlement state of a transaction record.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// TransactionRecord is one balance-affecting event in the financial
// chain. Amount is signed; currency-scaled decimal arithmetic throughout.
type TransactionRecord struct {
	ID              string
	Timestamp       time.Time
	UserID          string
	Type            TransactionType
	Amount          decimal.Decimal
	Currency        string
	AccountID       string
	CounterpartyID  string
	Status          TransactionStatus
	ComplianceFlags []string
	RiskScore       int

	Hash       string
	PrevHash   string
	Signature  string
	Algorithm  string
	KeyVersion string
	Position   int64
}

type transactionPayload struct {
	ID              string   `json:"id"`
	Timestamp       string   `json:"ts"`
	UserID          string   `json:"user_id"`
	Type            string   `json:"type"`
	Amount          string   `json:"amount"`
	Currency        string   `json:"currency"`
	AccountID       string   `json:"account_id"`
	CounterpartyID  string   `json:"counterparty_id,omitempty"`
	Status          string   `json:"status"`
	ComplianceFlags []string `json:"compliance_flags,omitempty"`
	RiskScore       int      `json:"risk_score"`
}

// CanonicalPayload returns the canonical bytes of the record body, the
// exact input to hashing and signing.
func (t *TransactionRecord) CanonicalPayload() ([]byte, error) {
	return json.Marshal(transactionPayload{
		ID:              t.ID,
		Timestamp:       t.Timestamp.UTC().Format(time.RFC3339Nano),
		UserID:          t.UserID,
		Type:            string(t.Type),
		Amount:          t.Amount.String(),
		Currency:        t.Currency,
		AccountID:       t.AccountID,
		CounterpartyID:  t.CounterpartyID,
		Status:          string(t.Status),
		ComplianceFlags: t.ComplianceFlags,
		RiskScore:       t.RiskScore,
	})
}

// TransactionFromPayload decodes a financial chain record back into a
// transaction record.
func TransactionFromPayload(rec *ChainRecord) (*TransactionRecord, error) {
	var p transactionPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return nil, err
	}

	return &TransactionRecord{
		ID:              p.ID,
		Timestamp:       ts,
		UserID:          p.UserID,
		Type:            TransactionType(p.Type),
		Amount:          amount,
		Currency:        p.Currency,
		AccountID:       p.AccountID,
		CounterpartyID:  p.CounterpartyID,
		Status:          TransactionStatus(p.Status),
		ComplianceFlags: p.ComplianceFlags,
		RiskScore:       p.RiskScore,
		Hash:            rec.Hash,
		PrevHash:        rec.PrevHash,
		Signature:       rec.Signature,
		Algorithm:       rec.Algorithm,
		KeyVersion:      rec.KeyVersion,
		Position:        rec.Position,
	}, nil
}

// LedgerEntry is the balance mutation tied to a transaction record.
// Amount is an unsigned magnitude; ResultingBalance is the account
// balance after the entry applied.
type LedgerEntry struct {
	ID               string
	AccountID        string
	TransactionID    string
	Amount           decimal.Decimal
	Type             EntryType
	ResultingBalance decimal.Decimal
	Description      string
	Reference        string
	Timestamp        time.Time
	Metadata         JSON
}

// Signed returns the entry amount with direction applied.
func (e *LedgerEntry) Signed() decimal.Decimal {
	if e.Type == EntryCredit {
		return e.Amount
	}
	return e.Amount.Neg()
}
