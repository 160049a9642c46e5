package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus is the terminal state of a reconciliation pass.
type ReconciliationStatus string

const (
	ReconciliationPending    ReconciliationStatus = "PENDING"
	ReconciliationReconciled ReconciliationStatus = "RECONCILED"
	ReconciliationAdjusted   ReconciliationStatus = "ADJUSTED"
	ReconciliationFailed     ReconciliationStatus = "FAILED"
)

// DefaultReconciliationTolerance is the drift accepted without posting
// an adjustment.
var DefaultReconciliationTolerance = decimal.NewFromFloat(0.01)

// ReconciliationResult is the verdict of comparing the internal balance
// against an externally reported one.
type ReconciliationResult struct {
	AccountID         string
	InternalBalance   decimal.Decimal
	ExternalBalance   decimal.Decimal
	Difference        decimal.Decimal
	Tolerance         decimal.Decimal
	WithinTolerance   bool
	Status            ReconciliationStatus
	AdjustmentEntryID string
	Reference         string
	CheckedAt         time.Time
}
