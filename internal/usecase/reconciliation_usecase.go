package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iho/chainledger/internal/domain"
)

// adjustmentPoster is the slice of LedgerEngine the reconciliation
// engine needs.
type adjustmentPoster interface {
	CreateAdjustmentEntry(ctx context.Context, accountID string, adjustmentAmount decimal.Decimal, reason, reference string) (*domain.LedgerEntry, error)
}

// ReconciliationEngine compares internal balances against an externally
// supplied source of truth and posts signed adjustments for drift beyond
// tolerance. The external balance is always supplied by the caller; this
// engine never calls a bank API and never retries on its own.
type ReconciliationEngine struct {
	accounts AccountRepository
	ledger   adjustmentPoster
	audit    auditRecorder
	now      func() time.Time
}

// NewReconciliationEngine creates a new ReconciliationEngine.
func NewReconciliationEngine(
	accounts AccountRepository,
	ledger adjustmentPoster,
	audit auditRecorder,
) *ReconciliationEngine {
	return &ReconciliationEngine{
		accounts: accounts,
		ledger:   ledger,
		audit:    audit,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile compares the account balance against externalBalance. Drift
// within tolerance yields RECONCILED; beyond tolerance an adjustment
// entry closing the gap is posted and the result is ADJUSTED. A failed
// account load or adjustment post yields FAILED plus the error. Every
// attempt emits an account_reconciliation audit event regardless of
// outcome.
func (r *ReconciliationEngine) Reconcile(ctx context.Context, accountID string, externalBalance, tolerance decimal.Decimal) (*domain.ReconciliationResult, error) {
	if tolerance.LessThanOrEqual(decimal.Zero) {
		tolerance = domain.DefaultReconciliationTolerance
	}

	result := &domain.ReconciliationResult{
		AccountID:       accountID,
		ExternalBalance: externalBalance,
		Tolerance:       tolerance,
		Status:          domain.ReconciliationPending,
		CheckedAt:       r.now(),
	}

	account, err := r.accounts.GetByID(ctx, accountID)
	if err != nil {
		result.Status = domain.ReconciliationFailed
		r.emitReconciliationAudit(ctx, result, err)

		return result, fmt.Errorf("%w: %v", domain.ErrReconciliationFailed, err)
	}

	result.InternalBalance = account.Balance
	result.Difference = account.Balance.Sub(externalBalance).Abs()
	result.WithinTolerance = result.Difference.LessThanOrEqual(tolerance)

	if result.WithinTolerance {
		result.Status = domain.ReconciliationReconciled
		r.emitReconciliationAudit(ctx, result, nil)

		return result, nil
	}

	result.Reference = "recon-" + uuid.NewString()

	entry, err := r.ledger.CreateAdjustmentEntry(ctx, accountID,
		externalBalance.Sub(account.Balance), "reconciliation", result.Reference)
	if err != nil {
		result.Status = domain.ReconciliationFailed
		r.emitReconciliationAudit(ctx, result, err)

		return result, fmt.Errorf("%w: adjustment post: %v", domain.ErrReconciliationFailed, err)
	}

	result.AdjustmentEntryID = entry.ID
	result.Status = domain.ReconciliationAdjusted
	r.emitReconciliationAudit(ctx, result, nil)

	return result, nil
}

func (r *ReconciliationEngine) emitReconciliationAudit(ctx context.Context, result *domain.ReconciliationResult, cause error) {
	severity := domain.SeverityLow
	switch result.Status {
	case domain.ReconciliationAdjusted:
		severity = domain.SeverityMedium
	case domain.ReconciliationFailed:
		severity = domain.SeverityHigh
	}

	details := domain.JSON{
		"internal_balance": result.InternalBalance.String(),
		"external_balance": result.ExternalBalance.String(),
		"difference":       result.Difference.String(),
		"tolerance":        result.Tolerance.String(),
		"within_tolerance": result.WithinTolerance,
		"status":           string(result.Status),
	}

	if result.AdjustmentEntryID != "" {
		details["adjustment_entry_id"] = result.AdjustmentEntryID
	}

	if cause != nil {
		details["error"] = cause.Error()
	}

	// Best-effort: reconciliation outcomes must not depend on audit
	// availability.
	_, _ = r.audit.RecordEvent(ctx, RecordEventInput{
		ActorID:    "reconciliation-engine",
		Action:     domain.ActionAccountReconciliation,
		Resource:   "account",
		ResourceID: result.AccountID,
		Details:    details,
		Severity:   severity,
		Category:   domain.CategoryCompliance,
	})
}
