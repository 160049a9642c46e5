package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/chainledger/internal/domain"
)

// chainVerifier is the slice of AuditTrail the reporter needs.
type chainVerifier interface {
	VerifyChain(ctx context.Context, chainID string, q domain.ChainQuery) (*domain.VerificationResult, error)
}

// ComplianceReporter aggregates both chains over a time window into a
// compliance score and violation list.
type ComplianceReporter struct {
	chains   ChainStore
	verifier chainVerifier
	backlog  BacklogRepository
	now      func() time.Time
}

// NewComplianceReporter creates a new ComplianceReporter.
func NewComplianceReporter(chains ChainStore, verifier chainVerifier, backlog BacklogRepository) *ComplianceReporter {
	return &ComplianceReporter{
		chains:   chains,
		verifier: verifier,
		backlog:  backlog,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GenerateReport builds the compliance report for a period. Chain
// integrity is a binary gate: any detected tamper caps the score at the
// fixed ceiling no matter how clean the rest of the period looks.
func (c *ComplianceReporter) GenerateReport(ctx context.Context, period domain.Period) (*domain.ComplianceReport, error) {
	q := domain.ChainQuery{From: period.From, To: period.To}

	auditIntegrity, err := c.verifier.VerifyChain(ctx, domain.ChainAudit, q)
	if err != nil {
		return nil, fmt.Errorf("verify audit chain: %w", err)
	}

	ledgerIntegrity, err := c.verifier.VerifyChain(ctx, domain.ChainFinancial, q)
	if err != nil {
		return nil, fmt.Errorf("verify financial chain: %w", err)
	}

	totalEvents, err := c.chains.Count(ctx, domain.ChainAudit, q)
	if err != nil {
		return nil, err
	}

	totalTransactions, err := c.chains.Count(ctx, domain.ChainFinancial, q)
	if err != nil {
		return nil, err
	}

	report := &domain.ComplianceReport{
		Period:            period,
		TotalEvents:       totalEvents,
		TotalTransactions: totalTransactions,
		AuditIntegrity:    *auditIntegrity,
		LedgerIntegrity:   *ledgerIntegrity,
		GeneratedAt:       c.now(),
	}

	criticalCount, highCount, reconAdjusted, reconFailed, violations, err := c.scanAuditEvents(ctx, q)
	if err != nil {
		return nil, err
	}
	report.Violations = violations

	report.Violations = append(report.Violations, integrityViolations(auditIntegrity)...)
	report.Violations = append(report.Violations, integrityViolations(ledgerIntegrity)...)

	backlogged, err := c.backlog.CountPending(ctx)
	if err != nil {
		return nil, err
	}

	if backlogged > 0 {
		report.Violations = append(report.Violations, domain.Violation{
			Type:       domain.ViolationAuditBacklog,
			Severity:   domain.SeverityMedium,
			Resource:   "audit_backlog",
			Detail:     fmt.Sprintf("%d audit events pending retry", backlogged),
			OccurredAt: report.GeneratedAt,
		})
	}

	report.ComplianceScore = complianceScore(
		auditIntegrity.Valid && ledgerIntegrity.Valid,
		criticalCount, highCount, reconAdjusted, reconFailed, backlogged,
	)

	return report, nil
}

func (c *ComplianceReporter) scanAuditEvents(ctx context.Context, q domain.ChainQuery) (critical, high, reconAdjusted, reconFailed int, violations []domain.Violation, err error) {
	records, err := c.chains.Range(ctx, domain.ChainAudit, q)
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}

	for _, rec := range records {
		event, decodeErr := domain.AuditEventFromPayload(rec)
		if decodeErr != nil {
			// An undecodable payload is itself evidence of tamper;
			// VerifyChain has already flagged the hash mismatch.
			continue
		}

		switch event.Severity {
		case domain.SeverityCritical:
			critical++
			violations = append(violations, domain.Violation{
				Type:       domain.ViolationCriticalEvent,
				Severity:   domain.SeverityCritical,
				Resource:   event.Resource,
				ResourceID: event.ResourceID,
				Detail:     event.Action,
				OccurredAt: event.Timestamp,
			})
		case domain.SeverityHigh:
			high++
		}

		if event.Action != domain.ActionAccountReconciliation {
			continue
		}

		switch status, _ := event.Details["status"].(string); domain.ReconciliationStatus(status) {
		case domain.ReconciliationAdjusted:
			reconAdjusted++
			violations = append(violations, domain.Violation{
				Type:       domain.ViolationReconciliationDrift,
				Severity:   domain.SeverityMedium,
				Resource:   event.Resource,
				ResourceID: event.ResourceID,
				Detail:     fmt.Sprintf("difference %v adjusted", event.Details["difference"]),
				OccurredAt: event.Timestamp,
			})
		case domain.ReconciliationFailed:
			reconFailed++
			violations = append(violations, domain.Violation{
				Type:       domain.ViolationReconciliationFailed,
				Severity:   domain.SeverityHigh,
				Resource:   event.Resource,
				ResourceID: event.ResourceID,
				Detail:     fmt.Sprintf("reconciliation failed: %v", event.Details["error"]),
				OccurredAt: event.Timestamp,
			})
		}
	}

	return critical, high, reconAdjusted, reconFailed, violations, nil
}

func integrityViolations(result *domain.VerificationResult) []domain.Violation {
	if result.Valid {
		return nil
	}

	detail := "chain verification failed"
	if result.FirstInvalidPosition != nil {
		detail = fmt.Sprintf("chain compromised from position %d onward", *result.FirstInvalidPosition)
	}

	return []domain.Violation{{
		Type:       domain.ViolationChainIntegrity,
		Severity:   domain.SeverityCritical,
		Resource:   "chain",
		ResourceID: result.ChainID,
		Detail:     detail,
		OccurredAt: result.VerifiedAt,
	}}
}

func complianceScore(chainsIntact bool, critical, high, reconAdjusted, reconFailed int, backlogged int64) int {
	score := domain.MaxComplianceScore

	score -= critical * domain.CriticalEventPenalty
	score -= high * domain.HighEventPenalty
	score -= reconAdjusted * domain.ReconAdjustedPenalty
	score -= reconFailed * domain.ReconFailedPenalty

	if backlogged > 0 {
		score -= int(backlogged/100+1) * domain.BacklogPenaltyPerBatch
	}

	if !chainsIntact && score > domain.TamperScoreCeiling {
		score = domain.TamperScoreCeiling
	}

	if score < 0 {
		score = 0
	}

	return score
}
