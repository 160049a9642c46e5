package domain

import "time"

// Period is a closed time window for reporting.
type Period struct {
	From time.Time
	To   time.Time
}

// ViolationType classifies a compliance finding.
type ViolationType string

const (
	ViolationChainIntegrity       ViolationType = "chain_integrity"
	ViolationCriticalEvent        ViolationType = "critical_event"
	ViolationReconciliationDrift  ViolationType = "reconciliation_drift"
	ViolationReconciliationFailed ViolationType = "reconciliation_failed"
	ViolationAuditBacklog         ViolationType = "audit_backlog"
)

// Violation is one finding in a compliance report.
type Violation struct {
	Type       ViolationType
	Severity   Severity
	Resource   string
	ResourceID string
	Detail     string
	OccurredAt time.Time
}

// ComplianceReport aggregates both chains over a period. Any detected
// tamper caps the score at TamperScoreCeiling regardless of other inputs.
type ComplianceReport struct {
	Period            Period
	TotalEvents       int64
	TotalTransactions int64
	ComplianceScore   int
	Violations        []Violation
	AuditIntegrity    VerificationResult
	LedgerIntegrity   VerificationResult
	GeneratedAt       time.Time
}

// Compliance score weights.
const (
	MaxComplianceScore     = 100
	TamperScoreCeiling     = 25
	CriticalEventPenalty   = 5
	HighEventPenalty       = 2
	ReconFailedPenalty     = 10
	ReconAdjustedPenalty   = 5
	BacklogPenaltyPerBatch = 1
)
