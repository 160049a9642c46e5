package domain

import (
	"encoding/json"
	"time"
)

// JSON is a type alias for opaque key/value payloads.
type JSON map[string]any

// Severity classifies how serious an audited action is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AuditCategory groups audited actions by concern.
type AuditCategory string

const (
	CategoryAuthentication   AuditCategory = "authentication"
	CategoryAuthorization    AuditCategory = "authorization"
	CategoryDataAccess       AuditCategory = "data_access"
	CategoryDataModification AuditCategory = "data_modification"
	CategoryPayment          AuditCategory = "payment"
	CategoryCompliance       AuditCategory = "compliance"
	CategorySystem           AuditCategory = "system"
)

// Well-known audit actions emitted by the engine itself.
const (
	ActionAccountCreated        = "account_created"
	ActionLedgerEntryCreated    = "ledger_entry_created"
	ActionAccountReconciliation = "account_reconciliation"
	ActionChainExported         = "chain_exported"
)

// AuditEvent is one recorded action in the audit chain. Created once,
// never mutated, never deleted. Details are redacted before hashing, so
// an unredacted variant of a signed event never exists.
type AuditEvent struct {
	ID         string
	Timestamp  time.Time
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	Details    JSON
	Severity   Severity
	Category   AuditCategory

	Hash       string
	PrevHash   string
	Signature  string
	Algorithm  string
	KeyVersion string
	Position   int64
}

// auditEventPayload fixes the canonical field order for hashing. All
// fields are concrete types; the details map is key-sorted by the JSON
// encoder, so marshalling is deterministic.
type auditEventPayload struct {
	ID         string        `json:"id"`
	Timestamp  string        `json:"ts"`
	ActorID    string        `json:"actor_id"`
	Action     string        `json:"action"`
	Resource   string        `json:"resource"`
	ResourceID string        `json:"resource_id"`
	Details    JSON          `json:"details,omitempty"`
	Severity   Severity      `json:"severity"`
	Category   AuditCategory `json:"category"`
}

// CanonicalPayload returns the canonical bytes of the event body, the
// exact input to hashing and signing. Chain fields are excluded.
func (e *AuditEvent) CanonicalPayload() ([]byte, error) {
	return json.Marshal(auditEventPayload{
		ID:         e.ID,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
		ActorID:    e.ActorID,
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		Details:    e.Details,
		Severity:   e.Severity,
		Category:   e.Category,
	})
}

// AuditEventFromPayload decodes the canonical payload of a chain record
// back into an event, carrying over the record's chain fields.
func AuditEventFromPayload(rec *ChainRecord) (*AuditEvent, error) {
	var p auditEventPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return nil, err
	}

	return &AuditEvent{
		ID:         p.ID,
		Timestamp:  ts,
		ActorID:    p.ActorID,
		Action:     p.Action,
		Resource:   p.Resource,
		ResourceID: p.ResourceID,
		Details:    p.Details,
		Severity:   p.Severity,
		Category:   p.Category,
		Hash:       rec.Hash,
		PrevHash:   rec.PrevHash,
		Signature:  rec.Signature,
		Algorithm:  rec.Algorithm,
		KeyVersion: rec.KeyVersion,
		Position:   rec.Position,
	}, nil
}

// BacklogItem is an audit event whose best-effort emission after a
// committed ledger write failed and is queued for retry.
type BacklogItem struct {
	ID          string
	ActorID     string
	Action      string
	Resource    string
	ResourceID  string
	Details     JSON
	Severity    Severity
	Category    AuditCategory
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
