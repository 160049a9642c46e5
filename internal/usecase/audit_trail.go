package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iho/chainledger/internal/domain"
	"github.com/iho/chainledger/internal/hashchain"
)

// AuditTrail builds audit events, chains them and verifies the chain.
// It exclusively owns the audit chain's tail; no other component appends
// to it.
type AuditTrail struct {
	txManager  TransactionManager
	chains     ChainStore
	keys       hashchain.KeyProvider
	idGen      IDGenerator
	maxRetries int
	now        func() time.Time
}

// NewAuditTrail creates a new AuditTrail.
func NewAuditTrail(
	txManager TransactionManager,
	chains ChainStore,
	keys hashchain.KeyProvider,
	idGen IDGenerator,
) *AuditTrail {
	return &AuditTrail{
		txManager:  txManager,
		chains:     chains,
		keys:       keys,
		idGen:      idGen,
		maxRetries: DefaultAppendRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RecordEventInput represents input for recording an audit event.
type RecordEventInput struct {
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	Details    domain.JSON
	Severity   domain.Severity
	Category   domain.AuditCategory
}

// RecordEvent records one action as an immutable, chained, signed audit
// event. Sensitive detail keys are redacted before hashing, so an
// unredacted variant never exists inside a signed record. A lost CAS
// race re-reads the tail and retries up to the bound before surfacing
// domain.ErrChainAppendFailure.
func (t *AuditTrail) RecordEvent(ctx context.Context, input RecordEventInput) (*domain.AuditEvent, error) {
	if input.Action == "" || input.Resource == "" {
		return nil, fmt.Errorf("%w: action and resource are required", domain.ErrMissingField)
	}

	if input.Severity == "" {
		input.Severity = domain.SeverityLow
	}

	if input.Category == "" {
		input.Category = domain.CategorySystem
	}

	details := domain.RedactDetails(input.Details)

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		event, err := t.tryAppend(ctx, input, details)
		if errors.Is(err, domain.ErrChainConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return event, nil
	}

	return nil, fmt.Errorf("%w: audit chain, action=%s", domain.ErrChainAppendFailure, input.Action)
}

func (t *AuditTrail) tryAppend(ctx context.Context, input RecordEventInput, details domain.JSON) (*domain.AuditEvent, error) {
	tail, err := t.chains.GetTail(ctx, domain.ChainAudit)
	if err != nil {
		return nil, err
	}

	prevHash := domain.GenesisHash
	if tail != nil {
		prevHash = tail.Hash
	}

	event := &domain.AuditEvent{
		ID:         t.idGen.Generate(),
		Timestamp:  t.now(),
		ActorID:    input.ActorID,
		Action:     input.Action,
		Resource:   input.Resource,
		ResourceID: input.ResourceID,
		Details:    details,
		Severity:   input.Severity,
		Category:   input.Category,
		PrevHash:   prevHash,
	}

	payload, err := event.CanonicalPayload()
	if err != nil {
		return nil, err
	}

	event.Hash = hashchain.ComputeHash(payload, prevHash)

	signer, keyVersion, err := t.keys.ActiveSigner(PurposeAudit)
	if err != nil {
		return nil, err
	}

	event.Signature, err = signer.Sign(hashchain.SigningInput(event.Hash, payload))
	if err != nil {
		return nil, err
	}
	event.Algorithm = signer.Algorithm()
	event.KeyVersion = keyVersion

	rec := &domain.ChainRecord{
		ChainID:    domain.ChainAudit,
		Hash:       event.Hash,
		PrevHash:   event.PrevHash,
		Signature:  event.Signature,
		Algorithm:  event.Algorithm,
		KeyVersion: event.KeyVersion,
		Payload:    payload,
		RecordedAt: event.Timestamp,
	}

	tx, err := t.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}

	position, err := t.chains.Append(ctx, tx, rec, prevHash)
	if err != nil {
		tx.Rollback(ctx)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	event.Position = position

	return event, nil
}

// ListEvents returns decoded audit events in a window.
func (t *AuditTrail) ListEvents(ctx context.Context, q domain.ChainQuery) ([]*domain.AuditEvent, error) {
	q.Limit, q.Offset = domain.ValidatePagination(q.Limit, q.Offset)

	records, err := t.chains.Range(ctx, domain.ChainAudit, q)
	if err != nil {
		return nil, err
	}

	events := make([]*domain.AuditEvent, 0, len(records))
	for _, rec := range records {
		event, err := domain.AuditEventFromPayload(rec)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, nil
}

// VerifyChain walks a chain window recomputing each record's hash and
// signature from stored fields and the previous record's STORED hash. A
// single tampered record therefore does not cascade false negatives onto
// later records whose stored prev-hash still matches the original chain.
// Tamper is a result, never an error: the first bad position is reported
// and everything after it is considered compromised.
func (t *AuditTrail) VerifyChain(ctx context.Context, chainID string, q domain.ChainQuery) (*domain.VerificationResult, error) {
	records, err := t.chains.Range(ctx, chainID, q)
	if err != nil {
		return nil, err
	}

	result := &domain.VerificationResult{
		ChainID:      chainID,
		Valid:        true,
		CheckedCount: int64(len(records)),
		VerifiedAt:   t.now(),
	}

	for i, rec := range records {
		// The first record of a window has no in-window predecessor;
		// its own stored prev-hash is the base.
		prevHash := rec.PrevHash
		if i > 0 {
			prevHash = records[i-1].Hash
		}

		if t.recordInvalid(rec, prevHash) {
			pos := rec.Position
			result.Valid = false
			result.FirstInvalidPosition = &pos
			result.CheckedCount = int64(i + 1)
			break
		}
	}

	return result, nil
}

func (t *AuditTrail) recordInvalid(rec *domain.ChainRecord, prevHash string) bool {
	if rec.PrevHash != prevHash {
		return true
	}

	if hashchain.ComputeHash(rec.Payload, prevHash) != rec.Hash {
		return true
	}

	verifier, err := t.keys.VerifierFor(rec.ChainID, rec.Algorithm, rec.KeyVersion)
	if err != nil {
		return true
	}

	return verifier.Verify(hashchain.SigningInput(rec.Hash, rec.Payload), rec.Signature) != nil
}
