package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/chainledger/internal/adapter/http/dto"
	"github.com/iho/chainledger/internal/domain"
	"github.com/iho/chainledger/internal/usecase"
)

// AuditService defines the behavior needed by AuditHandler.
type AuditService interface {
	RecordEvent(ctx context.Context, input usecase.RecordEventInput) (*domain.AuditEvent, error)
	ListEvents(ctx context.Context, q domain.ChainQuery) ([]*domain.AuditEvent, error)
	VerifyChain(ctx context.Context, chainID string, q domain.ChainQuery) (*domain.VerificationResult, error)
}

// AuditHandler handles audit trail HTTP requests.
type AuditHandler struct {
	auditUC AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditUC AuditService) *AuditHandler {
	return &AuditHandler{auditUC: auditUC}
}

// Record appends an audit event to the chain.
func (h *AuditHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	event, err := h.auditUC.RecordEvent(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to record event", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.AuditEventFromDomain(event))
}

// List lists audit events in chain order.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := parseChainQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid time bound (use RFC3339)", err.Error())
		return
	}

	events, err := h.auditUC.ListEvents(r.Context(), q)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list events", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AuditEventsFromDomain(events))
}

// Verify walks a chain window and reports integrity. Tamper is reported
// in the body with a 200, not an error status: the walk itself worked.
func (h *AuditHandler) Verify(w http.ResponseWriter, r *http.Request) {
	chainID := chi.URLParam(r, "chain")
	if chainID == "" {
		writeError(w, http.StatusBadRequest, "missing chain ID", "")
		return
	}

	q, err := parseChainQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid time bound (use RFC3339)", err.Error())
		return
	}

	result, err := h.auditUC.VerifyChain(r.Context(), chainID, q)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to verify chain", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.VerificationFromDomain(result))
}
