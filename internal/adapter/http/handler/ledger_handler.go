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

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	PostEntry(ctx context.Context, input usecase.PostEntryInput) (*domain.LedgerEntry, error)
	GetBalance(ctx context.Context, accountID string) (*domain.Balances, error)
	ListEntries(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error)
	ReplayBalance(ctx context.Context, accountID string) (*usecase.ReplayResult, error)
}

// LedgerHandler handles ledger posting and balance HTTP requests.
type LedgerHandler struct {
	ledgerUC LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// PostEntry posts a balance-affecting ledger entry.
func (h *LedgerHandler) PostEntry(w http.ResponseWriter, r *http.Request) {
	var req dto.PostEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.ledgerUC.PostEntry(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to post entry", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// GetBalance returns the three-way balance view for an account.
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	balances, err := h.ledgerUC.GetBalance(r.Context(), accountID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get balance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BalancesFromDomain(accountID, balances))
}

// ListEntries lists ledger entries for an account, newest first.
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	entries, err := h.ledgerUC.ListEntries(r.Context(), accountID, limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list entries", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// ReplayBalance re-derives the account balance from its entry history
// and reports whether it matches the stored aggregate.
func (h *LedgerHandler) ReplayBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	result, err := h.ledgerUC.ReplayBalance(r.Context(), accountID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to replay balance", err.Error())
		return
	}

	status := http.StatusOK
	if !result.Consistent {
		status = http.StatusConflict
	}

	writeJSON(w, status, dto.ReplayFromUseCase(result))
}
