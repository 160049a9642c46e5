package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/chainledger/internal/domain"
)

// ExportService defines the behavior needed by ExportHandler.
type ExportService interface {
	ExportChain(ctx context.Context, chainID string, q domain.ChainQuery, format string) (*domain.ExportBundle, error)
	EncodeBundle(bundle *domain.ExportBundle, format string) ([]byte, error)
}

// ExportHandler handles chain export HTTP requests.
type ExportHandler struct {
	exportUC ExportService
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(exportUC ExportService) *ExportHandler {
	return &ExportHandler{exportUC: exportUC}
}

// Export streams a signed, self-verifying bundle of a chain range.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
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

	format := r.URL.Query().Get("format")

	bundle, err := h.exportUC.ExportChain(r.Context(), chainID, q, format)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to export chain", err.Error())
		return
	}

	encoded, err := h.exportUC.EncodeBundle(bundle, format)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to encode bundle", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+chainID+`-export.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(encoded)
}
