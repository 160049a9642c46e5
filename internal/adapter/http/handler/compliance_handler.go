package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/iho/chainledger/internal/adapter/http/dto"
	"github.com/iho/chainledger/internal/domain"
)

// ComplianceService defines the behavior needed by ComplianceHandler.
type ComplianceService interface {
	GenerateReport(ctx context.Context, period domain.Period) (*domain.ComplianceReport, error)
}

// ComplianceHandler handles compliance report HTTP requests.
type ComplianceHandler struct {
	complianceUC ComplianceService
}

// NewComplianceHandler creates a new ComplianceHandler.
func NewComplianceHandler(complianceUC ComplianceService) *ComplianceHandler {
	return &ComplianceHandler{complianceUC: complianceUC}
}

// Generate builds a compliance report for the requested period. Without
// bounds the report covers the last 24 hours.
func (h *ComplianceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	period := domain.Period{
		From: time.Now().UTC().Add(-24 * time.Hour),
		To:   time.Now().UTC(),
	}

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'from' format (use RFC3339)", err.Error())
			return
		}
		period.From = t
	}

	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'to' format (use RFC3339)", err.Error())
			return
		}
		period.To = t
	}

	if period.To.Before(period.From) {
		writeError(w, http.StatusBadRequest, "'to' must not precede 'from'", "")
		return
	}

	report, err := h.complianceUC.GenerateReport(r.Context(), period)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to generate report", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ComplianceReportFromDomain(report))
}
