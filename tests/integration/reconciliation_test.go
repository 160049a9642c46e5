package integration

import (
	"net/http"
	"testing"

	"github.com/iho/chainledger/internal/adapter/http/dto"
)

func createFundedAccount(t *testing.T, api *testAPI, userID, amount string) dto.AccountResponse {
	t.Helper()

	account := decodeJSON[dto.AccountResponse](t, api.do(t, http.MethodPost, "/api/v1/accounts/", map[string]any{
		"user_id":         userID,
		"currency":        "USD",
		"opening_balance": amount,
	}))
	if account.ID == "" {
		t.Fatal("expected account to be created")
	}
	return account
}

func TestReconcileWithinTolerance(t *testing.T) {
	api := newTestAPI(t)

	account := createFundedAccount(t, api, "user-recon-1", "500.00")

	rec := api.do(t, http.MethodPost, "/api/v1/accounts/"+account.ID+"/reconcile", map[string]any{
		"external_balance": "500.005",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	result := decodeJSON[dto.ReconciliationResponse](t, rec)
	if result.Status != "RECONCILED" {
		t.Fatalf("expected RECONCILED, got %s", result.Status)
	}
	if !result.WithinTolerance {
		t.Fatal("expected drift within tolerance")
	}
	if result.AdjustmentEntryID != "" {
		t.Fatal("no adjustment entry expected within tolerance")
	}
}

func TestReconcileBeyondTolerancePostsAdjustment(t *testing.T) {
	api := newTestAPI(t)

	account := createFundedAccount(t, api, "user-recon-2", "500.00")

	rec := api.do(t, http.MethodPost, "/api/v1/accounts/"+account.ID+"/reconcile", map[string]any{
		"external_balance": "510.00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	result := decodeJSON[dto.ReconciliationResponse](t, rec)
	if result.Status != "ADJUSTED" {
		t.Fatalf("expected ADJUSTED, got %s", result.Status)
	}
	if result.AdjustmentEntryID == "" {
		t.Fatal("expected an adjustment entry")
	}

	// The adjustment closes the gap, so the account now matches the
	// external balance.
	balance := decodeJSON[dto.BalancesResponse](t, api.do(t, http.MethodGet, "/api/v1/accounts/"+account.ID+"/balance", nil))
	if balance.Current.String() != "510" {
		t.Fatalf("expected adjusted balance 510, got %s", balance.Current)
	}
}

func TestReconcileUnknownAccount(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/accounts/missing/reconcile", map[string]any{
		"external_balance": "100.00",
	})
	if rec.Code == http.StatusOK {
		t.Fatalf("expected failure for unknown account, got %d", rec.Code)
	}
}

func TestComplianceReport(t *testing.T) {
	api := newTestAPI(t)

	account := createFundedAccount(t, api, "user-report", "100.00")

	if rec := api.do(t, http.MethodPost, "/api/v1/accounts/"+account.ID+"/reconcile", map[string]any{
		"external_balance": "100.00",
	}); rec.Code != http.StatusOK {
		t.Fatalf("reconcile failed: %d", rec.Code)
	}

	rec := api.do(t, http.MethodGet, "/api/v1/reports/compliance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	report := decodeJSON[dto.ComplianceReportResponse](t, rec)
	if report.AuditIntegrity == nil || !report.AuditIntegrity.Valid {
		t.Fatalf("expected valid audit chain in report: %+v", report.AuditIntegrity)
	}
	if report.TotalEvents == 0 {
		t.Fatal("expected audit events to be counted")
	}
	if report.ComplianceScore <= 0 {
		t.Fatalf("expected positive compliance score, got %d", report.ComplianceScore)
	}
}
