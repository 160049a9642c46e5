package integration

import (
	"net/http"
	"testing"

	"github.com/iho/chainledger/internal/adapter/http/dto"
)

func TestPostEntryUpdatesBalance(t *testing.T) {
	api := newTestAPI(t)

	account := decodeJSON[dto.AccountResponse](t, api.do(t, http.MethodPost, "/api/v1/accounts/", dto.CreateAccountRequest{
		UserID:   "user-entry",
		Currency: "USD",
	}))

	rec := api.do(t, http.MethodPost, "/api/v1/entries", map[string]any{
		"account_id": account.ID,
		"user_id":    "user-entry",
		"amount":     "100.50",
		"entry_type": "CREDIT",
		"currency":   "USD",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	entry := decodeJSON[dto.EntryResponse](t, rec)
	if entry.ResultingBalance.String() != "100.5" {
		t.Fatalf("expected resulting balance 100.5, got %s", entry.ResultingBalance)
	}
	if entry.TransactionID == "" {
		t.Fatal("expected transaction ID to be assigned")
	}

	balance := decodeJSON[dto.BalancesResponse](t, api.do(t, http.MethodGet, "/api/v1/accounts/"+account.ID+"/balance", nil))
	if balance.Current.String() != "100.5" {
		t.Fatalf("expected current balance 100.5, got %s", balance.Current)
	}
}

func TestPostEntryCurrencyMismatch(t *testing.T) {
	api := newTestAPI(t)

	account := decodeJSON[dto.AccountResponse](t, api.do(t, http.MethodPost, "/api/v1/accounts/", dto.CreateAccountRequest{
		UserID:   "user-mismatch",
		Currency: "USD",
	}))

	rec := api.do(t, http.MethodPost, "/api/v1/entries", map[string]any{
		"account_id": account.ID,
		"user_id":    "user-mismatch",
		"amount":     "10.00",
		"entry_type": "CREDIT",
		"currency":   "EUR",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for currency mismatch, got %d", rec.Code)
	}
}

func TestPostEntryUnknownAccount(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/entries", map[string]any{
		"account_id": "does-not-exist",
		"user_id":    "user-x",
		"amount":     "10.00",
		"entry_type": "CREDIT",
		"currency":   "USD",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown account, got %d", rec.Code)
	}
}

func TestReplayBalanceConsistent(t *testing.T) {
	api := newTestAPI(t)

	account := decodeJSON[dto.AccountResponse](t, api.do(t, http.MethodPost, "/api/v1/accounts/", dto.CreateAccountRequest{
		UserID:   "user-replay",
		Currency: "USD",
	}))

	for _, amount := range []string{"100.00", "40.00"} {
		rec := api.do(t, http.MethodPost, "/api/v1/entries", map[string]any{
			"account_id": account.ID,
			"user_id":    "user-replay",
			"amount":     amount,
			"entry_type": "CREDIT",
			"currency":   "USD",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	debit := api.do(t, http.MethodPost, "/api/v1/entries", map[string]any{
		"account_id": account.ID,
		"user_id":    "user-replay",
		"amount":     "25.00",
		"entry_type": "DEBIT",
		"currency":   "USD",
	})
	if debit.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", debit.Code)
	}

	rec := api.do(t, http.MethodGet, "/api/v1/accounts/"+account.ID+"/replay", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	replay := decodeJSON[dto.ReplayResponse](t, rec)
	if !replay.Consistent {
		t.Fatalf("expected consistent replay: %+v", replay)
	}
	if replay.EntriesChecked != 3 {
		t.Fatalf("expected 3 entries checked, got %d", replay.EntriesChecked)
	}
}

func TestListEntriesNewestFirst(t *testing.T) {
	api := newTestAPI(t)

	account := decodeJSON[dto.AccountResponse](t, api.do(t, http.MethodPost, "/api/v1/accounts/", dto.CreateAccountRequest{
		UserID:   "user-list",
		Currency: "USD",
	}))

	for _, reference := range []string{"first", "second"} {
		rec := api.do(t, http.MethodPost, "/api/v1/entries", map[string]any{
			"account_id": account.ID,
			"user_id":    "user-list",
			"amount":     "10.00",
			"entry_type": "CREDIT",
			"currency":   "USD",
			"reference":  reference,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
	}

	entries := decodeJSON[[]dto.EntryResponse](t, api.do(t, http.MethodGet, "/api/v1/accounts/"+account.ID+"/entries", nil))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Reference != "second" {
		t.Fatalf("expected newest entry first, got %q", entries[0].Reference)
	}
}
