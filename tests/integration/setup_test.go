package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"

	adaptershttp "github.com/iho/chainledger/internal/adapter/http"
	"github.com/iho/chainledger/internal/adapter/http/handler"
	postgresrepo "github.com/iho/chainledger/internal/adapter/repository/postgres"
	redisrepo "github.com/iho/chainledger/internal/adapter/repository/redis"
	infraredis "github.com/iho/chainledger/internal/infrastructure/redis"
	"github.com/iho/chainledger/internal/usecase"
	"github.com/iho/chainledger/tests/testutil"
)

// testAPI wires the full stack against real Postgres and Redis, the
// same way cmd/server does.
type testAPI struct {
	DB     *testutil.TestDB
	Router http.Handler

	AuditTrail *usecase.AuditTrail
	Ledger     *usecase.LedgerEngine
	Accounts   *usecase.AccountUseCase
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	t.Cleanup(testDB.Cleanup)
	testDB.TruncateAll(ctx)

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}
	redisClient, err := infraredis.NewClient(ctx, redisURL)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	pool := testDB.Pool
	keys := testutil.NewKeyProvider(t)

	txManager := postgresrepo.NewTxManager(pool)
	accountRepo := postgresrepo.NewAccountRepository(pool)
	chainRepo := postgresrepo.NewChainRepository(pool)
	entryRepo := postgresrepo.NewEntryRepository(pool)
	backlogRepo := postgresrepo.NewBacklogRepository(pool)
	idGen := postgresrepo.NewULIDGenerator()
	cache := redisrepo.NewCache(redisClient)

	auditTrail := usecase.NewAuditTrail(txManager, chainRepo, keys, idGen)
	ledger := usecase.NewLedgerEngine(usecase.LedgerEngineConfig{
		TxManager: txManager,
		Accounts:  accountRepo,
		Entries:   entryRepo,
		Chains:    chainRepo,
		TxIndex:   chainRepo,
		Keys:      keys,
		IDGen:     idGen,
		Audit:     auditTrail,
		Backlog:   backlogRepo,
		Cache:     cache,
		Logger:    zerolog.Nop(),
	})
	reconciliation := usecase.NewReconciliationEngine(accountRepo, ledger, auditTrail)
	compliance := usecase.NewComplianceReporter(chainRepo, auditTrail, backlogRepo)
	export := usecase.NewExportUseCase(chainRepo, keys, auditTrail)
	accounts := usecase.NewAccountUseCase(accountRepo, ledger, auditTrail, idGen)

	router := adaptershttp.NewRouter(adaptershttp.RouterConfig{
		AccountHandler:        handler.NewAccountHandler(accounts),
		LedgerHandler:         handler.NewLedgerHandler(ledger),
		AuditHandler:          handler.NewAuditHandler(auditTrail),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciliation),
		ComplianceHandler:     handler.NewComplianceHandler(compliance),
		ExportHandler:         handler.NewExportHandler(export),
		HealthHandler:         handler.NewHealthHandler(pool, redisClient),
	})

	return &testAPI{
		DB:         testDB,
		Router:     router,
		AuditTrail: auditTrail,
		Ledger:     ledger,
		Accounts:   accounts,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %s: %v", rec.Body.String(), err)
	}
	return v
}
