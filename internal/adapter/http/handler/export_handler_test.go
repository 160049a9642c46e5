package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iho/chainledger/internal/domain"
)

type exportServiceStub struct {
	exportFn func(ctx context.Context, chainID string, q domain.ChainQuery, format string) (*domain.ExportBundle, error)
	encodeFn func(bundle *domain.ExportBundle, format string) ([]byte, error)
}

func (s *exportServiceStub) ExportChain(ctx context.Context, chainID string, q domain.ChainQuery, format string) (*domain.ExportBundle, error) {
	return s.exportFn(ctx, chainID, q, format)
}

func (s *exportServiceStub) EncodeBundle(bundle *domain.ExportBundle, format string) ([]byte, error) {
	return s.encodeFn(bundle, format)
}

func TestExportHandler_Success(t *testing.T) {
	bundle := &domain.ExportBundle{
		ChainID:     domain.ChainAudit,
		RecordCount: 2,
		BundleHash:  "bundle-hash",
		ExportedAt:  time.Now(),
	}

	handler := NewExportHandler(&exportServiceStub{
		exportFn: func(ctx context.Context, chainID string, q domain.ChainQuery, format string) (*domain.ExportBundle, error) {
			if chainID != domain.ChainAudit {
				t.Fatalf("expected audit chain, got %s", chainID)
			}
			return bundle, nil
		},
		encodeFn: func(b *domain.ExportBundle, format string) ([]byte, error) {
			payload, _ := json.Marshal(map[string]any{"bundle_hash": b.BundleHash})
			return payload, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/chains/audit/export", nil)
	req = setChiURLParam(req, "chain", domain.ChainAudit)
	rec := httptest.NewRecorder()

	handler.Export(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if disp := rec.Header().Get("Content-Disposition"); disp == "" {
		t.Fatal("expected attachment disposition header")
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["bundle_hash"] != "bundle-hash" {
		t.Fatalf("unexpected body: %v", resp)
	}
}

func TestExportHandler_UnsupportedFormat(t *testing.T) {
	handler := NewExportHandler(&exportServiceStub{
		exportFn: func(ctx context.Context, chainID string, q domain.ChainQuery, format string) (*domain.ExportBundle, error) {
			return nil, domain.ErrUnsupportedFormat
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/chains/audit/export?format=xml", nil)
	req = setChiURLParam(req, "chain", domain.ChainAudit)
	rec := httptest.NewRecorder()

	handler.Export(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExportHandler_UnknownChain(t *testing.T) {
	handler := NewExportHandler(&exportServiceStub{
		exportFn: func(ctx context.Context, chainID string, q domain.ChainQuery, format string) (*domain.ExportBundle, error) {
			return nil, domain.ErrRecordNotFound
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/chains/shadow/export", nil)
	req = setChiURLParam(req, "chain", "shadow")
	rec := httptest.NewRecorder()

	handler.Export(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
