package auditworker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/iho/chainledger/internal/domain"
	"github.com/iho/chainledger/internal/usecase"
)

func TestDrainOnceReplaysAndMarks(t *testing.T) {
	repo := &stubBacklogRepo{
		items: []*domain.BacklogItem{{ID: "bl-1", Action: "ledger_entry_created", Resource: "ledger_entry"}},
	}
	rec := &stubRecorder{}
	w := newTestWorker(repo, rec)

	if err := w.drainOnce(context.Background()); err != nil {
		t.Fatalf("drainOnce failed: %v", err)
	}

	if len(rec.recorded) != 1 || rec.recorded[0].Action != "ledger_entry_created" {
		t.Fatalf("expected one replayed event, got %#v", rec.recorded)
	}
	if len(repo.processed) != 1 || repo.processed[0] != "bl-1" {
		t.Fatalf("expected item to be marked processed, got %#v", repo.processed)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no failures, got %#v", repo.failed)
	}
}

func TestDrainOnceContinuesOnReplayError(t *testing.T) {
	repo := &stubBacklogRepo{
		items: []*domain.BacklogItem{
			{ID: "bl-1", Action: "ledger_entry_created", Resource: "ledger_entry"},
			{ID: "bl-2", Action: "account_reconciliation", Resource: "account"},
		},
	}
	rec := &stubRecorder{
		errorsByAction: map[string]error{"ledger_entry_created": domain.ErrChainAppendFailure},
	}
	w := newTestWorker(repo, rec)

	if err := w.drainOnce(context.Background()); err != nil {
		t.Fatalf("drainOnce returned error: %v", err)
	}

	if len(repo.processed) != 1 || repo.processed[0] != "bl-2" {
		t.Fatalf("expected only bl-2 to be processed, got %#v", repo.processed)
	}
	if len(repo.failed) != 1 || repo.failed[0] != "bl-1" {
		t.Fatalf("expected bl-1 to be marked failed, got %#v", repo.failed)
	}
}

func TestDrainOnceCleansUpProcessed(t *testing.T) {
	repo := &stubBacklogRepo{}
	w := newTestWorker(repo, &stubRecorder{})
	w.retention = time.Hour

	before := time.Now()
	if err := w.drainOnce(context.Background()); err != nil {
		t.Fatalf("drainOnce failed: %v", err)
	}

	if repo.deletedBefore.IsZero() {
		t.Fatal("expected DeleteProcessed to be called")
	}
	cutoff := before.Add(-time.Hour)
	if repo.deletedBefore.Before(cutoff.Add(-time.Minute)) || repo.deletedBefore.After(cutoff.Add(time.Minute)) {
		t.Fatalf("expected cutoff near %v, got %v", cutoff, repo.deletedBefore)
	}
}

func TestDrainOnceReturnsListError(t *testing.T) {
	repo := &stubBacklogRepo{listErr: errors.New("db down")}
	w := newTestWorker(repo, &stubRecorder{})

	if err := w.drainOnce(context.Background()); err == nil {
		t.Fatal("expected error when listing fails")
	}
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	repo := &stubBacklogRepo{}
	w := newTestWorker(repo, &stubRecorder{})
	w.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestReplayRetriesTransientFailures(t *testing.T) {
	repo := &stubBacklogRepo{
		items: []*domain.BacklogItem{{ID: "bl-1", Action: "ledger_entry_created", Resource: "ledger_entry"}},
	}
	rec := &flakyRecorder{failures: 2}
	w := New(Config{
		Backlog:  repo,
		Recorder: rec,
		Retryer:  &countingRetryer{attempts: 3},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if err := w.drainOnce(context.Background()); err != nil {
		t.Fatalf("drainOnce failed: %v", err)
	}

	if rec.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", rec.calls)
	}
	if len(repo.processed) != 1 {
		t.Fatalf("expected item to be processed after retries, got %#v", repo.processed)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no failures, got %#v", repo.failed)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	w := New(Config{Backlog: &stubBacklogRepo{}, Recorder: &stubRecorder{}})

	if w.batchSize != 100 {
		t.Fatalf("expected default batch size 100, got %d", w.batchSize)
	}
	if w.interval != 30*time.Second {
		t.Fatalf("expected default interval 30s, got %s", w.interval)
	}
	if w.retention != 24*time.Hour {
		t.Fatalf("expected default retention 24h, got %s", w.retention)
	}
	if w.logger == nil {
		t.Fatal("expected default logger")
	}
}

func newTestWorker(repo *stubBacklogRepo, rec *stubRecorder) *Worker {
	return New(Config{
		Backlog:  repo,
		Recorder: rec,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

type stubBacklogRepo struct {
	items         []*domain.BacklogItem
	listErr       error
	processed     []string
	failed        []string
	deletedBefore time.Time
}

func (r *stubBacklogRepo) Enqueue(_ context.Context, _ *domain.BacklogItem) error {
	return nil
}

func (r *stubBacklogRepo) ListPending(_ context.Context, limit int) ([]*domain.BacklogItem, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	if len(r.items) > limit {
		return r.items[:limit], nil
	}
	return r.items, nil
}

func (r *stubBacklogRepo) MarkProcessed(_ context.Context, id string, _ time.Time) error {
	r.processed = append(r.processed, id)
	return nil
}

func (r *stubBacklogRepo) MarkFailed(_ context.Context, id string, _ string) error {
	r.failed = append(r.failed, id)
	return nil
}

func (r *stubBacklogRepo) CountPending(_ context.Context) (int64, error) {
	return int64(len(r.items)), nil
}

func (r *stubBacklogRepo) DeleteProcessed(_ context.Context, before time.Time) error {
	r.deletedBefore = before
	return nil
}

// flakyRecorder fails the first N calls, then succeeds.
type flakyRecorder struct {
	failures int
	calls    int
}

func (r *flakyRecorder) RecordEvent(_ context.Context, input usecase.RecordEventInput) (*domain.AuditEvent, error) {
	r.calls++
	if r.calls <= r.failures {
		return nil, errors.New("transient failure")
	}
	return &domain.AuditEvent{ID: "evt-1", Action: input.Action, Position: 1}, nil
}

// countingRetryer retries up to a fixed number of attempts with no
// backoff.
type countingRetryer struct {
	attempts int
}

func (r *countingRetryer) Retry(_ context.Context, operation func() error) error {
	var err error
	for i := 0; i < r.attempts; i++ {
		if err = operation(); err == nil {
			return nil
		}
	}
	return err
}

type stubRecorder struct {
	recorded       []usecase.RecordEventInput
	errorsByAction map[string]error
}

func (r *stubRecorder) RecordEvent(_ context.Context, input usecase.RecordEventInput) (*domain.AuditEvent, error) {
	if err := r.errorsByAction[input.Action]; err != nil {
		return nil, err
	}

	r.recorded = append(r.recorded, input)

	return &domain.AuditEvent{
		ID:       "evt-" + input.Action,
		Action:   input.Action,
		Position: int64(len(r.recorded)),
	}, nil
}
