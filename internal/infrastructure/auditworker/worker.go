package auditworker

import (
	"context"
	"log/slog"
	"time"

	"github.com/iho/chainledger/internal/domain"
	"github.com/iho/chainledger/internal/usecase"
)

// Recorder appends an audit event to the chain. Satisfied by
// usecase.AuditTrail.
type Recorder interface {
	RecordEvent(ctx context.Context, input usecase.RecordEventInput) (*domain.AuditEvent, error)
}

// Retryer retries an operation on transient failures. Satisfied by
// postgres.Retrier.
type Retryer interface {
	Retry(ctx context.Context, operation func() error) error
}

// noRetry runs the operation exactly once.
type noRetry struct{}

func (noRetry) Retry(ctx context.Context, operation func() error) error {
	return operation()
}

// Worker drains the audit backlog: events whose best-effort emission
// failed after a committed ledger write are replayed onto the audit
// chain until they land.
type Worker struct {
	backlog   usecase.BacklogRepository
	recorder  Recorder
	retryer   Retryer
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
	retention time.Duration
}

// Config for Worker.
type Config struct {
	Backlog   usecase.BacklogRepository
	Recorder  Recorder
	Retryer   Retryer // Retries transient failures during replay; optional
	Logger    *slog.Logger
	BatchSize int           // Number of backlog items to fetch per batch
	Interval  time.Duration // Polling interval
	Retention time.Duration // How long processed items are kept before cleanup
}

// New creates a backlog worker.
func New(cfg Config) *Worker {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Retention == 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retryer == nil {
		cfg.Retryer = noRetry{}
	}

	return &Worker{
		backlog:   cfg.Backlog,
		recorder:  cfg.Recorder,
		retryer:   cfg.Retryer,
		logger:    cfg.Logger,
		batchSize: cfg.BatchSize,
		interval:  cfg.Interval,
		retention: cfg.Retention,
	}
}

// Start begins the backlog drain loop.
// It runs continuously until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("audit backlog worker started",
		slog.Int("batch_size", w.batchSize),
		slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Drain immediately on start
	if err := w.drainOnce(ctx); err != nil {
		w.logger.Error("error draining backlog on start", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("audit backlog worker shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				w.logger.Error("error draining backlog", slog.String("error", err.Error()))
			}
		}
	}
}

// drainOnce fetches one batch of pending items and replays them.
func (w *Worker) drainOnce(ctx context.Context) error {
	items, err := w.backlog.ListPending(ctx, w.batchSize)
	if err != nil {
		return err
	}

	if len(items) > 0 {
		w.logger.Info("replaying backlog items", slog.Int("count", len(items)))

		for _, item := range items {
			if err := w.replayItem(ctx, item); err != nil {
				w.logger.Error("failed to replay backlog item",
					slog.String("item_id", item.ID),
					slog.String("action", item.Action),
					slog.String("error", err.Error()))

				if markErr := w.backlog.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
					w.logger.Error("failed to record backlog failure",
						slog.String("item_id", item.ID),
						slog.String("error", markErr.Error()))
				}
				// Continue replaying other items even if one fails
				continue
			}

			if err := w.backlog.MarkProcessed(ctx, item.ID, time.Now()); err != nil {
				w.logger.Error("failed to mark backlog item processed",
					slog.String("item_id", item.ID),
					slog.String("error", err.Error()))
				// Don't continue - we don't want to replay this item twice
			}
		}
	}

	if err := w.backlog.DeleteProcessed(ctx, time.Now().Add(-w.retention)); err != nil {
		w.logger.Error("failed to clean up processed backlog items",
			slog.String("error", err.Error()))
	}

	return nil
}

// replayItem appends one queued event to the audit chain.
func (w *Worker) replayItem(ctx context.Context, item *domain.BacklogItem) error {
	w.logger.Debug("replaying backlog item",
		slog.String("item_id", item.ID),
		slog.String("action", item.Action),
		slog.String("resource", item.Resource),
		slog.Int("attempts", item.Attempts))

	var event *domain.AuditEvent
	err := w.retryer.Retry(ctx, func() error {
		var recordErr error
		event, recordErr = w.recorder.RecordEvent(ctx, usecase.RecordEventInput{
			ActorID:    item.ActorID,
			Action:     item.Action,
			Resource:   item.Resource,
			ResourceID: item.ResourceID,
			Details:    item.Details,
			Severity:   item.Severity,
			Category:   item.Category,
		})
		return recordErr
	})
	if err != nil {
		return err
	}

	w.logger.Info("backlog item replayed",
		slog.String("item_id", item.ID),
		slog.String("event_id", event.ID),
		slog.Int64("position", event.Position))

	return nil
}
