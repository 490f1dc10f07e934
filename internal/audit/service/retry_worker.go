package service

import (
	"context"
	"log/slog"
	"time"

	auditmetrics "caretrail/internal/audit/metrics"
	"caretrail/internal/audit/store"
	"caretrail/internal/audit/store/retryqueue"
)

// RetryWorker drains the retry queue back into the log store. It runs beside
// the HTTP server and keeps the best-effort ingestion guarantee honest:
// records parked during a store outage land in the ledger once the store
// recovers.
type RetryWorker struct {
	logger   *slog.Logger
	store    store.Store
	queue    retryqueue.Queue
	metrics  *auditmetrics.Metrics
	interval time.Duration
}

func NewRetryWorker(st store.Store, queue retryqueue.Queue, logger *slog.Logger, metrics *auditmetrics.Metrics, interval time.Duration) *RetryWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &RetryWorker{
		logger:   logger,
		store:    st,
		queue:    queue,
		metrics:  metrics,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled.
func (w *RetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain re-appends parked records until the queue is empty or the store
// fails again. On failure the record goes back to the queue and the worker
// waits for the next tick; hammering a down store helps nobody.
func (w *RetryWorker) drain(ctx context.Context) {
	for {
		record, err := w.queue.Dequeue(ctx)
		if err != nil || record == nil {
			return
		}

		if err := w.store.Append(ctx, record); err != nil {
			w.logger.WarnContext(ctx, "retry append failed, re-parking record",
				"record_id", record.ID.String(),
				"error", err.Error(),
			)
			if qErr := w.queue.Enqueue(ctx, record); qErr != nil {
				w.logger.ErrorContext(ctx, "re-park failed, record lost",
					"record_id", record.ID.String(),
					"error", qErr.Error(),
				)
			}
			return
		}
		if w.metrics != nil {
			w.metrics.RecordsRetried.Inc()
		}
	}
}
