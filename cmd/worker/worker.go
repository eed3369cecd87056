package main

import (
	"context"
	"time"

	"facturo/pkg/logger"
)

// OverdueMarker moves past-due documents to overdue.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

// IdempotencyCleaner deletes expired idempotency keys.
type IdempotencyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Intervals sets how often each job runs.
type Intervals struct {
	Overdue time.Duration
	Cleanup time.Duration
}

// Worker runs the periodic jobs until its context ends.
type Worker struct {
	overdue     OverdueMarker
	idempotency IdempotencyCleaner
	intervals   Intervals
	log         *logger.Logger
	now         func() time.Time
}

func NewWorker(overdue OverdueMarker, idempotency IdempotencyCleaner, log *logger.Logger, intervals Intervals) *Worker {
	return &Worker{
		overdue:     overdue,
		idempotency: idempotency,
		intervals:   intervals,
		log:         log.WithComponent("worker"),
		now:         time.Now,
	}
}

// Run executes every job once, then on its own ticker.
func (w *Worker) Run(ctx context.Context) {
	overdueTicker := time.NewTicker(w.intervals.Overdue)
	defer overdueTicker.Stop()

	cleanupTicker := time.NewTicker(w.intervals.Cleanup)
	defer cleanupTicker.Stop()

	w.markOverdue(ctx)
	w.cleanupIdempotency(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-overdueTicker.C:
			w.markOverdue(ctx)
		case <-cleanupTicker.C:
			w.cleanupIdempotency(ctx)
		}
	}
}

func (w *Worker) markOverdue(ctx context.Context) {
	marked, err := w.overdue.MarkOverdue(ctx, w.now().UTC())
	if err != nil {
		w.log.Errorw("overdue sweep failed", "error", err)
		return
	}
	if marked > 0 {
		w.log.Infow("marked documents overdue", "count", marked)
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	deleted, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", deleted)
	}
}
