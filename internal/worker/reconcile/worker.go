// Package reconcile implements the background sweep that recounts
// denormalized counters and refreshes club statistics rollups.
package reconcile

import (
	"context"
	"time"

	"github.com/campushub/clubsync/internal/setup"
	"github.com/campushub/clubsync/internal/social"
	"github.com/campushub/clubsync/internal/social/types"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval    = 5 * time.Minute
	defaultSweepConcurrency = 4
)

// Worker periodically recounts every club's member counter and statistics
// rollup from the membership records themselves.
type Worker struct {
	social      social.Client
	interval    time.Duration
	concurrency int
	logger      *zap.Logger
}

// New creates a new reconciliation worker.
func New(app *setup.App, logger *zap.Logger) *Worker {
	interval := defaultSweepInterval
	if app.Config.Worker.SweepIntervalMs > 0 {
		interval = time.Duration(app.Config.Worker.SweepIntervalMs) * time.Millisecond
	}

	concurrency := defaultSweepConcurrency
	if app.Config.Worker.SweepConcurrency > 0 {
		concurrency = app.Config.Worker.SweepConcurrency
	}

	return &Worker{
		social:      app.Social,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger.Named("reconcile_worker"),
	}
}

// Start begins the reconciliation worker's main loop. It blocks until the
// context is canceled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Reconciliation worker started",
		zap.Duration("interval", w.interval),
		zap.Int("concurrency", w.concurrency))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Sweep(ctx); err != nil {
			w.logger.Error("Reconciliation sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			w.logger.Info("Reconciliation worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep recounts the member counter and refreshes the statistics rollup for
// every club. Clubs are processed concurrently; the first failure cancels
// the remainder of the sweep.
func (w *Worker) Sweep(ctx context.Context) error {
	started := time.Now()

	clubIDs, err := w.social.Model().Club().ListIDs(ctx)
	if err != nil {
		return err
	}

	reconciler := w.social.Service().Reconciler()

	p := pool.New().WithMaxGoroutines(w.concurrency).WithContext(ctx)

	for _, clubID := range clubIDs {
		clubID := clubID
		p.Go(func(ctx context.Context) error {
			if _, err := reconciler.ReconcileOne(ctx, types.ClubRef(clubID), types.KindMember); err != nil {
				return err
			}

			_, err := reconciler.ForceRefreshClubStats(ctx, clubID)

			return err
		})
	}

	if err := p.Wait(); err != nil {
		return err
	}

	w.logger.Info("Reconciliation sweep finished",
		zap.Int("clubs", len(clubIDs)),
		zap.Duration("elapsed", time.Since(started)))

	return nil
}
