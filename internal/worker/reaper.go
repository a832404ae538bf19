package worker

import (
	"context"
	"time"

	"request-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const reaperLockName = "stale-request-reaper"

// Sweeper removes stale pending requests.
type Sweeper interface {
	SweepAllStale(ctx context.Context, retention time.Duration) (int, error)
}

// LockManager keeps the periodic sweep single-flight across instances.
type LockManager interface {
	AcquireLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, token string) error
}

// ReaperWorker periodically sweeps stale pending requests. The sweep itself
// is idempotent; the lock only avoids redundant work when several instances
// run.
type ReaperWorker struct {
	sweeper   Sweeper
	locks     LockManager
	interval  time.Duration
	retention time.Duration
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewReaperWorker creates a new reaper worker
func NewReaperWorker(sweeper Sweeper, locks LockManager, interval, retention, lockTTL time.Duration) *ReaperWorker {
	return &ReaperWorker{
		sweeper:   sweeper,
		locks:     locks,
		interval:  interval,
		retention: retention,
		lockTTL:   lockTTL,
		logger:    util.NamedLogger("reaper"),
	}
}

// Start runs the sweep loop until the context is cancelled. The first sweep
// happens after one full interval.
func (w *ReaperWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reaper worker",
		zap.Duration("interval", w.interval),
		zap.Duration("retention", w.retention))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Reaper worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *ReaperWorker) sweepOnce(ctx context.Context) {
	token := uuid.New().String()

	acquired, err := w.locks.AcquireLock(ctx, reaperLockName, token, w.lockTTL)
	if err != nil {
		w.logger.Warn("Failed to acquire reaper lock", zap.Error(err))
		return
	}
	if !acquired {
		w.logger.Debug("Reaper lock held elsewhere, skipping sweep")
		return
	}
	defer func() {
		if err := w.locks.ReleaseLock(ctx, reaperLockName, token); err != nil {
			w.logger.Warn("Failed to release reaper lock", zap.Error(err))
		}
	}()

	start := time.Now()
	count, err := w.sweeper.SweepAllStale(ctx, w.retention)
	util.ReaperSweepLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		w.logger.Error("Stale request sweep failed", zap.Error(err))
		return
	}

	if count > 0 {
		w.logger.Info("Sweep removed stale requests", zap.Int("count", count))
	}
}
