package runs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Janitor periodically drops finished runs older than the retention window.
type Janitor struct {
	repo      Repository
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	running   atomic.Bool
	now       func() time.Time
}

func NewJanitor(repo Repository, retention time.Duration, logger *slog.Logger) *Janitor {
	interval := retention / 4
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	return &Janitor{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	if j.running.Swap(true) {
		return
	}
	defer j.running.Store(false)

	j.logger.Info("run janitor started", "retention", j.retention.String())

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("run janitor stopping")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one prune pass and returns how many runs were removed.
func (j *Janitor) Sweep(ctx context.Context) int64 {
	n, err := j.repo.Prune(ctx, j.now().Add(-j.retention))
	if err != nil {
		j.logger.Warn("failed to prune runs", "error", err)
		return 0
	}
	if n > 0 {
		j.logger.Debug("pruned finished runs", "count", n)
	}
	return n
}

func (j *Janitor) IsRunning() bool {
	return j.running.Load()
}
