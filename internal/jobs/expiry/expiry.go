// Package expiry retires matches whose window lapsed without a message.
// Reads already treat such matches as expired; the sweep makes the stored
// status agree so the partial unique index frees the pair.
package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"
)

const defaultBatchSize = 500

type MatchExpirer interface {
	ExpireStale(ctx context.Context, now time.Time, limit int) (int64, error)
}

type Metrics interface {
	MatchesExpired(n int64)
}

type Config struct {
	Interval  time.Duration
	BatchSize int
}

type Job struct {
	matches   MatchExpirer
	metrics   Metrics
	interval  time.Duration
	batchSize int
	clock     clock.Clock
	logger    *zap.Logger
}

func New(matches MatchExpirer, metrics Metrics, cfg Config, logger *zap.Logger) *Job {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		matches:   matches,
		metrics:   metrics,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		clock:     clock.WallClock,
		logger:    logger.Named("expiry"),
	}
}

// RunOnce expires batches until a batch comes back short.
func (j *Job) RunOnce(ctx context.Context) (int64, error) {
	if j.matches == nil {
		return 0, nil
	}

	now := j.clock.Now().UTC()
	var total int64
	for {
		n, err := j.matches.ExpireStale(ctx, now, j.batchSize)
		if err != nil {
			return total, fmt.Errorf("expire stale matches: %w", err)
		}
		total += n
		if n < int64(j.batchSize) || ctx.Err() != nil {
			break
		}
	}

	if total > 0 {
		if j.metrics != nil {
			j.metrics.MatchesExpired(total)
		}
		j.logger.Info("expired stale matches", zap.Int64("count", total))
	}
	return total, nil
}

// Run sweeps every interval until ctx is done. Sweep failures are logged
// and retried on the next tick.
func (j *Job) Run(ctx context.Context) error {
	for {
		if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
			j.logger.Warn("expiry sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-j.clock.After(j.interval):
		}
	}
}
