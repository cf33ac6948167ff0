package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/clock"
	"github.com/juju/retry"
	"go.uber.org/zap"

	"github.com/listergram/backend/internal/domain/failure"
)

func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	if pool == nil {
		return errPoolMissing
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	return runTx(ctx, tx, fn)
}

// CommitError is a failed COMMIT. The server may have applied the
// transaction, so the unit is never replayed.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return "commit tx: " + e.Err.Error()
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

func runTx(ctx context.Context, tx pgx.Tx, fn func(context.Context, pgx.Tx) error) error {
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return &CommitError{Err: err}
	}

	return nil
}

type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// Runner executes transactions and retries the whole unit when a failure
// before COMMIT is transient. Exhausted retries and failed commits surface
// as failure.ErrUnavailable.
type Runner struct {
	begin    func(context.Context) (pgx.Tx, error)
	attempts int
	delay    time.Duration
	clock    clock.Clock
	logger   *zap.Logger
}

func NewRunner(pool *pgxpool.Pool, cfg RetryConfig, logger *zap.Logger) *Runner {
	if cfg.Attempts < 1 {
		cfg.Attempts = 2
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var begin func(context.Context) (pgx.Tx, error)
	if pool != nil {
		begin = func(ctx context.Context) (pgx.Tx, error) {
			return pool.BeginTx(ctx, pgx.TxOptions{})
		}
	}
	return &Runner{
		begin:    begin,
		attempts: cfg.Attempts,
		delay:    cfg.Delay,
		clock:    clock.WallClock,
		logger:   logger,
	}
}

func (r *Runner) WithinTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	if r == nil || r.begin == nil {
		return failure.Unavailable(errPoolMissing)
	}
	err := r.Retry(ctx, func(ctx context.Context) error {
		tx, err := r.begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		return runTx(ctx, tx, fn)
	})

	var commitErr *CommitError
	if errors.As(err, &commitErr) {
		r.logger.Error("commit outcome unknown", zap.Error(err))
		return failure.Unavailable(err)
	}
	return err
}

func (r *Runner) Retry(ctx context.Context, fn func(context.Context) error) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			return fn(ctx)
		},
		IsFatalError: func(err error) bool {
			return !IsTransient(err)
		},
		NotifyFunc: func(err error, attempt int) {
			r.logger.Warn("transient storage failure", zap.Int("attempt", attempt), zap.Error(err))
		},
		Attempts:    r.attempts,
		Delay:       r.delay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       r.clock,
		Stop:        ctx.Done(),
	})
	if err == nil {
		return nil
	}

	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		last := retry.LastError(err)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(last, ctxErr) {
			return ctxErr
		}
		return failure.Unavailable(last)
	}
	return err
}
