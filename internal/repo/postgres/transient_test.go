package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap/zaptest"

	"github.com/listergram/backend/internal/domain/failure"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("lock pair: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
		{"commit", &CommitError{Err: &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("unexpected IsTransient: got %v want %v", got, tc.want)
			}
		})
	}
}

func newTestRunner(t *testing.T, attempts int) *Runner {
	t.Helper()
	return NewRunner(nil, RetryConfig{Attempts: attempts, Delay: time.Millisecond}, zaptest.NewLogger(t))
}

func TestRetryReplaysTransientFailures(t *testing.T) {
	runner := newTestRunner(t, 3)

	calls := 0
	err := runner.Retry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 3 {
		t.Fatalf("unexpected attempts: got %d want %d", calls, 3)
	}
}

func TestRetrySurfacesExhaustionAsUnavailable(t *testing.T) {
	runner := newTestRunner(t, 2)

	calls := 0
	err := runner.Retry(context.Background(), func(context.Context) error {
		calls++
		return &pgconn.PgError{Code: "08006"}
	})
	if failure.KindOf(err) != failure.KindUnavailable {
		t.Fatalf("expected Unavailable, got %v", err)
	}
	if !failure.Retryable(err) {
		t.Fatalf("exhausted transient failure should be retryable by the caller")
	}
	if calls != 2 {
		t.Fatalf("unexpected attempts: got %d want %d", calls, 2)
	}
}

func TestRetryReturnsDomainErrorsUntouched(t *testing.T) {
	runner := newTestRunner(t, 3)

	calls := 0
	err := runner.Retry(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("match is expired: %w", failure.ErrMatchInactive)
	})
	if !errors.Is(err, failure.ErrMatchInactive) {
		t.Fatalf("expected ErrMatchInactive, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("domain errors must not be replayed: got %d attempts", calls)
	}
}

func TestWithinTxWithoutPoolIsUnavailable(t *testing.T) {
	runner := newTestRunner(t, 1)
	err := runner.WithinTx(context.Background(), nil)
	if failure.KindOf(err) != failure.KindUnavailable {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}

type scriptedTx struct {
	pgx.Tx
	commitErr error
	commits   int
}

func (tx *scriptedTx) Commit(context.Context) error {
	tx.commits++
	return tx.commitErr
}

func (tx *scriptedTx) Rollback(context.Context) error {
	return nil
}

func TestWithinTxDoesNotReplayFailedCommit(t *testing.T) {
	runner := newTestRunner(t, 3)
	tx := &scriptedTx{commitErr: &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}}
	begins := 0
	runner.begin = func(context.Context) (pgx.Tx, error) {
		begins++
		return tx, nil
	}

	calls := 0
	err := runner.WithinTx(context.Background(), func(context.Context, pgx.Tx) error {
		calls++
		return nil
	})
	if failure.KindOf(err) != failure.KindUnavailable {
		t.Fatalf("expected Unavailable, got %v", err)
	}
	var commitErr *CommitError
	if !errors.As(err, &commitErr) {
		t.Fatalf("expected CommitError in chain, got %v", err)
	}
	if calls != 1 || begins != 1 || tx.commits != 1 {
		t.Fatalf("failed commit must not be replayed: calls=%d begins=%d commits=%d", calls, begins, tx.commits)
	}
}

func TestWithinTxReplaysFailedBegin(t *testing.T) {
	runner := newTestRunner(t, 3)
	tx := &scriptedTx{}
	begins := 0
	runner.begin = func(context.Context) (pgx.Tx, error) {
		begins++
		if begins == 1 {
			return nil, &pgconn.PgError{Code: "08006"}
		}
		return tx, nil
	}

	calls := 0
	err := runner.WithinTx(context.Background(), func(context.Context, pgx.Tx) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}
	if begins != 2 || calls != 1 || tx.commits != 1 {
		t.Fatalf("unexpected attempts: begins=%d calls=%d commits=%d", begins, calls, tx.commits)
	}
}
