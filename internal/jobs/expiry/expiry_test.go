package expiry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/juju/clock/testclock"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
	"github.com/listergram/backend/internal/repo/memory"
)

type batchExpirer struct {
	mu      sync.Mutex
	batches []int64
	calls   int
	err     error
}

func (e *batchExpirer) ExpireStale(context.Context, time.Time, int) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return 0, e.err
	}
	if len(e.batches) == 0 {
		return 0, nil
	}
	n := e.batches[0]
	e.batches = e.batches[1:]
	return n, nil
}

func (e *batchExpirer) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type countingMetrics struct {
	mu      sync.Mutex
	expired int64
}

func (m *countingMetrics) MatchesExpired(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired += n
}

func TestRunOnceDrainsFullBatches(t *testing.T) {
	expirer := &batchExpirer{batches: []int64{2, 2, 1}}
	metrics := &countingMetrics{}
	job := New(expirer, metrics, Config{BatchSize: 2}, zaptest.NewLogger(t))

	total, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if total != 5 {
		t.Fatalf("unexpected expired count: got %d want %d", total, 5)
	}
	if expirer.callCount() != 3 {
		t.Fatalf("unexpected batch calls: got %d want %d", expirer.callCount(), 3)
	}
	if metrics.expired != 5 {
		t.Fatalf("unexpected metric value: got %d want %d", metrics.expired, 5)
	}
}

func TestRunOnceReportsStoreError(t *testing.T) {
	job := New(&batchExpirer{err: errors.New("connection reset")}, nil, Config{}, zaptest.NewLogger(t))
	if _, err := job.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected store error")
	}
}

func TestRunSweepsOnEveryTick(t *testing.T) {
	defer goleak.VerifyNone(t)

	clk := testclock.NewClock(time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC))
	expirer := &batchExpirer{err: errors.New("database is starting up")}
	job := New(expirer, nil, Config{Interval: time.Minute}, zaptest.NewLogger(t))
	job.clock = clk

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = job.Run(ctx)
	}()

	for tick := 1; tick <= 2; tick++ {
		if err := clk.WaitAdvance(time.Minute, time.Second, 1); err != nil {
			t.Fatalf("advance clock: %v", err)
		}
	}
	deadline := time.Now().Add(time.Second)
	for expirer.callCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := expirer.callCount(); got < 3 {
		t.Fatalf("failed sweeps must be retried on the next tick: got %d calls", got)
	}

	cancel()
	<-done
}

func TestRunOnceRetiresLapsedMatchesInMemoryStore(t *testing.T) {
	store := memory.New()
	now := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)
	lapsed := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		for _, expires := range []*time.Time{&lapsed, &future} {
			a, b := model.OrderedPair(uuid.New(), uuid.New())
			if _, _, err := store.Matches().CreateActive(ctx, tx, model.Match{
				ID: uuid.New(), User1ID: a, User2ID: b, Mode: enums.ModeDating,
				CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: expires,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	job := New(store.Matches(), nil, Config{}, zaptest.NewLogger(t))
	job.clock = testclock.NewClock(now)

	total, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if total != 1 {
		t.Fatalf("unexpected expired count: got %d want %d", total, 1)
	}
	if total, _ = job.RunOnce(context.Background()); total != 0 {
		t.Fatalf("second sweep should be a no-op, expired %d", total)
	}
}
