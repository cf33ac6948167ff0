package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

// Window caps actions to Max per Size. Label becomes part of the redis key.
type Window struct {
	Label string
	Size  time.Duration
	Max   int
}

func PerMinute(max int) Window {
	return Window{Label: "min", Size: time.Minute, Max: max}
}

func Per10Seconds(max int) Window {
	return Window{Label: "10s", Size: 10 * time.Second, Max: max}
}

// Limiter applies fixed windows to one action scope, e.g. "swipes".
type Limiter struct {
	store   WindowStore
	scope   string
	windows []Window
}

func NewLimiter(store WindowStore, scope string, windows ...Window) *Limiter {
	active := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.Max > 0 && w.Size > 0 {
			active = append(active, w)
		}
	}

	return &Limiter{
		store:   store,
		scope:   scope,
		windows: active,
	}
}

// Allow counts one action for userID. When any window is over its cap the
// action is refused and the longest remaining window TTL is returned.
func (l *Limiter) Allow(ctx context.Context, userID uuid.UUID) (time.Duration, bool, error) {
	if userID == uuid.Nil {
		return 0, false, fmt.Errorf("invalid user id")
	}
	if len(l.windows) == 0 {
		return 0, true, nil
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	var retryAfter time.Duration
	for _, w := range l.windows {
		count, ttl, err := l.store.IncrementWindow(ctx, l.key(w, userID), w.Size)
		if err != nil {
			return 0, false, err
		}
		if count > int64(w.Max) {
			retryAfter = maxDuration(retryAfter, atLeastSecond(ttl))
		}
	}

	if retryAfter > 0 {
		return retryAfter, false, nil
	}
	return 0, true, nil
}

// RetryAfter reports how long userID must wait without consuming a slot.
func (l *Limiter) RetryAfter(ctx context.Context, userID uuid.UUID) (time.Duration, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("invalid user id")
	}
	if len(l.windows) == 0 {
		return 0, nil
	}
	if l.store == nil {
		return 0, fmt.Errorf("rate limiter store is nil")
	}

	var retryAfter time.Duration
	for _, w := range l.windows {
		count, ttl, err := l.store.WindowState(ctx, l.key(w, userID))
		if err != nil {
			return 0, err
		}
		if count >= int64(w.Max) {
			retryAfter = maxDuration(retryAfter, atLeastSecond(ttl))
		}
	}
	return retryAfter, nil
}

func (l *Limiter) key(w Window, userID uuid.UUID) string {
	return "rate:" + l.scope + ":" + w.Label + ":" + userID.String()
}

func atLeastSecond(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	return d
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
