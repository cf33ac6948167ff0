// Package failure holds the error kinds every public operation reports.
// Callers match them with errors.Is; transports render Kind as a stable string.
package failure

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindInvalidInput  Kind = "InvalidInput"
	KindNotFound      Kind = "NotFound"
	KindForbidden     Kind = "Forbidden"
	KindMatchInactive Kind = "MatchInactive"
	KindRateLimited   Kind = "RateLimited"
	KindConflict      Kind = "Conflict"
	KindAuthorization Kind = "AuthorizationError"
	KindUnavailable   Kind = "Unavailable"
	KindInternal      Kind = "Internal"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrMatchInactive = errors.New("match inactive")
	ErrRateLimited   = errors.New("rate limited")
	ErrConflict      = errors.New("conflict")
	ErrAuthorization = errors.New("authorization error")
	ErrUnavailable   = errors.New("unavailable")
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrInvalidInput, KindInvalidInput},
	{ErrNotFound, KindNotFound},
	{ErrForbidden, KindForbidden},
	{ErrMatchInactive, KindMatchInactive},
	{ErrRateLimited, KindRateLimited},
	{ErrConflict, KindConflict},
	{ErrAuthorization, KindAuthorization},
	{ErrUnavailable, KindUnavailable},
}

// KindOf classifies err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}

// Retryable reports whether err may be retried by the caller.
// Only Unavailable qualifies.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

type RateLimitedError struct {
	Scope      string
	RetryAfter time.Duration
	ResetAt    *time.Time
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited, retry after %s", e.Scope, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Scope)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

func (e *RateLimitedError) RetryAfterSeconds() int64 {
	if e.RetryAfter <= 0 {
		return 0
	}
	sec := int64(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		sec++
	}
	return sec
}

func IsRateLimited(err error) (*RateLimitedError, bool) {
	var target *RateLimitedError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Unavailable marks cause as a storage or dependency outage.
func Unavailable(cause error) error {
	if cause == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, cause)
}
