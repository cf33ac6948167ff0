package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/listergram/backend/internal/domain/failure"
)

type APIError struct {
	Kind          string     `json:"kind"`
	Code          string     `json:"code"`
	Message       string     `json:"message"`
	RetryAfterSec int64      `json:"retry_after_sec,omitempty"`
	ResetAt       *time.Time `json:"reset_at,omitempty"`
}

// Envelope is the body of every error response. Success bodies never carry
// an "error" field.
type Envelope struct {
	Error APIError `json:"error"`
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, apiErr APIError) {
	if apiErr.Kind == "" {
		apiErr.Kind = string(kindForStatus(status))
	}
	Write(w, status, Envelope{Error: apiErr})
}

// FromError maps a service error onto a status and body. Internal errors
// get a generic message; the caller is expected to log the original.
func FromError(err error) (int, APIError) {
	kind := failure.KindOf(err)
	status := StatusForKind(kind)

	apiErr := APIError{
		Kind:    string(kind),
		Code:    codeForKind(kind),
		Message: err.Error(),
	}
	if kind == failure.KindInternal {
		apiErr.Message = "internal error"
	}
	if kind == failure.KindUnavailable {
		apiErr.Message = "service temporarily unavailable"
	}

	var rl *failure.RateLimitedError
	if errors.As(err, &rl) {
		apiErr.RetryAfterSec = rl.RetryAfterSeconds()
		apiErr.ResetAt = rl.ResetAt
	}
	return status, apiErr
}

// Respond writes err, adding Retry-After for rate limited calls.
func Respond(w http.ResponseWriter, err error) {
	status, apiErr := FromError(err)
	if apiErr.RetryAfterSec > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(apiErr.RetryAfterSec, 10))
	}
	Write(w, status, Envelope{Error: apiErr})
}

func StatusForKind(kind failure.Kind) int {
	switch kind {
	case failure.KindInvalidInput:
		return http.StatusBadRequest
	case failure.KindAuthorization, failure.KindForbidden:
		return http.StatusForbidden
	case failure.KindNotFound:
		return http.StatusNotFound
	case failure.KindMatchInactive, failure.KindConflict:
		return http.StatusConflict
	case failure.KindRateLimited:
		return http.StatusTooManyRequests
	case failure.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeForKind(kind failure.Kind) string {
	switch kind {
	case failure.KindInvalidInput:
		return "VALIDATION_ERROR"
	case failure.KindNotFound:
		return "NOT_FOUND"
	case failure.KindForbidden:
		return "FORBIDDEN"
	case failure.KindAuthorization:
		return "NOT_A_PARTICIPANT"
	case failure.KindMatchInactive:
		return "MATCH_INACTIVE"
	case failure.KindConflict:
		return "CONFLICT"
	case failure.KindRateLimited:
		return "RATE_LIMITED"
	case failure.KindUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

func kindForStatus(status int) failure.Kind {
	switch status {
	case http.StatusBadRequest:
		return failure.KindInvalidInput
	case http.StatusUnauthorized:
		return "Unauthenticated"
	case http.StatusForbidden:
		return failure.KindForbidden
	case http.StatusNotFound:
		return failure.KindNotFound
	case http.StatusTooManyRequests:
		return failure.KindRateLimited
	case http.StatusServiceUnavailable:
		return failure.KindUnavailable
	default:
		return failure.KindInternal
	}
}
