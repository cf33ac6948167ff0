package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/failure"
	authsvc "github.com/listergram/backend/internal/services/auth"
	httperrors "github.com/listergram/backend/internal/transport/http/errors"
)

const maxBodyBytes = 64 << 10

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.WriteError(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.WriteError(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.WriteError(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

// respondError renders a service error. Anything outside the taxonomy is
// logged with the request id before a generic 500 goes out.
func respondError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	if log != nil {
		switch failure.KindOf(err) {
		case failure.KindInternal:
			log.Error("request failed",
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
		case failure.KindUnavailable:
			log.Warn("dependency unavailable",
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.Error(err),
			)
		}
	}
	httperrors.Respond(w, err)
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (authsvc.Identity, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok || identity.UserID == uuid.Nil {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return authsvc.Identity{}, false
	}
	return identity, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil || id == uuid.Nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseIntOrDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

// parseMode accepts an empty value as "no filter".
func parseMode(raw string) (*enums.Mode, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return nil, true
	}
	mode := enums.Mode(raw)
	if !mode.Valid() {
		return nil, false
	}
	return &mode, true
}

func optionalUUID(raw string) (*uuid.UUID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}
