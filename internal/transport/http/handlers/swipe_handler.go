package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/listergram/backend/internal/domain/enums"
	matchingsvc "github.com/listergram/backend/internal/services/matching"
	"github.com/listergram/backend/internal/transport/http/dto"
	httperrors "github.com/listergram/backend/internal/transport/http/errors"
)

type SwipeHandler struct {
	service *matchingsvc.Service
	logger  *zap.Logger
}

func NewSwipeHandler(service *matchingsvc.Service, logger *zap.Logger) *SwipeHandler {
	return &SwipeHandler{service: service, logger: logger}
}

func (h *SwipeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req dto.SwipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.service.RecordSwipe(
		r.Context(),
		identity.UserID,
		req.TargetID,
		enums.Mode(strings.ToLower(strings.TrimSpace(req.Mode))),
		enums.SwipeDecision(strings.ToLower(strings.TrimSpace(req.Decision))),
	)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SwipeResponse{
		Matched: result.Matched,
		MatchID: result.MatchID,
		Created: result.Created,
	})
}

// Superlikes reports the caller's remaining superlikes for ?mode=.
func (h *SwipeHandler) Superlikes(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	mode, ok := parseMode(r.URL.Query().Get("mode"))
	if !ok || mode == nil {
		writeBadRequest(w, "VALIDATION_ERROR", "mode must be dating or friends")
		return
	}

	status, err := h.service.SuperlikeStatus(r.Context(), identity.UserID, *mode)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SuperlikeStatusResponse{
		Mode:      string(*mode),
		Allowed:   status.Allowed,
		Limit:     status.Limit,
		Remaining: status.Remaining,
		ResetAt:   status.ResetAt,
	})
}
