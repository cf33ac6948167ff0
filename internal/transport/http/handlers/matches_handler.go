package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
	matchingsvc "github.com/listergram/backend/internal/services/matching"
	"github.com/listergram/backend/internal/transport/http/dto"
	httperrors "github.com/listergram/backend/internal/transport/http/errors"
)

type MatchesHandler struct {
	service *matchingsvc.Service
	logger  *zap.Logger
}

func NewMatchesHandler(service *matchingsvc.Service, logger *zap.Logger) *MatchesHandler {
	return &MatchesHandler{service: service, logger: logger}
}

func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	mode, ok := parseMode(r.URL.Query().Get("mode"))
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "mode must be dating or friends")
		return
	}

	items, err := h.service.ListMatches(r.Context(), identity.UserID, mode)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	out := make([]dto.MatchResponse, 0, len(items))
	for _, m := range items {
		out = append(out, matchResponse(m, identity.UserID))
	}
	httperrors.Write(w, http.StatusOK, dto.MatchesResponse{Items: out})
}

func (h *MatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	matchID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	m, err := h.service.GetMatch(r.Context(), matchID, identity.UserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	httperrors.Write(w, http.StatusOK, matchResponse(m, identity.UserID))
}

func (h *MatchesHandler) Unmatch(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	matchID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	m, err := h.service.Unmatch(r.Context(), matchID, identity.UserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	httperrors.Write(w, http.StatusOK, matchResponse(m, identity.UserID))
}

func (h *MatchesHandler) Block(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req dto.BlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.TargetID == uuid.Nil {
		writeBadRequest(w, "VALIDATION_ERROR", "target_id is required")
		return
	}

	if err := h.service.Block(r.Context(), identity.UserID, req.TargetID, strings.TrimSpace(req.Reason)); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	httperrors.Write(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *MatchesHandler) Report(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req dto.ReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.TargetID == uuid.Nil {
		writeBadRequest(w, "VALIDATION_ERROR", "target_id is required")
		return
	}

	report, err := h.service.Report(r.Context(), matchingsvc.ReportInput{
		ReporterID: identity.UserID,
		TargetID:   req.TargetID,
		MessageID:  req.MessageID,
		Reason:     enums.ReportReason(strings.ToLower(strings.TrimSpace(req.Reason))),
		Details:    strings.TrimSpace(req.Details),
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	httperrors.Write(w, http.StatusCreated, dto.ReportResponse{
		ID:        report.ID,
		Status:    string(report.Status),
		CreatedAt: report.CreatedAt,
	})
}

func matchResponse(m model.Match, viewerID uuid.UUID) dto.MatchResponse {
	peer, _ := m.Peer(viewerID)
	return dto.MatchResponse{
		ID:                  m.ID,
		PeerID:              peer,
		Mode:                string(m.Mode),
		Status:              string(m.Status),
		CreatedAt:           m.CreatedAt,
		ExpiresAt:           m.ExpiresAt,
		ConversationStarted: m.ConversationStarted,
		EndedAt:             m.EndedAt,
	}
}
