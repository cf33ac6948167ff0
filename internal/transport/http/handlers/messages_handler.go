package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
	convsvc "github.com/listergram/backend/internal/services/conversations"
	"github.com/listergram/backend/internal/transport/http/dto"
	httperrors "github.com/listergram/backend/internal/transport/http/errors"
)

type MessagesHandler struct {
	service *convsvc.Service
	logger  *zap.Logger
}

func NewMessagesHandler(service *convsvc.Service, logger *zap.Logger) *MessagesHandler {
	return &MessagesHandler{service: service, logger: logger}
}

// List pages through a conversation oldest first. ?cursor= resumes after the
// last message of the previous page.
func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	matchID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	query := r.URL.Query()
	page, err := h.service.ListMessages(
		r.Context(),
		matchID,
		identity.UserID,
		strings.TrimSpace(query.Get("cursor")),
		parseIntOrDefault(query.Get("limit"), 0),
	)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	items := make([]dto.MessageResponse, 0, len(page.Items))
	for _, msg := range page.Items {
		items = append(items, messageResponse(msg))
	}
	httperrors.Write(w, http.StatusOK, dto.MessagesResponse{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	matchID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	msg, err := h.service.SendMessage(r.Context(), matchID, identity.UserID, convsvc.Content{
		Type:         enums.MessageType(strings.ToLower(strings.TrimSpace(req.Type))),
		Text:         req.Text,
		MediaURL:     strings.TrimSpace(req.MediaURL),
		ClientSentAt: req.ClientSentAt,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	httperrors.Write(w, http.StatusCreated, messageResponse(msg))
}

// MarkRead accepts an empty body, which marks everything up to now.
func (h *MessagesHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	matchID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req dto.MarkReadRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
			return
		}
	}
	var through time.Time
	if req.Through != nil {
		through = *req.Through
	}

	updated, err := h.service.MarkRead(r.Context(), matchID, identity.UserID, through)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.MarkReadResponse{Updated: updated})
}

func messageResponse(msg model.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:           msg.ID,
		MatchID:      msg.MatchID,
		SenderID:     msg.SenderID,
		Type:         string(msg.Type),
		Text:         msg.Text,
		MediaURL:     msg.MediaURL,
		ClientSentAt: msg.ClientSentAt,
		CreatedAt:    msg.CreatedAt,
		ReadAt:       msg.ReadAt,
	}
}
