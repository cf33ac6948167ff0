package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
	profilesvc "github.com/listergram/backend/internal/services/profiles"
	"github.com/listergram/backend/internal/transport/http/dto"
	httperrors "github.com/listergram/backend/internal/transport/http/errors"
)

type ProfileHandler struct {
	service *profilesvc.Service
	logger  *zap.Logger
}

func NewProfileHandler(service *profilesvc.Service, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{service: service, logger: logger}
}

func (h *ProfileHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	httperrors.Write(w, http.StatusOK, profileResponse(profile, true))
}

func (h *ProfileHandler) UpsertMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req dto.UpsertProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	profile, err := h.service.UpsertProfile(r.Context(), identity.UserID, profilesvc.UpsertInput{
		Email:             req.Email,
		FullName:          req.FullName,
		Username:          req.Username,
		Tower:             enums.Tower(req.Tower),
		Floor:             req.Floor,
		Program:           req.Program,
		YearOfStudy:       enums.YearOfStudy(req.YearOfStudy),
		Bio:               req.Bio,
		Pronouns:          req.Pronouns,
		Age:               req.Age,
		Interests:         req.Interests,
		DatingEnabled:     req.DatingEnabled,
		FriendModeEnabled: req.FriendModeEnabled,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	httperrors.Write(w, http.StatusOK, profileResponse(profile, true))
}

// SetModes flips the mode flags. An omitted flag keeps its current value.
func (h *ProfileHandler) SetModes(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req dto.SetModesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	current, err := h.service.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	dating, friends := current.DatingEnabled, current.FriendModeEnabled
	if req.DatingEnabled != nil {
		dating = *req.DatingEnabled
	}
	if req.FriendModeEnabled != nil {
		friends = *req.FriendModeEnabled
	}

	profile, err := h.service.SetModes(r.Context(), identity.UserID, dating, friends)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	httperrors.Write(w, http.StatusOK, profileResponse(profile, true))
}

func (h *ProfileHandler) Disable(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Disable(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	httperrors.Write(w, http.StatusOK, profileResponse(profile, true))
}

// Get returns another user's public profile. Disabled profiles are hidden.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	self := id == identity.UserID
	if profile.Disabled() && !self {
		httperrors.WriteError(w, http.StatusNotFound, httperrors.APIError{Code: "NOT_FOUND", Message: "profile not found"})
		return
	}
	httperrors.Write(w, http.StatusOK, profileResponse(profile, self))
}

func (h *ProfileHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	mode, ok := parseMode(query.Get("mode"))
	if !ok || mode == nil {
		writeBadRequest(w, "VALIDATION_ERROR", "mode must be dating or friends")
		return
	}
	after, ok := optionalUUID(query.Get("after"))
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid after")
		return
	}

	page, err := h.service.FindCandidates(r.Context(), identity.UserID, *mode, after, parseIntOrDefault(query.Get("limit"), 0))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	items := make([]dto.ProfileResponse, 0, len(page.Items))
	for _, p := range page.Items {
		items = append(items, profileResponse(p, false))
	}
	httperrors.Write(w, http.StatusOK, dto.CandidatesResponse{Items: items, Next: page.Next})
}

func profileResponse(p model.Profile, self bool) dto.ProfileResponse {
	out := dto.ProfileResponse{
		ID:                p.ID,
		FullName:          p.FullName,
		Username:          p.Username,
		Tower:             string(p.Tower),
		Floor:             p.Floor,
		Program:           p.Program,
		YearOfStudy:       string(p.YearOfStudy),
		Bio:               p.Bio,
		Pronouns:          p.Pronouns,
		Age:               p.Age,
		Interests:         p.Interests,
		DatingEnabled:     p.DatingEnabled,
		FriendModeEnabled: p.FriendModeEnabled,
	}
	if out.Interests == nil {
		out.Interests = []string{}
	}
	if self {
		out.Email = p.Email
		out.DisabledAt = p.DisabledAt
	}
	return out
}
