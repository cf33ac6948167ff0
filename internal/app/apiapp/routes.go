package apiapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	convsvc "github.com/listergram/backend/internal/services/conversations"
	matchingsvc "github.com/listergram/backend/internal/services/matching"
	profilesvc "github.com/listergram/backend/internal/services/profiles"
	"github.com/listergram/backend/internal/transport/http/handlers"
)

type Dependencies struct {
	ProfileService      *profilesvc.Service
	MatchingService     *matchingsvc.Service
	ConversationService *convsvc.Service
	Tokens              TokenParser
	HealthChecks        map[string]handlers.Pinger
	Metrics             http.Handler
	WebSocket           http.Handler
	Logger              *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)
	profileHandler := handlers.NewProfileHandler(deps.ProfileService, deps.Logger)
	swipeHandler := handlers.NewSwipeHandler(deps.MatchingService, deps.Logger)
	matchesHandler := handlers.NewMatchesHandler(deps.MatchingService, deps.Logger)
	messagesHandler := handlers.NewMessagesHandler(deps.ConversationService, deps.Logger)
	authMW := AuthMiddleware(deps.Tokens, deps.Logger)

	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	// Long-lived; must stay outside the request timeout.
	if deps.WebSocket != nil {
		r.Handle("/v1/ws", deps.WebSocket)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))
		r.Use(authMW)

		r.Get("/me/profile", profileHandler.GetMe)
		r.Put("/me/profile", profileHandler.UpsertMe)
		r.Patch("/me/modes", profileHandler.SetModes)
		r.Post("/me/disable", profileHandler.Disable)
		r.Get("/profiles/{id}", profileHandler.Get)
		r.Get("/candidates", profileHandler.Candidates)

		r.Post("/swipes", swipeHandler.Handle)
		r.Get("/superlikes", swipeHandler.Superlikes)

		r.Get("/matches", matchesHandler.List)
		r.Get("/matches/{id}", matchesHandler.Get)
		r.Post("/matches/{id}/unmatch", matchesHandler.Unmatch)
		r.Get("/matches/{id}/messages", messagesHandler.List)
		r.Post("/matches/{id}/messages", messagesHandler.Send)
		r.Post("/matches/{id}/read", messagesHandler.MarkRead)

		r.Post("/blocks", matchesHandler.Block)
		r.Post("/reports", matchesHandler.Report)
	})
}
