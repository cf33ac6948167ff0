package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	authsvc "github.com/listergram/backend/internal/services/auth"
)

type TokenParser interface {
	ParseAccessToken(raw string) (authsvc.AccessClaims, error)
}

// ServeWS upgrades authenticated requests to a websocket bound to the hub.
// Browsers cannot set headers on the upgrade, so ?token= is accepted next
// to the Authorization header.
func ServeWS(hub *Hub, tokens TokenParser, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticate(r, tokens)
		if !ok {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			hub.logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		conn.SetReadLimit(maxMessageSize)

		client := newClient(hub, conn, userID)
		if !hub.add(client) {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.writePump(ctx)
		}()

		client.readPump(ctx)
		cancel()
		wg.Wait()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

func authenticate(r *http.Request, tokens TokenParser) (uuid.UUID, bool) {
	if tokens == nil {
		return uuid.Nil, false
	}
	raw := strings.TrimSpace(r.URL.Query().Get("token"))
	if raw == "" {
		parts := strings.SplitN(strings.TrimSpace(r.Header.Get("Authorization")), " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			raw = strings.TrimSpace(parts[1])
		}
	}
	claims, err := tokens.ParseAccessToken(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return claims.UserID, true
}
