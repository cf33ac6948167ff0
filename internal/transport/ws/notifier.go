package ws

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/listergram/backend/internal/domain/model"
)

// HubNotifier pushes committed match and conversation changes to the
// participants' open connections.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) MatchCreated(_ context.Context, m model.Match) {
	n.publish(EventTypeMatchCreated, m.ID, m, m.User1ID, m.User2ID)
}

func (n *HubNotifier) MatchEnded(_ context.Context, m model.Match) {
	n.publish(EventTypeMatchEnded, m.ID, m, m.User1ID, m.User2ID)
}

func (n *HubNotifier) MessageCreated(_ context.Context, m model.Match, msg model.Message) {
	n.publish(EventTypeMessageCreated, m.ID, msg, m.User1ID, m.User2ID)
}

// MessagesRead tells the sender side that its messages were seen.
func (n *HubNotifier) MessagesRead(_ context.Context, m model.Match, readerID uuid.UUID, through time.Time) {
	peer, ok := m.Peer(readerID)
	if !ok {
		return
	}
	n.publish(EventTypeMessageRead, m.ID, MessageReadPayload{ReaderID: readerID, Through: through}, peer)
}

func (n *HubNotifier) publish(eventType string, matchID uuid.UUID, payload any, userIDs ...uuid.UUID) {
	if n == nil || n.hub == nil {
		return
	}
	evt, err := NewEvent(eventType, &matchID, payload)
	if err != nil {
		n.hub.logger.Error("build event", zap.String("type", eventType), zap.Error(err))
		return
	}
	n.hub.SendToUsers(evt, userIDs...)
}
