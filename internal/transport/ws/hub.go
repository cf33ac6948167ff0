package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const deliverBufSize = 256

type ConnectionMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
}

// Hub tracks live connections per user and fans events out to them.
// A user may hold several connections, one per device.
type Hub struct {
	logger  *zap.Logger
	metrics ConnectionMetrics

	clients map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	done       chan struct{}
}

type delivery struct {
	userIDs []uuid.UUID
	data    []byte
}

func NewHub(logger *zap.Logger, metrics ConnectionMetrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger.Named("ws_hub"),
		metrics:    metrics,
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, deliverBufSize),
		done:       make(chan struct{}),
	}
}

// Run owns the client registry until ctx is cancelled. On exit every client
// send channel is closed so the write pumps finish.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for userID, set := range h.clients {
				for client := range set {
					h.drop(userID, client)
				}
			}
			return

		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			if h.metrics != nil {
				h.metrics.ConnectionOpened()
			}
			h.logger.Debug("client connected", zap.String("user_id", client.userID.String()))

		case client := <-h.unregister:
			if set, ok := h.clients[client.userID]; ok {
				if _, ok := set[client]; ok {
					h.drop(client.userID, client)
				}
			}

		case d := <-h.deliver:
			for _, userID := range d.userIDs {
				for client := range h.clients[userID] {
					select {
					case client.send <- d.data:
					default:
						h.logger.Warn("client buffer full, disconnecting", zap.String("user_id", userID.String()))
						h.drop(userID, client)
					}
				}
			}
		}
	}
}

func (h *Hub) drop(userID uuid.UUID, client *Client) {
	set := h.clients[userID]
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, userID)
	}
	close(client.send)
	if h.metrics != nil {
		h.metrics.ConnectionClosed()
	}
}

// add registers client. It reports false once the hub has stopped.
func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToUsers queues evt for every connection of the given users. It never
// blocks the caller: when the hub is saturated the event is dropped.
func (h *Hub) SendToUsers(evt Event, userIDs ...uuid.UUID) {
	if len(userIDs) == 0 {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("marshal event", zap.String("type", evt.Type), zap.Error(err))
		return
	}

	select {
	case h.deliver <- delivery{userIDs: userIDs, data: data}:
	case <-h.done:
	default:
		h.logger.Warn("hub saturated, dropping event", zap.String("type", evt.Type))
	}
}
