package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 64
)

// Client is one websocket connection. The hub closes send when it lets go
// of the client; replies to client frames go through reply, which only the
// read side writes.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	logger *zap.Logger

	send  chan []byte
	reply chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		logger: hub.logger.With(zap.String("user_id", userID.String())),
		send:   make(chan []byte, sendBufSize),
		reply:  make(chan []byte, 8),
	}
}

// readPump consumes client frames until the connection fails or ctx ends.
func (c *Client) readPump(ctx context.Context) {
	defer c.hub.remove(c)

	for {
		var evt Event
		if err := wsjson.Read(ctx, c.conn, &evt); err != nil {
			switch {
			case websocket.CloseStatus(err) != -1, errors.Is(err, context.Canceled):
				c.logger.Debug("client disconnected")
			default:
				c.logger.Debug("read failed", zap.Error(err))
			}
			return
		}
		c.handleEvent(evt)
	}
}

// writePump forwards queued frames and keeps the connection alive with pings.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.Close(websocket.StatusGoingAway, "")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}

		case data := <-c.reply:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) handleEvent(evt Event) {
	switch evt.Type {
	case EventTypePing:
		c.queue(Event{Type: EventTypePong, Timestamp: time.Now().Unix()})
	default:
		reply, err := NewEvent(EventTypeError, nil, ErrorPayload{
			Code:    "UNKNOWN_EVENT",
			Message: "unknown event type: " + evt.Type,
		})
		if err == nil {
			c.queue(reply)
		}
	}
}

func (c *Client) queue(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.reply <- data:
	default:
	}
}
