package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Client -> server
const (
	EventTypePing = "ping"
)

// Server -> client
const (
	EventTypeMatchCreated   = "match.created"
	EventTypeMatchEnded     = "match.ended"
	EventTypeMessageCreated = "message.created"
	EventTypeMessageRead    = "message.read"
	EventTypePong           = "pong"
	EventTypeError          = "error"
)

// Event is the envelope for every websocket frame.
type Event struct {
	Type      string          `json:"type"`
	MatchID   *uuid.UUID      `json:"match_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

type MessageReadPayload struct {
	ReaderID uuid.UUID `json:"reader_id"`
	Through  time.Time `json:"through"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewEvent(eventType string, matchID *uuid.UUID, payload any) (Event, error) {
	evt := Event{
		Type:      eventType,
		MatchID:   matchID,
		Timestamp: time.Now().Unix(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		evt.Payload = data
	}
	return evt, nil
}
