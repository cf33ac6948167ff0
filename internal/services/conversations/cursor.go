package conversations

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/listergram/backend/internal/domain/failure"
	pgrepo "github.com/listergram/backend/internal/repo/postgres"
)

type cursorPayload struct {
	Match     uuid.UUID `json:"m"`
	CreatedAt time.Time `json:"t"`
	Seq       int64     `json:"s"`
}

// EncodeCursor renders the position after which the next page starts.
// Clients treat the value as opaque.
func EncodeCursor(matchID uuid.UUID, pos pgrepo.MessagePosition) string {
	raw, _ := json.Marshal(cursorPayload{
		Match:     matchID,
		CreatedAt: pos.CreatedAt.UTC(),
		Seq:       pos.Seq,
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a cursor and checks it belongs to matchID.
// An empty cursor means "from the start" and yields a nil position.
func DecodeCursor(matchID uuid.UUID, cursor string) (*pgrepo.MessagePosition, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor: %w", failure.ErrInvalidInput)
	}
	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("malformed cursor: %w", failure.ErrInvalidInput)
	}
	if payload.Match != matchID {
		return nil, fmt.Errorf("cursor belongs to another conversation: %w", failure.ErrInvalidInput)
	}
	if payload.CreatedAt.IsZero() || payload.Seq < 0 {
		return nil, fmt.Errorf("malformed cursor: %w", failure.ErrInvalidInput)
	}

	return &pgrepo.MessagePosition{CreatedAt: payload.CreatedAt, Seq: payload.Seq}, nil
}
