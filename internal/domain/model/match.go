package model

import (
	"bytes"
	"time"

	"github.com/google/uuid"

	"github.com/listergram/backend/internal/domain/enums"
)

type Match struct {
	ID                  uuid.UUID         `json:"id"`
	User1ID             uuid.UUID         `json:"user1_id"`
	User2ID             uuid.UUID         `json:"user2_id"`
	Mode                enums.Mode        `json:"match_type"`
	Status              enums.MatchStatus `json:"status"`
	CreatedAt           time.Time         `json:"created_at"`
	ExpiresAt           *time.Time        `json:"expires_at,omitempty"`
	ConversationStarted bool              `json:"conversation_started"`
	EndedAt             *time.Time        `json:"ended_at,omitempty"`
	EndedBy             *uuid.UUID        `json:"ended_by,omitempty"`
}

func (m Match) HasParticipant(userID uuid.UUID) bool {
	return userID != uuid.Nil && (m.User1ID == userID || m.User2ID == userID)
}

// Peer returns the other participant. The second result is false when
// userID is not part of the match.
func (m Match) Peer(userID uuid.UUID) (uuid.UUID, bool) {
	switch userID {
	case m.User1ID:
		return m.User2ID, true
	case m.User2ID:
		return m.User1ID, true
	default:
		return uuid.Nil, false
	}
}

// OrderedPair returns the two ids in storage order (smaller first).
func OrderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}
