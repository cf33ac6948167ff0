package dto

import (
	"time"

	"github.com/google/uuid"
)

type MatchResponse struct {
	ID                  uuid.UUID  `json:"id"`
	PeerID              uuid.UUID  `json:"peer_id"`
	Mode                string     `json:"match_type"`
	Status              string     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	ConversationStarted bool       `json:"conversation_started"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
}

type MatchesResponse struct {
	Items []MatchResponse `json:"items"`
}
