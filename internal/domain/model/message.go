package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/listergram/backend/internal/domain/enums"
)

type Message struct {
	ID           uuid.UUID         `json:"id"`
	Seq          int64             `json:"seq"`
	MatchID      uuid.UUID         `json:"match_id"`
	SenderID     uuid.UUID         `json:"sender_id"`
	Type         enums.MessageType `json:"message_type"`
	Text         string            `json:"text,omitempty"`
	MediaURL     string            `json:"media_url,omitempty"`
	ClientSentAt *time.Time        `json:"client_sent_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	ReadAt       *time.Time        `json:"read_at,omitempty"`
}
