package dto

import (
	"time"

	"github.com/google/uuid"
)

type SendMessageRequest struct {
	Type         string     `json:"message_type"`
	Text         string     `json:"text"`
	MediaURL     string     `json:"media_url"`
	ClientSentAt *time.Time `json:"client_sent_at"`
}

type MessageResponse struct {
	ID           uuid.UUID  `json:"id"`
	MatchID      uuid.UUID  `json:"match_id"`
	SenderID     uuid.UUID  `json:"sender_id"`
	Type         string     `json:"message_type"`
	Text         string     `json:"text,omitempty"`
	MediaURL     string     `json:"media_url,omitempty"`
	ClientSentAt *time.Time `json:"client_sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
}

type MessagesResponse struct {
	Items      []MessageResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
	HasMore    bool              `json:"has_more"`
}

type MarkReadRequest struct {
	Through *time.Time `json:"through"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}
