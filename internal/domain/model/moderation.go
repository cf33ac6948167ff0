package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/listergram/backend/internal/domain/enums"
)

type Block struct {
	BlockerID uuid.UUID `json:"blocker_id"`
	BlockedID uuid.UUID `json:"blocked_id"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Report struct {
	ID                uuid.UUID          `json:"id"`
	ReporterID        uuid.UUID          `json:"reporter_id"`
	ReportedUserID    uuid.UUID          `json:"reported_user_id"`
	ReportedMessageID *uuid.UUID         `json:"reported_message_id,omitempty"`
	Reason            enums.ReportReason `json:"reason"`
	Details           string             `json:"details,omitempty"`
	Status            enums.ReportStatus `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
}
