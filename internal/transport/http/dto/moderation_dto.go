package dto

import (
	"time"

	"github.com/google/uuid"
)

type BlockRequest struct {
	TargetID uuid.UUID `json:"target_id"`
	Reason   string    `json:"reason"`
}

type ReportRequest struct {
	TargetID  uuid.UUID  `json:"target_id"`
	MessageID *uuid.UUID `json:"message_id"`
	Reason    string     `json:"reason"`
	Details   string     `json:"details"`
}

type ReportResponse struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
