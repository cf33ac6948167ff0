package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/listergram/backend/internal/domain/enums"
)

type SwipeDecision struct {
	ActorID   uuid.UUID           `json:"actor_id"`
	TargetID  uuid.UUID           `json:"target_id"`
	Mode      enums.Mode          `json:"mode"`
	Decision  enums.SwipeDecision `json:"decision"`
	DecidedAt time.Time           `json:"decided_at"`
}
