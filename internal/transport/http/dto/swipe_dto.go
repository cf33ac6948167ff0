package dto

import (
	"time"

	"github.com/google/uuid"
)

type SwipeRequest struct {
	TargetID uuid.UUID `json:"target_id"`
	Mode     string    `json:"mode"`
	Decision string    `json:"decision"`
}

type SwipeResponse struct {
	Matched bool       `json:"matched"`
	MatchID *uuid.UUID `json:"match_id,omitempty"`
	Created bool       `json:"created"`
}

type SuperlikeStatusResponse struct {
	Mode      string     `json:"mode"`
	Allowed   bool       `json:"allowed"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}
