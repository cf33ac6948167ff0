package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/listergram/backend/internal/domain/enums"
)

type Profile struct {
	ID                uuid.UUID         `json:"id"`
	Email             string            `json:"email,omitempty"`
	FullName          string            `json:"full_name"`
	Username          string            `json:"username"`
	Tower             enums.Tower       `json:"tower"`
	Floor             int               `json:"floor"`
	Program           string            `json:"program"`
	YearOfStudy       enums.YearOfStudy `json:"year_of_study"`
	Bio               string            `json:"bio,omitempty"`
	Pronouns          string            `json:"pronouns,omitempty"`
	Age               *int              `json:"age,omitempty"`
	Interests         []string          `json:"interests"`
	DatingEnabled     bool              `json:"dating_enabled"`
	FriendModeEnabled bool              `json:"friend_mode_enabled"`
	DisabledAt        *time.Time        `json:"disabled_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (p Profile) Disabled() bool {
	return p.DisabledAt != nil
}

// EnabledFor reports whether the profile takes part in the given swipe pool.
func (p Profile) EnabledFor(mode enums.Mode) bool {
	if p.Disabled() {
		return false
	}
	switch mode {
	case enums.ModeDating:
		return p.DatingEnabled
	case enums.ModeFriends:
		return p.FriendModeEnabled
	default:
		return false
	}
}
