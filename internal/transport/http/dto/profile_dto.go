package dto

import (
	"time"

	"github.com/google/uuid"
)

type ProfileResponse struct {
	ID                uuid.UUID  `json:"id"`
	Email             string     `json:"email,omitempty"`
	FullName          string     `json:"full_name"`
	Username          string     `json:"username"`
	Tower             string     `json:"tower"`
	Floor             int        `json:"floor"`
	Program           string     `json:"program,omitempty"`
	YearOfStudy       string     `json:"year_of_study"`
	Bio               string     `json:"bio,omitempty"`
	Pronouns          string     `json:"pronouns,omitempty"`
	Age               *int       `json:"age,omitempty"`
	Interests         []string   `json:"interests"`
	DatingEnabled     bool       `json:"dating_enabled"`
	FriendModeEnabled bool       `json:"friend_mode_enabled"`
	DisabledAt        *time.Time `json:"disabled_at,omitempty"`
}

type UpsertProfileRequest struct {
	Email             string   `json:"email"`
	FullName          string   `json:"full_name"`
	Username          string   `json:"username"`
	Tower             string   `json:"tower"`
	Floor             int      `json:"floor"`
	Program           string   `json:"program"`
	YearOfStudy       string   `json:"year_of_study"`
	Bio               string   `json:"bio"`
	Pronouns          string   `json:"pronouns"`
	Age               *int     `json:"age"`
	Interests         []string `json:"interests"`
	DatingEnabled     *bool    `json:"dating_enabled"`
	FriendModeEnabled *bool    `json:"friend_mode_enabled"`
}

type SetModesRequest struct {
	DatingEnabled     *bool `json:"dating_enabled"`
	FriendModeEnabled *bool `json:"friend_mode_enabled"`
}

type CandidatesResponse struct {
	Items []ProfileResponse `json:"items"`
	Next  *uuid.UUID        `json:"next,omitempty"`
}
