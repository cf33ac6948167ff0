package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrUnauthorized = errors.New("unauthorized")

type AccessClaims struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}
