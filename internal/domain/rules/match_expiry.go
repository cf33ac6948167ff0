package rules

import (
	"time"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
)

const DefaultMatchTTL = 14 * 24 * time.Hour

// MatchExpired is true once an unstarted match has passed expires_at.
// Expiry is evaluated on read, so a row still marked active may be expired.
func MatchExpired(m model.Match, now time.Time) bool {
	if m.ConversationStarted || m.ExpiresAt == nil {
		return false
	}
	return !now.Before(*m.ExpiresAt)
}

func MatchActive(m model.Match, now time.Time) bool {
	return m.Status == enums.MatchStatusActive && !MatchExpired(m, now)
}

// EffectiveStatus reports the status a reader should observe.
func EffectiveStatus(m model.Match, now time.Time) enums.MatchStatus {
	if m.Status == enums.MatchStatusActive && MatchExpired(m, now) {
		return enums.MatchStatusExpired
	}
	return m.Status
}

func MatchExpiresAt(createdAt time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = DefaultMatchTTL
	}
	return createdAt.Add(ttl)
}
