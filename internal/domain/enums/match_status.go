package enums

type MatchStatus string

const (
	MatchStatusActive    MatchStatus = "active"
	MatchStatusUnmatched MatchStatus = "unmatched"
	MatchStatusExpired   MatchStatus = "expired"
	MatchStatusBlocked   MatchStatus = "blocked"
)
