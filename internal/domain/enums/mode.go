package enums

// Mode selects the swipe pool. A pair may match independently in each mode.
type Mode string

const (
	ModeDating  Mode = "dating"
	ModeFriends Mode = "friends"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeDating, ModeFriends:
		return true
	default:
		return false
	}
}

func AllModes() []Mode {
	return []Mode{ModeDating, ModeFriends}
}
