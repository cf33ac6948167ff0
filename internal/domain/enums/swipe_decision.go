package enums

type SwipeDecision string

const (
	SwipeDecisionLike      SwipeDecision = "like"
	SwipeDecisionPass      SwipeDecision = "pass"
	SwipeDecisionSuperlike SwipeDecision = "superlike"
)

func (d SwipeDecision) Valid() bool {
	switch d {
	case SwipeDecisionLike, SwipeDecisionPass, SwipeDecisionSuperlike:
		return true
	default:
		return false
	}
}

// Positive reports whether the decision counts towards reciprocity.
func (d SwipeDecision) Positive() bool {
	return d == SwipeDecisionLike || d == SwipeDecisionSuperlike
}
