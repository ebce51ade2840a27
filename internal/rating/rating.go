// Package rating implements the skill rating formula. It is pure arithmetic:
// it knows nothing about rooms, players, or persistence.
package rating

const (
	// Initial is the rating assigned to a freshly created profile.
	Initial = 1000

	// Floor is the lowest rating a player can fall to.
	Floor = 300

	// PerRankStep is the multiplier applied to rank improvement in rounds
	// after the first.
	PerRankStep = 80

	// HoldBonus is the flat bonus for finishing at the same rank as the
	// previous round.
	HoldBonus = 100

	// UpperThreshold dampens positive deltas for highly rated players.
	UpperThreshold = 1300

	// LowerThreshold boosts positive deltas for low-rated players.
	LowerThreshold = 700
)

// firstRoundPoints is the fixed delta table for a player's first round,
// indexed by finishing rank - 1. Ranks beyond the table earn nothing.
var firstRoundPoints = []int{40, 30, 20, 10}

// Delta computes the rating change for a finished round.
//
// On the first round (or when the previous rank is unknown) the delta comes
// from a fixed table keyed by finishing rank. Afterwards it is proportional
// to rank improvement, with a flat bonus for holding rank. The boundary
// corrections read the pre-round rating and apply only to positive deltas:
// losses are never dampened or amplified.
func Delta(currentRating, rank int, previousRank int, isFirstRound bool) int {
	var change int

	if isFirstRound || previousRank <= 0 {
		if idx := rank - 1; idx >= 0 && idx < len(firstRoundPoints) {
			change = firstRoundPoints[idx]
		}
		return change
	}

	change = (previousRank - rank) * PerRankStep
	if previousRank == rank {
		change += HoldBonus
	}

	if change > 0 {
		if currentRating >= UpperThreshold {
			change = change * 8 / 10
		}
		if currentRating <= LowerThreshold {
			change = change * 12 / 10
		}
	}

	return change
}

// Apply returns the new rating after applying delta, clamped at Floor.
func Apply(current, delta int) int {
	next := current + delta
	if next < Floor {
		next = Floor
	}
	return next
}
