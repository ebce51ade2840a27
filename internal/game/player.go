package game

import (
	"time"

	"github.com/babanuki/server/internal/deck"
)

// Player is a seat in a room. The ID is the stable identity credential
// resolved at the transport boundary; it survives reconnects and rounds.
// Rank 0 means the player is still active in the current round.
type Player struct {
	ID            string
	Name          string
	Hand          []deck.Card
	Rank          int
	PreviousRank  int
	Rating        int
	RatingHistory []int
	IsBot         bool
	FinishedAt    time.Time
}

// Active reports whether the player is still holding out in the current
// round.
func (p *Player) Active() bool {
	return p.Rank == 0
}
