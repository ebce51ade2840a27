package deck

import (
	"fmt"

	"github.com/google/uuid"
)

// Suit represents a card suit. Joker is its own suit so a joker card is
// unambiguous regardless of rank.
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
	Joker
)

// String returns the string representation of a suit
func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Joker:
		return "JOKER"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Rank represents a card rank. The joker carries rank 0; everything else is
// Ace (1) through King (13).
type Rank int

const (
	JokerRank Rank = iota
	Ace
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

// String returns the string representation of a rank
func (r Rank) String() string {
	switch r {
	case JokerRank:
		return "X"
	case Ace:
		return "A"
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	default:
		return fmt.Sprintf("%d", int(r))
	}
}

// Card represents a playing card. The ID is stable for the lifetime of a
// round so clients can track a card across moves even when its face is
// hidden from them. Highlighted marks a card its owner is showing off; it is
// cosmetic and never consulted by game rules.
type Card struct {
	ID          string `json:"id"`
	Suit        Suit   `json:"suit"`
	Rank        Rank   `json:"rank"`
	Highlighted bool   `json:"highlighted,omitempty"`
}

// NewCard creates a new card with a fresh unique id
func NewCard(suit Suit, rank Rank) Card {
	return Card{ID: uuid.NewString(), Suit: suit, Rank: rank}
}

// IsJoker returns true if the card is the joker
func (c Card) IsJoker() bool {
	return c.Suit == Joker
}

// String returns the string representation of a card (e.g. "A♠")
func (c Card) String() string {
	if c.IsJoker() {
		return "Joker"
	}
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}
