package deck

import (
	rand "math/rand/v2"
)

// DeckSize is the number of cards in play: four suits of thirteen ranks plus
// a single joker.
const DeckSize = 53

// New builds the full 53-card deck in canonical order. Every card gets a
// fresh id, so two decks never share card identities.
func New() []Card {
	cards := make([]Card, 0, DeckSize)
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Ace; rank <= King; rank++ {
			cards = append(cards, NewCard(suit, rank))
		}
	}
	cards = append(cards, NewCard(Joker, JokerRank))
	return cards
}

// Shuffle performs an in-place Fisher-Yates shuffle using the provided rng.
func Shuffle(cards []Card, rng *rand.Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// Deal distributes the deck round-robin across numPlayers hands, starting at
// hand 0, until the deck is exhausted. Hand sizes differ by at most one.
func Deal(cards []Card, numPlayers int) [][]Card {
	hands := make([][]Card, numPlayers)
	for i := range hands {
		hands[i] = make([]Card, 0, (len(cards)+numPlayers-1)/numPlayers)
	}
	for i, card := range cards {
		p := i % numPlayers
		hands[p] = append(hands[p], card)
	}
	return hands
}

// ExtractPairs removes every pair of equal-rank cards from the hand and
// returns the reduced hand plus the discarded cards in detection order. The
// joker never pairs. Matching is a greedy first-available scan, so a hand
// with three cards of one rank keeps exactly one of them.
func ExtractPairs(hand []Card) (kept, discarded []Card) {
	kept = make([]Card, 0, len(hand))
	matched := make(map[string]bool, len(hand))

	for i := 0; i < len(hand); i++ {
		if matched[hand[i].ID] {
			continue
		}

		pairIdx := -1
		if !hand[i].IsJoker() {
			for j := i + 1; j < len(hand); j++ {
				if !matched[hand[j].ID] && !hand[j].IsJoker() && hand[j].Rank == hand[i].Rank {
					pairIdx = j
					break
				}
			}
		}

		if pairIdx >= 0 {
			matched[hand[i].ID] = true
			matched[hand[pairIdx].ID] = true
			discarded = append(discarded, hand[i], hand[pairIdx])
		} else {
			kept = append(kept, hand[i])
		}
	}
	return kept, discarded
}
