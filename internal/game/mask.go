package game

import (
	"github.com/babanuki/server/internal/deck"
)

// CardView is a card as seen by one viewer. Hidden cards keep their
// identity and highlight flag but lose suit and rank, so clients can
// animate card movement without learning the face.
type CardView struct {
	ID          string `json:"id"`
	Suit        string `json:"suit"`
	Rank        int    `json:"rank"`
	Highlighted bool   `json:"highlighted,omitempty"`
}

// PlayerView is one seat in a masked state snapshot.
type PlayerView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Hand          []CardView `json:"hand"`
	Rank          int        `json:"rank,omitempty"`
	PreviousRank  int        `json:"previous_rank,omitempty"`
	Rating        int        `json:"rating"`
	RatingHistory []int      `json:"rating_history"`
	IsBot         bool       `json:"is_bot,omitempty"`
	FinishedAt    int64      `json:"finished_at,omitempty"`
}

// DiscardView mirrors the last pair discard; discarded cards are public.
type DiscardView struct {
	PlayerID string     `json:"player_id"`
	Cards    []CardView `json:"cards"`
}

// StateView is the per-viewer snapshot broadcast after every mutation.
type StateView struct {
	ID            string        `json:"id"`
	Phase         string        `json:"phase"`
	OwnerID       string        `json:"owner_id"`
	Players       []PlayerView  `json:"players"`
	CurrentTurnID string        `json:"current_turn_player_id"`
	TargetID      string        `json:"target_player_id"`
	LastDiscard   *DiscardView  `json:"last_discard,omitempty"`
	RoundCount    int           `json:"round_count"`
	SkipVotes     []string      `json:"skip_votes"`
	VotesNeeded   int           `json:"votes_needed"`
	RoundHistory  []RoundResult `json:"round_history"`
	Messages      []ChatMessage `json:"messages"`
}

// hiddenSuit is the placeholder face for cards the viewer may not see.
const hiddenSuit = "back"

// MaskStateFor builds the state snapshot visible to viewerID. Every other
// seat's hand is redacted card by card; the empty viewer id yields the
// spectator view with all hands hidden. The snapshot is built by explicit
// field reconstruction, never by cloning the live state.
func (r *Room) MaskStateFor(viewerID string) StateView {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := StateView{
		ID:            r.id,
		Phase:         r.phase.String(),
		OwnerID:       r.ownerID,
		Players:       make([]PlayerView, 0, len(r.players)),
		CurrentTurnID: r.currentTurnID,
		TargetID:      r.targetID,
		RoundCount:    r.roundCount,
		SkipVotes:     make([]string, 0, len(r.skipVotes)),
		VotesNeeded:   r.votesNeededLocked(),
		RoundHistory:  append([]RoundResult(nil), r.roundHistory...),
		Messages:      append([]ChatMessage(nil), r.messages...),
	}

	for id := range r.skipVotes {
		view.SkipVotes = append(view.SkipVotes, id)
	}

	for _, p := range r.players {
		pv := PlayerView{
			ID:            p.ID,
			Name:          p.Name,
			Hand:          make([]CardView, 0, len(p.Hand)),
			Rank:          p.Rank,
			PreviousRank:  p.PreviousRank,
			Rating:        p.Rating,
			RatingHistory: append([]int(nil), p.RatingHistory...),
			IsBot:         p.IsBot,
		}
		if !p.FinishedAt.IsZero() {
			pv.FinishedAt = p.FinishedAt.UnixMilli()
		}

		reveal := viewerID != "" && p.ID == viewerID
		for _, c := range p.Hand {
			pv.Hand = append(pv.Hand, maskCard(c, reveal))
		}
		view.Players = append(view.Players, pv)
	}

	if r.lastDiscard != nil {
		dv := &DiscardView{
			PlayerID: r.lastDiscard.PlayerID,
			Cards:    make([]CardView, 0, len(r.lastDiscard.Cards)),
		}
		for _, c := range r.lastDiscard.Cards {
			dv.Cards = append(dv.Cards, maskCard(c, true))
		}
		view.LastDiscard = dv
	}

	return view
}

func maskCard(c deck.Card, reveal bool) CardView {
	if !reveal {
		return CardView{ID: c.ID, Suit: hiddenSuit, Highlighted: c.Highlighted}
	}
	return CardView{
		ID:          c.ID,
		Suit:        suitName(c.Suit),
		Rank:        int(c.Rank),
		Highlighted: c.Highlighted,
	}
}

func suitName(s deck.Suit) string {
	switch s {
	case deck.Spades:
		return "spade"
	case deck.Hearts:
		return "heart"
	case deck.Diamonds:
		return "diamond"
	case deck.Clubs:
		return "club"
	case deck.Joker:
		return "joker"
	default:
		return hiddenSuit
	}
}
