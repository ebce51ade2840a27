package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/babanuki/server/internal/deck"
	"github.com/babanuki/server/internal/rating"
)

// storeTimeout bounds every persistence call made outside the room lock.
const storeTimeout = 5 * time.Second

// roundOutcome carries the persistence work of a finished round out of the
// room lock. Ratings are already applied in memory by the time an outcome
// exists; the writes are eventual.
type roundOutcome struct {
	roomID  string
	roundID string
	results []playerResult
	details []byte
}

type playerResult struct {
	id     string
	isBot  bool
	rank   int
	before int
	after  int
}

// Start deals a fresh round. It requires at least two seats and a room in
// the lobby; anything else is a no-op.
func (r *Room) Start() bool {
	r.mu.Lock()
	if r.phase != Lobby || len(r.players) < 2 {
		r.mu.Unlock()
		return false
	}
	outcome := r.startLocked()
	r.mu.Unlock()

	if outcome != nil {
		go r.persistOutcome(outcome)
	}
	return true
}

// startLocked builds, shuffles, and deals the deck, runs the initial pair
// discard, and arms the first turn. The caller holds the lock and has
// verified the seat count.
//
// A round can end during the deal: a fully-pairing hand empties immediately,
// and with few enough survivors finish detection fires before anyone draws.
// The returned outcome is non-nil in that case.
func (r *Room) startLocked() *roundOutcome {
	cards := deck.New()
	deck.Shuffle(cards, r.rng)
	hands := deck.Deal(cards, len(r.players))

	for i, p := range r.players {
		kept, _ := deck.ExtractPairs(hands[i])
		p.Hand = kept
		p.Rank = 0
		p.FinishedAt = time.Time{}
	}

	r.phase = Playing
	r.roundID = uuid.NewString()
	r.lastDiscard = nil
	r.skipVotes = make(map[string]bool)

	outcome := r.checkFinishedLocked()
	if r.phase != Playing {
		r.logger.Info("Round over at the deal", "round", r.roundCount+1)
		return outcome
	}

	// Seat 0 opens unless its hand paired out entirely at the deal.
	r.currentTurnID = ""
	for _, p := range r.players {
		if len(p.Hand) > 0 {
			r.currentTurnID = p.ID
			break
		}
	}
	r.updateTargetLocked()
	r.scheduleTurnLocked()

	r.logger.Info("Round started", "round", r.roundCount+1, "players", len(r.players))
	return outcome
}

// Draw takes one card from the target's hand into the actor's. A negative
// or out-of-range cardIndex selects a uniformly random card server-side, so
// neither the acting client nor observers can force a specific card by
// omission. Illegal draws are silent no-ops.
func (r *Room) Draw(actorID, targetID string, cardIndex int) bool {
	r.mu.Lock()
	changed, outcome := r.drawLocked(actorID, targetID, cardIndex)
	r.mu.Unlock()

	if outcome != nil {
		go r.persistOutcome(outcome)
	}
	return changed
}

func (r *Room) drawLocked(actorID, targetID string, cardIndex int) (bool, *roundOutcome) {
	if r.phase != Playing || actorID != r.currentTurnID {
		return false, nil
	}
	// The clockwise target rule is the sole source of truth for who may be
	// drawn from.
	if targetID == "" || targetID != r.targetID {
		return false, nil
	}

	actor := r.playerByID(actorID)
	target := r.playerByID(targetID)
	if actor == nil || target == nil || len(target.Hand) == 0 {
		return false, nil
	}

	r.cancelTimerLocked()

	if cardIndex < 0 || cardIndex >= len(target.Hand) {
		cardIndex = r.rng.IntN(len(target.Hand))
	}

	card := target.Hand[cardIndex]
	card.Highlighted = false
	target.Hand = append(target.Hand[:cardIndex], target.Hand[cardIndex+1:]...)

	kept, discarded := deck.ExtractPairs(append(actor.Hand, card))
	actor.Hand = kept
	if len(discarded) > 0 {
		r.lastDiscard = &Discard{PlayerID: actorID, Cards: discarded}
	} else {
		r.lastDiscard = nil
	}

	actorIdx := r.playerIndex(actorID)
	outcome := r.checkFinishedLocked()

	if r.phase == Playing {
		r.advanceTurnLocked(actorIdx)
	}
	return true, outcome
}

// Tease toggles the highlight on one of the actor's own cards. Cosmetic
// only; game rules never read the flag.
func (r *Room) Tease(actorID string, cardIndex int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerByID(actorID)
	if p == nil || cardIndex < 0 || cardIndex >= len(p.Hand) {
		return false
	}
	p.Hand[cardIndex].Highlighted = !p.Hand[cardIndex].Highlighted
	return true
}

// ShuffleHand re-permutes the actor's own hand order. Only the visual order
// changes; the set of cards is untouched.
func (r *Room) ShuffleHand(actorID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != Playing {
		return false
	}
	p := r.playerByID(actorID)
	if p == nil || len(p.Hand) <= 1 {
		return false
	}

	for i := len(p.Hand) - 1; i > 0; i-- {
		j := r.rng.IntN(i + 1)
		p.Hand[i], p.Hand[j] = p.Hand[j], p.Hand[i]
	}
	return true
}

// VoteToSkip registers a vote against the current turn-holder. Once
// ceil(active/2) votes accumulate the engine forces a random draw on the
// turn-holder's behalf and clears the votes. Voting is idempotent.
func (r *Room) VoteToSkip(voterID string) bool {
	r.mu.Lock()

	if r.phase != Playing {
		r.mu.Unlock()
		return false
	}
	voter := r.playerByID(voterID)
	if voter == nil || voter.IsBot {
		r.mu.Unlock()
		return false
	}

	r.skipVotes[voterID] = true
	if len(r.skipVotes) < r.votesNeededLocked() {
		r.mu.Unlock()
		return true
	}

	r.skipVotes = make(map[string]bool)
	_, outcome := r.drawLocked(r.currentTurnID, r.targetID, -1)
	r.mu.Unlock()

	if outcome != nil {
		go r.persistOutcome(outcome)
	}
	return true
}

// votesNeededLocked returns the skip threshold: half the active players,
// rounded up.
func (r *Room) votesNeededLocked() int {
	active := 0
	for _, p := range r.players {
		if p.Active() {
			active++
		}
	}
	return (active + 1) / 2
}

// advanceTurnLocked rotates the turn to the next seat with cards, clears
// stale skip votes, recomputes the draw target, and arms the next timer.
func (r *Room) advanceTurnLocked(fromIdx int) {
	n := len(r.players)
	for i := 1; i <= n; i++ {
		idx := (fromIdx + i) % n
		if len(r.players[idx].Hand) > 0 {
			r.currentTurnID = r.players[idx].ID
			r.skipVotes = make(map[string]bool)
			r.updateTargetLocked()
			r.scheduleTurnLocked()
			return
		}
	}
	// No seat holds cards; finish detection has already ended the game.
}

// updateTargetLocked picks the first seat clockwise of the turn-holder that
// still holds cards. This rule alone decides who may be drawn from.
func (r *Room) updateTargetLocked() {
	idx := r.playerIndex(r.currentTurnID)
	if idx < 0 {
		r.targetID = ""
		return
	}

	n := len(r.players)
	for i := 1; i < n; i++ {
		candidate := r.players[(idx+i)%n]
		if len(candidate.Hand) > 0 {
			r.targetID = candidate.ID
			return
		}
	}
	r.targetID = ""
}

// checkFinishedLocked assigns ranks to newly emptied hands and, once at most
// one active seat remains, finalizes the round: the last holder takes the
// final rank, ratings are recomputed, and the result is archived. Returns
// the persistence work for the caller to run outside the lock, or nil if
// the round goes on.
func (r *Room) checkFinishedLocked() *roundOutcome {
	ranked := 0
	for _, p := range r.players {
		if !p.Active() {
			ranked++
		}
	}

	for _, p := range r.players {
		if p.Active() && len(p.Hand) == 0 {
			ranked++
			p.Rank = ranked
			p.FinishedAt = r.clock.Now()
			r.logger.Info("Player finished", "player", p.Name, "rank", p.Rank)
		}
	}

	var last *Player
	active := 0
	for _, p := range r.players {
		if p.Active() {
			active++
			last = p
		}
	}
	if active > 1 {
		return nil
	}

	if last != nil {
		ranked++
		last.Rank = ranked
		last.FinishedAt = r.clock.Now()
	}

	r.phase = Finished
	r.currentTurnID = ""
	r.targetID = ""
	r.cancelTimerLocked()

	return r.settleRoundLocked()
}

// settleRoundLocked applies rating changes to every seat and appends the
// round result. Called exactly once per round, with the lock held.
func (r *Room) settleRoundLocked() *roundOutcome {
	isFirstRound := r.roundCount == 0
	now := r.clock.Now()

	result := RoundResult{
		Round:   r.roundCount + 1,
		EndedAt: now,
	}
	outcome := &roundOutcome{
		roomID:  r.id,
		roundID: r.roundID,
	}

	var winner string
	for rank := 1; rank <= len(r.players); rank++ {
		for _, p := range r.players {
			if p.Rank != rank {
				continue
			}

			before := p.Rating
			delta := rating.Delta(before, p.Rank, p.PreviousRank, isFirstRound)
			p.Rating = rating.Apply(before, delta)
			p.RatingHistory = append(p.RatingHistory, p.Rating)

			result.Standings = append(result.Standings, Standing{
				PlayerID: p.ID,
				Name:     p.Name,
				Rank:     p.Rank,
				Rating:   p.Rating,
				Diff:     p.Rating - before,
			})
			outcome.results = append(outcome.results, playerResult{
				id:     p.ID,
				isBot:  p.IsBot,
				rank:   p.Rank,
				before: before,
				after:  p.Rating,
			})
			if rank == 1 {
				winner = p.Name
			}
		}
	}

	r.roundHistory = append(r.roundHistory, result)
	if winner != "" {
		r.postSystemMessageLocked(fmt.Sprintf("%s wins round %d", winner, result.Round))
	}

	details, err := json.Marshal(result)
	if err != nil {
		r.logger.Error("Failed to encode round result", "error", err)
	} else {
		outcome.details = details
	}

	r.logger.Info("Round finished", "round", result.Round, "winner", winner)
	return outcome
}

// persistOutcome writes a finished round to the profile store. Failures are
// logged and never fed back into game state: the in-memory ratings are
// already authoritative for the session.
func (r *Room) persistOutcome(o *roundOutcome) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	for _, res := range o.results {
		if res.isBot {
			continue
		}
		if err := r.store.RecordRoundResult(ctx, res.id, res.after, res.rank == 1); err != nil {
			r.logger.Warn("Round result write failed", "player", res.id, "error", err)
		}
		if err := r.store.AppendRatingHistory(ctx, res.id, o.roundID, res.before, res.after, res.rank); err != nil {
			r.logger.Warn("Rating history write failed", "player", res.id, "error", err)
		}
	}

	if o.details != nil {
		if err := r.store.SaveRoundMetadata(ctx, o.roundID, o.roomID, o.details); err != nil {
			r.logger.Warn("Round metadata write failed", "round", o.roundID, "error", err)
		}
	}
}

// scheduleTurnLocked arms the deferred move for the current turn-holder:
// a short randomized delay for bots, the idle timeout for humans. Any
// previously outstanding timer is cancelled first, so exactly one scheduled
// move exists per room.
func (r *Room) scheduleTurnLocked() {
	r.cancelTimerLocked()
	if r.phase != Playing || r.currentTurnID == "" {
		return
	}

	delay := r.cfg.HumanTimeout
	if cur := r.playerByID(r.currentTurnID); cur != nil && cur.IsBot {
		delay = r.cfg.BotDelayMin
		if span := r.cfg.BotDelayMax - r.cfg.BotDelayMin; span > 0 {
			delay += time.Duration(r.rng.Int64N(int64(span) + 1))
		}
	}

	gen := r.timerGen
	r.turnTimer = r.clock.AfterFunc(delay, func() {
		r.timerFired(gen)
	})
}

// cancelTimerLocked stops the outstanding scheduled move, if any, and bumps
// the generation so a callback that already fired and is waiting on the
// lock becomes a no-op.
func (r *Room) cancelTimerLocked() {
	r.timerGen++
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
}

// timerFired executes the scheduled move for a turn: a bot taking its turn,
// or a forced draw on behalf of an idle human. The mutation happens without
// a waiting caller, so the room broadcasts the change itself.
func (r *Room) timerFired(gen int) {
	r.mu.Lock()
	if gen != r.timerGen || r.phase != Playing {
		r.mu.Unlock()
		return
	}

	actor := r.playerByID(r.currentTurnID)
	if actor != nil && !actor.IsBot {
		r.logger.Info("Turn timed out, forcing draw", "player", actor.Name)
	}

	changed, outcome := r.drawLocked(r.currentTurnID, r.targetID, -1)
	r.mu.Unlock()

	if outcome != nil {
		go r.persistOutcome(outcome)
	}
	if changed && r.broadcaster != nil {
		r.broadcaster.RoomChanged(r.id)
	}
}
