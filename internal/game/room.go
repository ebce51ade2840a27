package game

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/babanuki/server/internal/deck"
	"github.com/babanuki/server/internal/rating"
)

// Phase is the room's game lifecycle state.
type Phase int

const (
	Lobby Phase = iota
	Playing
	Finished
)

// String returns the string representation of a phase
func (p Phase) String() string {
	switch p {
	case Lobby:
		return "LOBBY"
	case Playing:
		return "PLAYING"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// maxMessages caps the chat log; the oldest message is evicted first.
const maxMessages = 50

// Config holds the tunable knobs of a room engine.
type Config struct {
	// HumanTimeout is how long a human turn-holder may idle before the
	// engine forces a random draw on their behalf.
	HumanTimeout time.Duration

	// BotDelayMin and BotDelayMax bound the randomized pause before a
	// scripted bot takes its turn.
	BotDelayMin time.Duration
	BotDelayMax time.Duration

	// Seed seeds the room's rng. Zero means derive from the wall clock.
	Seed int64
}

// DefaultConfig returns the standard turn timing configuration.
func DefaultConfig() Config {
	return Config{
		HumanTimeout: 30 * time.Second,
		BotDelayMin:  1 * time.Second,
		BotDelayMax:  2 * time.Second,
	}
}

// ChatMessage is one entry of a room's bounded chat log.
type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	IsSystem   bool      `json:"is_system"`
}

// Discard records the most recent pair discard for effect replay. It is
// transient: every draw either replaces or clears it.
type Discard struct {
	PlayerID string      `json:"player_id"`
	Cards    []deck.Card `json:"cards"`
}

// Standing is one player's line in a completed round result.
type Standing struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Rank     int    `json:"rank"`
	Rating   int    `json:"rating"`
	Diff     int    `json:"diff"`
}

// RoundResult summarises one completed round. Results accumulate for the
// lifetime of the room.
type RoundResult struct {
	Round     int        `json:"round"`
	EndedAt   time.Time  `json:"ended_at"`
	Standings []Standing `json:"standings"`
}

// RoomSummary is the lightweight discovery record for lobby listings.
type RoomSummary struct {
	ID          string `json:"id"`
	PlayerCount int    `json:"player_count"`
	Phase       string `json:"phase"`
	RoundCount  int    `json:"round_count"`
}

// Room is the authoritative game engine for a single room. All state
// mutations are serialized behind mu; the turn timer and bot scheduler
// re-enter through timerFired under the same lock. Persistence writes run
// after the lock is released and never stall gameplay.
type Room struct {
	mu sync.Mutex

	id      string
	phase   Phase
	ownerID string
	players []*Player

	currentTurnID string
	targetID      string
	lastDiscard   *Discard
	roundID       string
	roundCount    int
	skipVotes     map[string]bool
	roundHistory  []RoundResult
	messages      []ChatMessage

	cfg         Config
	rng         *rand.Rand
	clock       quartz.Clock
	logger      *log.Logger
	store       ProfileStore
	broadcaster Broadcaster

	// turnTimer is the single outstanding scheduled move for this room.
	// timerGen invalidates callbacks from timers that were cancelled after
	// their function was already racing for the lock.
	turnTimer *quartz.Timer
	timerGen  int

	botSeq int
}

// NewRoom creates an empty room engine.
func NewRoom(id string, cfg Config, rng *rand.Rand, clock quartz.Clock, store ProfileStore, broadcaster Broadcaster, logger *log.Logger) *Room {
	return &Room{
		id:          id,
		phase:       Lobby,
		skipVotes:   make(map[string]bool),
		cfg:         cfg,
		rng:         rng,
		clock:       clock,
		logger:      logger.WithPrefix("room").With("room", id),
		store:       store,
		broadcaster: broadcaster,
	}
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.id
}

// PlayerCount returns the number of seats, bots included.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Summary returns the discovery record for this room.
func (r *Room) Summary() RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomSummary{
		ID:          r.id,
		PlayerCount: len(r.players),
		Phase:       r.phase.String(),
		RoundCount:  r.roundCount,
	}
}

// Join seats the player identified by identity, or returns their existing
// seat. Joining is idempotent by identity. A new identity is resolved
// against the profile store outside the room lock; store failures fall back
// to a default profile. Joining a room mid-game is a no-op for unknown
// identities: late arrivals spectate at the transport layer.
func (r *Room) Join(ctx context.Context, identity, name string) bool {
	if identity == "" || name == "" {
		return false
	}

	r.mu.Lock()
	if p := r.playerByID(identity); p != nil {
		renamed := p.Name != name
		if renamed {
			p.Name = name
		}
		r.mu.Unlock()
		if renamed {
			r.renameProfile(identity, name)
		}
		return true
	}
	if r.phase != Lobby {
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()

	profile := r.resolveProfile(ctx, identity, name)

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check: the identity may have been seated while the store call was
	// in flight, or the game may have started.
	if r.playerByID(identity) != nil {
		return true
	}
	if r.phase != Lobby {
		return false
	}

	player := &Player{
		ID:            identity,
		Name:          name,
		Rating:        profile.Rating,
		RatingHistory: append([]int(nil), profile.History...),
	}
	r.players = append(r.players, player)
	if r.ownerID == "" {
		r.ownerID = identity
	}

	r.logger.Info("Player joined", "player", name, "seats", len(r.players))
	return true
}

// Leave removes the seat while the room is in the lobby. Mid-game the seat
// stays intact so the player can reconnect.
func (r *Room) Leave(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != Lobby {
		return false
	}
	idx := r.playerIndex(identity)
	if idx < 0 {
		return false
	}

	name := r.players[idx].Name
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	if r.ownerID == identity {
		r.ownerID = ""
		if len(r.players) > 0 {
			r.ownerID = r.players[0].ID
		}
	}

	r.logger.Info("Player left", "player", name, "seats", len(r.players))
	return true
}

// Kick removes another player's seat while in the lobby. Any member may
// kick; ownership is display-only.
func (r *Room) Kick(actorID, targetID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != Lobby || actorID == targetID {
		return false
	}
	if r.playerIndex(actorID) < 0 {
		return false
	}
	idx := r.playerIndex(targetID)
	if idx < 0 {
		return false
	}

	target := r.players[idx]
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	if r.ownerID == targetID {
		r.ownerID = ""
		if len(r.players) > 0 {
			r.ownerID = r.players[0].ID
		}
	}

	r.postSystemMessageLocked(fmt.Sprintf("%s was kicked from the room", target.Name))
	r.logger.Info("Player kicked", "player", target.Name, "by", actorID)
	return true
}

// AddBot seats a scripted bot. Bots have generated identities, start at the
// default rating, and are never persisted.
func (r *Room) AddBot(actorID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != Lobby || r.playerIndex(actorID) < 0 {
		return false
	}

	r.botSeq++
	bot := &Player{
		ID:     "bot-" + uuid.NewString(),
		Name:   fmt.Sprintf("Bot %d", r.botSeq),
		Rating: rating.Initial,
		IsBot:  true,
	}
	r.players = append(r.players, bot)

	r.logger.Info("Bot added", "bot", bot.Name, "seats", len(r.players))
	return true
}

// PostMessage appends a chat message from a seated player. The log keeps
// the most recent maxMessages entries.
func (r *Room) PostMessage(actorID, content string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if content == "" {
		return false
	}
	p := r.playerByID(actorID)
	if p == nil || p.IsBot {
		return false
	}

	r.appendMessageLocked(ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   p.ID,
		SenderName: p.Name,
		Content:    content,
		Timestamp:  r.clock.Now(),
	})
	return true
}

// Reset ends the current game. A hard reset returns to the lobby with seats
// kept and all round state discarded. A soft reset archives ranks for the
// rating formula and immediately deals the next round.
func (r *Room) Reset(hard bool) bool {
	r.mu.Lock()

	if hard {
		r.cancelTimerLocked()
		for _, p := range r.players {
			p.Hand = nil
			p.Rank = 0
			p.PreviousRank = 0
			p.FinishedAt = time.Time{}
		}
		r.phase = Lobby
		r.currentTurnID = ""
		r.targetID = ""
		r.lastDiscard = nil
		r.roundID = ""
		r.roundCount = 0
		r.skipVotes = make(map[string]bool)
		r.roundHistory = nil
		r.mu.Unlock()
		r.logger.Info("Room hard reset")
		return true
	}

	if r.phase != Finished {
		r.mu.Unlock()
		return false
	}

	r.cancelTimerLocked()
	for _, p := range r.players {
		p.PreviousRank = p.Rank
		p.Hand = nil
		p.Rank = 0
		p.FinishedAt = time.Time{}
	}
	r.roundCount++
	r.phase = Lobby
	r.lastDiscard = nil
	r.currentTurnID = ""
	r.targetID = ""
	r.skipVotes = make(map[string]bool)

	// Next round continues without a lobby stop.
	outcome := r.startLocked()
	r.mu.Unlock()

	if outcome != nil {
		go r.persistOutcome(outcome)
	}
	r.logger.Info("Room soft reset", "round", r.roundCount)
	return true
}

// OwnerID returns the current display owner of the room.
func (r *Room) OwnerID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownerID
}

func (r *Room) playerIndex(id string) int {
	for i, p := range r.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *Room) playerByID(id string) *Player {
	if idx := r.playerIndex(id); idx >= 0 {
		return r.players[idx]
	}
	return nil
}

func (r *Room) appendMessageLocked(msg ChatMessage) {
	r.messages = append(r.messages, msg)
	if len(r.messages) > maxMessages {
		r.messages = r.messages[len(r.messages)-maxMessages:]
	}
}

func (r *Room) postSystemMessageLocked(content string) {
	r.appendMessageLocked(ChatMessage{
		ID:        uuid.NewString(),
		SenderID:  "system",
		Content:   content,
		Timestamp: r.clock.Now(),
		IsSystem:  true,
	})
}

// resolveProfile loads or creates the persisted profile for an identity.
// Store failures are logged and replaced by an in-memory default so that a
// storage outage never blocks a join.
func (r *Room) resolveProfile(ctx context.Context, identity, name string) Profile {
	profile, err := r.store.GetProfile(ctx, identity)
	if err == nil {
		if profile.Name != name {
			r.renameProfile(identity, name)
		}
		return profile
	}
	if err != ErrProfileNotFound {
		r.logger.Warn("Profile load failed, using defaults", "player", identity, "error", err)
		return Profile{ID: identity, Name: name, Rating: rating.Initial}
	}

	profile, err = r.store.CreateProfile(ctx, identity, name)
	if err != nil {
		r.logger.Warn("Profile create failed, using defaults", "player", identity, "error", err)
		return Profile{ID: identity, Name: name, Rating: rating.Initial}
	}
	return profile
}

func (r *Room) renameProfile(identity, name string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := r.store.RenameProfile(ctx, identity, name); err != nil {
			r.logger.Warn("Profile rename failed", "player", identity, "error", err)
		}
	}()
}
