package game

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/babanuki/server/internal/randutil"
)

// ErrRoomNotFound is returned when a room id has no live engine.
var ErrRoomNotFound = errors.New("room not found")

// Registry owns every live room engine. Rooms are created lazily on first
// reference and destroyed once their last seat empties. Each room's map
// entry is independent; the registry lock only guards the map itself.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	cfg         Config
	clock       quartz.Clock
	store       ProfileStore
	broadcaster Broadcaster
	logger      *log.Logger
}

// NewRegistry creates an empty room registry.
func NewRegistry(cfg Config, clock quartz.Clock, store ProfileStore, broadcaster Broadcaster, logger *log.Logger) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		cfg:         cfg,
		clock:       clock,
		store:       store,
		broadcaster: broadcaster,
		logger:      logger.WithPrefix("registry"),
	}
}

// Get returns the live engine for a room id.
func (reg *Registry) Get(id string) (*Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// GetOrCreate returns the engine for a room id, creating it on first
// reference.
func (reg *Registry) GetOrCreate(id string) *Room {
	reg.mu.RLock()
	room, ok := reg.rooms[id]
	reg.mu.RUnlock()
	if ok {
		return room
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if room, ok := reg.rooms[id]; ok {
		return room
	}

	seed := reg.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	room = NewRoom(id, reg.cfg, randutil.New(seed), reg.clock, reg.store, reg.broadcaster, reg.logger)
	reg.rooms[id] = room
	reg.logger.Info("Room created", "room", id)
	return room
}

// Reap destroys the room if its player list has emptied. The check and the
// delete happen under the registry lock so two concurrent leavers cannot
// both destroy or resurrect the entry.
func (reg *Registry) Reap(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[id]
	if !ok || room.PlayerCount() > 0 {
		return
	}
	delete(reg.rooms, id)
	reg.logger.Info("Room destroyed", "room", id)
}

// Summaries lists every live room for discovery, ordered by id.
func (reg *Registry) Summaries() []RoomSummary {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.RUnlock()

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, room.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ID < summaries[j].ID
	})
	return summaries
}
