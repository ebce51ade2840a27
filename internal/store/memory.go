// Package store provides implementations of the game.ProfileStore port: an
// in-memory store for tests and single-node development, a MongoDB-backed
// store for real deployments, and a Redis leaderboard cache layered on
// either.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/babanuki/server/internal/game"
	"github.com/babanuki/server/internal/rating"
)

type memoryProfile struct {
	game.Profile
	history []historyEntry
}

type historyEntry struct {
	roundID string
	before  int
	after   int
	rank    int
}

// MemoryStore is a process-local ProfileStore. It is safe for concurrent
// use.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]*memoryProfile
	rounds   map[string][]byte
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*memoryProfile),
		rounds:   make(map[string][]byte),
	}
}

// GetProfile implements game.ProfileStore.
func (s *MemoryStore) GetProfile(_ context.Context, id string) (game.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return game.Profile{}, game.ErrProfileNotFound
	}
	return s.snapshotLocked(p), nil
}

// CreateProfile implements game.ProfileStore.
func (s *MemoryStore) CreateProfile(_ context.Context, id, name string) (game.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[id]; ok {
		return s.snapshotLocked(p), nil
	}
	p := &memoryProfile{
		Profile: game.Profile{ID: id, Name: name, Rating: rating.Initial},
	}
	s.profiles[id] = p
	return s.snapshotLocked(p), nil
}

// RenameProfile implements game.ProfileStore.
func (s *MemoryStore) RenameProfile(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return game.ErrProfileNotFound
	}
	p.Name = name
	return nil
}

// RecordRoundResult implements game.ProfileStore.
func (s *MemoryStore) RecordRoundResult(_ context.Context, id string, newRating int, isWin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return game.ErrProfileNotFound
	}
	p.Rating = newRating
	p.Matches++
	if isWin {
		p.Wins++
	}
	return nil
}

// AppendRatingHistory implements game.ProfileStore.
func (s *MemoryStore) AppendRatingHistory(_ context.Context, id, roundID string, before, after, rank int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return game.ErrProfileNotFound
	}
	p.history = append(p.history, historyEntry{roundID: roundID, before: before, after: after, rank: rank})
	return nil
}

// SaveRoundMetadata implements game.ProfileStore.
func (s *MemoryStore) SaveRoundMetadata(_ context.Context, roundID, roomID string, details []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[roundID+"/"+roomID] = append([]byte(nil), details...)
	return nil
}

// TopRankings implements game.ProfileStore.
func (s *MemoryStore) TopRankings(_ context.Context, limit int) ([]game.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := make([]game.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, s.snapshotLocked(p))
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Rating != profiles[j].Rating {
			return profiles[i].Rating > profiles[j].Rating
		}
		return profiles[i].ID < profiles[j].ID
	})
	if limit > 0 && len(profiles) > limit {
		profiles = profiles[:limit]
	}
	return profiles, nil
}

// snapshotLocked copies the profile with its recent rating history, oldest
// first, capped at historyLimit entries.
func (s *MemoryStore) snapshotLocked(p *memoryProfile) game.Profile {
	out := p.Profile
	start := 0
	if len(p.history) > historyLimit {
		start = len(p.history) - historyLimit
	}
	out.History = make([]int, 0, len(p.history)-start)
	for _, h := range p.history[start:] {
		out.History = append(out.History, h.after)
	}
	return out
}

// historyLimit caps how much rating history a profile load returns.
const historyLimit = 20
