package store

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/babanuki/server/internal/game"
)

const (
	rankingsKey     = "babanuki:rankings"
	rankingNamesKey = "babanuki:rankings:names"
)

// RankingsCache keeps the leaderboard in a Redis sorted set so TopRankings
// never scans the primary store. It is best effort: every failure falls
// back to the wrapped store.
type RankingsCache struct {
	rdb    *redis.Client
	logger *log.Logger
}

// NewRankingsCache connects to Redis and verifies it with a ping.
func NewRankingsCache(ctx context.Context, addr, password string, db int, logger *log.Logger) (*RankingsCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RankingsCache{rdb: rdb, logger: logger.WithPrefix("rankings")}, nil
}

// Close releases the Redis connection.
func (c *RankingsCache) Close() error {
	return c.rdb.Close()
}

// Update records a player's rating and display name in the leaderboard.
func (c *RankingsCache) Update(ctx context.Context, id, name string, newRating int) error {
	pipe := c.rdb.Pipeline()
	pipe.ZAdd(ctx, rankingsKey, redis.Z{Score: float64(newRating), Member: id})
	if name != "" {
		pipe.HSet(ctx, rankingNamesKey, id, name)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Top returns the highest-rated players, best first.
func (c *RankingsCache) Top(ctx context.Context, limit int) ([]game.Profile, error) {
	if limit <= 0 {
		limit = 10
	}

	entries, err := c.rdb.ZRevRangeWithScores(ctx, rankingsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("rankings range: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Member.(string)
	}
	names, err := c.rdb.HMGet(ctx, rankingNamesKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("rankings names: %w", err)
	}

	profiles := make([]game.Profile, 0, len(entries))
	for i, e := range entries {
		p := game.Profile{ID: ids[i], Rating: int(e.Score)}
		if i < len(names) {
			if name, ok := names[i].(string); ok {
				p.Name = name
			}
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// RankedStore layers the leaderboard cache over another ProfileStore.
// Writes go to both; rankings reads hit Redis first.
type RankedStore struct {
	game.ProfileStore
	cache *RankingsCache
}

// WithRankings wraps a ProfileStore with the Redis leaderboard.
func WithRankings(inner game.ProfileStore, cache *RankingsCache) *RankedStore {
	return &RankedStore{ProfileStore: inner, cache: cache}
}

// CreateProfile seeds the leaderboard entry alongside the primary record.
func (s *RankedStore) CreateProfile(ctx context.Context, id, name string) (game.Profile, error) {
	profile, err := s.ProfileStore.CreateProfile(ctx, id, name)
	if err != nil {
		return profile, err
	}
	if cerr := s.cache.Update(ctx, id, name, profile.Rating); cerr != nil {
		s.cache.logger.Warn("Leaderboard seed failed", "player", id, "error", cerr)
	}
	return profile, nil
}

// RenameProfile keeps the cached display name in sync.
func (s *RankedStore) RenameProfile(ctx context.Context, id, name string) error {
	if err := s.ProfileStore.RenameProfile(ctx, id, name); err != nil {
		return err
	}
	if cerr := s.cache.rdb.HSet(ctx, rankingNamesKey, id, name).Err(); cerr != nil {
		s.cache.logger.Warn("Leaderboard rename failed", "player", id, "error", cerr)
	}
	return nil
}

// RecordRoundResult updates the leaderboard after the primary write.
func (s *RankedStore) RecordRoundResult(ctx context.Context, id string, newRating int, isWin bool) error {
	if err := s.ProfileStore.RecordRoundResult(ctx, id, newRating, isWin); err != nil {
		return err
	}
	if cerr := s.cache.Update(ctx, id, "", newRating); cerr != nil {
		s.cache.logger.Warn("Leaderboard update failed", "player", id, "error", cerr)
	}
	return nil
}

// TopRankings serves from Redis, falling back to the primary store when the
// cache is unavailable or empty.
func (s *RankedStore) TopRankings(ctx context.Context, limit int) ([]game.Profile, error) {
	profiles, err := s.cache.Top(ctx, limit)
	if err == nil && len(profiles) > 0 {
		return profiles, nil
	}
	if err != nil {
		s.cache.logger.Warn("Leaderboard read failed, falling back", "error", err)
	}
	return s.ProfileStore.TopRankings(ctx, limit)
}
