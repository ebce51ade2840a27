package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/babanuki/server/internal/game"
	"github.com/babanuki/server/internal/rating"
)

// MongoStore is the MongoDB-backed ProfileStore. Players live in the
// "players" collection, per-round rating movements in "player_history", and
// round summaries in "game_results".
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *log.Logger
}

// NewMongoStore connects to MongoDB and pings the primary before returning.
func NewMongoStore(ctx context.Context, uri, database string, logger *log.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(database),
		logger: logger.WithPrefix("mongo"),
	}, nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type playerDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Rating    int       `bson:"rating"`
	Matches   int       `bson:"matches"`
	Wins      int       `bson:"wins"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type historyDoc struct {
	PlayerID   string    `bson:"player_id"`
	RoundID    string    `bson:"round_id"`
	Before     int       `bson:"rate_before"`
	After      int       `bson:"rate_after"`
	Rank       int       `bson:"rank"`
	RecordedAt time.Time `bson:"recorded_at"`
}

// GetProfile implements game.ProfileStore.
func (s *MongoStore) GetProfile(ctx context.Context, id string) (game.Profile, error) {
	var doc playerDoc
	err := s.db.Collection("players").FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return game.Profile{}, game.ErrProfileNotFound
	}
	if err != nil {
		return game.Profile{}, fmt.Errorf("find player: %w", err)
	}

	history, err := s.recentHistory(ctx, id)
	if err != nil {
		// A profile without history still lets the player join.
		s.logger.Warn("History load failed", "player", id, "error", err)
	}

	return game.Profile{
		ID:      doc.ID,
		Name:    doc.Name,
		Rating:  doc.Rating,
		Matches: doc.Matches,
		Wins:    doc.Wins,
		History: history,
	}, nil
}

// CreateProfile implements game.ProfileStore.
func (s *MongoStore) CreateProfile(ctx context.Context, id, name string) (game.Profile, error) {
	now := time.Now()
	doc := playerDoc{
		ID:        id,
		Name:      name,
		Rating:    rating.Initial,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Collection("players").InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		// Two seats raced for the same identity; the existing record wins.
		return s.GetProfile(ctx, id)
	}
	if err != nil {
		return game.Profile{}, fmt.Errorf("insert player: %w", err)
	}

	return game.Profile{ID: id, Name: name, Rating: rating.Initial}, nil
}

// RenameProfile implements game.ProfileStore.
func (s *MongoStore) RenameProfile(ctx context.Context, id, name string) error {
	res, err := s.db.Collection("players").UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"name": name, "updated_at": time.Now()}})
	if err != nil {
		return fmt.Errorf("rename player: %w", err)
	}
	if res.MatchedCount == 0 {
		return game.ErrProfileNotFound
	}
	return nil
}

// RecordRoundResult implements game.ProfileStore.
func (s *MongoStore) RecordRoundResult(ctx context.Context, id string, newRating int, isWin bool) error {
	wins := 0
	if isWin {
		wins = 1
	}
	_, err := s.db.Collection("players").UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{"rating": newRating, "updated_at": time.Now()},
			"$inc": bson.M{"matches": 1, "wins": wins},
		})
	if err != nil {
		return fmt.Errorf("record round result: %w", err)
	}
	return nil
}

// AppendRatingHistory implements game.ProfileStore.
func (s *MongoStore) AppendRatingHistory(ctx context.Context, id, roundID string, before, after, rank int) error {
	_, err := s.db.Collection("player_history").InsertOne(ctx, historyDoc{
		PlayerID:   id,
		RoundID:    roundID,
		Before:     before,
		After:      after,
		Rank:       rank,
		RecordedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("append rating history: %w", err)
	}
	return nil
}

// SaveRoundMetadata implements game.ProfileStore.
func (s *MongoStore) SaveRoundMetadata(ctx context.Context, roundID, roomID string, details []byte) error {
	_, err := s.db.Collection("game_results").InsertOne(ctx, bson.M{
		"_id":      roundID,
		"room_id":  roomID,
		"details":  string(details),
		"ended_at": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("save round metadata: %w", err)
	}
	return nil
}

// TopRankings implements game.ProfileStore.
func (s *MongoStore) TopRankings(ctx context.Context, limit int) ([]game.Profile, error) {
	opts := options.Find().SetSort(bson.D{{Key: "rating", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.db.Collection("players").Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("rankings query: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []game.Profile
	for cursor.Next(ctx) {
		var doc playerDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("rankings decode: %w", err)
		}
		profiles = append(profiles, game.Profile{
			ID:      doc.ID,
			Name:    doc.Name,
			Rating:  doc.Rating,
			Matches: doc.Matches,
			Wins:    doc.Wins,
		})
	}
	return profiles, cursor.Err()
}

// recentHistory returns the player's most recent post-round ratings, oldest
// first.
func (s *MongoStore) recentHistory(ctx context.Context, id string) ([]int, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "recorded_at", Value: -1}}).
		SetLimit(historyLimit)

	cursor, err := s.db.Collection("player_history").Find(ctx, bson.M{"player_id": id}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var newestFirst []int
	for cursor.Next(ctx) {
		var doc historyDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		newestFirst = append(newestFirst, doc.After)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	history := make([]int, len(newestFirst))
	for i, v := range newestFirst {
		history[len(newestFirst)-1-i] = v
	}
	return history, nil
}
