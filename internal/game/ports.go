package game

import (
	"context"
	"errors"
)

// ErrProfileNotFound is returned by ProfileStore.GetProfile for unknown ids.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is the persisted identity-keyed record behind a player seat.
type Profile struct {
	ID      string
	Name    string
	Rating  int
	Matches int
	Wins    int
	// History holds the most recent post-round ratings, oldest first.
	History []int
}

// ProfileStore persists player ratings and round results. The engine treats
// every failure of this port as non-fatal: gameplay always proceeds on the
// in-memory state and failures are logged by the caller.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (Profile, error)
	CreateProfile(ctx context.Context, id, name string) (Profile, error)
	RenameProfile(ctx context.Context, id, name string) error
	RecordRoundResult(ctx context.Context, id string, newRating int, isWin bool) error
	AppendRatingHistory(ctx context.Context, id, roundID string, before, after, rank int) error
	SaveRoundMetadata(ctx context.Context, roundID, roomID string, details []byte) error
	TopRankings(ctx context.Context, limit int) ([]Profile, error)
}

// Broadcaster is notified when a room mutates without a waiting caller, i.e.
// when a turn timer or scheduled bot turn fires. The transport layer is
// expected to fetch a masked state per connected viewer and deliver it.
type Broadcaster interface {
	RoomChanged(roomID string)
}
