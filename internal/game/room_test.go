package game_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babanuki/server/internal/game"
)

func TestJoinIsIdempotent(t *testing.T) {
	tr := newTestRoom(t, 20)

	require.True(t, tr.room.Join(context.Background(), "a", "Alice"))
	require.True(t, tr.room.Join(context.Background(), "a", "Alice"))
	assert.Equal(t, 1, tr.room.PlayerCount())
	assert.Equal(t, "a", tr.room.OwnerID())
}

func TestJoinRejectsBlankIdentity(t *testing.T) {
	tr := newTestRoom(t, 21)
	assert.False(t, tr.room.Join(context.Background(), "", "Alice"))
	assert.False(t, tr.room.Join(context.Background(), "a", ""))
	assert.Equal(t, 0, tr.room.PlayerCount())
}

func TestJoinRenamesExistingSeat(t *testing.T) {
	tr := newTestRoom(t, 22)
	require.True(t, tr.room.Join(context.Background(), "a", "Alice"))
	require.True(t, tr.room.Join(context.Background(), "a", "Alicia"))

	view := tr.room.MaskStateFor("a")
	require.Len(t, view.Players, 1)
	assert.Equal(t, "Alicia", view.Players[0].Name)

	// The rename reaches the profile store off the game path.
	require.Eventually(t, func() bool {
		p, err := tr.store.GetProfile(context.Background(), "a")
		return err == nil && p.Name == "Alicia"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJoinLoadsPersistedRating(t *testing.T) {
	tr := newTestRoom(t, 23)
	_, err := tr.store.CreateProfile(context.Background(), "vet", "Veteran")
	require.NoError(t, err)
	require.NoError(t, tr.store.RecordRoundResult(context.Background(), "vet", 1440, true))

	require.True(t, tr.room.Join(context.Background(), "vet", "Veteran"))
	view := tr.room.MaskStateFor("vet")
	assert.Equal(t, 1440, view.Players[0].Rating)
}

func TestJoinRejectsNewIdentityMidGame(t *testing.T) {
	tr := newTestRoom(t, 24)
	tr.join(t, "a", "b")
	require.True(t, tr.room.Start())

	assert.False(t, tr.room.Join(context.Background(), "c", "Carol"))
	assert.Equal(t, 2, tr.room.PlayerCount())

	// Seated players may still rejoin after a reconnect.
	assert.True(t, tr.room.Join(context.Background(), "a", "Player a"))
}

func TestLeaveReassignsOwner(t *testing.T) {
	tr := newTestRoom(t, 25)
	tr.join(t, "a", "b")
	require.Equal(t, "a", tr.room.OwnerID())

	require.True(t, tr.room.Leave("a"))
	assert.Equal(t, "b", tr.room.OwnerID())
	assert.Equal(t, 1, tr.room.PlayerCount())

	assert.False(t, tr.room.Leave("nobody"))
}

func TestLeaveBlockedMidGame(t *testing.T) {
	tr := newTestRoom(t, 26)
	tr.join(t, "a", "b")
	require.True(t, tr.room.Start())

	assert.False(t, tr.room.Leave("a"))
	assert.Equal(t, 2, tr.room.PlayerCount())
}

func TestKick(t *testing.T) {
	tr := newTestRoom(t, 27)
	tr.join(t, "a", "b", "c")

	assert.False(t, tr.room.Kick("a", "a"))
	assert.False(t, tr.room.Kick("stranger", "b"))
	assert.False(t, tr.room.Kick("a", "stranger"))

	require.True(t, tr.room.Kick("b", "a"))
	assert.Equal(t, 2, tr.room.PlayerCount())
	assert.Equal(t, "b", tr.room.OwnerID())

	view := tr.room.MaskStateFor("")
	require.NotEmpty(t, view.Messages)
	last := view.Messages[len(view.Messages)-1]
	assert.True(t, last.IsSystem)
	assert.Contains(t, last.Content, "kicked")
}

func TestAddBot(t *testing.T) {
	tr := newTestRoom(t, 28)
	tr.join(t, "a")

	assert.False(t, tr.room.AddBot("stranger"))
	require.True(t, tr.room.AddBot("a"))
	require.True(t, tr.room.AddBot("a"))
	assert.Equal(t, 3, tr.room.PlayerCount())

	view := tr.room.MaskStateFor("a")
	names := make([]string, 0, 2)
	for _, pv := range view.Players {
		if pv.IsBot {
			names = append(names, pv.Name)
			assert.Equal(t, 1000, pv.Rating)
		}
	}
	assert.Equal(t, []string{"Bot 1", "Bot 2"}, names)
}

func TestPostMessageCapsLog(t *testing.T) {
	tr := newTestRoom(t, 29)
	tr.join(t, "a", "b")

	assert.False(t, tr.room.PostMessage("a", ""))
	assert.False(t, tr.room.PostMessage("stranger", "hi"))

	for i := 0; i < game.TestMaxMessages+5; i++ {
		require.True(t, tr.room.PostMessage("a", fmt.Sprintf("msg %d", i)))
	}

	view := tr.room.MaskStateFor("")
	require.Len(t, view.Messages, game.TestMaxMessages)
	assert.Equal(t, "msg 5", view.Messages[0].Content)
	assert.Equal(t, fmt.Sprintf("msg %d", game.TestMaxMessages+4), view.Messages[game.TestMaxMessages-1].Content)
}

func TestBotsCannotChat(t *testing.T) {
	tr := newTestRoom(t, 30)
	tr.join(t, "a")
	require.True(t, tr.room.AddBot("a"))

	var botID string
	for _, pv := range tr.room.MaskStateFor("").Players {
		if pv.IsBot {
			botID = pv.ID
		}
	}
	require.NotEmpty(t, botID)
	assert.False(t, tr.room.PostMessage(botID, "beep"))
}

func TestHardResetReturnsToLobby(t *testing.T) {
	tr := newTestRoom(t, 31)
	tr.join(t, "a", "b", "c")
	require.True(t, tr.room.Start())
	tr.playOut(t)

	require.True(t, tr.room.Reset(true))

	view := tr.room.MaskStateFor("")
	assert.Equal(t, "LOBBY", view.Phase)
	assert.Len(t, view.Players, 3)
	assert.Empty(t, view.RoundHistory)
	assert.Zero(t, view.RoundCount)
	for _, pv := range view.Players {
		assert.Empty(t, pv.Hand)
		assert.Zero(t, pv.Rank)
		assert.Zero(t, pv.PreviousRank)
	}
}

func TestSoftResetDealsNextRound(t *testing.T) {
	tr := newTestRoom(t, 32)
	tr.join(t, "a", "b", "c")
	require.True(t, tr.room.Start())

	// Soft reset is only legal once the round has finished.
	assert.False(t, tr.room.Reset(false))

	tr.playOut(t)
	finished := tr.room.MaskStateFor("")
	prevRanks := make(map[string]int)
	for _, pv := range finished.Players {
		prevRanks[pv.ID] = pv.Rank
	}

	require.True(t, tr.room.Reset(false))

	view := tr.room.MaskStateFor("")
	assert.Equal(t, "PLAYING", view.Phase)
	assert.Equal(t, 1, view.RoundCount)
	assert.Len(t, view.RoundHistory, 1)
	for _, pv := range view.Players {
		assert.NotEmpty(t, pv.Hand)
		assert.Zero(t, pv.Rank)
		assert.Equal(t, prevRanks[pv.ID], pv.PreviousRank)
	}
}

func TestSecondRoundUsesPlacementDeltas(t *testing.T) {
	tr := newTestRoom(t, 33)
	tr.join(t, "a", "b", "c")
	require.True(t, tr.room.Start())
	tr.playOut(t)
	require.True(t, tr.room.Reset(false))
	tr.playOut(t)

	view := tr.room.MaskStateFor("")
	require.Len(t, view.RoundHistory, 2)
	for _, s := range view.RoundHistory[1].Standings {
		prev := 0
		for _, first := range view.RoundHistory[0].Standings {
			if first.PlayerID == s.PlayerID {
				prev = first.Rank
			}
		}
		require.NotZero(t, prev)

		// Placement pays 80 per rank moved, plus a flat 100 for holding
		// the same rank. Mid-band ratings see no boundary correction.
		want := (prev - s.Rank) * 80
		if s.Rank == prev {
			want = 100
		}
		assert.Equal(t, want, s.Diff)
	}
}
