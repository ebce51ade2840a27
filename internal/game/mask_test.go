package game_test

import (
	"testing"

	"github.com/babanuki/server/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskHidesOtherHands(t *testing.T) {
	tr := newTestRoom(t, 40)
	tr.join(t, "a", "b", "c")
	require.True(t, tr.room.Start())

	view := tr.room.MaskStateFor("a")
	for _, pv := range view.Players {
		p := tr.room.TestPlayerByID(pv.ID)
		require.Len(t, pv.Hand, len(p.Hand))

		for i, cv := range pv.Hand {
			assert.Equal(t, p.Hand[i].ID, cv.ID)
			if pv.ID == "a" {
				assert.NotEqual(t, game.TestHiddenSuit, cv.Suit)
				if cv.Suit != "joker" {
					assert.NotZero(t, cv.Rank)
				}
			} else {
				assert.Equal(t, game.TestHiddenSuit, cv.Suit)
				assert.Zero(t, cv.Rank)
			}
		}
	}
}

func TestMaskSpectatorSeesNoFaces(t *testing.T) {
	tr := newTestRoom(t, 41)
	tr.join(t, "a", "b")
	require.True(t, tr.room.Start())

	view := tr.room.MaskStateFor("")
	for _, pv := range view.Players {
		for _, cv := range pv.Hand {
			assert.Equal(t, game.TestHiddenSuit, cv.Suit)
			assert.Zero(t, cv.Rank)
		}
	}
}

func TestMaskKeepsDiscardPublic(t *testing.T) {
	tr := newTestRoom(t, 42)
	tr.join(t, "a", "b")
	require.True(t, tr.room.Start())

	// Draw until a pair discard lands or the round ends.
	for i := 0; i < 10000; i++ {
		view := tr.room.MaskStateFor("")
		if view.LastDiscard != nil || view.Phase != "PLAYING" {
			break
		}
		require.True(t, tr.room.Draw(view.CurrentTurnID, view.TargetID, -1))
	}

	view := tr.room.MaskStateFor("")
	require.NotNil(t, view.LastDiscard, "no pair discarded in the whole round")
	require.Len(t, view.LastDiscard.Cards, 2)
	for _, cv := range view.LastDiscard.Cards {
		assert.NotEqual(t, game.TestHiddenSuit, cv.Suit)
		assert.NotZero(t, cv.Rank)
	}
	assert.Equal(t, view.LastDiscard.Cards[0].Rank, view.LastDiscard.Cards[1].Rank)
}

func TestMaskPreservesHighlight(t *testing.T) {
	tr := newTestRoom(t, 43)
	tr.join(t, "a", "b")
	require.True(t, tr.room.Start())
	require.True(t, tr.room.Tease("a", 0))

	for _, viewer := range []string{"a", "b", ""} {
		view := tr.room.MaskStateFor(viewer)
		for _, pv := range view.Players {
			if pv.ID != "a" {
				continue
			}
			assert.True(t, pv.Hand[0].Highlighted, "viewer %q lost the highlight", viewer)
		}
	}
}

func TestMaskSnapshotIsDetached(t *testing.T) {
	tr := newTestRoom(t, 44)
	tr.join(t, "a", "b")
	require.True(t, tr.room.Start())

	view := tr.room.MaskStateFor("a")
	view.Players[0].Hand[0].Suit = "tampered"
	view.Messages = append(view.Messages, game.ChatMessage{Content: "injected"})

	fresh := tr.room.MaskStateFor("a")
	assert.NotEqual(t, "tampered", fresh.Players[0].Hand[0].Suit)
	for _, m := range fresh.Messages {
		assert.NotEqual(t, "injected", m.Content)
	}
}
