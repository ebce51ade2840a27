package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babanuki/server/internal/game"
	"github.com/babanuki/server/internal/store"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// newTestServer wires a full server around an in-memory store and exposes it
// through an httptest listener. The returned URL is ready for the websocket
// dialer.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	logger := testLogger()
	memStore := store.NewMemoryStore()
	srv := NewServer("localhost:0", memStore, logger)

	cfg := game.Config{
		HumanTimeout: time.Minute,
		BotDelayMin:  time.Millisecond,
		BotDelayMax:  2 * time.Millisecond,
		Seed:         42,
	}
	registry := game.NewRegistry(cfg, quartz.NewReal(), memStore, srv, logger)
	srv.SetRegistry(registry)

	go srv.run()

	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = srv.Stop() })

	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func sendMessage(t *testing.T, ws *websocket.Conn, mt MessageType, payload interface{}) {
	t.Helper()
	msg, err := NewMessage(mt, payload)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(msg))
}

// readType reads until a message of the wanted type arrives, skipping
// interleaved broadcasts.
func readType(t *testing.T, ws *websocket.Conn, want MessageType) *Message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, ws.SetReadDeadline(deadline))
		var msg Message
		require.NoError(t, ws.ReadJSON(&msg))
		if msg.Type == want {
			return &msg
		}
	}
	t.Fatalf("timed out waiting for %s message", want)
	return nil
}

// readUpdate reads state updates until accept returns true for one.
func readUpdate(t *testing.T, ws *websocket.Conn, accept func(game.StateView) bool) game.StateView {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, ws.SetReadDeadline(deadline))
		var msg Message
		require.NoError(t, ws.ReadJSON(&msg))
		if msg.Type != MessageTypeUpdate {
			continue
		}
		var view game.StateView
		require.NoError(t, json.Unmarshal(msg.Data, &view))
		if accept == nil || accept(view) {
			return view
		}
	}
	t.Fatal("timed out waiting for state update")
	return game.StateView{}
}

func authenticate(t *testing.T, ws *websocket.Conn, id, name string) {
	t.Helper()
	sendMessage(t, ws, MessageTypeAuth, AuthData{PlayerID: id, PlayerName: name})

	msg := readType(t, ws, MessageTypeAuthResponse)
	var resp AuthResponseData
	require.NoError(t, json.Unmarshal(msg.Data, &resp))
	require.True(t, resp.Success)
	require.Equal(t, id, resp.PlayerID)
}

func handFor(view game.StateView, playerID string) []game.CardView {
	for _, pv := range view.Players {
		if pv.ID == playerID {
			return pv.Hand
		}
	}
	return nil
}

func assertHandHidden(t *testing.T, view game.StateView, playerID string) {
	t.Helper()
	hand := handFor(view, playerID)
	require.NotEmpty(t, hand)
	for _, cv := range hand {
		assert.Equal(t, "back", cv.Suit, "player %s card %s visible", playerID, cv.ID)
		assert.Zero(t, cv.Rank)
	}
}

func assertHandVisible(t *testing.T, view game.StateView, playerID string) {
	t.Helper()
	hand := handFor(view, playerID)
	require.NotEmpty(t, hand)
	for _, cv := range hand {
		assert.NotEqual(t, "back", cv.Suit, "player %s card %s hidden from its owner", playerID, cv.ID)
	}
}

func TestServerHealth(t *testing.T) {
	srv := NewServer("localhost:0", store.NewMemoryStore(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebSocketGameRoundTrip(t *testing.T) {
	_, wsURL := newTestServer(t)

	wsA := dialWS(t, wsURL)
	wsB := dialWS(t, wsURL)
	wsSpec := dialWS(t, wsURL)

	authenticate(t, wsA, "a", "Alice")
	authenticate(t, wsB, "b", "Bob")

	sendMessage(t, wsA, MessageTypeJoinRoom, JoinRoomData{RoomID: "table-1"})
	sendMessage(t, wsB, MessageTypeJoinRoom, JoinRoomData{RoomID: "table-1"})

	// Wait until the second seat is visible before starting; the two joins
	// race on separate connections.
	readUpdate(t, wsA, func(v game.StateView) bool {
		return len(v.Players) == 2
	})

	// Spectators need no identity to watch.
	sendMessage(t, wsSpec, MessageTypeWatchRoom, WatchRoomData{RoomID: "table-1"})
	readUpdate(t, wsSpec, nil)

	sendMessage(t, wsA, MessageTypeStartGame, nil)

	viewA := readUpdate(t, wsA, func(v game.StateView) bool {
		return v.Phase == "PLAYING"
	})
	viewB := readUpdate(t, wsB, func(v game.StateView) bool {
		return v.Phase == "PLAYING"
	})
	viewSpec := readUpdate(t, wsSpec, func(v game.StateView) bool {
		return v.Phase == "PLAYING"
	})

	// Each seat sees its own faces and nobody else's; the spectator sees
	// none at all.
	assertHandVisible(t, viewA, "a")
	assertHandHidden(t, viewA, "b")
	assertHandVisible(t, viewB, "b")
	assertHandHidden(t, viewB, "a")
	assertHandHidden(t, viewSpec, "a")
	assertHandHidden(t, viewSpec, "b")

	require.NotEmpty(t, viewA.CurrentTurnID)
	require.NotEmpty(t, viewA.TargetID)

	actorWS := wsA
	if viewA.CurrentTurnID == "b" {
		actorWS = wsB
	}
	targetID := viewA.TargetID
	targetBefore := len(handFor(viewA, targetID))

	// Omitting cardIndex lets the server pick the card.
	sendMessage(t, actorWS, MessageTypeDraw, DrawData{TargetID: targetID})

	drained := func(v game.StateView) bool {
		return len(handFor(v, targetID)) == targetBefore-1
	}
	afterA := readUpdate(t, wsA, drained)
	afterSpec := readUpdate(t, wsSpec, drained)

	assertHandVisible(t, afterA, "a")
	assertHandHidden(t, afterA, "b")
	assertHandHidden(t, afterSpec, "a")
	assertHandHidden(t, afterSpec, "b")
}

func TestLobbyDisconnectFreesSeat(t *testing.T) {
	_, wsURL := newTestServer(t)

	wsA := dialWS(t, wsURL)
	wsB := dialWS(t, wsURL)

	authenticate(t, wsA, "a", "Alice")
	authenticate(t, wsB, "b", "Bob")

	sendMessage(t, wsA, MessageTypeJoinRoom, JoinRoomData{RoomID: "table-2"})
	sendMessage(t, wsB, MessageTypeJoinRoom, JoinRoomData{RoomID: "table-2"})

	readUpdate(t, wsA, func(v game.StateView) bool {
		return len(v.Players) == 2
	})

	// Dropping the socket while the room is still in the lobby releases the
	// seat; the remaining viewer is told.
	require.NoError(t, wsB.Close())

	view := readUpdate(t, wsA, func(v game.StateView) bool {
		return len(v.Players) == 1
	})
	assert.Equal(t, "a", view.Players[0].ID)
	assert.Equal(t, "a", view.OwnerID)
}
