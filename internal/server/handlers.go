package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/babanuki/server/internal/game"
)

// handleMessage processes incoming messages from the client. Engine-illegal
// actions are silent no-ops; error messages go back only for transport-level
// problems like unknown rooms or missing auth.
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "player", c.GetPlayer())

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse auth data")
			return
		}
		c.handleAuth(data)

	case MessageTypeJoinRoom:
		var data JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse join room data")
			return
		}
		c.handleJoinRoom(data)

	case MessageTypeWatchRoom:
		var data WatchRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse watch room data")
			return
		}
		c.SetRoom(data.RoomID)
		c.server.SendRoomState(c, data.RoomID)

	case MessageTypeLeaveRoom:
		c.handleLeaveRoom()

	case MessageTypeListRooms:
		c.handleListRooms()

	case MessageTypeStartGame:
		c.withRoom(func(room *game.Room) bool {
			return room.Start()
		})

	case MessageTypeDraw:
		var data DrawData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse draw data")
			return
		}
		cardIndex := -1
		if data.CardIndex != nil {
			cardIndex = *data.CardIndex
		}
		c.withRoom(func(room *game.Room) bool {
			return room.Draw(c.GetPlayer(), data.TargetID, cardIndex)
		})

	case MessageTypeTease:
		var data TeaseData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse tease data")
			return
		}
		c.withRoom(func(room *game.Room) bool {
			return room.Tease(c.GetPlayer(), data.CardIndex)
		})

	case MessageTypeShuffleHand:
		c.withRoom(func(room *game.Room) bool {
			return room.ShuffleHand(c.GetPlayer())
		})

	case MessageTypeVoteSkip:
		c.withRoom(func(room *game.Room) bool {
			return room.VoteToSkip(c.GetPlayer())
		})

	case MessageTypeChat:
		var data ChatData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse chat data")
			return
		}
		c.withRoom(func(room *game.Room) bool {
			return room.PostMessage(c.GetPlayer(), data.Content)
		})

	case MessageTypeKick:
		var data KickData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse kick data")
			return
		}
		c.withRoom(func(room *game.Room) bool {
			return room.Kick(c.GetPlayer(), data.TargetID)
		})

	case MessageTypeAddBot:
		c.withRoom(func(room *game.Room) bool {
			return room.AddBot(c.GetPlayer())
		})

	case MessageTypeReset:
		var data ResetData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse reset data")
			return
		}
		c.withRoom(func(room *game.Room) bool {
			return room.Reset(data.Hard)
		})

	case MessageTypeRankings:
		var data RankingsData
		if msg.Data != nil {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				c.sendError("invalid_message", "Failed to parse rankings data")
				return
			}
		}
		c.handleRankings(data)

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) handleAuth(data AuthData) {
	c.logger.Info("Auth request", "playerName", data.PlayerName)

	if data.PlayerID == "" || data.PlayerName == "" {
		c.sendError("invalid_auth", "Player id and name required")
		return
	}

	c.SetPlayer(data.PlayerID, data.PlayerName)

	response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{
		Success:  true,
		PlayerID: data.PlayerID,
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleJoinRoom(data JoinRoomData) {
	c.logger.Info("Join room request", "roomId", data.RoomID, "player", c.GetPlayer())

	playerID := c.GetPlayer()
	if playerID == "" {
		c.sendError("not_authenticated", "Must authenticate first")
		return
	}
	if data.RoomID == "" {
		c.sendError("invalid_message", "Room id required")
		return
	}

	room := c.server.registry.GetOrCreate(data.RoomID)
	joined := room.Join(c.ctx, playerID, c.GetName())

	// Even when the game is already underway the connection may observe the
	// room; the seatless viewer just gets masked hands like any spectator.
	c.SetRoom(data.RoomID)

	if joined {
		c.server.BroadcastRoom(data.RoomID)
	} else {
		c.server.registry.Reap(data.RoomID)
		c.server.SendRoomState(c, data.RoomID)
	}
}

func (c *Connection) handleLeaveRoom() {
	roomID := c.GetRoom()
	playerID := c.GetPlayer()
	c.logger.Info("Leave room request", "roomId", roomID, "player", playerID)

	if roomID == "" {
		return
	}
	c.SetRoom("")

	room, err := c.server.registry.Get(roomID)
	if err != nil {
		return
	}
	if room.Leave(playerID) {
		c.server.registry.Reap(roomID)
		c.server.BroadcastRoom(roomID)
	}
}

func (c *Connection) handleListRooms() {
	response, _ := NewMessage(MessageTypeRoomList, RoomListData{
		Rooms: c.server.registry.Summaries(),
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleRankings(data RankingsData) {
	limit := data.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()

	profiles, err := c.server.store.TopRankings(ctx, limit)
	if err != nil {
		c.logger.Error("Rankings query failed", "error", err)
		c.sendError("rankings_unavailable", "Rankings are temporarily unavailable")
		return
	}

	entries := make([]RankingEntry, 0, len(profiles))
	for _, p := range profiles {
		entries = append(entries, RankingEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Rating:   p.Rating,
			Matches:  p.Matches,
			Wins:     p.Wins,
		})
	}

	response, _ := NewMessage(MessageTypeRankingList, RankingListData{Rankings: entries})
	_ = c.SendMessage(response)
}

// withRoom runs a state-mutating engine operation against the connection's
// current room and broadcasts the new state when the operation changed
// anything. No-op operations stay silent.
func (c *Connection) withRoom(op func(room *game.Room) bool) {
	playerID := c.GetPlayer()
	if playerID == "" {
		c.sendError("not_authenticated", "Must authenticate first")
		return
	}
	roomID := c.GetRoom()
	if roomID == "" {
		c.sendError("not_in_room", "Join a room first")
		return
	}

	room, err := c.server.registry.Get(roomID)
	if err != nil {
		c.sendError("room_not_found", "Unknown room: "+roomID)
		return
	}

	if op(room) {
		c.server.BroadcastRoom(roomID)
	}
}
