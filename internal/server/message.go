package server

import (
	"encoding/json"
	"time"

	"github.com/babanuki/server/internal/game"
)

// MessageType represents a WebSocket message type with type safety
type MessageType string

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

const (
	// Client → Server
	MessageTypeAuth        MessageType = "auth"
	MessageTypeJoinRoom    MessageType = "join_room"
	MessageTypeLeaveRoom   MessageType = "leave_room"
	MessageTypeWatchRoom   MessageType = "watch_room"
	MessageTypeListRooms   MessageType = "list_rooms"
	MessageTypeStartGame   MessageType = "start_game"
	MessageTypeDraw        MessageType = "draw"
	MessageTypeTease       MessageType = "tease"
	MessageTypeShuffleHand MessageType = "shuffle_hand"
	MessageTypeVoteSkip    MessageType = "vote_skip"
	MessageTypeChat        MessageType = "chat"
	MessageTypeKick        MessageType = "kick"
	MessageTypeAddBot      MessageType = "add_bot"
	MessageTypeReset       MessageType = "reset"
	MessageTypeRankings    MessageType = "rankings"

	// Server → Client
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeUpdate       MessageType = "update"
	MessageTypeRoomList     MessageType = "room_list"
	MessageTypeRankingList  MessageType = "ranking_list"
	MessageTypeError        MessageType = "error"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

// AuthData carries the opaque identity credential resolved by the client.
// Issuing and verifying credentials is not this server's job; the id is
// treated as a stable opaque string.
type AuthData struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type JoinRoomData struct {
	RoomID string `json:"roomId"`
}

type WatchRoomData struct {
	RoomID string `json:"roomId"`
}

type DrawData struct {
	TargetID  string `json:"targetId"`
	CardIndex *int   `json:"cardIndex,omitempty"`
}

type TeaseData struct {
	CardIndex int `json:"cardIndex"`
}

type ChatData struct {
	Content string `json:"content"`
}

type KickData struct {
	TargetID string `json:"targetId"`
}

type ResetData struct {
	Hard bool `json:"hard"`
}

type RankingsData struct {
	Limit int `json:"limit,omitempty"`
}

// Server → Client Messages

type AuthResponseData struct {
	Success  bool   `json:"success"`
	PlayerID string `json:"playerId,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoomListData struct {
	Rooms []game.RoomSummary `json:"rooms"`
}

// RankingEntry is one row of the global leaderboard.
type RankingEntry struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Rating   int    `json:"rating"`
	Matches  int    `json:"matches"`
	Wins     int    `json:"wins"`
}

type RankingListData struct {
	Rankings []RankingEntry `json:"rankings"`
}
