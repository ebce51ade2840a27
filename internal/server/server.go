package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/babanuki/server/internal/game"
)

// Server accepts WebSocket connections and fans masked room state out to
// viewers. It implements game.Broadcaster so timer-driven mutations inside
// a room reach clients without a waiting caller.
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	httpServer  *http.Server

	registry *game.Registry
	store    game.ProfileStore
}

// NewServer creates a new WebSocket server. The registry is attached
// afterwards via SetRegistry because the registry itself needs the server
// as its broadcaster.
func NewServer(addr string, store game.ProfileStore, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Game state is per-viewer masked; origin checking is the
				// reverse proxy's job in deployment.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
		store:       store,
	}
}

// SetRegistry attaches the room registry.
func (s *Server) SetRegistry(registry *game.Registry) {
	s.registry = registry
}

// Start starts the WebSocket server and blocks until it stops.
func (s *Server) Start() error {
	go s.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	s.logger.Info("Starting WebSocket server", "addr", s.addr)

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the WebSocket server and closes every connection.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(context.Background())
	}
	return nil
}

// run handles connection lifecycle
func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client connected", "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			_, ok := s.connections[conn]
			if ok {
				delete(s.connections, conn)
			}
			total := len(s.connections)
			s.mu.Unlock()

			if ok {
				// A lobby disconnect frees the seat; mid-game the seat
				// stays for reconnection.
				playerID := conn.GetPlayer()
				roomID := conn.GetRoom()
				if playerID != "" && roomID != "" {
					if room, err := s.registry.Get(roomID); err == nil {
						if room.Leave(playerID) {
							s.registry.Reap(roomID)
							s.BroadcastRoom(roomID)
						}
					}
				}
				_ = conn.Close()
			}
			s.logger.Info("Client disconnected", "total", total)

		case <-s.ctx.Done():
			return
		}
	}
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s, s.logger)
	s.register <- client
	client.Start()

	go func() {
		<-client.ctx.Done()
		s.unregister <- client
	}()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// RoomChanged implements game.Broadcaster for mutations that happen without
// a waiting caller (turn timeouts, bot turns).
func (s *Server) RoomChanged(roomID string) {
	s.BroadcastRoom(roomID)
}

// BroadcastRoom delivers a freshly masked state snapshot to every viewer of
// the room. Each connection gets the view for its own identity; viewers
// without one get the spectator view.
func (s *Server) BroadcastRoom(roomID string) {
	room, err := s.registry.Get(roomID)
	if err != nil {
		return
	}

	s.mu.RLock()
	viewers := make([]*Connection, 0)
	for conn := range s.connections {
		if conn.GetRoom() == roomID {
			viewers = append(viewers, conn)
		}
	}
	s.mu.RUnlock()

	for _, conn := range viewers {
		view := room.MaskStateFor(conn.GetPlayer())
		msg, err := NewMessage(MessageTypeUpdate, view)
		if err != nil {
			s.logger.Error("Failed to encode state update", "error", err)
			continue
		}
		if err := conn.SendMessage(msg); err != nil {
			s.logger.Error("Failed to send state update", "error", err, "player", conn.GetPlayer())
		}
	}

	s.logger.Debug("Broadcasted room state", "room", roomID, "viewers", len(viewers))
}

// SendRoomState delivers the current masked state to a single connection.
func (s *Server) SendRoomState(conn *Connection, roomID string) {
	room, err := s.registry.Get(roomID)
	if err != nil {
		conn.sendError("room_not_found", "Unknown room: "+roomID)
		return
	}

	view := room.MaskStateFor(conn.GetPlayer())
	msg, err := NewMessage(MessageTypeUpdate, view)
	if err != nil {
		s.logger.Error("Failed to encode state update", "error", err)
		return
	}
	_ = conn.SendMessage(msg)
}
