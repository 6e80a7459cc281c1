package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"routekit/internal/infrastructure"
	"routekit/internal/websocket"
)

// roomNameRules bounds room names taken from the URL path.
const roomNameRules = "required,max=64,printascii,excludesall=/?#"

var validate = validator.New()

// RoomMessage is the frame written to room members by Broadcast.
type RoomMessage struct {
	Room      string    `json:"room"`
	From      string    `json:"from,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomInfo describes one room.
type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// RoomService groups WebSocket connections into named rooms.
type RoomService struct {
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]map[*websocket.Conn]struct{}
}

// NewRoomService creates an empty room registry
func NewRoomService(logger *slog.Logger) *RoomService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &RoomService{
		logger: infrastructure.WithComponent(logger, "room_service"),
		rooms:  make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Join adds conn to room. The connection leaves the room when it closes.
func (rs *RoomService) Join(ctx context.Context, room string, conn *websocket.Conn) error {
	room = strings.TrimSpace(room)
	if err := validate.Var(room, roomNameRules); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}

	rs.mu.Lock()
	members, ok := rs.rooms[room]
	if !ok {
		members = make(map[*websocket.Conn]struct{})
		rs.rooms[room] = members
	}
	if _, joined := members[conn]; joined {
		rs.mu.Unlock()
		return nil
	}
	members[conn] = struct{}{}
	count := len(members)
	rs.mu.Unlock()

	go func() {
		<-conn.Done()
		rs.Leave(context.Background(), room, conn)
	}()

	rs.logger.InfoContext(ctx, "Client joined room",
		slog.String("room", room),
		slog.String("client_id", conn.ID()),
		slog.Int("members", count))
	return nil
}

// Leave removes conn from room. Empty rooms are dropped.
func (rs *RoomService) Leave(ctx context.Context, room string, conn *websocket.Conn) {
	rs.mu.Lock()
	members, ok := rs.rooms[room]
	if !ok {
		rs.mu.Unlock()
		return
	}
	if _, joined := members[conn]; !joined {
		rs.mu.Unlock()
		return
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(rs.rooms, room)
	}
	count := len(members)
	rs.mu.Unlock()

	rs.logger.DebugContext(ctx, "Client left room",
		slog.String("room", room),
		slog.String("client_id", conn.ID()),
		slog.Int("members", count))
}

// Members returns the number of connections in room
func (rs *RoomService) Members(room string) int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rooms[room])
}

// Rooms lists the rooms with at least one member, sorted by name
func (rs *RoomService) Rooms() []RoomInfo {
	rs.mu.RLock()
	rooms := make([]RoomInfo, 0, len(rs.rooms))
	for name, members := range rs.rooms {
		rooms = append(rooms, RoomInfo{Name: name, Members: len(members)})
	}
	rs.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms
}

// Broadcast writes text to every member of room and returns how many writes
// succeeded. Members that fail the write are closed.
func (rs *RoomService) Broadcast(ctx context.Context, room, from, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyMessage
	}

	rs.mu.RLock()
	members, ok := rs.rooms[room]
	targets := make([]*websocket.Conn, 0, len(members))
	for c := range members {
		targets = append(targets, c)
	}
	rs.mu.RUnlock()
	if !ok {
		return 0, ErrRoomNotFound
	}

	msg := RoomMessage{Room: room, From: from, Text: text, Timestamp: time.Now().UTC()}
	sent := 0
	for _, c := range targets {
		if err := c.WriteJSON(msg); err != nil {
			rs.logger.WarnContext(ctx, "Room broadcast write failed, disconnecting",
				slog.String("room", room),
				slog.String("client_id", c.ID()),
				slog.String("error", err.Error()))
			c.Close()
			continue
		}
		sent++
	}

	rs.logger.DebugContext(ctx, "Room broadcast sent",
		slog.String("room", room),
		slog.Int("recipients", sent),
		slog.Int("members", len(targets)))
	return sent, nil
}
