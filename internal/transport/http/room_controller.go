package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	gorilla "github.com/gorilla/websocket"

	apierrors "routekit/internal/errors"
	"routekit/internal/infrastructure"
	"routekit/internal/routing"
	"routekit/internal/services"
	"routekit/internal/websocket"
)

var roomParam = map[string]routing.Parameter{
	"room": {Description: "Room name", Type: "string"},
}

var _ = routing.Routes[*RoomController]().
	WebSocket("/ws/rooms/:room", (*RoomController).Join).
	Get("/api/rooms", (*RoomController).List, routing.Metadata{
		Description: "Rooms with at least one member",
	}).
	Get("/api/rooms/:room", (*RoomController).Show, routing.Metadata{
		Description: "Member count of a room",
		Parameters:  roomParam,
		Responses: map[string]routing.Response{
			"200": {Description: "Room details"},
			"404": {Description: "Room has no members"},
		},
	}).
	Post("/api/rooms/:room/broadcast", (*RoomController).Broadcast, routing.Metadata{
		Description: "Send the message query parameter to every member of a room",
		Parameters:  roomParam,
		Responses: map[string]routing.Response{
			"200": {Description: "Number of members reached"},
			"400": {Description: "Empty message"},
			"404": {Description: "Room has no members"},
		},
	})

// BroadcastResult is returned by POST /api/rooms/{room}/broadcast
type BroadcastResult struct {
	Room       string `json:"room"`
	Recipients int    `json:"recipients"`
}

// RoomController joins WebSocket clients to rooms and relays their messages
type RoomController struct {
	logger *slog.Logger
}

// NewRoomController creates a new room controller
func NewRoomController(logger *slog.Logger) *RoomController {
	return &RoomController{
		logger: infrastructure.WithComponent(logger, "room_controller"),
	}
}

// Join handles WebSocket /ws/rooms/{room}. Every text frame a member sends
// is relayed to the whole room.
func (c *RoomController) Join(conn *websocket.Conn, r *http.Request, rooms *services.RoomService) error {
	room := chi.URLParam(r, "room")
	if err := rooms.Join(conn.Context(), room, conn); err != nil {
		return err
	}
	go c.readPump(conn, room, rooms)
	return nil
}

func (c *RoomController) readPump(conn *websocket.Conn, room string, rooms *services.RoomService) {
	defer conn.Close()

	ctx := conn.Context()
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != gorilla.TextMessage {
			continue
		}
		if _, err := rooms.Broadcast(ctx, room, conn.ID(), string(data)); err != nil && !errors.Is(err, services.ErrEmptyMessage) {
			c.logger.WarnContext(ctx, "Room relay failed",
				slog.String("room", room),
				slog.String("error", err.Error()))
		}
	}
}

// List handles GET /api/rooms
func (c *RoomController) List(w http.ResponseWriter, r *http.Request, rooms *services.RoomService) {
	render.JSON(w, r, rooms.Rooms())
}

// Show handles GET /api/rooms/{room}
func (c *RoomController) Show(w http.ResponseWriter, r *http.Request, rooms *services.RoomService) error {
	room := chi.URLParam(r, "room")
	members := rooms.Members(room)
	if members == 0 {
		return apierrors.NewNotFoundError("room").WithContext("room", room)
	}
	render.JSON(w, r, services.RoomInfo{Name: room, Members: members})
	return nil
}

// Broadcast handles POST /api/rooms/{room}/broadcast?message=
func (c *RoomController) Broadcast(w http.ResponseWriter, r *http.Request, rooms *services.RoomService) error {
	room := chi.URLParam(r, "room")
	sent, err := rooms.Broadcast(r.Context(), room, "", r.URL.Query().Get("message"))
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		return apierrors.ErrValidation("message", "query parameter is required")
	case errors.Is(err, services.ErrRoomNotFound):
		return apierrors.NewNotFoundError("room").WithContext("room", room)
	case err != nil:
		return err
	}

	render.JSON(w, r, BroadcastResult{Room: room, Recipients: sent})
	return nil
}
