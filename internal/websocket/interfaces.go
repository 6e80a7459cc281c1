package websocket

import (
	"net"
	"time"
)

// Connection is the subset of *websocket.Conn used by Conn.
// *websocket.Conn satisfies it directly; tests substitute MockConnection.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
}
