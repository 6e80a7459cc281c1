package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"routekit/internal/infrastructure"
)

const (
	// defaultWriteWait bounds a single write when no WriteWait is configured
	defaultWriteWait = 10 * time.Second
)

// ErrConnClosed is returned by writes on a closed connection.
var ErrConnClosed = errors.New("websocket: connection closed")

// Conn is one accepted WebSocket connection owned by a Server.
// Writes are serialized; reads must come from a single goroutine, as with gorilla.
type Conn struct {
	id          string
	path        string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	conn   Connection
	raw    *websocket.Conn
	server *Server
	logger *slog.Logger

	writeWait time.Duration
	writeMu   sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
}

func newConn(server *Server, conn Connection, raw *websocket.Conn, path, traceID string) *Conn {
	id := uuid.New().String()

	writeWait := server.cfg.WriteWait
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}

	logger := server.logger.With(
		slog.String("client_id", id),
		slog.String("path", path),
	)
	if traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}

	remoteAddr := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remoteAddr = addr.String()
	}

	ctx := context.Background()
	if traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, traceID)
	}
	ctx, cancel := context.WithCancel(ctx)

	return &Conn{
		id:          id,
		path:        path,
		traceID:     traceID,
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
		conn:        conn,
		raw:         raw,
		server:      server,
		logger:      logger,
		writeWait:   writeWait,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// ID returns the connection's unique identifier
func (c *Conn) ID() string { return c.id }

// Path returns the request path the connection was accepted on
func (c *Conn) Path() string { return c.path }

// RemoteAddr returns the peer address
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// ConnectedAt returns the handshake completion time
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// Raw returns the underlying gorilla connection. It is nil for mock-backed conns.
func (c *Conn) Raw() *websocket.Conn { return c.raw }

// Server returns the socket-server that accepted the connection
func (c *Conn) Server() *Server { return c.server }

// Done is closed once the connection has been closed
func (c *Conn) Done() <-chan struct{} { return c.done }

// Context carries the connection's trace ID and is cancelled by Close.
func (c *Conn) Context() context.Context { return c.ctx }

// WriteMessage writes a single frame under the connection's write lock.
func (c *Conn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	err := c.conn.WriteMessage(messageType, data)

	if m := GetOTelMetrics(); m != nil {
		m.RecordMessage(c.Context(), "out", len(data), err)
	}
	if err != nil {
		return err
	}
	c.messagesSent.Add(1)
	return nil
}

// WriteText writes a text frame
func (c *Conn) WriteText(text string) error {
	return c.WriteMessage(websocket.TextMessage, []byte(text))
}

// WriteJSON encodes v and writes it as a text frame
func (c *Conn) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

// ReadMessage reads the next data frame
func (c *Conn) ReadMessage() (int, []byte, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
			c.logger.WarnContext(c.Context(), "Unexpected WebSocket close error",
				slog.String("error", err.Error()))
		}
		return messageType, data, err
	}

	c.messagesReceived.Add(1)
	if m := GetOTelMetrics(); m != nil {
		m.RecordMessage(c.Context(), "in", len(data), nil)
	}
	return messageType, data, nil
}

// ReadJSON reads the next frame and decodes it into v
func (c *Conn) ReadJSON(v interface{}) error {
	_, data, err := c.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// CloseWithCode sends a close frame with code and reason, then closes.
func (c *Conn) CloseWithCode(code int, text string) error {
	select {
	case <-c.done:
		return nil
	default:
	}

	msg := websocket.FormatCloseMessage(code, text)
	c.writeMu.Lock()
	err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait))
	c.writeMu.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.DebugContext(c.Context(), "Failed to send close frame",
			slog.String("error", err.Error()))
	}
	return c.Close()
}

// Close closes the connection and removes it from its server. Safe to call repeatedly.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		err = c.conn.Close()
		c.server.remove(c)

		duration := time.Since(c.connectedAt)
		if m := GetOTelMetrics(); m != nil {
			m.RecordDisconnection(c.Context(), c.path, duration)
		}
		c.logger.InfoContext(c.Context(), "WebSocket client disconnected",
			slog.Duration("connection_duration", duration),
			slog.Int64("messages_sent", c.messagesSent.Load()),
			slog.Int64("messages_received", c.messagesReceived.Load()))
	})
	return err
}

// keepalive pings the peer every period and extends the read deadline on pong.
func (c *Conn) keepalive(period, pongWait time.Duration) {
	if pongWait > 0 {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}
	if period <= 0 {
		return
	}

	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				c.writeMu.Lock()
				err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
				c.writeMu.Unlock()
				if err != nil {
					c.logger.DebugContext(c.Context(), "Failed to send ping message",
						slog.String("error", err.Error()))
					c.Close()
					return
				}
			}
		}
	}()
}
