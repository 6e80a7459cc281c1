package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"routekit/internal/config"
	"routekit/internal/infrastructure"
)

// ErrServerClosed is returned by Upgrade after Close.
var ErrServerClosed = errors.New("websocket: server closed")

// Server completes handshakes for one route and tracks the resulting connections.
// It never listens on its own; callers hand it upgrade requests.
type Server struct {
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu     sync.RWMutex
	conns  map[*Conn]struct{}
	closed bool
}

// NewServer creates a socket-server from the websocket configuration
func NewServer(cfg config.WebSocketConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.server"))

	s := &Server{
		cfg:    cfg,
		logger: logger,
		conns:  make(map[*Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
		HandshakeTimeout: cfg.HandshakeTimeout,
		CheckOrigin:      s.checkOrigin,
		Error:            s.handshakeError,
	}
	return s
}

// checkOrigin allows requests without an Origin header, any origin when the
// list contains "*", and otherwise only listed origins. An empty list falls
// back to a same-host check.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.cfg.AllowedOrigins) == 0 {
		return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
	}

	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}

	s.logger.WarnContext(r.Context(), "WebSocket origin check - origin not allowed",
		slog.String("origin", origin),
		slog.Any("allowed_origins", s.cfg.AllowedOrigins))
	return false
}

func (s *Server) handshakeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	s.logger.WarnContext(r.Context(), "WebSocket upgrade error",
		slog.Int("status", status),
		slog.String("reason", reason.Error()),
		slog.String("origin", r.Header.Get("Origin")))
	http.Error(w, http.StatusText(status), status)
}

// Upgrade completes the handshake on w and registers the new connection.
func (s *Server) Upgrade(w http.ResponseWriter, r *http.Request, responseHeader http.Header) (*Conn, error) {
	ctx := r.Context()

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return nil, ErrServerClosed
	}

	raw, err := s.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		if m := GetOTelMetrics(); m != nil {
			m.RecordHandshakeError(ctx, r.URL.Path)
		}
		return nil, err
	}

	if s.cfg.MaxMessageSize > 0 {
		raw.SetReadLimit(s.cfg.MaxMessageSize)
	}

	c := newConn(s, raw, raw, r.URL.Path, infrastructure.GetTraceID(ctx))
	if !s.add(c) {
		c.CloseWithCode(websocket.CloseGoingAway, "server shutting down")
		return nil, ErrServerClosed
	}
	c.keepalive(s.cfg.PingPeriod, s.cfg.PongWait)

	if m := GetOTelMetrics(); m != nil {
		m.RecordConnection(ctx, c.path)
	}
	c.logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", c.remoteAddr),
		slog.Int("total_clients", s.ClientCount()))

	return c, nil
}

// Adopt registers an already established connection, such as a MockConnection,
// as if it had been upgraded on path. It returns nil once the server is closed.
func (s *Server) Adopt(conn Connection, path string) *Conn {
	c := newConn(s, conn, nil, path, "")
	if !s.add(c) {
		return nil
	}
	return c
}

func (s *Server) add(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) remove(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// Clients returns a snapshot of the open connections
func (s *Server) Clients() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		clients = append(clients, c)
	}
	return clients
}

// ClientCount returns the number of open connections
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Broadcast writes one frame to every open connection and returns how many
// writes succeeded. Connections that fail the write are closed.
func (s *Server) Broadcast(messageType int, data []byte) int {
	clients := s.Clients()

	sent, failed := 0, 0
	for _, c := range clients {
		if err := c.WriteMessage(messageType, data); err != nil {
			failed++
			c.logger.WarnContext(c.Context(), "Broadcast write failed, disconnecting",
				slog.String("error", err.Error()))
			c.Close()
			continue
		}
		sent++
	}

	if failed > 0 {
		s.logger.Warn("Some clients failed to receive broadcast",
			slog.Int("success_count", sent),
			slog.Int("fail_count", failed))
	}
	if m := GetOTelMetrics(); m != nil && len(clients) > 0 {
		m.RecordBroadcast(clients[0].Context(), int64(len(clients)), int64(failed))
	}
	return sent
}

// BroadcastJSON encodes v once and broadcasts it as a text frame
func (s *Server) BroadcastJSON(v interface{}) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return s.Broadcast(websocket.TextMessage, data), nil
}

// Close rejects further upgrades and closes every open connection with
// CloseGoingAway. Calling Close again is a no-op.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	clients := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.CloseWithCode(websocket.CloseGoingAway, "server shutting down")
	}

	s.logger.Info("WebSocket server closed", slog.Int("closed_clients", len(clients)))
	return nil
}

// Closed reports whether Close has been called
func (s *Server) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
