package routing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	apierrors "routekit/internal/errors"
	"routekit/internal/server"
	"routekit/internal/websocket"
)

// wsRoute pairs a WebSocket route's matcher with its dedicated socket-server.
type wsRoute struct {
	pattern string
	matcher *chi.Mux
	sockets *websocket.Server
	route   *route
	binding *binding
}

// upgradeMux owns the single upgrade listener routing attaches to a server.
type upgradeMux struct {
	srv    *server.Server
	logger *slog.Logger

	mu     sync.RWMutex
	routes []*wsRoute
	remove func()
}

// upgradeMuxes is the side table of active multiplexers per server.
var upgradeMuxes = struct {
	sync.Mutex
	m map[*server.Server]*upgradeMux
}{m: make(map[*server.Server]*upgradeMux)}

// upgradeMuxFor returns the server's multiplexer, attaching its upgrade
// listener on first use.
func upgradeMuxFor(srv *server.Server, logger *slog.Logger) *upgradeMux {
	upgradeMuxes.Lock()
	defer upgradeMuxes.Unlock()

	if m, ok := upgradeMuxes.m[srv]; ok {
		return m
	}
	m := &upgradeMux{srv: srv, logger: logger}
	m.remove = srv.OnUpgrade(m.dispatch)
	upgradeMuxes.m[srv] = m
	return m
}

func attachWebSocket(b *binding, r *route) (err error) {
	patterns := r.pattern.chiPatterns()

	matcher := chi.NewMux()
	defer func() {
		// chi panics on malformed patterns.
		if v := recover(); v != nil {
			err = apierrors.NewRoutingError(fmt.Sprintf("invalid websocket route %v", patterns), fmt.Errorf("%v", v))
		}
	}()
	noop := func(http.ResponseWriter, *http.Request) {}
	for _, p := range patterns {
		matcher.Get(p, noop)
	}

	wr := &wsRoute{
		pattern: patterns[0],
		matcher: matcher,
		sockets: websocket.NewServer(b.wsConfig, b.logger),
		route:   r,
		binding: b,
	}
	upgradeMuxFor(b.srv, b.logger).add(wr)

	b.logger.DebugContext(b.ctx, "WebSocket route attached",
		slog.String("pattern", wr.pattern),
		slog.String("handler", r.handler.name))
	return nil
}

func (m *upgradeMux) add(wr *wsRoute) {
	m.mu.Lock()
	m.routes = append(m.routes, wr)
	m.mu.Unlock()
}

func (m *upgradeMux) snapshot() []*wsRoute {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*wsRoute, len(m.routes))
	copy(out, m.routes)
	return out
}

// dispatch hands the upgrade to the first route, in registration order,
// whose pattern matches. Unmatched connections are destroyed.
func (m *upgradeMux) dispatch(w http.ResponseWriter, req *http.Request) {
	path := req.URL.RawPath
	if path == "" {
		path = req.URL.Path
	}

	for _, wr := range m.snapshot() {
		rctx := chi.NewRouteContext()
		if !wr.matcher.Match(rctx, http.MethodGet, path) {
			continue
		}

		GetMetrics().recordUpgrade(req.Context(), UpgradeMatched, wr.route.handler)
		matched := req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		wr.binding.serveWebSocket(w, matched, wr.route, wr.sockets)
		return
	}

	GetMetrics().recordUpgrade(req.Context(), UpgradeUnmatched, nil)
	m.logger.DebugContext(req.Context(), "No WebSocket route matched, destroying connection",
		slog.String("path", req.URL.Path))
	if err := server.Destroy(w); err != nil {
		m.logger.WarnContext(req.Context(), "Failed to destroy unmatched upgrade",
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()))
	}
}

// close shuts every socket-server down and detaches the listener.
func (m *upgradeMux) close() error {
	m.mu.Lock()
	routes := m.routes
	m.routes = nil
	m.mu.Unlock()

	m.remove()

	var firstErr error
	for _, wr := range routes {
		if err := wr.sockets.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CleanUp tears down the WebSocket routes registered on srv: every route's
// socket-server is closed and the upgrade listener is removed. It is safe
// to call repeatedly. app is accepted for symmetry with Register; chi has
// no way to unregister the HTTP routes, so callers build a fresh app.
func CleanUp(app chi.Router, srv *server.Server) error {
	_ = app
	if srv == nil {
		return nil
	}

	upgradeMuxes.Lock()
	m, ok := upgradeMuxes.m[srv]
	delete(upgradeMuxes.m, srv)
	upgradeMuxes.Unlock()

	if !ok {
		return nil
	}
	return m.close()
}

// WebSocketRoutes returns how many WebSocket routes are active on srv.
func WebSocketRoutes(srv *server.Server) int {
	upgradeMuxes.Lock()
	m, ok := upgradeMuxes.m[srv]
	upgradeMuxes.Unlock()
	if !ok {
		return 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.routes)
}

// SocketServers returns the socket-servers of srv's WebSocket routes keyed
// by their first pattern. For duplicate patterns the earliest route wins,
// matching dispatch.
func SocketServers(srv *server.Server) map[string]*websocket.Server {
	upgradeMuxes.Lock()
	m, ok := upgradeMuxes.m[srv]
	upgradeMuxes.Unlock()
	if !ok {
		return nil
	}

	out := make(map[string]*websocket.Server)
	for _, wr := range m.snapshot() {
		if _, dup := out[wr.pattern]; !dup {
			out[wr.pattern] = wr.sockets
		}
	}
	return out
}
