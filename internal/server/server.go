package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"routekit/internal/config"
	apierrors "routekit/internal/errors"
	"routekit/internal/infrastructure"
)

// UpgradeListener receives HTTP requests that ask for a protocol upgrade.
// A listener owns the connection: it must either complete a handshake or
// Destroy it.
type UpgradeListener func(w http.ResponseWriter, r *http.Request)

type listenerEntry struct {
	id uint64
	fn UpgradeListener
}

// Server is the long-lived HTTP server every controller registers against.
type Server struct {
	httpServer *http.Server
	errors     *apierrors.ErrorHandler
	logger     *slog.Logger

	handlerMu sync.RWMutex
	handler   http.Handler

	mu        sync.RWMutex
	listeners []listenerEntry
	nextID    uint64
}

// New creates a server that dispatches non-upgrade traffic to app.
func New(cfg config.ServerConfig, app http.Handler, errHandler *apierrors.ErrorHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if errHandler == nil {
		errHandler = apierrors.NewErrorHandler(logger, false)
	}

	s := &Server{
		errors:  errHandler,
		logger:  logger.With(slog.String("component", "server")),
		handler: app,
	}
	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        s,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	return s
}

// SetHandler swaps the application handler used for non-upgrade requests.
func (s *Server) SetHandler(h http.Handler) {
	s.handlerMu.Lock()
	s.handler = h
	s.handlerMu.Unlock()
}

// Handler returns the current application handler
func (s *Server) Handler() http.Handler {
	s.handlerMu.RLock()
	defer s.handlerMu.RUnlock()
	return s.handler
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ServeHTTP emits upgrade requests to the upgrade listeners and hands
// everything else to the application. Upgrade requests with no listener
// attached fall through to the application too.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if IsUpgradeRequest(r) {
		if listeners := s.snapshot(); len(listeners) > 0 {
			r = r.WithContext(infrastructure.EnsureTraceID(r.Context()))
			for _, l := range listeners {
				l.fn(w, r)
			}
			return
		}
	}

	h := s.Handler()
	if h == nil {
		s.NotFound(w, r)
		return
	}
	h.ServeHTTP(w, r)
}

// OnUpgrade attaches l and returns a func that detaches it again.
func (s *Server) OnUpgrade(l UpgradeListener) (remove func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: l})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, e := range s.listeners {
				if e.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// RemoveAllUpgradeListeners detaches every upgrade listener
func (s *Server) RemoveAllUpgradeListeners() {
	s.mu.Lock()
	s.listeners = nil
	s.mu.Unlock()
}

// UpgradeListenerCount reports how many upgrade listeners are attached
func (s *Server) UpgradeListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

func (s *Server) snapshot() []listenerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]listenerEntry, len(s.listeners))
	copy(out, s.listeners)
	return out
}

// HandleError renders err through the error handler. A nil error is a
// pass-through and is answered by the not-found handler.
func (s *Server) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		s.NotFound(w, r)
		return
	}
	s.errors.HandleError(w, r, err)
}

// NotFound answers with the RFC 7807 not-found document
func (s *Server) NotFound(w http.ResponseWriter, r *http.Request) {
	s.errors.NotFound(w, r)
}

// ErrorHandler returns the server's error handler
func (s *Server) ErrorHandler() *apierrors.ErrorHandler {
	return s.errors
}

// ListenAndServe listens on the configured address
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))
	return s.httpServer.Serve(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Hijacked connections are not tracked here; their owners close them.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// RegisterOnShutdown registers fn to run when Shutdown starts
func (s *Server) RegisterOnShutdown(fn func()) {
	s.httpServer.RegisterOnShutdown(fn)
}

// IsUpgradeRequest reports whether r asks for a protocol upgrade.
func IsUpgradeRequest(r *http.Request) bool {
	if r.Header.Get("Upgrade") == "" {
		return false
	}
	for _, v := range r.Header.Values("Connection") {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
				return true
			}
		}
	}
	return false
}

// ErrNotHijackable is returned by Destroy for writers that cannot be hijacked.
var ErrNotHijackable = errors.New("server: response writer does not support hijacking")

// Destroy hijacks the underlying connection and closes it without a response.
func Destroy(w http.ResponseWriter) error {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return ErrNotHijackable
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return err
	}
	return conn.Close()
}
