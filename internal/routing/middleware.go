package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/go-chi/chi/v5"

	"routekit/internal/config"
	"routekit/internal/di"
	"routekit/internal/infrastructure"
	"routekit/internal/server"
)

// Registrar is implemented by controllers that register extra routes of
// their own. It runs before any declared route is registered.
type Registrar interface {
	Register(ctx context.Context, app chi.Router, srv *server.Server, consume MetadataConsumer) error
}

// Option configures a Middleware.
type Option func(*Middleware)

// WithLogger sets the logger used while registering and dispatching.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithWebSocketConfig sets the configuration of the socket-servers created
// for WebSocket routes.
func WithWebSocketConfig(cfg config.WebSocketConfig) Option {
	return func(m *Middleware) {
		m.wsConfig = cfg
	}
}

// Middleware is a controller instance bound to a root container, ready to
// register its routes on an app and server.
type Middleware struct {
	ctlr     reflect.Value
	class    *class
	root     *di.Container
	logger   *slog.Logger
	wsConfig config.WebSocketConfig
}

// ControllerClass is a controller type known to have routes.
type ControllerClass[T any] struct {
	class *class
}

// MiddlewareFor returns the class of T, or ErrNoRoutes if T declares nothing.
func MiddlewareFor[T any]() (*ControllerClass[T], error) {
	t := typeOf[T]()
	c, ok := lookupClass(t)
	if !ok || c.len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRoutes, t)
	}
	return &ControllerClass[T]{class: c}, nil
}

// MustMiddlewareFor is like MiddlewareFor but panics on error.
func MustMiddlewareFor[T any]() *ControllerClass[T] {
	c, err := MiddlewareFor[T]()
	if err != nil {
		panic(err)
	}
	return c
}

// Instantiate resolves a T from root and binds it.
func (c *ControllerClass[T]) Instantiate(root *di.Container, opts ...Option) (*Middleware, error) {
	ctlr, err := di.Resolve[T](root)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", c.class.typ, err)
	}
	return c.Bind(ctlr, root, opts...)
}

// Bind binds an existing controller instance to root.
func (c *ControllerClass[T]) Bind(ctlr T, root *di.Container, opts ...Option) (*Middleware, error) {
	return Bind(ctlr, root, opts...)
}

// Routes returns the declarations of T
func (c *ControllerClass[T]) Routes() []RouteInfo {
	entries := c.class.snapshot()
	out := make([]RouteInfo, len(entries))
	for i, e := range entries {
		out[i] = e.info
	}
	return out
}

// Bind binds ctlr to root. It fails with ErrNoRoutes when the controller's
// type declares no routes.
func Bind(ctlr interface{}, root *di.Container, opts ...Option) (*Middleware, error) {
	if ctlr == nil {
		return nil, errors.New("routing: nil controller")
	}
	if root == nil {
		return nil, errors.New("routing: nil root container")
	}

	t := reflect.TypeOf(ctlr)
	c, ok := lookupClass(t)
	if !ok || c.len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRoutes, t)
	}

	m := &Middleware{
		ctlr:     reflect.ValueOf(ctlr),
		class:    c,
		root:     root,
		logger:   infrastructure.GetLogger(),
		wsConfig: config.Default().WebSocket,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "routing"), slog.String("controller", t.String()))
	return m, nil
}

// Controller returns the bound controller instance
func (m *Middleware) Controller() interface{} {
	return m.ctlr.Interface()
}

// Len returns how many definers Register will run
func (m *Middleware) Len() int {
	return m.class.len()
}

// Register runs the controller's own Registrar, if any, and then every
// declared definer in declaration order against the same app, server and
// consumer. consume may be nil.
func (m *Middleware) Register(ctx context.Context, app chi.Router, srv *server.Server, consume MetadataConsumer) error {
	if app == nil || srv == nil {
		return errors.New("routing: register needs both an app and a server")
	}

	if r, ok := m.Controller().(Registrar); ok {
		if err := r.Register(ctx, app, srv, consume); err != nil {
			return fmt.Errorf("register %s: %w", m.class.typ, err)
		}
	}

	b := &binding{
		ctx:      ctx,
		app:      app,
		srv:      srv,
		consume:  consume,
		ctlr:     m.ctlr,
		root:     m.root,
		logger:   m.logger,
		wsConfig: m.wsConfig,
	}

	entries := m.class.snapshot()
	for _, e := range entries {
		if err := e.define(b); err != nil {
			return fmt.Errorf("register %s.%s: %w", m.class.typ, e.info.Handler, err)
		}
	}

	m.logger.InfoContext(ctx, "Controller registered", slog.Int("routes", len(entries)))
	return nil
}

// binding is what every definer of one Register call shares.
type binding struct {
	ctx      context.Context
	app      chi.Router
	srv      *server.Server
	consume  MetadataConsumer
	ctlr     reflect.Value
	root     *di.Container
	logger   *slog.Logger
	wsConfig config.WebSocketConfig
}

// call invokes h on the controller with arguments resolved from scope.
func (b *binding) call(scope *di.Scope, h *handlerFunc) error {
	args, err := scope.ResolveArgs(h.typ, 1)
	if err != nil {
		return err
	}

	in := make([]reflect.Value, 0, len(args)+1)
	in = append(in, b.ctlr)
	in = append(in, args...)

	out := h.fn.Call(in)
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}
