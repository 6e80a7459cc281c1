package routing

import (
	"fmt"

	apierrors "routekit/internal/errors"
)

// route is the immutable description captured by one definer.
type route struct {
	kind    RouteKind
	verb    Verb
	pattern PathPattern
	custom  RouteDefiner
	meta    Metadata
	handler *handlerFunc
}

func (r *route) info() RouteInfo {
	info := RouteInfo{
		Controller: r.handler.class.String(),
		Kind:       r.kind,
		Verb:       r.verb,
		Handler:    r.handler.name,
	}
	if r.pattern != nil {
		info.Patterns = r.pattern.chiPatterns()
	}
	return info
}

// Table declares routes for controller type T. Declarations usually run from
// package init:
//
//	var _ = routing.Routes[*UserController]().
//		Get("/users/:id", (*UserController).Show, routing.Metadata{Description: "Show a user"}).
//		WebSocket("/ws/users/:id", (*UserController).Stream)
type Table[T any] struct {
	class *class
}

// Routes returns the route table of T.
func Routes[T any]() *Table[T] {
	return &Table[T]{class: classFor(typeOf[T]())}
}

// Len returns the number of declarations on T
func (t *Table[T]) Len() int {
	return t.class.len()
}

// Get declares a GET route
func (t *Table[T]) Get(path string, method interface{}, md ...Metadata) *Table[T] {
	return t.On(VerbGet, Path(path), method, md...)
}

// Put declares a PUT route
func (t *Table[T]) Put(path string, method interface{}, md ...Metadata) *Table[T] {
	return t.On(VerbPut, Path(path), method, md...)
}

// Post declares a POST route
func (t *Table[T]) Post(path string, method interface{}, md ...Metadata) *Table[T] {
	return t.On(VerbPost, Path(path), method, md...)
}

// Delete declares a DELETE route
func (t *Table[T]) Delete(path string, method interface{}, md ...Metadata) *Table[T] {
	return t.On(VerbDelete, Path(path), method, md...)
}

// Options declares an OPTIONS route
func (t *Table[T]) Options(path string, method interface{}, md ...Metadata) *Table[T] {
	return t.On(VerbOptions, Path(path), method, md...)
}

// Head declares a HEAD route
func (t *Table[T]) Head(path string, method interface{}, md ...Metadata) *Table[T] {
	return t.On(VerbHead, Path(path), method, md...)
}

// Patch declares a PATCH route
func (t *Table[T]) Patch(path string, method interface{}, md ...Metadata) *Table[T] {
	return t.On(VerbPatch, Path(path), method, md...)
}

// Trace declares a TRACE route
func (t *Table[T]) Trace(path string, method interface{}, md ...Metadata) *Table[T] {
	return t.On(VerbTrace, Path(path), method, md...)
}

// All declares a route matching every method. It never emits metadata.
func (t *Table[T]) All(path string, method interface{}, md ...Metadata) *Table[T] {
	return t.On(VerbAll, Path(path), method, md...)
}

// Verb declares a route on any supported verb, including the extension verbs.
func (t *Table[T]) Verb(v Verb, path string, method interface{}, md ...Metadata) *Table[T] {
	return t.On(v, Path(path), method, md...)
}

// On declares a route on an arbitrary pattern. Declaring the same method
// twice registers it twice.
func (t *Table[T]) On(v Verb, pattern PathPattern, method interface{}, md ...Metadata) *Table[T] {
	if !v.supported() {
		panic(fmt.Sprintf("routing: unsupported verb %q", v))
	}
	if pattern == nil {
		panic("routing: nil path pattern")
	}

	r := &route{
		kind:    KindHTTP,
		verb:    v,
		pattern: pattern,
		meta:    firstMetadata(md),
		handler: newHandlerFunc(t.class.typ, method),
	}
	t.class.append(&entry{info: r.info(), define: r.defineHTTP})
	return t
}

// Custom declares a route registered by def.
func (t *Table[T]) Custom(def RouteDefiner, method interface{}) *Table[T] {
	if def == nil {
		panic("routing: nil route definer")
	}

	r := &route{
		kind:    KindCustom,
		custom:  def,
		handler: newHandlerFunc(t.class.typ, method),
	}
	t.class.append(&entry{info: r.info(), define: r.defineCustom})
	return t
}

// WebSocket declares a WebSocket route. The method runs once per accepted
// connection.
func (t *Table[T]) WebSocket(path string, method interface{}) *Table[T] {
	r := &route{
		kind:    KindWebSocket,
		pattern: Path(path),
		handler: newHandlerFunc(t.class.typ, method),
	}
	t.class.append(&entry{info: r.info(), define: r.defineWebSocket})
	return t
}

func firstMetadata(md []Metadata) Metadata {
	if len(md) == 0 {
		return Metadata{}
	}
	return md[0]
}

func (r *route) defineHTTP(b *binding) (err error) {
	patterns := r.pattern.chiPatterns()
	defer func() {
		// chi panics on malformed patterns.
		if v := recover(); v != nil {
			err = apierrors.NewRoutingError(fmt.Sprintf("invalid %s route %v", r.verb, patterns), fmt.Errorf("%v", v))
		}
	}()

	h := b.httpHandler(r)
	register := verbTable[r.verb]
	for _, p := range patterns {
		register(b.app, p, h)
	}
	emitMetadata(b.ctx, b.logger, b.consume, r)
	return nil
}

func (r *route) defineCustom(b *binding) error {
	if err := r.custom(b.app, b.srv, b.httpHandler(r), b.consume); err != nil {
		return fmt.Errorf("custom route %s.%s: %w", r.handler.class, r.handler.name, err)
	}
	return nil
}

func (r *route) defineWebSocket(b *binding) error {
	return attachWebSocket(b, r)
}
