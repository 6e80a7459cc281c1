package routing

import (
	"fmt"
	"net/http"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"routekit/internal/server"
)

// RouteDefiner registers a handler in a way the verb table cannot express.
// h runs the declared method in a request scope.
type RouteDefiner func(app chi.Router, srv *server.Server, h http.HandlerFunc, consume MetadataConsumer) error

// RouteKind tells how a declaration is registered.
type RouteKind string

const (
	KindHTTP      RouteKind = "http"
	KindCustom    RouteKind = "custom"
	KindWebSocket RouteKind = "websocket"
)

// RouteInfo is a read-only view of one declaration.
type RouteInfo struct {
	Controller string    `json:"controller"`
	Kind       RouteKind `json:"kind"`
	Verb       Verb      `json:"verb,omitempty"`
	Patterns   []string  `json:"patterns,omitempty"`
	Handler    string    `json:"handler"`
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// handlerFunc is a validated method expression such as (*Users).Get.
type handlerFunc struct {
	class reflect.Type
	name  string
	fn    reflect.Value
	typ   reflect.Type
}

func newHandlerFunc(class reflect.Type, method interface{}) *handlerFunc {
	if method == nil {
		panic(fmt.Sprintf("routing: nil handler declared on %s", class))
	}
	fn := reflect.ValueOf(method)
	typ := fn.Type()
	if typ.Kind() != reflect.Func {
		panic(fmt.Sprintf("routing: handler for %s must be a method expression, got %s", class, typ))
	}
	if typ.NumIn() == 0 || typ.In(0) != class {
		panic(fmt.Sprintf("routing: handler %s must take %s as its receiver", typ, class))
	}
	if typ.IsVariadic() {
		panic(fmt.Sprintf("routing: variadic handler %s is not supported", typ))
	}
	if typ.NumOut() > 1 || (typ.NumOut() == 1 && typ.Out(0) != errorType) {
		panic(fmt.Sprintf("routing: handler %s may only return error", typ))
	}

	return &handlerFunc{
		class: class,
		name:  funcName(fn),
		fn:    fn,
		typ:   typ,
	}
}

// funcName trims "pkg/path.(*T).Method" down to "Method".
func funcName(fn reflect.Value) string {
	name := runtime.FuncForPC(fn.Pointer()).Name()
	name = strings.TrimSuffix(name, "-fm")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// entry is one registry element: the definer closure plus what it describes.
type entry struct {
	info   RouteInfo
	define func(b *binding) error
}

// class holds the append-only route list of one controller type.
type class struct {
	typ reflect.Type

	mu      sync.RWMutex
	entries []*entry
}

func (c *class) append(e *entry) {
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
}

func (c *class) snapshot() []*entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *class) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// registry maps controller types to their classes.
var registry = struct {
	mu      sync.RWMutex
	classes map[reflect.Type]*class
}{classes: make(map[reflect.Type]*class)}

func classFor(t reflect.Type) *class {
	registry.mu.RLock()
	c, ok := registry.classes[t]
	registry.mu.RUnlock()
	if ok {
		return c
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if c, ok = registry.classes[t]; !ok {
		c = &class{typ: t}
		registry.classes[t] = c
	}
	return c
}

func lookupClass(t reflect.Type) (*class, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	c, ok := registry.classes[t]
	return c, ok
}

func hasRoutes(t reflect.Type) bool {
	c, ok := lookupClass(t)
	return ok && c.len() > 0
}

// HasRoutes reports whether T has at least one declared route.
func HasRoutes[T any]() bool {
	return hasRoutes(typeOf[T]())
}

// Declared lists every declaration, grouped by controller name and kept in
// declaration order within a controller.
func Declared() []RouteInfo {
	registry.mu.RLock()
	classes := make([]*class, 0, len(registry.classes))
	for _, c := range registry.classes {
		classes = append(classes, c)
	}
	registry.mu.RUnlock()

	sort.Slice(classes, func(i, j int) bool {
		return classes[i].typ.String() < classes[j].typ.String()
	})

	var out []RouteInfo
	for _, c := range classes {
		for _, e := range c.snapshot() {
			out = append(out, e.info)
		}
	}
	return out
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
