package di

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/dig"

	apierrors "routekit/internal/errors"
)

var (
	// ErrUnresolvable marks a type that neither a scope nor the root can supply.
	ErrUnresolvable = errors.New("di: unresolvable dependency")
	// ErrScopeReleased is returned by lookups on a released scope.
	ErrScopeReleased = errors.New("di: scope released")
)

// Container is the root dependency container. dig itself is not safe for
// concurrent use, so every call into it is serialized.
type Container struct {
	mu  sync.Mutex
	dig *dig.Container
}

// New creates an empty root container
func New(opts ...dig.Option) *Container {
	return &Container{dig: dig.New(opts...)}
}

// Provide registers a constructor with the root container
func (c *Container) Provide(constructor interface{}, opts ...dig.ProvideOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dig.Provide(constructor, opts...)
}

// Invoke runs fn with its arguments resolved from the root container.
// fn must not call back into c.
func (c *Container) Invoke(fn interface{}, opts ...dig.InvokeOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dig.Invoke(fn, opts...)
}

// ProvideAll registers every constructor, joining the failures.
func ProvideAll(c *Container, constructors ...interface{}) error {
	errs := make([]error, 0, len(constructors))
	for _, ctor := range constructors {
		errs = append(errs, c.Provide(ctor))
	}
	return errors.Join(errs...)
}

// ProvideValue registers an existing value under its static type T.
func ProvideValue[T any](c *Container, v T) error {
	return c.Provide(func() T { return v })
}

// Resolve looks up a single value of type t in the root container.
func (c *Container) Resolve(t reflect.Type) (reflect.Value, error) {
	var out reflect.Value
	fnType := reflect.FuncOf([]reflect.Type{t}, nil, false)
	fn := reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		out = args[0]
		return nil
	})

	if err := c.Invoke(fn.Interface()); err != nil {
		return reflect.Value{}, unresolvable(t, err)
	}
	return out, nil
}

// Resolve returns the root container's value of type T.
func Resolve[T any](c *Container) (T, error) {
	var zero T
	v, err := c.Resolve(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

// Scope creates a child scope backed by this container.
func (c *Container) Scope() *Scope {
	return &Scope{
		root:   c,
		values: make(map[reflect.Type]reflect.Value),
	}
}

func unresolvable(t reflect.Type, cause error) error {
	return apierrors.NewResolutionError(
		fmt.Sprintf("cannot resolve %s", t),
		fmt.Errorf("%w: %w", ErrUnresolvable, cause),
	).WithContext("dependency", t.String())
}
