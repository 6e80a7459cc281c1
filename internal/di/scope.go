package di

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Scope is a disposable child of a Container.
type Scope struct {
	root *Container

	mu       sync.RWMutex
	values   map[reflect.Type]reflect.Value
	released bool
}

// Register stores v under its dynamic type. Registering the same type twice
// replaces the earlier value.
func (s *Scope) Register(v interface{}) {
	if v == nil {
		return
	}
	s.set(reflect.TypeOf(v), reflect.ValueOf(v))
}

// RegisterAs stores v under the static type T, which may be an interface.
func RegisterAs[T any](s *Scope, v T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	val := reflect.New(t).Elem()
	if rv := reflect.ValueOf(v); rv.IsValid() {
		val.Set(rv)
	}
	s.set(t, val)
}

func (s *Scope) set(t reflect.Type, v reflect.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.values[t] = v
}

// Resolve returns the scope's value for t, falling back to the root container.
func (s *Scope) Resolve(t reflect.Type) (reflect.Value, error) {
	s.mu.RLock()
	if s.released {
		s.mu.RUnlock()
		return reflect.Value{}, fmt.Errorf("resolve %s: %w", t, ErrScopeReleased)
	}
	v, ok := s.values[t]
	s.mu.RUnlock()

	if ok {
		return v, nil
	}
	return s.root.Resolve(t)
}

// ResolveArgs resolves every parameter of fnType from index skip onwards.
func (s *Scope) ResolveArgs(fnType reflect.Type, skip int) ([]reflect.Value, error) {
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("di: %s is not a function", fnType)
	}
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("di: variadic function %s is not supported", fnType)
	}

	n := fnType.NumIn()
	if skip > n {
		skip = n
	}

	args := make([]reflect.Value, 0, n-skip)
	var errs []error
	for i := skip; i < n; i++ {
		v, err := s.Resolve(fnType.In(i))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		args = append(args, v)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return args, nil
}

// Release drops every scoped value. Later lookups fail with ErrScopeReleased.
func (s *Scope) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.values = nil
}

// Released reports whether Release has been called
func (s *Scope) Released() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.released
}

// Len returns the number of values registered directly on the scope
func (s *Scope) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
