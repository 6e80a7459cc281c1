package routing

import (
	"errors"
	"fmt"
)

// ErrNoRoutes is returned when a controller without declared routes is bound.
var ErrNoRoutes = errors.New("routing: controller declares no routes")

// PanicError carries a value recovered from an HTTP handler. It is what the
// handler's continuation receives when the method panics.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("routing: handler panicked: %v", e.Value)
}

// Recovered returns the value passed to panic
func (e *PanicError) Recovered() interface{} {
	return e.Value
}

// PanicStack returns the stack captured at recovery
func (e *PanicError) PanicStack() []byte {
	return e.Stack
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
