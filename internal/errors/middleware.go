package errors

import (
	"net/http"
	"runtime/debug"
)

// RecoveryMiddleware converts a panic in any downstream handler into a 500
// problem document. http.ErrAbortHandler is re-raised so net/http can drop
// the connection.
func RecoveryMiddleware(handler *ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				handler.HandleError(w, r, &PanicError{Value: v, Stack: debug.Stack()})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
