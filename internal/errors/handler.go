package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem type URIs.
const (
	TypeValidation     = "/errors/validation"
	TypeNotFound       = "/errors/not-found"
	TypeForbidden      = "/errors/forbidden"
	TypeRateLimit      = "/errors/rate-limit"
	TypeInternal       = "/errors/internal"
	TypeTimeout        = "/errors/timeout"
	TypeConflict       = "/errors/conflict"
	TypeMethodNotAllow = "/errors/method-not-allowed"
	TypeResolution     = "/errors/routing/unresolvable-dependency"
	TypeHandlerPanic   = "/errors/routing/handler-panic"
)

const internalDetail = "An unexpected error occurred while processing your request"

// recoveredPanic is implemented by errors that carry a recovered panic value.
type recoveredPanic interface {
	Recovered() interface{}
}

// panicStacker is implemented by panic errors that captured their stack.
type panicStacker interface {
	PanicStack() []byte
}

// PanicError wraps a value recovered from a panicking HTTP handler.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string          { return fmt.Sprintf("panic: %v", e.Value) }
func (e *PanicError) Recovered() interface{} { return e.Value }
func (e *PanicError) PanicStack() []byte     { return e.Stack }

// ErrorHandler turns handler errors into problem documents. Every routed
// error, 404 and 405 in the application goes through one instance.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a handler. includeStack exposes panic values and
// stacks to clients and belongs in development only.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs err and writes its problem document. A nil err is a no-op.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	attrs := []any{
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}

	var rp recoveredPanic
	isPanic := errors.As(err, &rp)
	if isPanic {
		h.logger.ErrorContext(r.Context(), "panic recovered",
			append(attrs, slog.Any("panic", rp.Recovered()), slog.String("stack", panicStack(err)))...)
	} else {
		h.logger.ErrorContext(r.Context(), "request failed",
			append(attrs, slog.String("remote_addr", r.RemoteAddr))...)
	}

	problem := h.ErrorToProblem(err, r).WithExtension("trace_id", reqID)
	if h.includeStack && isPanic {
		problem.WithExtension("panic", fmt.Sprintf("%v", rp.Recovered()))
		problem.WithExtension("stack", panicStack(err))
	}

	render.Render(w, r, problem)
}

// ErrorToProblem maps err onto a problem document without writing it.
// Causes of internal errors never reach the client.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled", path)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Problem(path)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.problem(path)
	}

	var rp recoveredPanic
	if errors.As(err, &rp) {
		return NewProblemDetails(http.StatusInternalServerError, TypeHandlerPanic, "Internal Server Error",
			"The request handler failed unexpectedly", path)
	}

	return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error", internalDetail, path)
}

func (e *AppError) problem(instance string) *ProblemDetails {
	status := e.StatusCode()
	problemType, detail := TypeInternal, internalDetail
	switch e.Type {
	case ErrTypeValidation:
		problemType, detail = TypeValidation, e.Message
	case ErrTypeNotFound:
		problemType, detail = TypeNotFound, e.Message
	case ErrTypeConflict:
		problemType, detail = TypeConflict, e.Message
	case ErrTypeResolution:
		problemType = TypeResolution
	}

	problem := NewProblemDetails(status, problemType, http.StatusText(status), detail, instance)
	for k, v := range e.Context {
		problem.WithExtension(k, v)
	}
	return problem
}

// NotFound is the router's fallback for unmatched paths.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.reject(w, r, NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found", r.URL.Path))
}

// MethodNotAllowed is the router's fallback for a known path with the wrong method.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.reject(w, r, NewProblemDetails(http.StatusMethodNotAllowed, TypeMethodNotAllow, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path))
}

func (h *ErrorHandler) reject(w http.ResponseWriter, r *http.Request, problem *ProblemDetails) {
	render.Render(w, r, problem.WithExtension("trace_id", middleware.GetReqID(r.Context())))
}

func panicStack(err error) string {
	var ps panicStacker
	if errors.As(err, &ps) && len(ps.PanicStack()) > 0 {
		return string(ps.PanicStack())
	}
	return string(debug.Stack())
}
