package routing

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"routekit/internal/di"
)

const tracerName = "routekit.routing"

// Next is the continuation handed to HTTP handlers. Next(err) renders err
// through the server's error handler; Next(nil) answers with not-found.
// Only the first call has an effect.
type Next func(error)

// Cookie is the raw Cookie header of the current request, or "".
type Cookie string

// AuthHeader is the raw Authorization header of the current request, or "".
type AuthHeader string

// httpHandler returns the handler that runs r's method in a fresh scope
// for every request.
func (b *binding) httpHandler(r *route) http.HandlerFunc {
	attrs := []attribute.KeyValue{
		attribute.String("routing.controller", r.handler.class.String()),
		attribute.String("routing.handler", r.handler.name),
	}

	return func(w http.ResponseWriter, req *http.Request) {
		ctx, span := otel.Tracer(tracerName).Start(req.Context(), "routing "+r.handler.name,
			trace.WithAttributes(attrs...))
		defer span.End()
		req = req.WithContext(ctx)

		metrics := GetMetrics()
		metrics.recordDispatch(ctx, r.kind, r.handler)

		next := b.continuation(w, req, r, span)

		scope := b.root.Scope()
		metrics.scopeOpened(ctx)
		defer func() {
			scope.Release()
			metrics.scopeClosed(ctx)
		}()
		seedRequestScope(scope, w, req, next)

		if err := b.callRecover(scope, r.handler); err != nil {
			next(err)
		}
	}
}

// callRecover is call with handler panics turned into PanicError.
func (b *binding) callRecover(scope *di.Scope, h *handlerFunc) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return b.call(scope, h)
}

func (b *binding) continuation(w http.ResponseWriter, req *http.Request, r *route, span trace.Span) Next {
	var once sync.Once
	return func(err error) {
		called := false
		once.Do(func() {
			called = true
			if err == nil {
				b.srv.NotFound(w, req)
				return
			}

			ctx := req.Context()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			GetMetrics().recordHandlerError(ctx, r.kind, r.handler)
			b.logger.WarnContext(ctx, "Handler forwarded an error",
				slog.String("handler", r.handler.name),
				slog.String("error", err.Error()))
			b.srv.HandleError(w, req, err)
		})
		if !called && err != nil {
			b.logger.DebugContext(req.Context(), "Continuation already used, dropping error",
				slog.String("handler", r.handler.name),
				slog.String("error", err.Error()))
		}
	}
}

// seedRequestScope registers the per-request values a handler may ask for.
func seedRequestScope(scope *di.Scope, w http.ResponseWriter, req *http.Request, next Next) {
	scope.Register(req)
	di.RegisterAs[http.ResponseWriter](scope, w)
	di.RegisterAs[Next](scope, next)
	di.RegisterAs[context.Context](scope, req.Context())
	di.RegisterAs[Cookie](scope, Cookie(req.Header.Get("Cookie")))
	di.RegisterAs[AuthHeader](scope, AuthHeader(req.Header.Get("Authorization")))
}
