package routing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	gorilla "github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"routekit/internal/di"
	"routekit/internal/infrastructure"
	"routekit/internal/websocket"
)

// serveWebSocket completes the handshake for a matched route and runs the
// declared method once for the new connection. The connection stays open
// after the method returns; its socket-server owns it from then on.
// A returned or resolution error closes the connection with
// CloseInternalServerErr. A panic closes it the same way and is then
// re-raised for net/http, which never closes hijacked connections itself.
func (b *binding) serveWebSocket(w http.ResponseWriter, req *http.Request, r *route, sockets *websocket.Server) {
	ctx := req.Context()
	metrics := GetMetrics()

	conn, err := sockets.Upgrade(w, req, nil)
	if err != nil {
		metrics.recordUpgrade(ctx, UpgradeHandshakeFailed, r.handler)
		b.logger.WarnContext(ctx, "WebSocket handshake failed",
			slog.String("handler", r.handler.name),
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()))
		return
	}
	metrics.recordDispatch(ctx, r.kind, r.handler)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "routing.websocket "+r.handler.name,
		trace.WithAttributes(
			attribute.String("routing.controller", r.handler.class.String()),
			attribute.String("routing.handler", r.handler.name),
			attribute.String("websocket.client_id", conn.ID()),
		))
	defer span.End()

	scope := b.root.Scope()
	metrics.scopeOpened(ctx)
	defer func() {
		scope.Release()
		metrics.scopeClosed(ctx)
	}()
	seedConnectionScope(scope, req.WithContext(ctx), conn, sockets)

	defer func() {
		v := recover()
		if v == nil {
			return
		}
		span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", v))
		metrics.recordHandlerError(ctx, r.kind, r.handler)
		b.logger.ErrorContext(ctx, "WebSocket handler panicked, closing connection",
			slog.String("handler", r.handler.name),
			slog.String("client_id", conn.ID()),
			slog.Any("panic", v))
		conn.CloseWithCode(gorilla.CloseInternalServerErr, "internal error")
		panic(v)
	}()

	if err := b.call(scope, r.handler); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.recordHandlerError(ctx, r.kind, r.handler)
		infrastructure.WithError(b.logger, err).ErrorContext(ctx, "WebSocket handler failed, closing connection",
			slog.String("handler", r.handler.name),
			slog.String("client_id", conn.ID()))
		conn.CloseWithCode(gorilla.CloseInternalServerErr, "internal error")
	}
}

// seedConnectionScope registers the per-connection values a handler may ask for.
func seedConnectionScope(scope *di.Scope, req *http.Request, conn *websocket.Conn, sockets *websocket.Server) {
	scope.Register(req)
	scope.Register(conn)
	scope.Register(conn.Raw())
	scope.Register(sockets)
	di.RegisterAs[context.Context](scope, conn.Context())
	di.RegisterAs[Cookie](scope, Cookie(req.Header.Get("Cookie")))
	di.RegisterAs[AuthHeader](scope, AuthHeader(req.Header.Get("Authorization")))
}
