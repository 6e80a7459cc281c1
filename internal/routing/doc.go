// Package routing binds declarative route tables on controller types to a
// chi application and a server.
//
// Routes are declared once per controller type, usually from package init,
// by naming method expressions:
//
//	var _ = routing.Routes[*RoomController]().
//		Get("/api/rooms/:room", (*RoomController).Show, routing.Metadata{Description: "Room details"}).
//		WebSocket("/ws/rooms/:room", (*RoomController).Join)
//
// At startup a controller instance is bound to the root container and its
// routes are registered:
//
//	mw, err := routing.MustMiddlewareFor[*RoomController]().Instantiate(root)
//	err = mw.Register(ctx, app, srv, collector.Consume)
//
// Every request or accepted connection gets a fresh dependency scope seeded
// with its context values (request, response writer, Next, Cookie,
// AuthHeader, context.Context; for WebSockets the connection and its
// socket-server). The method's remaining parameters are resolved from that
// scope and then from the root container.
//
// HTTP errors, resolution failures and panics all reach Next, which renders
// them through the server's RFC 7807 error handler. WebSocket routes share
// the server's single upgrade listener; the first route in registration
// order whose pattern matches takes the connection, and unmatched upgrades
// are destroyed. CleanUp tears that state down.
package routing
