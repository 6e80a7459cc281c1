// Package http holds the built-in controllers of the routekit server.
//
// Controllers declare their routes with routing.Routes at package init and
// are constructed by the root container:
//
//	HealthController   GET  /api/health, /api/health/live, /api/health/ready,
//	                        /api/health/routes, /api/version
//	RoomController     WS   /ws/rooms/{room}
//	                   GET  /api/rooms, /api/rooms/{room}
//	                   POST /api/rooms/{room}/broadcast?message=
//	MetricsController  GET  /metrics (custom definer, undocumented)
//	DocsController     GET  /api/openapi.json, /api/docs
//
// Handlers receive request-scoped values (http.ResponseWriter, *http.Request,
// routing.Next, the WebSocket connection) and root services such as
// *services.RoomService as method parameters. Returned errors are rendered
// as RFC 7807 problems by the server's error handler.
//
// Mount instantiates and registers every controller:
//
//	if err := http.Register(root); err != nil {
//		return err
//	}
//	err := http.Mount(ctx, root, app, srv, collector.Consume)
package http
