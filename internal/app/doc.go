// Package app wires the routekit server together and manages its lifecycle.
//
// # Initialization Flow
//
//	1. Initialize logging and OpenTelemetry from the loaded configuration
//	2. Create the server and the root dependency container
//	3. Provide services and controller constructors to the container
//	4. Build the chi router with the middleware stack
//	5. Instantiate every controller and register its routes, feeding the
//	   API document collector
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	a, err := app.New(ctx, cfg, nil)
//	if err != nil {
//		return err
//	}
//	return a.Run(ctx)
//
// # Reload and Shutdown
//
// Reload closes the WebSocket routes, builds a fresh router and registers
// the controllers again without restarting the listener. Stop closes the
// WebSocket routes, drains the HTTP server and flushes telemetry. Run stops
// on SIGINT or SIGTERM.
//
// Initialization errors are returned to the caller; the package never
// calls os.Exit.
package app
