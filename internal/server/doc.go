// Package server wraps net/http's server with what controller routing needs.
//
// Plain requests go to the chi application handler. Requests that ask for a
// protocol upgrade are first offered to the registered upgrade listeners,
// which complete the handshake or destroy the connection. The server also
// owns the RFC 7807 error handler used for continuation errors and the
// not-found response.
//
// Example:
//
//	srv := server.New(cfg.Server, router, apierrors.NewErrorHandler(logger, false), logger)
//	remove := srv.OnUpgrade(func(w http.ResponseWriter, r *http.Request) {
//		_ = server.Destroy(w)
//	})
//	defer remove()
package server
