// Package di wraps a go.uber.org/dig container as the application's root
// dependency container and adds short-lived child scopes.
//
// A Scope holds values registered for one unit of work (an HTTP request or a
// WebSocket connection). Lookups check the scope first and then fall back to
// the root container. Scopes are released explicitly; the root never keeps a
// reference to them.
package di
