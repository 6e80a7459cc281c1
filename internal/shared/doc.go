// Package shared holds helpers used across routekit packages that belong to no
// single layer. The testutil subpackage provides a capturing slog handler and
// websocket dial helpers for package tests.
package shared
