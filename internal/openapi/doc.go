// Package openapi turns the metadata emitted by route registration into a
// Swagger 2.0 document served over HTTP.
package openapi
