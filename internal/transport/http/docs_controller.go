package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"routekit/internal/openapi"
	"routekit/internal/routing"
	"routekit/internal/server"
)

const docsPath = "/api/openapi.json"

var _ = routing.Routes[*DocsController]().
	Get(docsPath, (*DocsController).Document, routing.Metadata{
		Description: "Swagger 2.0 document built from the registered routes",
	})

// DocsController serves the generated API document
type DocsController struct {
	collector *openapi.Collector
}

// NewDocsController creates a new docs controller
func NewDocsController(collector *openapi.Collector) *DocsController {
	return &DocsController{collector: collector}
}

// Register adds the /api/docs redirect ahead of the declared routes.
func (c *DocsController) Register(_ context.Context, app chi.Router, _ *server.Server, _ routing.MetadataConsumer) error {
	app.Get("/api/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, docsPath, http.StatusFound)
	})
	return nil
}

// Document handles GET /api/openapi.json
func (c *DocsController) Document(w http.ResponseWriter, r *http.Request) {
	c.collector.Handler()(w, r)
}
