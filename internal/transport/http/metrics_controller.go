package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/dig"

	"routekit/internal/infrastructure"
	"routekit/internal/routing"
	"routekit/internal/server"
)

var _ = routing.Routes[*MetricsController]().
	Custom(mountMetrics, (*MetricsController).Scrape)

// mountMetrics serves the scrape endpoint outside the API document.
func mountMetrics(app chi.Router, _ *server.Server, h http.HandlerFunc, _ routing.MetadataConsumer) error {
	app.Get("/metrics", h)
	return nil
}

// MetricsParams are the dependencies of MetricsController
type MetricsParams struct {
	dig.In

	Providers *infrastructure.OTelProviders `optional:"true"`
}

// MetricsController exposes the Prometheus exporter
type MetricsController struct {
	handler http.Handler
}

// NewMetricsController creates a new metrics controller
func NewMetricsController(p MetricsParams) *MetricsController {
	c := &MetricsController{}
	if p.Providers != nil {
		c.handler = p.Providers.PrometheusHTTP
	}
	return c
}

// Scrape handles GET /metrics. It answers 404 when the Prometheus exporter is disabled.
func (c *MetricsController) Scrape(w http.ResponseWriter, r *http.Request, next routing.Next) {
	if c.handler == nil {
		next(nil)
		return
	}
	c.handler.ServeHTTP(w, r)
}
