package http

import (
	"net/http"

	"github.com/go-chi/render"

	"routekit/internal/routing"
	"routekit/internal/services"
)

var _ = routing.Routes[*HealthController]().
	Get("/api/health", (*HealthController).HealthCheck, routing.Metadata{
		Description: "Overall health and routing statistics",
		Responses:   map[string]routing.Response{"200": {Description: "Service is up"}},
	}).
	Get("/api/health/live", (*HealthController).LivenessCheck, routing.Metadata{
		Description: "Process liveness and runtime statistics",
	}).
	Get("/api/health/ready", (*HealthController).ReadinessCheck, routing.Metadata{
		Description: "Readiness of the routing layer",
		Responses: map[string]routing.Response{
			"200": {Description: "Ready"},
			"503": {Description: "Routes are missing or not attached"},
		},
	}).
	Get("/api/health/routes", (*HealthController).RouteStats, routing.Metadata{
		Description: "Declared and attached route counts",
	}).
	Get("/api/version", (*HealthController).Version, routing.Metadata{
		Description: "Build and runtime version information",
	})

// HealthController serves the health and version endpoints
type HealthController struct {
	service *services.HealthService
}

// NewHealthController creates a new health controller
func NewHealthController(service *services.HealthService) *HealthController {
	return &HealthController{service: service}
}

// HealthCheck handles GET /api/health
func (h *HealthController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.HealthCheck(r.Context()))
}

// ReadinessCheck handles GET /api/health/ready
func (h *HealthController) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := h.service.ReadinessCheck(r.Context())
	if status.Status != "ready" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}

// LivenessCheck handles GET /api/health/live
func (h *HealthController) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.LivenessCheck(r.Context()))
}

// RouteStats handles GET /api/health/routes
func (h *HealthController) RouteStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.RouteStats())
}

// Version handles GET /api/version
func (h *HealthController) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Version())
}
