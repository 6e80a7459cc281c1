package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"go.uber.org/dig"

	"routekit/internal/infrastructure"
	"routekit/internal/routing"
	"routekit/internal/server"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// RouteInspector reports the routing state shown by the health endpoints.
type RouteInspector interface {
	Declared() []routing.RouteInfo
	WebSocketRoutes() int
	WebSocketClients() int
}

// ServerRoutes inspects the routes attached to one server.
type ServerRoutes struct {
	srv *server.Server
}

// NewServerRoutes creates a RouteInspector for srv
func NewServerRoutes(srv *server.Server) RouteInspector {
	return &ServerRoutes{srv: srv}
}

// Declared returns every declared route
func (s *ServerRoutes) Declared() []routing.RouteInfo {
	return routing.Declared()
}

// WebSocketRoutes returns the number of WebSocket routes attached to the server
func (s *ServerRoutes) WebSocketRoutes() int {
	return routing.WebSocketRoutes(s.srv)
}

// WebSocketClients returns the number of open WebSocket connections
func (s *ServerRoutes) WebSocketClients() int {
	total := 0
	for _, sockets := range routing.SocketServers(s.srv) {
		total += sockets.ClientCount()
	}
	return total
}

// HealthService provides health check functionality
type HealthService struct {
	build     BuildInfo
	routes    RouteInspector
	metrics   *infrastructure.SystemMetrics
	startTime time.Time
	logger    *slog.Logger
}

// HealthParams are the dependencies of HealthService.
type HealthParams struct {
	dig.In

	Build   BuildInfo
	Routes  RouteInspector
	Metrics *infrastructure.SystemMetrics `optional:"true"`
	Logger  *slog.Logger                  `optional:"true"`
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// RouteStats summarizes the declared and attached routes.
type RouteStats struct {
	Declared         int            `json:"declared"`
	ByKind           map[string]int `json:"by_kind"`
	Controllers      int            `json:"controllers"`
	WebSocketRoutes  int            `json:"websocket_routes"`
	WebSocketClients int            `json:"websocket_clients"`
}

// NewHealthService creates a new health service
func NewHealthService(p HealthParams) *HealthService {
	logger := p.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = infrastructure.WithComponent(logger, "health_service")

	startTime := time.Now()
	if p.Metrics != nil {
		startTime = p.Metrics.StartTime()
	}

	logger.Info("HealthService initialized",
		slog.String("version", p.Build.Version),
		slog.String("commit", p.Build.Commit),
		slog.String("build_time", p.Build.BuildTime))

	return &HealthService{
		build:     p.Build,
		routes:    p.Routes,
		metrics:   p.Metrics,
		startTime: startTime,
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	stats := hs.RouteStats()

	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.build.Version,
		Services: map[string]interface{}{
			"routing": stats,
		},
	}

	hs.logger.DebugContext(ctx, "HealthCheck: completed",
		slog.String("status", status.Status),
		slog.Int("declared_routes", stats.Declared))
	return status
}

// ReadinessCheck reports ready once routes are declared and every declared
// WebSocket route is attached to the server.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.build.Version,
		Services: map[string]interface{}{
			"routing":   hs.checkRoutingHealth(),
			"websocket": hs.checkWebSocketHealth(),
		},
	}

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "ReadinessCheck: not ready", slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	runtimeInfo := map[string]interface{}{
		"uptime":     time.Since(hs.startTime).Seconds(),
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}
	if hs.metrics != nil {
		stats := hs.metrics.Collect(ctx)
		runtimeInfo["goroutines"] = stats.GoRoutines
		runtimeInfo["memory_bytes"] = stats.MemoryUsage
		runtimeInfo["gc_count"] = stats.GCCount
		runtimeInfo["cpu_count"] = stats.CPUCount
	}

	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.build.Version,
		Runtime:   runtimeInfo,
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.build.Version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.build.Commit != "" {
		result["commit"] = hs.build.Commit
	}
	if hs.build.BuildTime != "" {
		result["build_time"] = hs.build.BuildTime
	}

	return result
}

// RouteStats summarizes the routing state
func (hs *HealthService) RouteStats() RouteStats {
	declared := hs.routes.Declared()

	stats := RouteStats{
		Declared:         len(declared),
		ByKind:           make(map[string]int),
		WebSocketRoutes:  hs.routes.WebSocketRoutes(),
		WebSocketClients: hs.routes.WebSocketClients(),
	}

	controllers := make(map[string]struct{})
	for _, info := range declared {
		stats.ByKind[string(info.Kind)]++
		controllers[info.Controller] = struct{}{}
	}
	stats.Controllers = len(controllers)

	return stats
}

// checkRoutingHealth checks that at least one route is declared
func (hs *HealthService) checkRoutingHealth() ServiceHealth {
	if len(hs.routes.Declared()) == 0 {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "no routes declared",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "Routing is healthy",
	}
}

// checkWebSocketHealth checks that every declared WebSocket route is attached
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	declared := 0
	for _, info := range hs.routes.Declared() {
		if info.Kind == routing.KindWebSocket {
			declared++
		}
	}

	if attached := hs.routes.WebSocketRoutes(); attached < declared {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "WebSocket routes are not attached",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "WebSocket service is healthy",
		Uptime:  time.Since(hs.startTime).String(),
	}
}
