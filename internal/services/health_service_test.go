package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"routekit/internal/config"
	"routekit/internal/di"
	apierrors "routekit/internal/errors"
	"routekit/internal/infrastructure"
	"routekit/internal/routing"
	"routekit/internal/server"
)

// MockRouteInspector implements RouteInspector for health service testing
type MockRouteInspector struct {
	mock.Mock
}

func (m *MockRouteInspector) Declared() []routing.RouteInfo {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]routing.RouteInfo)
}

func (m *MockRouteInspector) WebSocketRoutes() int {
	return m.Called().Int(0)
}

func (m *MockRouteInspector) WebSocketClients() int {
	return m.Called().Int(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRoutes() []routing.RouteInfo {
	return []routing.RouteInfo{
		{Controller: "*http.HealthController", Kind: routing.KindHTTP, Verb: routing.VerbGet},
		{Controller: "*http.HealthController", Kind: routing.KindHTTP, Verb: routing.VerbGet},
		{Controller: "*http.RoomController", Kind: routing.KindWebSocket},
		{Controller: "*http.RoomController", Kind: routing.KindHTTP, Verb: routing.VerbPost},
	}
}

func newTestHealthService(routes RouteInspector) *HealthService {
	return NewHealthService(HealthParams{
		Build:  BuildInfo{Version: "1.2.3", Commit: "abc123", BuildTime: "2026-01-01"},
		Routes: routes,
		Logger: testLogger(),
	})
}

func TestHealthCheck(t *testing.T) {
	routes := new(MockRouteInspector)
	routes.On("Declared").Return(sampleRoutes())
	routes.On("WebSocketRoutes").Return(1)
	routes.On("WebSocketClients").Return(3)

	status := newTestHealthService(routes).HealthCheck(context.Background())

	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	stats, ok := status.Services["routing"].(RouteStats)
	require.True(t, ok)
	assert.Equal(t, 4, stats.Declared)
	assert.Equal(t, 2, stats.Controllers)
	assert.Equal(t, 3, stats.ByKind[string(routing.KindHTTP)])
	assert.Equal(t, 1, stats.ByKind[string(routing.KindWebSocket)])
	assert.Equal(t, 1, stats.WebSocketRoutes)
	assert.Equal(t, 3, stats.WebSocketClients)
	routes.AssertExpectations(t)
}

func TestReadinessCheck(t *testing.T) {
	tests := []struct {
		name     string
		declared []routing.RouteInfo
		attached int
		want     string
	}{
		{"ready", sampleRoutes(), 1, "ready"},
		{"no routes", nil, 0, "not_ready"},
		{"websocket not attached", sampleRoutes(), 0, "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routes := new(MockRouteInspector)
			routes.On("Declared").Return(tt.declared)
			routes.On("WebSocketRoutes").Return(tt.attached)

			status := newTestHealthService(routes).ReadinessCheck(context.Background())
			assert.Equal(t, tt.want, status.Status)
			assert.Contains(t, status.Services, "routing")
			assert.Contains(t, status.Services, "websocket")
		})
	}
}

func TestLivenessCheck(t *testing.T) {
	t.Run("without system metrics", func(t *testing.T) {
		status := newTestHealthService(new(MockRouteInspector)).LivenessCheck(context.Background())
		assert.Equal(t, "alive", status.Status)
		assert.Contains(t, status.Runtime, "goroutines")
		assert.NotContains(t, status.Runtime, "memory_bytes")
	})

	t.Run("with system metrics", func(t *testing.T) {
		start := time.Now().Add(-time.Hour)
		sm, err := infrastructure.NewSystemMetrics(noop.NewMeterProvider().Meter("test"), start)
		require.NoError(t, err)

		hs := NewHealthService(HealthParams{
			Routes:  new(MockRouteInspector),
			Metrics: sm,
			Logger:  testLogger(),
		})
		status := hs.LivenessCheck(context.Background())
		assert.Contains(t, status.Runtime, "memory_bytes")
		assert.Contains(t, status.Runtime, "cpu_count")
		assert.GreaterOrEqual(t, status.Runtime["uptime"].(float64), time.Hour.Seconds())
	})
}

func TestVersion(t *testing.T) {
	info := newTestHealthService(new(MockRouteInspector)).Version()
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "abc123", info["commit"])
	assert.Equal(t, "2026-01-01", info["build_time"])
	assert.Contains(t, info, "go_version")

	bare := NewHealthService(HealthParams{Routes: new(MockRouteInspector), Logger: testLogger()}).Version()
	assert.NotContains(t, bare, "commit")
	assert.NotContains(t, bare, "build_time")
}

func TestServerRoutes(t *testing.T) {
	srv := server.New(config.Default().Server, nil, apierrors.NewErrorHandler(testLogger(), false), testLogger())
	inspector := NewServerRoutes(srv)

	assert.Zero(t, inspector.WebSocketRoutes())
	assert.Zero(t, inspector.WebSocketClients())
	assert.Empty(t, inspector.Declared())
}

func TestRegisterResolvesServices(t *testing.T) {
	container := di.New()
	srv := server.New(config.Default().Server, nil, apierrors.NewErrorHandler(testLogger(), false), testLogger())
	require.NoError(t, di.ProvideValue(container, testLogger()))
	require.NoError(t, di.ProvideValue(container, srv))
	require.NoError(t, di.ProvideValue(container, BuildInfo{Version: "test"}))
	require.NoError(t, Register(container))

	hs, err := di.Resolve[*HealthService](container)
	require.NoError(t, err)
	assert.Equal(t, "test", hs.Version()["version"])

	rooms, err := di.Resolve[*RoomService](container)
	require.NoError(t, err)
	assert.Empty(t, rooms.Rooms())
}
