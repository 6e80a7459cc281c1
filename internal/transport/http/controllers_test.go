package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routekit/internal/config"
	"routekit/internal/di"
	apierrors "routekit/internal/errors"
	"routekit/internal/infrastructure"
	"routekit/internal/openapi"
	"routekit/internal/routing"
	"routekit/internal/server"
	"routekit/internal/services"
	"routekit/internal/shared/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testApp struct {
	srv       *server.Server
	ts        *httptest.Server
	collector *openapi.Collector
}

func newTestApp(t *testing.T, providers *infrastructure.OTelProviders) *testApp {
	t.Helper()

	logger := discardLogger()
	cfg := config.Default()
	root := di.New()
	app := chi.NewRouter()
	srv := server.New(cfg.Server, app, apierrors.NewErrorHandler(logger, false), logger)
	collector := openapi.NewCollector(cfg.Docs)

	require.NoError(t, di.ProvideValue(root, logger))
	require.NoError(t, di.ProvideValue(root, srv))
	require.NoError(t, di.ProvideValue(root, collector))
	require.NoError(t, di.ProvideValue(root, services.BuildInfo{Version: "test"}))
	if providers != nil {
		require.NoError(t, di.ProvideValue(root, providers))
	}
	require.NoError(t, services.Register(root))
	require.NoError(t, Register(root))

	require.NoError(t, Mount(context.Background(), root, app, srv, collector.Consume,
		routing.WithLogger(logger), routing.WithWebSocketConfig(cfg.WebSocket)))

	ta := &testApp{srv: srv, ts: httptest.NewServer(srv), collector: collector}
	t.Cleanup(func() {
		assert.NoError(t, routing.CleanUp(app, srv))
		ta.ts.Close()
	})
	return ta
}

func (ta *testApp) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ta.ts.URL+path, nil)
	require.NoError(t, err)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthEndpoints(t *testing.T) {
	ta := newTestApp(t, nil)

	resp := ta.do(t, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health services.HealthStatus
	decode(t, resp, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)

	resp = ta.do(t, http.MethodGet, "/api/health/ready")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ready services.HealthStatus
	decode(t, resp, &ready)
	assert.Equal(t, "ready", ready.Status)

	resp = ta.do(t, http.MethodGet, "/api/health/live")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ta.do(t, http.MethodGet, "/api/health/routes")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats services.RouteStats
	decode(t, resp, &stats)
	assert.Equal(t, 1, stats.WebSocketRoutes)
	assert.GreaterOrEqual(t, stats.Controllers, 4)

	resp = ta.do(t, http.MethodGet, "/api/version")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var version map[string]interface{}
	decode(t, resp, &version)
	assert.Equal(t, "test", version["version"])
}

func TestReadinessAfterCleanUp(t *testing.T) {
	ta := newTestApp(t, nil)
	require.NoError(t, routing.CleanUp(nil, ta.srv))

	resp := ta.do(t, http.MethodGet, "/api/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRoomRelay(t *testing.T) {
	ta := newTestApp(t, nil)

	resp := ta.do(t, http.MethodGet, "/api/rooms/lobby")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	alice := testutil.DialWebSocket(t, ta.ts, "/ws/rooms/lobby", nil)
	bob := testutil.DialWebSocket(t, ta.ts, "/ws/rooms/lobby", nil)

	assert.Eventually(t, func() bool {
		resp, err := http.Get(ta.ts.URL + "/api/rooms/lobby")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var info services.RoomInfo
		if json.NewDecoder(resp.Body).Decode(&info) != nil {
			return false
		}
		return info.Members == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteMessage(gorilla.TextMessage, []byte("hello")))

	for _, conn := range []*gorilla.Conn{alice, bob} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg services.RoomMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "lobby", msg.Room)
		assert.Equal(t, "hello", msg.Text)
		assert.NotEmpty(t, msg.From)
	}

	resp = ta.do(t, http.MethodPost, "/api/rooms/lobby/broadcast?message=news")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result BroadcastResult
	decode(t, resp, &result)
	assert.Equal(t, BroadcastResult{Room: "lobby", Recipients: 2}, result)

	bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg services.RoomMessage
	require.NoError(t, bob.ReadJSON(&msg))
	assert.Equal(t, "news", msg.Text)
	assert.Empty(t, msg.From)

	resp = ta.do(t, http.MethodGet, "/api/rooms")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rooms []services.RoomInfo
	decode(t, resp, &rooms)
	assert.Equal(t, []services.RoomInfo{{Name: "lobby", Members: 2}}, rooms)
}

func TestBroadcastErrors(t *testing.T) {
	ta := newTestApp(t, nil)

	resp := ta.do(t, http.MethodPost, "/api/rooms/empty/broadcast?message=hi")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ta.do(t, http.MethodPost, "/api/rooms/empty/broadcast")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var problem map[string]interface{}
	decode(t, resp, &problem)
	assert.Equal(t, apierrors.TypeValidation, problem["type"])
}

func TestUnknownWebSocketPathIsDropped(t *testing.T) {
	ta := newTestApp(t, nil)

	conn, resp, err := testutil.TryDialWebSocket(ta.ts, "/ws/unknown")
	if conn != nil {
		conn.Close()
	}
	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestDocsEndpoints(t *testing.T) {
	ta := newTestApp(t, nil)

	resp := ta.do(t, http.MethodGet, "/api/openapi.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]interface{}
	decode(t, resp, &doc)
	assert.Equal(t, "2.0", doc["swagger"])
	paths, ok := doc["paths"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, paths, "/api/rooms/{room}")
	assert.Contains(t, paths, "/api/rooms/{room}/broadcast")
	assert.Contains(t, paths, "/api/health")
	assert.NotContains(t, paths, "/metrics")
	assert.NotContains(t, paths, "/ws/rooms/{room}")

	resp = ta.do(t, http.MethodGet, "/api/docs")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, docsPath, resp.Header.Get("Location"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("exporter disabled", func(t *testing.T) {
		ta := newTestApp(t, nil)
		resp := ta.do(t, http.MethodGet, "/metrics")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("prometheus exporter", func(t *testing.T) {
		providers, err := infrastructure.InitializeOTel(config.TelemetryConfig{
			ServiceName:    "routekit-test",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1,
		}, discardLogger())
		require.NoError(t, err)
		defer providers.Shutdown(context.Background())

		ta := newTestApp(t, providers)
		resp := ta.do(t, http.MethodGet, "/metrics")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "go_goroutines")
	})
}

func TestControllersDeclareRoutes(t *testing.T) {
	assert.True(t, routing.HasRoutes[*HealthController]())
	assert.True(t, routing.HasRoutes[*RoomController]())
	assert.True(t, routing.HasRoutes[*DocsController]())
	assert.True(t, routing.HasRoutes[*MetricsController]())

	root := di.New()
	_, err := Controllers(root)
	assert.Error(t, err)
}

func TestBroadcastValidationDetails(t *testing.T) {
	ta := newTestApp(t, nil)

	resp := ta.do(t, http.MethodPost, "/api/rooms/lobby/broadcast?message=")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var problem map[string]interface{}
	decode(t, resp, &problem)
	assert.Equal(t, "VALIDATION_FAILED", problem["error_code"])
}
