package routing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"routekit/internal/shared/testutil"
	"routekit/internal/websocket"
)

type roomsWildcard struct{}

func (c *roomsWildcard) Serve(conn *websocket.Conn) error {
	return conn.WriteText("wildcard")
}

type roomsAdmin struct{}

func (c *roomsAdmin) Serve(conn *websocket.Conn, r *http.Request) error {
	return conn.WriteText("admin " + chi.URLParam(r, "id"))
}

var _ = Routes[*roomsWildcard]().WebSocket("/rooms/*", (*roomsWildcard).Serve)

var _ = Routes[*roomsAdmin]().WebSocket("/rooms/:id/admin", (*roomsAdmin).Serve)

func TestUpgradeFirstMatchWins(t *testing.T) {
	tests := []struct {
		name  string
		order []interface{}
		want  string
	}{
		{"wildcard first", []interface{}{&roomsWildcard{}, &roomsAdmin{}}, "wildcard"},
		{"admin first", []interface{}{&roomsAdmin{}, &roomsWildcard{}}, "admin 7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.register(t, tt.order...)
			assert.Equal(t, 2, WebSocketRoutes(h.srv))
			assert.Equal(t, 1, h.srv.UpgradeListenerCount())

			conn := testutil.DialWebSocket(t, h.ts, "/rooms/7/admin", nil)
			assert.Equal(t, tt.want, testutil.ReadText(t, conn))

			// Only the wildcard matches a plain room path.
			conn = testutil.DialWebSocket(t, h.ts, "/rooms/7", nil)
			assert.Equal(t, "wildcard", testutil.ReadText(t, conn))
		})
	}
}

func TestUpgradeWithoutMatchDestroysSocket(t *testing.T) {
	h := newHarness(t)
	h.register(t, &roomsAdmin{})

	conn, resp, err := testutil.TryDialWebSocket(h.ts, "/lobby")
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.Nil(t, resp, "an unmatched upgrade must not get an HTTP response")
}

type socketScopeController struct{}

func (c *socketScopeController) Inspect(
	conn *websocket.Conn,
	raw *gorilla.Conn,
	sockets *websocket.Server,
	req *http.Request,
	ctx context.Context,
	cookie Cookie,
	auth AuthHeader,
) error {
	return conn.WriteJSON(map[string]interface{}{
		"raw_matches":  raw == conn.Raw(),
		"server_owned": sockets == conn.Server(),
		"clients":      sockets.ClientCount(),
		"room":         chi.URLParam(req, "room"),
		"ctx_live":     ctx.Err() == nil,
		"cookie":       string(cookie),
		"auth":         string(auth),
	})
}

var _ = Routes[*socketScopeController]().WebSocket("/inspect/:room", (*socketScopeController).Inspect)

func TestConnectionScopeValues(t *testing.T) {
	h := newHarness(t)
	h.register(t, &socketScopeController{})

	header := http.Header{}
	header.Set("Cookie", "session=xyz")
	header.Set("Authorization", "Bearer abc")
	conn := testutil.DialWebSocket(t, h.ts, "/inspect/blue", header)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(testutil.ReadText(t, conn)), &got))
	assert.Equal(t, map[string]interface{}{
		"raw_matches":  true,
		"server_owned": true,
		"clients":      float64(1),
		"room":         "blue",
		"ctx_live":     true,
		"cookie":       "session=xyz",
		"auth":         "Bearer abc",
	}, got)

	// The connection outlives the handler and stays with its socket-server.
	sockets := SocketServers(h.srv)["/inspect/{room}"]
	require.NotNil(t, sockets)
	assert.Equal(t, 1, sockets.ClientCount())
}

type failingSocketController struct{}

func (c *failingSocketController) Fail(conn *websocket.Conn) error {
	return errors.New("handler failed")
}

func (c *failingSocketController) Unresolvable(_ *missingDep) {}

var _ = Routes[*failingSocketController]().
	WebSocket("/fail", (*failingSocketController).Fail).
	WebSocket("/unresolvable", (*failingSocketController).Unresolvable)

func TestWebSocketHandlerErrorsCloseConnection(t *testing.T) {
	h := newHarness(t)
	h.register(t, &failingSocketController{})

	for _, path := range []string{"/fail", "/unresolvable"} {
		t.Run(path, func(t *testing.T) {
			conn := testutil.DialWebSocket(t, h.ts, path, nil)
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err := conn.ReadMessage()
			require.Error(t, err)
			assert.True(t, gorilla.IsCloseError(err, gorilla.CloseInternalServerErr), "got %v", err)
		})
	}
}

type panickingSocketController struct{}

func (c *panickingSocketController) Serve(conn *websocket.Conn) {
	panic("socket handler exploded")
}

var _ = Routes[*panickingSocketController]().WebSocket("/explode", (*panickingSocketController).Serve)

func TestWebSocketHandlerPanicClosesConnection(t *testing.T) {
	h := newHarness(t)
	h.register(t, &panickingSocketController{})

	conn := testutil.DialWebSocket(t, h.ts, "/explode", nil)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseInternalServerErr), "got %v", err)

	sockets := SocketServers(h.srv)["/explode"]
	require.NotNil(t, sockets)
	assert.Eventually(t, func() bool { return sockets.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCleanUpIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.register(t, &roomsWildcard{})

	conn := testutil.DialWebSocket(t, h.ts, "/rooms/1", nil)
	assert.Equal(t, "wildcard", testutil.ReadText(t, conn))

	require.NoError(t, CleanUp(h.app, h.srv))
	assert.Zero(t, WebSocketRoutes(h.srv))
	assert.Zero(t, h.srv.UpgradeListenerCount())
	assert.Nil(t, SocketServers(h.srv))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseGoingAway), "got %v", err)

	require.NoError(t, CleanUp(h.app, h.srv))
	assert.Zero(t, WebSocketRoutes(h.srv))
	assert.Zero(t, h.srv.UpgradeListenerCount())

	// With no listener the upgrade reaches the app, which has no such route.
	_, resp, err := testutil.TryDialWebSocket(h.ts, "/rooms/1")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.NoError(t, CleanUp(h.app, nil))
}

func TestReRegisterAfterCleanUp(t *testing.T) {
	h := newHarness(t)
	h.register(t, &roomsWildcard{})
	require.NoError(t, CleanUp(h.app, h.srv))

	h.app = chi.NewRouter()
	h.srv.SetHandler(h.app)
	h.register(t, &roomsAdmin{})

	assert.Equal(t, 1, WebSocketRoutes(h.srv))
	conn := testutil.DialWebSocket(t, h.ts, "/rooms/3/admin", nil)
	assert.Equal(t, "admin 3", testutil.ReadText(t, conn))
}

type badPatternController struct{}

func (c *badPatternController) Serve() {}

var _ = Routes[*badPatternController]().WebSocket("/bad/{unclosed", (*badPatternController).Serve)

func TestInvalidWebSocketPattern(t *testing.T) {
	h := newHarness(t)
	mw, err := Bind(&badPatternController{}, h.root)
	require.NoError(t, err)

	err = mw.Register(context.Background(), h.app, h.srv, nil)
	require.Error(t, err)
	assert.Zero(t, WebSocketRoutes(h.srv))
}

func TestRoutingMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	require.NoError(t, InitMetrics(provider.Meter("test")))
	defer globalMetrics.Store(nil)

	h := newUserHarness(t)
	h.register(t, &roomsAdmin{})

	h.do(http.MethodGet, "/users/1", nil)
	h.do(http.MethodGet, "/fail-plain", nil)
	conn := testutil.DialWebSocket(t, h.ts, "/rooms/5/admin", nil)
	testutil.ReadText(t, conn)
	testutil.TryDialWebSocket(h.ts, "/nowhere")

	collect := func() map[string]int64 {
		var rm metricdata.ResourceMetrics
		assert.NoError(t, reader.Collect(context.Background(), &rm))

		sums := map[string]int64{}
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				if data, ok := m.Data.(metricdata.Sum[int64]); ok {
					for _, dp := range data.DataPoints {
						sums[m.Name] += dp.Value
					}
				}
			}
		}
		return sums
	}

	// The WebSocket scope is released just after the client sees its message.
	var sums map[string]int64
	require.Eventually(t, func() bool {
		sums = collect()
		return sums["routing_websocket_upgrades_total"] == 2 && sums["routing_active_scopes"] == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(3), sums["routing_dispatches_total"])
	assert.Equal(t, int64(1), sums["routing_handler_errors_total"])
}
