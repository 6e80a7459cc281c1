package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSURL rewrites an httptest server URL plus path into a ws:// URL.
func WSURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

// DialWebSocket opens a client connection and closes it when the test ends.
func DialWebSocket(t *testing.T, srv *httptest.Server, path string, header http.Header) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, resp, err := dialer.Dial(WSURL(srv, path), header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial %s: %v (status %d)", path, err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// TryDialWebSocket dials without failing the test; callers inspect the error.
func TryDialWebSocket(srv *httptest.Server, path string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	return dialer.Dial(WSURL(srv, path), nil)
}

// ReadText reads the next text frame with a deadline.
func ReadText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	return string(data)
}
