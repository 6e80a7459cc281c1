package websocket

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "routekit.websocket"

// OTelMetrics holds the instruments recorded by every socket-server in the
// process. Attributes are keyed by the socket path, never the client.
type OTelMetrics struct {
	connections metric.Int64Counter
	active      metric.Int64UpDownCounter
	lifetime    metric.Float64Histogram
	handshakes  metric.Int64Counter

	messages      metric.Int64Counter
	bytes         metric.Int64Counter
	messageErrors metric.Int64Counter
	broadcasts    metric.Int64Counter
}

// NewOTelMetrics registers the instruments on the global meter provider.
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter(meterName)
	m := &OTelMetrics{}

	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	m.connections = counter("websocket_connections_total", "Accepted WebSocket connections")
	m.handshakes = counter("websocket_handshake_errors_total", "Failed WebSocket upgrades")
	m.messages = counter("websocket_messages_total", "WebSocket data frames")
	m.bytes = counter("websocket_message_bytes_total", "WebSocket payload bytes")
	m.messageErrors = counter("websocket_message_errors_total", "Failed WebSocket writes")
	m.broadcasts = counter("websocket_broadcast_operations_total", "Broadcasts to a socket path")

	var err error
	m.active, err = meter.Int64UpDownCounter("websocket_connections_active",
		metric.WithDescription("Open WebSocket connections"))
	errs = append(errs, err)
	m.lifetime, err = meter.Float64Histogram("websocket_connection_duration_seconds",
		metric.WithDescription("WebSocket connection lifetime"), metric.WithUnit("s"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func pathAttr(path string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("path", path))
}

// RecordConnection counts an accepted connection on path.
func (m *OTelMetrics) RecordConnection(ctx context.Context, path string) {
	m.connections.Add(ctx, 1, pathAttr(path))
	m.active.Add(ctx, 1, pathAttr(path))
}

// RecordDisconnection closes out a connection opened on path.
func (m *OTelMetrics) RecordDisconnection(ctx context.Context, path string, lifetime time.Duration) {
	m.active.Add(ctx, -1, pathAttr(path))
	m.lifetime.Record(ctx, lifetime.Seconds(), pathAttr(path))
}

// RecordHandshakeError counts a failed upgrade on path.
func (m *OTelMetrics) RecordHandshakeError(ctx context.Context, path string) {
	m.handshakes.Add(ctx, 1, pathAttr(path))
}

// RecordMessage counts one frame; direction is "in" or "out".
func (m *OTelMetrics) RecordMessage(ctx context.Context, direction string, size int, err error) {
	attrs := metric.WithAttributes(attribute.String("direction", direction))
	if err != nil {
		m.messageErrors.Add(ctx, 1, attrs)
		return
	}
	m.messages.Add(ctx, 1, attrs)
	m.bytes.Add(ctx, int64(size), attrs)
}

// RecordBroadcast counts one broadcast and whether any recipient failed.
func (m *OTelMetrics) RecordBroadcast(ctx context.Context, clientCount, failCount int64) {
	m.broadcasts.Add(ctx, 1, metric.WithAttributes(
		attribute.Int64("client_count", clientCount),
		attribute.Bool("partial", failCount > 0),
	))
}

var globalOTelMetrics atomic.Pointer[OTelMetrics]

// InitOTelMetrics installs process-wide instruments. It must run after the
// meter provider is set, and may run again after the provider changes.
func InitOTelMetrics() error {
	m, err := NewOTelMetrics()
	if err != nil {
		return err
	}
	globalOTelMetrics.Store(m)
	return nil
}

// GetOTelMetrics returns the installed instruments, or nil before InitOTelMetrics.
func GetOTelMetrics() *OTelMetrics {
	return globalOTelMetrics.Load()
}
