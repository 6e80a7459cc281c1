package routing

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "routekit.routing"

// Upgrade outcomes recorded by the multiplexer.
const (
	UpgradeMatched         = "matched"
	UpgradeUnmatched       = "unmatched"
	UpgradeHandshakeFailed = "handshake_failed"
)

// Metrics records routing activity. A nil *Metrics records nothing.
type Metrics struct {
	dispatches    metric.Int64Counter
	handlerErrors metric.Int64Counter
	upgrades      metric.Int64Counter
	activeScopes  metric.Int64UpDownCounter
}

// NewMetrics creates the routing instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	dispatches, err := meter.Int64Counter(
		"routing_dispatches_total",
		metric.WithDescription("Total number of requests and connections dispatched to controller methods"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch counter: %w", err)
	}

	handlerErrors, err := meter.Int64Counter(
		"routing_handler_errors_total",
		metric.WithDescription("Total number of errors returned by controller methods or their resolution"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create handler error counter: %w", err)
	}

	upgrades, err := meter.Int64Counter(
		"routing_websocket_upgrades_total",
		metric.WithDescription("Total number of upgrade requests seen by the WebSocket multiplexer"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upgrade counter: %w", err)
	}

	activeScopes, err := meter.Int64UpDownCounter(
		"routing_active_scopes",
		metric.WithDescription("Number of dependency scopes currently open"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scope counter: %w", err)
	}

	return &Metrics{
		dispatches:    dispatches,
		handlerErrors: handlerErrors,
		upgrades:      upgrades,
		activeScopes:  activeScopes,
	}, nil
}

func handlerAttrs(kind RouteKind, h *handlerFunc) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("controller", h.class.String()),
		attribute.String("handler", h.name),
	)
}

// recordDispatch counts one invocation of a controller method
func (m *Metrics) recordDispatch(ctx context.Context, kind RouteKind, h *handlerFunc) {
	if m == nil {
		return
	}
	m.dispatches.Add(ctx, 1, handlerAttrs(kind, h))
}

// recordHandlerError counts one failed invocation
func (m *Metrics) recordHandlerError(ctx context.Context, kind RouteKind, h *handlerFunc) {
	if m == nil {
		return
	}
	m.handlerErrors.Add(ctx, 1, handlerAttrs(kind, h))
}

// recordUpgrade counts one upgrade outcome. h is nil for unmatched upgrades.
func (m *Metrics) recordUpgrade(ctx context.Context, outcome string, h *handlerFunc) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if h != nil {
		attrs = append(attrs, attribute.String("handler", h.name))
	}
	m.upgrades.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// scopeOpened tracks a new dependency scope
func (m *Metrics) scopeOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeScopes.Add(ctx, 1)
}

// scopeClosed tracks a released dependency scope
func (m *Metrics) scopeClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeScopes.Add(ctx, -1)
}

var globalMetrics atomic.Pointer[Metrics]

// InitMetrics creates the global routing metrics on meter, or on the
// global meter provider when meter is nil.
func InitMetrics(meter metric.Meter) error {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	metrics, err := NewMetrics(meter)
	if err != nil {
		return err
	}
	globalMetrics.Store(metrics)
	return nil
}

// GetMetrics returns the global routing metrics, or nil before InitMetrics
func GetMetrics() *Metrics {
	return globalMetrics.Load()
}
