package observability

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/platform/requestctx"
)

const instrumentationName = "github.com/Hemanshudhaduk/Velora/internal/platform/observability"

var tracer = otel.Tracer(instrumentationName)

// StartClientSpan opens a client span for an outbound backend call and records the trace
// identifiers on the returned context.
func StartClientSpan(ctx context.Context, method, route string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	method, route = methodLabel(method), routeLabel(route)
	ctx, span := tracer.Start(ctx, method+" "+route, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", route),
	)
	if sc := span.SpanContext(); sc.IsValid() {
		ctx = requestctx.WithTraceID(ctx, sc.TraceID().String())
	}
	return ctx, span
}

// EndClientSpan records the response status on the span and closes it.
func EndClientSpan(span trace.Span, status int, err error) {
	if span == nil {
		return
	}
	defer span.End()
	if status > 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	}
	switch {
	case err != nil && status == 0:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case status >= http.StatusBadRequest:
		span.SetStatus(codes.Error, http.StatusText(status))
	default:
		span.SetStatus(codes.Ok, http.StatusText(status))
	}
}

// ClientMetrics counts outbound backend calls and their latency.
type ClientMetrics struct {
	requests        metric.Int64Counter
	requestsEnabled bool
	latency         metric.Float64Histogram
	latencyEnabled  bool
}

// NewClientMetrics registers the instruments on the supplied meter, or the global provider when nil.
func NewClientMetrics(meter metric.Meter, logger *zap.Logger) *ClientMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}

	requests, reqErr := meter.Int64Counter(
		"velora.api.requests",
		metric.WithDescription("Count of storefront backend requests by outcome"),
	)
	if reqErr != nil {
		logger.Warn("observability: unable to register request counter", zap.Error(reqErr))
	}
	latency, latErr := meter.Float64Histogram(
		"velora.api.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for storefront backend requests"),
	)
	if latErr != nil {
		logger.Warn("observability: unable to register latency histogram", zap.Error(latErr))
	}

	return &ClientMetrics{
		requests:        requests,
		requestsEnabled: reqErr == nil,
		latency:         latency,
		latencyEnabled:  latErr == nil,
	}
}

// Record adds one request observation.
func (m *ClientMetrics) Record(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", methodLabel(method)),
		attribute.String("route", routeLabel(route)),
		attribute.String("outcome", outcome(status)),
	)
	if m.requestsEnabled {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.latencyEnabled {
		m.latency.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}
}

func outcome(status int) string {
	switch {
	case status == 0:
		return "transport_error"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "unauthorized"
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status >= http.StatusBadRequest:
		return "client_error"
	default:
		return "ok"
	}
}

// routeLabel bounds a route for use in span names, metric attributes and logs.
func routeLabel(route string) string {
	if route == "" {
		return "/"
	}
	return clip(route, 180)
}

func methodLabel(method string) string {
	return clip(strings.ToUpper(method), 10)
}

func clip(s string, limit int) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if r := []rune(s); len(r) > limit {
		s = string(r[:limit])
	}
	return s
}
