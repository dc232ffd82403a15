package telemetry

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// ServerScopeName names the meter and tracer of the development server
const ServerScopeName = "github.com/quorumdesk/quorumdesk/devserver"

// unmatchedRoute labels requests that no route handled, keeping label cardinality bounded
const unmatchedRoute = "unmatched"

// ServerInstrumentation measures and traces requests served by the development server.
// Push channel connections are counted while open instead of timed.
type ServerInstrumentation struct {
	tracer      trace.Tracer
	duration    metric.Float64Histogram
	requests    metric.Int64Counter
	pushClients metric.Int64UpDownCounter
}

// NewServerInstrumentation creates the instruments. No-op providers are accepted.
func NewServerInstrumentation(tp trace.TracerProvider, mp metric.MeterProvider) (*ServerInstrumentation, error) {
	meter := mp.Meter(ServerScopeName)

	duration, err := meter.Float64Histogram(
		"quorumdesk_http_request_duration_seconds",
		metric.WithDescription("Time spent serving meeting API requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, err
	}
	requests, err := meter.Int64Counter(
		"quorumdesk_http_requests_total",
		metric.WithDescription("Meeting API requests served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	pushClients, err := meter.Int64UpDownCounter(
		"quorumdesk_push_clients",
		metric.WithDescription("Open push channel connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	return &ServerInstrumentation{
		tracer:      tp.Tracer(ServerScopeName),
		duration:    duration,
		requests:    requests,
		pushClients: pushClients,
	}, nil
}

// Measure records the request count and latency by route and status
func (s *ServerInstrumentation) Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()
		push := isUpgrade(r)
		if push {
			s.pushClients.Add(ctx, 1)
			defer s.pushClients.Add(ctx, -1)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		attrs := metric.WithAttributes(requestAttributes(r, statusOf(ww, push))...)
		s.requests.Add(ctx, 1, attrs)
		if !push {
			s.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
	})
}

// Trace starts a server span per request, continuing any propagated trace.
// The span is renamed to the matched route once the router has run.
func (s *ServerInstrumentation) Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := s.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(semconv.URLPath(r.URL.Path)),
		)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := statusOf(ww, isUpgrade(r))
		span.SetName(r.Method + " " + routeOf(r))
		span.SetAttributes(requestAttributes(r, status)...)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	})
}

func requestAttributes(r *http.Request, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRoute(routeOf(r)),
		semconv.HTTPResponseStatusCode(status),
	}
}

// routeOf returns the chi pattern that matched r
func routeOf(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}

// statusOf reads the written status. Hijacked upgrades never write through ww.
func statusOf(ww middleware.WrapResponseWriter, upgraded bool) int {
	switch status := ww.Status(); {
	case status != 0:
		return status
	case upgraded:
		return http.StatusSwitchingProtocols
	default:
		return http.StatusOK
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
