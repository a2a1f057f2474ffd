package observability

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
)

// SetupTracing initializes OpenTelemetry tracing with stdout exporter (for demo; replace with OTLP in prod)
func SetupTracing(serviceName string) func() {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		log.Fatalf("failed to initialize stdouttrace exporter: %v", err)
	}
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return func() { _ = provider.Shutdown(nil) }
}

// SetupPrometheusMetrics initializes Prometheus metrics exporter and exposes /metrics endpoint
func SetupPrometheusMetrics(addr string) *metric.MeterProvider {
	exp, err := prometheus.New()
	if err != nil {
		log.Fatalf("failed to initialize prometheus exporter: %v", err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exp))
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(addr, nil)
	}()
	return mp
}

// Metrics holds the capture/relay pipeline counters.
type Metrics struct {
	extracted    otelmetric.Int64Counter
	deduplicated otelmetric.Int64Counter
	relayed      otelmetric.Int64Counter
	dropped      otelmetric.Int64Counter
	reconnects   otelmetric.Int64Counter
}

// NewMetrics registers pipeline counters on the provider. A nil
// provider yields nil, and all Metrics methods are nil-safe, so callers
// never need to guard instrumentation sites.
func NewMetrics(mp *metric.MeterProvider) *Metrics {
	if mp == nil {
		return nil
	}
	meter := mp.Meter("fumblebot")
	extracted, _ := meter.Int64Counter("fumblebot.events.extracted")
	deduplicated, _ := meter.Int64Counter("fumblebot.events.deduplicated")
	relayed, _ := meter.Int64Counter("fumblebot.events.relayed")
	dropped, _ := meter.Int64Counter("fumblebot.events.dropped")
	reconnects, _ := meter.Int64Counter("fumblebot.stream.reconnects")
	return &Metrics{
		extracted:    extracted,
		deduplicated: deduplicated,
		relayed:      relayed,
		dropped:      dropped,
		reconnects:   reconnects,
	}
}

func (m *Metrics) Extracted(platform models.Platform, kind string) {
	if m == nil {
		return
	}
	m.extracted.Add(context.Background(), 1, otelmetric.WithAttributes(
		attribute.String("platform", string(platform)),
		attribute.String("kind", kind),
	))
}

func (m *Metrics) Deduplicated(platform models.Platform) {
	if m == nil {
		return
	}
	m.deduplicated.Add(context.Background(), 1, otelmetric.WithAttributes(
		attribute.String("platform", string(platform)),
	))
}

func (m *Metrics) Relayed(eventType string) {
	if m == nil {
		return
	}
	m.relayed.Add(context.Background(), 1, otelmetric.WithAttributes(
		attribute.String("type", eventType),
	))
}

func (m *Metrics) Dropped(eventType string) {
	if m == nil {
		return
	}
	m.dropped.Add(context.Background(), 1, otelmetric.WithAttributes(
		attribute.String("type", eventType),
	))
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Add(context.Background(), 1)
}
