// Package telemetry provides OpenTelemetry instrumentation for the
// repository server. Metrics are collected through the OTel SDK and exposed
// on a Prometheus scrape endpoint.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// Telemetry encapsulates the meter provider and the Prometheus registry it
// exports to, and handles their lifecycle.
type Telemetry struct {
	meterProvider metric.MeterProvider
	registry      *prometheus.Registry
}

// Option is a function that configures the telemetry setup
type Option func(*telemetryConfig)

// telemetryConfig holds the configuration for creating telemetry
type telemetryConfig struct {
	enabled        bool
	serviceName    string
	serviceVersion string
}

// WithEnabled turns metric collection on or off
func WithEnabled(enabled bool) Option {
	return func(tc *telemetryConfig) {
		tc.enabled = enabled
	}
}

// WithServiceName sets the service name reported on all metrics
func WithServiceName(name string) Option {
	return func(tc *telemetryConfig) {
		tc.serviceName = name
	}
}

// WithServiceVersion sets the service version reported on all metrics
func WithServiceVersion(version string) Option {
	return func(tc *telemetryConfig) {
		tc.serviceVersion = version
	}
}

// New creates and initializes a new Telemetry instance. When disabled it
// returns a Telemetry with a no-op meter provider and no scrape endpoint.
// The caller is responsible for calling Shutdown when the application exits.
func New(_ context.Context, opts ...Option) (*Telemetry, error) {
	cfg := &telemetryConfig{
		serviceName: "simple-repository-server",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if !cfg.enabled {
		return &Telemetry{meterProvider: noopmetric.NewMeterProvider()}, nil
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.serviceName),
		semconv.ServiceVersion(cfg.serviceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	return &Telemetry{
		meterProvider: provider,
		registry:      registry,
	}, nil
}

// MeterProvider returns the configured meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// Meter returns a named meter from the meter provider
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return t.meterProvider.Meter(name, opts...)
}

// Handler returns the Prometheus scrape handler, or nil when telemetry is
// disabled.
func (t *Telemetry) Handler() http.Handler {
	if t.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider. It should be called when
// the application is shutting down. This method is safe to call multiple
// times.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if mp, ok := t.meterProvider.(*sdkmetric.MeterProvider); ok {
		if err := mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown meter provider: %w", err)
		}
	}
	return nil
}
