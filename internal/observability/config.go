// Package observability wraps OpenTelemetry tracing and metrics for the
// storefront. When no providers are configured, no-op implementations are
// used.
package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "storefront"
	MeterName  = "storefront"
)

// Config holds the observability configuration.
type Config struct {
	// TracerProvider is the OpenTelemetry tracer provider. If nil, tracing
	// is disabled.
	TracerProvider trace.TracerProvider

	// MeterProvider is the OpenTelemetry meter provider. If nil, metrics
	// collection is disabled.
	MeterProvider metric.MeterProvider

	ServiceName string

	// EnableServerTiming adds the Server-Timing response header.
	EnableServerTiming bool

	tracer  *Tracer
	metrics *Metrics
}

type Option func(*Config)

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		c.TracerProvider = tp
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) {
		c.MeterProvider = mp
	}
}

// WithGlobalProviders uses whatever providers were registered with the otel
// package, for example by an SDK set up in main.
func WithGlobalProviders() Option {
	return func(c *Config) {
		c.TracerProvider = otel.GetTracerProvider()
		c.MeterProvider = otel.GetMeterProvider()
	}
}

func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

func WithServerTiming() Option {
	return func(c *Config) {
		c.EnableServerTiming = true
	}
}

// New builds and initializes a configuration.
func New(opts ...Option) *Config {
	cfg := &Config{ServiceName: "storefront"}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.Initialize()
	return cfg
}

// Initialize sets up the tracer and metrics from the configured providers.
func (c *Config) Initialize() {
	if c.TracerProvider != nil {
		c.tracer = NewTracer(c.TracerProvider, c.ServiceName)
	} else {
		c.tracer = NewNoopTracer()
	}

	if c.MeterProvider != nil {
		c.metrics = NewMetrics(c.MeterProvider)
	} else {
		c.metrics = NewNoopMetrics()
	}
}

// Tracer returns the configured tracer, or a no-op tracer if not configured.
func (c *Config) Tracer() *Tracer {
	if c == nil || c.tracer == nil {
		return NewNoopTracer()
	}
	return c.tracer
}

// Metrics returns the configured metrics, or no-op metrics if not configured.
func (c *Config) Metrics() *Metrics {
	if c == nil || c.metrics == nil {
		return NewNoopMetrics()
	}
	return c.metrics
}

func (c *Config) ServerTimingEnabled() bool {
	return c != nil && c.EnableServerTiming
}
