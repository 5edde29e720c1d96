package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the storefront metric instruments.
type Metrics struct {
	upstreamDuration metric.Float64Histogram
	upstreamCount    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	reviewCount      metric.Int64Counter
	purchaseChecks   metric.Int64Counter
	mailCount        metric.Int64Counter
}

func NewMetrics(mp metric.MeterProvider) *Metrics {
	meter := mp.Meter(MeterName)
	m := &Metrics{}

	var err error

	m.upstreamDuration, err = meter.Float64Histogram(
		"commerce.request.duration",
		metric.WithDescription("Duration of commerce platform calls in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.upstreamDuration, _ = meter.Float64Histogram("commerce.request.duration")
	}

	m.upstreamCount, err = meter.Int64Counter(
		"commerce.request.count",
		metric.WithDescription("Total number of commerce platform calls"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.upstreamCount, _ = meter.Int64Counter("commerce.request.count")
	}

	m.requestDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("Duration of storefront HTTP requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.requestDuration, _ = meter.Float64Histogram("http.server.duration")
	}

	m.reviewCount, err = meter.Int64Counter(
		"storefront.review.count",
		metric.WithDescription("Reviews created and moderated"),
		metric.WithUnit("{review}"),
	)
	if err != nil {
		m.reviewCount, _ = meter.Int64Counter("storefront.review.count")
	}

	m.purchaseChecks, err = meter.Int64Counter(
		"storefront.purchase_check.count",
		metric.WithDescription("Purchase verifications by outcome"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		m.purchaseChecks, _ = meter.Int64Counter("storefront.purchase_check.count")
	}

	m.mailCount, err = meter.Int64Counter(
		"storefront.mail.count",
		metric.WithDescription("Outgoing mail by outcome"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		m.mailCount, _ = meter.Int64Counter("storefront.mail.count")
	}

	return m
}

func (m *Metrics) RecordUpstream(ctx context.Context, surface string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrSurface, surface),
		attribute.Int("http.status_code", statusCode),
	)
	m.upstreamDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.upstreamCount.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordRequest(ctx context.Context, method string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.Int("http.status_code", statusCode),
	)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordReview counts a review lifecycle event such as "created" or
// "approved".
func (m *Metrics) RecordReview(ctx context.Context, event string) {
	m.reviewCount.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func (m *Metrics) RecordPurchaseCheck(ctx context.Context, outcome string) {
	m.purchaseChecks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordMail(ctx context.Context, kind string, ok bool) {
	m.mailCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("ok", ok),
	))
}
