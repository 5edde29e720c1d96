package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrSurface   = "commerce.surface"
	AttrOperation = "commerce.operation"
	AttrProductID = "storefront.product_id"

	LogFieldTraceID = "trace_id"
	LogFieldSpanID  = "span_id"
)

type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

func NewTracer(tp trace.TracerProvider, serviceName string) *Tracer {
	return &Tracer{
		tracer:      tp.Tracer(TracerName),
		serviceName: serviceName,
	}
}

func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartUpstream starts a client span for a call to the commerce platform.
func (t *Tracer) StartUpstream(ctx context.Context, surface, operation string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "commerce."+surface,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrSurface, surface),
			attribute.String(AttrOperation, operation),
		))
}

// StartPurchaseCheck starts a span for a purchase verification.
func (t *Tracer) StartPurchaseCheck(ctx context.Context, productID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "purchase.verify", trace.WithAttributes(
		attribute.String(AttrProductID, productID),
	))
}

func (t *Tracer) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// LoggerWithTrace returns a logger enriched with the span in ctx, if any.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return logger
	}
	return logger.With(
		slog.String(LogFieldTraceID, span.SpanContext().TraceID().String()),
		slog.String(LogFieldSpanID, span.SpanContext().SpanID().String()),
	)
}
