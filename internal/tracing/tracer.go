// Package tracing provides OpenTelemetry tracing for dispatched requests:
// one span per request with bind/execute child spans.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// InitTracer initializes the OpenTelemetry tracer provider. Callers that
// pass an empty endpoint get a provider with an always-off sampler, so
// tracing is a no-op until an OTel collector endpoint is configured.
func InitTracer(ctx context.Context, serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("0.1.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	if endpoint == "" {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.NeverSample()),
		)
		otel.SetTracerProvider(tp)
		return tp, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the global gateway tracer.
func Tracer() trace.Tracer {
	return otel.Tracer("sqlgateway")
}

// DispatchAttributes describes a dispatched endpoint invocation.
func DispatchAttributes(endpointName, databaseName, queryName string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("gateway.endpoint", endpointName),
		attribute.String("gateway.database", databaseName),
		attribute.String("gateway.query", queryName),
	}
}

// StartDispatchSpan starts the root span for one dispatched HTTP request.
func StartDispatchSpan(ctx context.Context, endpointName, databaseName, queryName string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "dispatch "+endpointName,
		trace.WithAttributes(DispatchAttributes(endpointName, databaseName, queryName)...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartBindSpan starts a child span covering parameter coercion.
func StartBindSpan(ctx context.Context, queryName string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "bind",
		trace.WithAttributes(attribute.String("gateway.query", queryName)),
	)
}

// StartExecuteSpan starts a child span covering SQL execution.
func StartExecuteSpan(ctx context.Context, databaseName, queryName string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "execute",
		trace.WithAttributes(
			attribute.String("gateway.database", databaseName),
			attribute.String("gateway.query", queryName),
		),
	)
}

// RecordRowCount annotates span with the number of rows an execute
// returned.
func RecordRowCount(span trace.Span, rows int) {
	if span.IsRecording() {
		span.SetAttributes(attribute.Int("gateway.rows_returned", rows))
	}
}
