package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Settings describe the dashboard process to the trace backend.
type Settings struct {
	// Endpoint is the OTLP/HTTP collector URL. Empty disables tracing.
	Endpoint       string
	DataSource     string
	LocationSource string
	SessionID      string
}

// Setup installs the global tracer provider for the dashboard.
//
// With an empty endpoint it returns a no-op shutdown and leaves the global
// no-op provider in place.
func Setup(ctx context.Context, s Settings) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if s.Endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(s.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("otel setup: exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(s)...))
	if err != nil {
		return noop, fmt.Errorf("otel setup: resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

func resourceAttributes(s Settings) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName("delivery-tracker"),
		semconv.ServiceNamespace("delivery"),
	}
	if s.SessionID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(s.SessionID))
	}
	if s.DataSource != "" {
		attrs = append(attrs, attribute.String("dashboard.data_source", s.DataSource))
	}
	if s.LocationSource != "" {
		attrs = append(attrs, attribute.String("dashboard.location_source", s.LocationSource))
	}
	return attrs
}
