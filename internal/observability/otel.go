// Package observability configures OpenTelemetry tracing for the service.
// Traces cover the HTTP layer (via otelgin) and the database (via the gorm
// OTel plugin); this file wires the OTLP gRPC exporter, resource identity,
// sampling, and context propagation.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"google.golang.org/grpc/credentials"

	"github.com/tbourn/go-user-sync-backend/internal/config"
)

// Constructor indirection so failure paths are reachable in tests without a
// live collector.
var (
	otlpClientFn    = otlptracegrpc.NewClient
	traceExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, client)
	}
	resourceFn = serviceResource
)

// serviceResource describes this process to the trace backend: service name
// from config plus the build version stamped at link time.
func serviceResource(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
	return resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
}

// clientOptions translates the OTEL config block into OTLP gRPC dial options.
// Insecure transport is an explicit opt-in for local collectors; otherwise
// the system certificate pool backs the TLS handshake.
func clientOptions(cfg config.OTELConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		return append(opts, otlptracegrpc.WithInsecure())
	}
	return append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
}

// SetupOTel configures the global tracer provider and propagators from cfg
// and returns a shutdown function that flushes pending spans.
//
// When tracing is disabled the returned shutdown is a no-op and no globals
// are touched. On any setup failure the previous globals stay intact.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, version string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := traceExporterFn(ctx, otlpClientFn(clientOptions(cfg)...))
	if err != nil {
		return nil, err
	}
	res, err := resourceFn(ctx, cfg.ServiceName, version)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
