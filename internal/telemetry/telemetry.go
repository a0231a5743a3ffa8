// Package telemetry wires up OpenTelemetry tracing for the pipeline
// stages the spec names (Sanitize, Guard, Generate, Detect, Validate):
// an OTLP gRPC exporter when OTEL_EXPORTER_OTLP_ENDPOINT is set, falling
// back to a stdout exporter otherwise so traces are always visible
// somewhere during local development.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName identifies this service in exported spans.
const ServiceName = "schemaforge"

// Init installs a global TracerProvider and returns a shutdown function
// the caller must run before exit to flush pending spans. The exporter
// choice mirrors the teacher's per-package otel.Tracer(...) naming
// convention (see internal/engine), just centralizing provider setup
// instead of leaving each package to construct its own.
func Init(ctx context.Context) (shutdown func(context.Context) error, err error) {
	exporter, err := newExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build exporter: %w", err)
	}

	res := resource.NewSchemaless(semconv.ServiceNameKey.String(ServiceName))

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

func newExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	}
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

// Stage names the pipeline steps the spec calls out for tracing.
type Stage string

const (
	StageSanitize Stage = "sanitize"
	StageGuard    Stage = "guard"
	StageGenerate Stage = "generate"
	StageDetect   Stage = "detect"
	StageValidate Stage = "validate"
)

var tracer = otel.Tracer("schemaforge.pipeline")

// StartSpan starts a span named after stage. internal/worker starts every
// pipeline-stage span through it, so stage names stay consistent; the
// engine backends start their own spans from per-backend tracers.
func StartSpan(ctx context.Context, stage Stage) (context.Context, trace.Span) {
	return tracer.Start(ctx, string(stage))
}
