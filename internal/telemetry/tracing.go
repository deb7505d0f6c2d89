// Package telemetry sets up OpenTelemetry tracing for a harvest run.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InstrumentationName names the tracer used by harvester packages.
const InstrumentationName = "github.com/JakeFAU/etym-crawler"

// Tracer returns the harvester tracer from the global provider. Until
// InitTracerProvider runs it is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// InitTracerProvider installs a global tracer provider whose finished spans
// are logged at debug level. Extra options, such as an exporter, are
// appended. Callers must Shutdown the returned provider.
func InitTracerProvider(
	ctx context.Context,
	serviceName string,
	logger *zap.Logger,
	opts ...sdktrace.TracerProviderOption,
) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(NewLogProcessor(logger)),
	}
	tp := sdktrace.NewTracerProvider(append(base, opts...)...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}

// LogProcessor writes one debug line per finished span.
type LogProcessor struct {
	logger *zap.Logger
}

var _ sdktrace.SpanProcessor = (*LogProcessor)(nil)

// NewLogProcessor builds a LogProcessor. A nil logger discards spans.
func NewLogProcessor(logger *zap.Logger) *LogProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogProcessor{logger: logger.Named("trace")}
}

// OnStart is a no-op.
func (*LogProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd logs the span name, duration, status and attributes.
func (p *LogProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := make([]zap.Field, 0, len(s.Attributes())+4)
	fields = append(fields,
		zap.String("span", s.Name()),
		zap.String("trace_id", s.SpanContext().TraceID().String()),
		zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
	)
	if st := s.Status(); st.Code == codes.Error {
		fields = append(fields, zap.String("error", st.Description))
	}
	for _, kv := range s.Attributes() {
		fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
	}
	p.logger.Debug("span finished", fields...)
}

// Shutdown flushes the logger.
func (p *LogProcessor) Shutdown(context.Context) error {
	_ = p.logger.Sync()
	return nil
}

// ForceFlush is a no-op.
func (*LogProcessor) ForceFlush(context.Context) error { return nil }

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
