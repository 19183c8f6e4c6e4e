// Package observability wires OpenTelemetry tracing around pipeline phases.
// Each run emits one span per phase (slice, profile, stream, encode, merge)
// carrying chunk and row counts as attributes. Spans export through the
// stdout trace exporter; when tracing is disabled every operation is a
// no-op, so call sites never branch.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ajitpratap0/comet/pkg/errors"
)

// Tracing owns a run's tracer and its exporter lifecycle.
type Tracing struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// Setup builds the tracing stack. Disabled tracing returns a no-op tracer
// with a nil provider; enabled tracing batches spans to w (stderr when w is
// nil) tagged with the service name.
func Setup(enabled bool, service string, w io.Writer) (*Tracing, error) {
	if !enabled {
		return &Tracing{tracer: noop.NewTracerProvider().Tracer(service)}, nil
	}
	if w == nil {
		w = os.Stderr
	}
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "create trace exporter")
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", service),
		)),
	)
	return &Tracing{tracer: provider.Tracer(service), provider: provider}, nil
}

// Shutdown flushes buffered spans. Safe on a disabled Tracing.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// StartSpan opens a span and returns the derived context.
func (t *Tracing) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &Span{span: span}
}

// Span wraps an OpenTelemetry span with batched attribute setting.
type Span struct {
	span  trace.Span
	attrs []attribute.KeyValue
}

// SetAttribute queues an attribute; it is flushed at End.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue
	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}
	s.attrs = append(s.attrs, attr)
}

// RecordError marks the span failed and records err on it.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End flushes queued attributes and closes the span.
func (s *Span) End() {
	if len(s.attrs) > 0 {
		s.span.SetAttributes(s.attrs...)
	}
	s.span.End()
}
