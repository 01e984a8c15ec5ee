package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope every cache span is recorded
// under. The host process wires a real TracerProvider via
// otel.SetTracerProvider; absent that, otel's default no-op provider makes
// every span here free.
const tracerName = "github.com/luhtfiimanal/zarrs-cache"

// Span is the minimal tracing surface the cache needs: start, annotate,
// end. Grounded on the teacher's otelSpanWrapper, trimmed to the subset
// this module actually calls.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	}
}

func (s *otelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// StartSpan starts a child span named name under the global TracerProvider.
func StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, sp := otel.Tracer(tracerName).Start(ctx, name)
	return ctx, &otelSpan{span: sp}
}
