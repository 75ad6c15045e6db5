package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope of every voicefill span.
const tracerName = "github.com/MrWong99/voicefill"

// Tracer returns the voicefill tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span on [Tracer]. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// FailSpan marks span as failed with err. Nil errors are ignored.
func FailSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// spanIDs returns the hex trace and span IDs carried by ctx.
func spanIDs(ctx context.Context) (traceID, spanID string, ok bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}

// CorrelationID is the trace ID of the span in ctx, or "" without one. It is
// echoed to clients as X-Correlation-ID.
func CorrelationID(ctx context.Context) string {
	traceID, _, _ := spanIDs(ctx)
	return traceID
}

// Logger returns the default logger, tagged with trace_id and span_id when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	traceID, spanID, ok := spanIDs(ctx)
	if !ok {
		return slog.Default()
	}
	return slog.Default().With("trace_id", traceID, "span_id", spanID)
}
