package observe

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// correlationKey carries the request's correlation id in its context.
type correlationKey struct{}

// CorrelationID returns the correlation id bound to ctx by Middleware. When
// the request came in outside the middleware (tests, background tasks) it
// falls back to the active span's trace id, then to the empty string.
func CorrelationID(ctx context.Context) string {
	if cid, ok := ctx.Value(correlationKey{}).(string); ok {
		return cid
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// responseWriter captures the status code written downstream.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware wraps an http.Handler with the request-scoped observability
// the error contract depends on: every request gets a correlation id
// (the incoming trace id when the caller propagated W3C trace context, a
// fresh UUID otherwise) that handlers surface in 5xx bodies, plus a server
// span, a duration metric, and a structured completion log carrying the
// session id when the client sent one.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	propagator := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer().Start(ctx, "HTTP "+r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			cid := correlationIDFor(span)
			ctx = context.WithValue(ctx, correlationKey{}, cid)
			w.Header().Set("X-Correlation-ID", cid)

			rec := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			duration := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, duration.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", r.URL.Path),
				),
			)
			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))

			attrs := []slog.Attr{
				slog.String("correlation_id", cid),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", duration),
			}
			if sid := r.Header.Get("X-Session-ID"); sid != "" {
				attrs = append(attrs, slog.String("session_id", sid))
			}
			slog.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
		})
	}
}

// correlationIDFor prefers the span's trace id so logs, traces, and error
// bodies line up; without a recording trace it mints a UUID.
func correlationIDFor(span trace.Span) string {
	if sc := span.SpanContext(); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}
