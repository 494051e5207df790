package http

import (
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	context_ "github.com/mkrupp/practice-tracker/internal/infra/context"
)

const (
	TraceIDHeader = "X-Request-ID"

	tracerName = "github.com/mkrupp/practice-tracker/internal/infra/transport/http"
)

// TracingMiddleware assigns a request id, taken from X-Request-ID or a new UUIDv7,
// echoes it in the response and wraps the request in an OpenTelemetry server span.
func TracingMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := getTraceID(r)
		w.Header().Set(TraceIDHeader, traceID)

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx = context_.WithTraceID(ctx, traceID)

		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("request.id", traceID),
			),
		)
		defer span.End()

		rec := NewStatusRecorder(w)

		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", rec.StatusCode))

		if rec.StatusCode >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.StatusCode))
		}
	})
}

func getTraceID(r *http.Request) string {
	if traceID := r.Header.Get(TraceIDHeader); traceID != "" {
		return traceID
	}

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
