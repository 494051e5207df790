package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	context_ "github.com/mkrupp/practice-tracker/internal/infra/context"
)

// TracingHandler wraps another slog.Handler and enriches records with request-scoped
// values found in the context: the request id, the OpenTelemetry span context and
// the authenticated user.
type TracingHandler struct {
	h slog.Handler
}

var _ slog.Handler = (*TracingHandler)(nil)

// NewTracingHandler creates a new TracingHandler wrapping the given handler.
func NewTracingHandler(h slog.Handler) *TracingHandler {
	return &TracingHandler{h: h}
}

// Handle implements slog.Handler.
func (h *TracingHandler) Handle(ctx context.Context, r slog.Record) error {
	traceAttrs := make([]any, 0, 6)

	if requestID, ok := context_.TraceIDFromContext(ctx); ok {
		traceAttrs = append(traceAttrs, slog.String("id", requestID))
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		traceAttrs = append(traceAttrs,
			slog.String("otel_trace_id", sc.TraceID().String()),
			slog.String("otel_span_id", sc.SpanID().String()),
		)
	}

	if len(traceAttrs) > 0 {
		r.AddAttrs(slog.Group("trace", traceAttrs...))
	}

	if user, ok := context_.UserFromContext(ctx); ok {
		r.AddAttrs(slog.Group("auth", slog.Int64("user_id", user.ID)))
	}

	//nolint:wrapcheck
	return h.h.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *TracingHandler) WithAttrs(attrs []slog.Attr) Handler {
	return NewTracingHandler(h.h.WithAttrs(attrs))
}

// WithGroup implements slog.Handler.WithGroup.
func (h *TracingHandler) WithGroup(name string) Handler {
	return NewTracingHandler(h.h.WithGroup(name))
}

// Enabled implements slog.Handler.Enabled.
func (h *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}
