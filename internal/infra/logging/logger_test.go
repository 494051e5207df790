package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mkrupp/practice-tracker/internal/domain"
	context_ "github.com/mkrupp/practice-tracker/internal/infra/context"
	"github.com/mkrupp/practice-tracker/internal/infra/logging"
)

//nolint:paralleltest
func TestConsoleHandler_PackageFilter(t *testing.T) {
	var buf bytes.Buffer

	//nolint:exhaustruct
	logging.Configure(context.Background(), logging.LoggerConfig{
		Level:        "info",
		Filter:       "svc.trackersvc:debug,repo:error",
		OutputHandle: &buf,
	}, "test")

	logging.GetLogger("svc.trackersvc.service").Debug("tracker debug")
	logging.GetLogger("svc.statssvc.service").Debug("stats debug")
	logging.GetLogger("repo.completion").Warn("repo warn")
	logging.GetLogger("repo.completion").Error("repo error")

	out := buf.String()
	assert.Contains(t, out, "tracker debug")
	assert.NotContains(t, out, "stats debug")
	assert.NotContains(t, out, "repo warn")
	assert.Contains(t, out, "repo error")
}

//nolint:paralleltest
func TestTracingHandler_AddsRequestContext(t *testing.T) {
	var buf bytes.Buffer

	//nolint:exhaustruct
	logging.Configure(context.Background(), logging.LoggerConfig{
		Level:        "debug",
		JSON:         true,
		OutputHandle: &buf,
	}, "test")

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	ctx = context_.WithTraceID(ctx, "req-123")
	ctx = context_.WithUser(ctx, &domain.User{ID: 42, Username: "walker"})

	logging.GetLogger("test").InfoContext(ctx, "hello")

	out := buf.String()
	require.True(t, strings.Contains(out, `"id":"req-123"`), out)
	assert.Contains(t, out, `"user_id":42`)
	assert.Contains(t, out, span.SpanContext().TraceID().String())
	assert.Contains(t, out, `"logger":"test"`)
}

//nolint:paralleltest
func TestGetLogger_DiscardOutput(t *testing.T) {
	//nolint:exhaustruct
	logging.Configure(context.Background(), logging.LoggerConfig{Output: "discard"}, "test")

	log := logging.GetLogger("anything")
	assert.False(t, log.Enabled(context.Background(), logging.LevelError))
}
