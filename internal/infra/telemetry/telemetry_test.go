package telemetry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/mkrupp/practice-tracker/internal/infra/telemetry"
)

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	//nolint:exhaustruct
	shutdown, err := telemetry.Setup(context.Background(), telemetry.Config{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

//nolint:paralleltest
func TestSetup_EnabledWithoutExporter(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), telemetry.Config{
		Enabled:     true,
		ServiceName: "practice-tracker-test",
		SampleRatio: 1,
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

//nolint:paralleltest
func TestSetup_ExportsToCollector(t *testing.T) {
	var (
		mu    sync.Mutex
		paths = map[string]int{}
	)

	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths[r.Method+" "+r.URL.Path]++
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	ctx := context.Background()

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        true,
		Endpoint:       collector.URL + "/",
		ServiceName:    "practice-tracker-test",
		SampleRatio:    1,
		MetricInterval: time.Hour,
	})
	require.NoError(t, err)

	counter, err := otel.Meter("telemetry-test").Int64Counter("test.requests")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	_, span := otel.Tracer("telemetry-test").Start(ctx, "test")
	span.End()

	require.NoError(t, shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()

	assert.Positive(t, paths["POST /v1/metrics"])
	assert.Positive(t, paths["POST /v1/traces"])
}
