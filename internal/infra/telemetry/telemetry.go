// Package telemetry installs the OpenTelemetry tracer and meter providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mkrupp/practice-tracker/internal/infra/logging"
)

// Config holds telemetry settings.
type Config struct {
	// Enabled installs SDK providers; when false the global no-op providers stay in place
	Enabled bool `env:"ENABLED" default:"false"`
	// Endpoint is the OTLP/HTTP collector base URL; traces go to /v1/traces and
	// metrics to /v1/metrics. Empty disables export
	Endpoint string `env:"ENDPOINT" default:""`
	// MetricInterval is how often metrics are pushed to the collector
	MetricInterval time.Duration `env:"METRIC_INTERVAL" default:"60s"`
	// ServiceName is reported as the service.name resource attribute
	ServiceName string `env:"SERVICE_NAME" default:"practice-tracker"`
	// SampleRatio is the fraction of root spans that are sampled
	SampleRatio float64 `env:"SAMPLE_RATIO" default:"1"`
}

// ShutdownFunc flushes and stops the installed providers.
type ShutdownFunc func(context.Context) error

// Setup installs global tracer and meter providers according to cfg.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	log := logging.GetLogger("infra.telemetry")

	if !cfg.Enabled {
		log.DebugContext(ctx, "telemetry disabled")

		return func(context.Context) error { return nil }, nil
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}

	meterOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if cfg.Endpoint != "" {
		base := strings.TrimRight(cfg.Endpoint, "/")

		traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(base+"/v1/traces"))
		if err != nil {
			return nil, fmt.Errorf("new otlp trace exporter: %w", err)
		}

		metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(base+"/v1/metrics"))
		if err != nil {
			return nil, errors.Join(
				fmt.Errorf("new otlp metric exporter: %w", err),
				traceExporter.Shutdown(ctx),
			)
		}

		interval := cfg.MetricInterval
		if interval <= 0 {
			interval = time.Minute
		}

		traceOpts = append(traceOpts, sdktrace.WithBatcher(traceExporter))
		meterOpts = append(meterOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval)),
		))
	}

	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	meterProvider := sdkmetric.NewMeterProvider(meterOpts...)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.InfoContext(ctx, "telemetry configured",
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"metric_interval", cfg.MetricInterval,
		"sample_ratio", cfg.SampleRatio,
	)

	return func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)
	}, nil
}
