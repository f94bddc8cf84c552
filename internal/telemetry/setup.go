// Package telemetry wires the slog front-end and the OpenTelemetry
// providers. With no endpoint configured only the logrus handler is
// installed.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	sloglogrus "github.com/samber/slog-logrus/v2"
	slogmulti "github.com/samber/slog-multi"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	logsdk "go.opentelemetry.io/otel/sdk/log"
	metricsdk "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"golang.org/x/sync/errgroup"
)

type Client struct {
	log *slog.Logger

	tracerProvider *tracesdk.TracerProvider
	metricProvider *metricsdk.MeterProvider
	loggerProvider *logsdk.LoggerProvider
}

// SetupLogging installs the slog default handler. Always called, even when
// no otel endpoint is configured.
func SetupLogging() {
	slog.SetDefault(slog.New(slogmulti.Fanout(
		sloglogrus.Option{Level: slog.LevelDebug, Logger: logrus.StandardLogger()}.NewLogrusHandler(),
	)))
}

// Setup initializes the otel providers against an OTLP/http endpoint and
// re-installs the slog default as a fan-out of the otel bridge and the
// logrus handler. Returns a nil client when endpoint is empty.
func Setup(ctx context.Context, appName, endpoint string) (*Client, error) {
	if endpoint == "" {
		SetupLogging()
		return nil, nil
	}

	client := &Client{
		log: slog.With("component", "telemetry"),
	}
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(cause error) {
		client.log.ErrorContext(ctx, "otel error", "error", cause.Error())
	}))

	hostName, _ := os.Hostname()
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(appName),
			semconv.HostName(hostName),
			semconv.ServiceInstanceID(uuid.NewString()),
		),
	)
	if err != nil {
		return nil, err
	}

	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{Enabled: false}),
	)
	if err != nil {
		return nil, err
	}
	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}
	client.metricProvider = metricsdk.NewMeterProvider(
		metricsdk.WithResource(r),
		metricsdk.WithReader(metricsdk.NewPeriodicReader(metricExporter)),
		metricsdk.WithReader(promExporter),
	)
	otel.SetMeterProvider(client.metricProvider)

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	)
	if err != nil {
		return nil, err
	}
	client.tracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithResource(r),
		tracesdk.WithBatcher(traceExporter, tracesdk.WithExportTimeout(time.Second)),
	)
	otel.SetTracerProvider(client.tracerProvider)

	logExporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(endpoint),
		otlploghttp.WithRetry(otlploghttp.RetryConfig{Enabled: false}),
	)
	if err != nil {
		return nil, err
	}
	client.loggerProvider = logsdk.NewLoggerProvider(
		logsdk.WithResource(r),
		logsdk.WithProcessor(logsdk.NewBatchProcessor(logExporter, logsdk.WithExportInterval(time.Second))),
	)

	slog.SetDefault(slog.New(slogmulti.Fanout(
		otelslog.NewHandler("", otelslog.WithLoggerProvider(client.loggerProvider)),
		sloglogrus.Option{Level: slog.LevelDebug, Logger: logrus.StandardLogger()}.NewLogrusHandler(),
	)))

	client.log = slog.With("component", "telemetry")
	client.log.InfoContext(ctx, "telemetry initialized", "endpoint", endpoint)

	return client, nil
}

func (client *Client) Flush(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if client.metricProvider != nil {
		g.Go(func() error { return client.metricProvider.ForceFlush(ctx) })
	}
	if client.loggerProvider != nil {
		g.Go(func() error { return client.loggerProvider.ForceFlush(ctx) })
	}
	if client.tracerProvider != nil {
		g.Go(func() error { return client.tracerProvider.ForceFlush(ctx) })
	}
	return g.Wait()
}

func (client *Client) Shutdown(ctx context.Context) {
	if client.metricProvider != nil {
		if err := client.metricProvider.Shutdown(ctx); err != nil {
			client.log.ErrorContext(ctx, "error shutting down metric provider", "error", err.Error())
		}
	}
	if client.tracerProvider != nil {
		if err := client.tracerProvider.Shutdown(ctx); err != nil {
			client.log.ErrorContext(ctx, "error shutting down tracer provider", "error", err.Error())
		}
	}
	if client.loggerProvider != nil {
		if err := client.loggerProvider.Shutdown(ctx); err != nil {
			client.log.ErrorContext(ctx, "error shutting down logger provider", "error", err.Error())
		}
	}
}
