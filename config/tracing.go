package config

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// InitTracing installs a global tracer provider exporting to stdout when
// OTEL_ENABLED is set. The returned func flushes and stops it.
func InitTracing(ctx context.Context, settings *Settings) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if settings == nil || !settings.OtelEnabled {
		return noop
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(LogWriter))
	if err != nil {
		Logger.Warn("otel exporter init failed (continuing)", zap.Error(err))
		return noop
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	Logger.Info("otel tracing initialized", zap.String("service", settings.ServiceName))
	return tp.Shutdown
}
