package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "valerie"

// ParseLevel maps LOG_LEVEL values to slog levels; unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger installs a JSON slog logger on stdout as the default logger.
// With logFile set, records are also written to a rotated file.
func InitLogger(stdout io.Writer, level slog.Level, logFile string) (*slog.Logger, func() error, error) {
	w := stdout
	closer := func() error { return nil }
	if logFile = strings.TrimSpace(logFile); logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("telemetry: create log directory: %w", err)
		}
		rotated := newRotatingFile(logFile)
		w = io.MultiWriter(stdout, rotated)
		closer = rotated.Close
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closer, nil
}

// InitTelemetry sets up tracing and metrics. With exportFile empty, no-op
// providers are returned so callers never branch on whether telemetry is on.
// Otherwise spans go to <exportFile> and metrics to <exportFile>.metrics,
// both rotated.
func InitTelemetry(ctx context.Context, exportFile string) (trace.Tracer, metric.Meter, func(), error) {
	exportFile = strings.TrimSpace(exportFile)
	if exportFile == "" {
		return tracenoop.NewTracerProvider().Tracer(serviceName),
			metricnoop.NewMeterProvider().Meter(serviceName),
			func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(exportFile), 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("telemetry: create export directory: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	traceFile := newRotatingFile(exportFile)
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceFile))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricsFile := newRotatingFile(exportFile + ".metrics")
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricsFile))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			traceFile.Close(),
			metricsFile.Close(),
		)
		if err != nil {
			slog.Error("telemetry shutdown", "err", err)
		}
	}
	return tp.Tracer(serviceName), mp.Meter(serviceName), cleanup, nil
}

func newRotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}
