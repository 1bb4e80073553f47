// Package observability configures the process-wide slog logger and tracer
// provider.
//
// Plain formats write through the standard slog handlers and leave tracing
// disabled. The otel and otlp formats install an OpenTelemetry tracer
// provider and route slog records through the log SDK, so records written
// inside a span carry its trace context and are exported alongside it.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Supported log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatOTel = "otel"
	FormatOTLP = "otlp"
)

const (
	// instrumentationName identifies log records emitted through the bridge.
	instrumentationName = "github.com/florianilch/ghdevice"
	serviceName         = "ghdevice"
)

// ShutdownFunc flushes and releases logging resources.
type ShutdownFunc func(context.Context) error

// Instrument installs the default slog logger and, for the otel and otlp
// formats, the global tracer provider. The returned function flushes buffered
// records and spans.
func Instrument(ctx context.Context, level slog.Level, format string) (ShutdownFunc, error) {
	tp, err := newTracerProvider(ctx, os.Stderr, format)
	if err != nil {
		return nil, err
	}

	logger, shutdownLogs, err := newLogger(ctx, os.Stderr, level, format)
	if err != nil {
		if tp != nil {
			_ = tp.Shutdown(ctx)
		}
		return nil, err
	}

	if tp != nil {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	slog.SetDefault(logger)

	return func(ctx context.Context) error {
		err := shutdownLogs(ctx)
		if tp != nil {
			err = errors.Join(err, tp.ForceFlush(ctx), tp.Shutdown(ctx))
		}
		return err
	}, nil
}

func newLogger(ctx context.Context, w io.Writer, level slog.Level, format string) (*slog.Logger, ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, handlerOpts)), noop, nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), noop, nil
	case FormatOTel:
		exporter, err := stdoutlog.New(stdoutlog.WithWriter(w))
		if err != nil {
			return nil, nil, fmt.Errorf("creating stdout log exporter: %w", err)
		}
		// Synchronous export keeps console output ordered with process exit
		return bridgeLogger(sdklog.NewSimpleProcessor(exporter), level)
	case FormatOTLP:
		exporter, err := newOTLPLogExporter(ctx)
		if err != nil {
			return nil, nil, err
		}
		return bridgeLogger(sdklog.NewBatchProcessor(exporter), level)
	default:
		return nil, nil, fmt.Errorf("unsupported log format %q", format)
	}
}

// newTracerProvider returns nil for the plain formats, which keep the global
// no-op provider.
func newTracerProvider(ctx context.Context, w io.Writer, format string) (*sdktrace.TracerProvider, error) {
	var opt sdktrace.TracerProviderOption

	switch strings.ToLower(format) {
	case FormatOTel:
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		opt = sdktrace.WithSyncer(exporter)
	case FormatOTLP:
		exporter, err := newOTLPTraceExporter(ctx)
		if err != nil {
			return nil, err
		}
		opt = sdktrace.WithBatcher(exporter)
	default:
		return nil, nil
	}

	return sdktrace.NewTracerProvider(opt, sdktrace.WithResource(newResource())), nil
}

func newResource() *resource.Resource {
	return resource.NewSchemaless(attribute.String("service.name", serviceName))
}

// otlpProtocol reads the signal specific protocol variable, then the shared one.
// The remaining OTEL_EXPORTER_OTLP_* variables are read by the exporters.
func otlpProtocol(signal string) (string, error) {
	protocol := os.Getenv("OTEL_EXPORTER_OTLP_" + signal + "_PROTOCOL")
	if protocol == "" {
		protocol = os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")
	}

	switch protocol {
	case "", "http/protobuf":
		return "http", nil
	case "grpc":
		return "grpc", nil
	default:
		return "", fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

func newOTLPLogExporter(ctx context.Context) (sdklog.Exporter, error) {
	protocol, err := otlpProtocol("LOGS")
	if err != nil {
		return nil, err
	}

	if protocol == "grpc" {
		exporter, err := otlploggrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating otlp grpc log exporter: %w", err)
		}
		return exporter, nil
	}
	exporter, err := otlploghttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating otlp http log exporter: %w", err)
	}
	return exporter, nil
}

func newOTLPTraceExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	protocol, err := otlpProtocol("TRACES")
	if err != nil {
		return nil, err
	}

	if protocol == "grpc" {
		exporter, err := otlptracegrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating otlp grpc trace exporter: %w", err)
		}
		return exporter, nil
	}
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating otlp http trace exporter: %w", err)
	}
	return exporter, nil
}

func bridgeLogger(processor sdklog.Processor, level slog.Level) (*slog.Logger, ShutdownFunc, error) {
	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(newResource()),
		sdklog.WithProcessor(minsev.NewLogProcessor(processor, severity(level))),
	)
	global.SetLoggerProvider(provider)

	logger := otelslog.NewLogger(instrumentationName, otelslog.WithLoggerProvider(provider))
	shutdown := func(ctx context.Context) error {
		return errors.Join(provider.ForceFlush(ctx), provider.Shutdown(ctx))
	}
	return logger, shutdown, nil
}

// severity maps a slog level onto the minimum OpenTelemetry severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level < slog.LevelInfo:
		return minsev.SeverityDebug
	case level < slog.LevelWarn:
		return minsev.SeverityInfo
	case level < slog.LevelError:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
