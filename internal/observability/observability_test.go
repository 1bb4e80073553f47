package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
)

func TestNewLoggerFormats(t *testing.T) {
	ctx := context.Background()

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger, shutdown, err := newLogger(ctx, &buf, slog.LevelInfo, FormatText)
		require.NoError(t, err)
		defer func() { assert.NoError(t, shutdown(ctx)) }()

		logger.Debug("hidden")
		logger.Info("visible", "login", "octocat")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "login=octocat")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger, shutdown, err := newLogger(ctx, &buf, slog.LevelDebug, FormatJSON)
		require.NoError(t, err)
		defer func() { assert.NoError(t, shutdown(ctx)) }()

		logger.Debug("device code issued", "interval", 5)

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "device code issued", record["msg"])
		assert.EqualValues(t, 5, record["interval"])
	})

	t.Run("otel", func(t *testing.T) {
		var buf bytes.Buffer
		logger, shutdown, err := newLogger(ctx, &buf, slog.LevelWarn, FormatOTel)
		require.NoError(t, err)

		logger.Info("filtered")
		logger.Warn("kept")
		require.NoError(t, shutdown(ctx))

		assert.NotContains(t, buf.String(), "filtered")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("unsupported", func(t *testing.T) {
		_, _, err := newLogger(ctx, &bytes.Buffer{}, slog.LevelInfo, "xml")
		assert.Error(t, err)
	})
}

func TestOTLPProtocol(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "carrier-pigeon")
	_, err := newOTLPLogExporter(context.Background())
	assert.Error(t, err)
	_, err = newOTLPTraceExporter(context.Background())
	assert.Error(t, err)

	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://127.0.0.1:4317")
	logExporter, err := newOTLPLogExporter(context.Background())
	require.NoError(t, err)
	assert.NoError(t, logExporter.Shutdown(context.Background()))

	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "http/protobuf")
	traceExporter, err := newOTLPTraceExporter(context.Background())
	require.NoError(t, err)
	assert.NoError(t, traceExporter.Shutdown(context.Background()))
}

func TestOTLPProtocolPrecedence(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_PROTOCOL", "http/protobuf")

	protocol, err := otlpProtocol("LOGS")
	require.NoError(t, err)
	assert.Equal(t, "http", protocol)

	protocol, err = otlpProtocol("TRACES")
	require.NoError(t, err)
	assert.Equal(t, "grpc", protocol)
}

func TestTracerProviderPlainFormats(t *testing.T) {
	for _, format := range []string{FormatText, FormatJSON, ""} {
		tp, err := newTracerProvider(context.Background(), &bytes.Buffer{}, format)
		require.NoError(t, err)
		assert.Nil(t, tp, format)
	}
}

func TestOTelFormatRecordsSpansWithLogCorrelation(t *testing.T) {
	ctx := context.Background()

	var spans, logs bytes.Buffer
	tp, err := newTracerProvider(ctx, &spans, FormatOTel)
	require.NoError(t, err)
	require.NotNil(t, tp)

	logger, shutdownLogs, err := newLogger(ctx, &logs, slog.LevelInfo, FormatOTel)
	require.NoError(t, err)

	spanCtx, span := tp.Tracer("test").Start(ctx, "deviceflow.Start")
	logger.InfoContext(spanCtx, "device code issued")
	traceID := span.SpanContext().TraceID().String()
	span.End()

	require.NoError(t, shutdownLogs(ctx))
	require.NoError(t, tp.Shutdown(ctx))

	assert.Contains(t, spans.String(), "deviceflow.Start")
	assert.Contains(t, spans.String(), traceID)
	assert.Contains(t, logs.String(), "device code issued")
	assert.Contains(t, logs.String(), traceID)
}

func TestInstrumentInstallsTracerProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	prevLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prevLogger) })

	ctx := context.Background()
	shutdown, err := Instrument(ctx, slog.LevelError, FormatOTel)
	require.NoError(t, err)
	defer func() { assert.NoError(t, shutdown(ctx)) }()

	_, span := otel.Tracer("test").Start(ctx, "auth.Status")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.IsRecording())
}

func TestInstrumentRejectsUnknownFormat(t *testing.T) {
	_, err := Instrument(context.Background(), slog.LevelInfo, "xml")
	assert.Error(t, err)
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, minsev.SeverityDebug, severity(slog.LevelDebug))
	assert.Equal(t, minsev.SeverityInfo, severity(slog.LevelInfo))
	assert.Equal(t, minsev.SeverityWarn, severity(slog.LevelWarn))
	assert.Equal(t, minsev.SeverityError, severity(slog.LevelError))
	assert.Equal(t, minsev.SeverityError, severity(slog.LevelError+4))
}
