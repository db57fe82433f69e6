package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(logrus.InfoLevel, &buf)

	logger.WithField("index", "products").Info("query sent")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "query sent", entry["msg"])
	assert.Equal(t, "products", entry["index"])
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(logrus.WarnLevel, &buf)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"INFO":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		" error ": logrus.ErrorLevel,
		"verbose": logrus.InfoLevel,
		"":        logrus.InfoLevel,
	}
	for input, want := range tests {
		assert.Equal(t, want, ParseLevel(input), "input %q", input)
	}
}

func TestFromContext(t *testing.T) {
	t.Run("falls back to standard logger", func(t *testing.T) {
		entry := FromContext(context.Background())
		assert.Same(t, logrus.StandardLogger(), entry.Logger)
		assert.Empty(t, entry.Data)
	})

	t.Run("carries request id", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(logrus.InfoLevel, &buf)

		ctx := WithLogger(context.Background(), logger)
		ctx = WithRequestID(ctx, "req-42")

		entry := FromContext(ctx)
		assert.Same(t, logger, entry.Logger)
		assert.Equal(t, "req-42", entry.Data["request_id"])
		assert.Equal(t, "req-42", GetRequestID(ctx))
	})

	t.Run("adds trace context for recording spans", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		defer tp.Shutdown(context.Background())

		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		entry := FromContext(ctx)
		assert.Equal(t, span.SpanContext().TraceID().String(), entry.Data["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), entry.Data["span_id"])
	})
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Equal(t, "", GetRequestID(context.Background()))
}
