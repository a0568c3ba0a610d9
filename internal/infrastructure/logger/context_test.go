package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func fieldMap(entry observer.LoggedEntry) map[string]any {
	return entry.ContextMap()
}

func TestFromContext(t *testing.T) {
	t.Run("returns the stored logger", func(t *testing.T) {
		l := zap.NewExample()
		ctx := WithContext(context.Background(), l)
		assert.Same(t, l, FromContext(ctx))
	})

	t.Run("falls back to nop", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx, l := WithRequestID(context.Background(), zap.New(core), "req-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	l.Info("hello")
	require.Len(t, recorded.All(), 1)
	assert.Equal(t, "req-1", fieldMap(recorded.All()[0])["request_id"])
}

func TestWithIdempotencyKey(t *testing.T) {
	ctx := WithIdempotencyKey(context.Background(), "pay-42")
	assert.Equal(t, "pay-42", GetIdempotencyKey(ctx))
	assert.Empty(t, GetIdempotencyKey(context.Background()))
}

func TestWithTraceContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithTraceContext(context.Background(), base).Info("no span")
	WithTraceContext(spanContext(t), base).Info("with span")

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.NotContains(t, fieldMap(logs[0]), "trace_id")
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fieldMap(logs[1])["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fieldMap(logs[1])["span_id"])
}

func TestContextLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(spanContext(t), zap.New(core))
	ctx = context.WithValue(ctx, RequestIDKey, "req-9")
	ctx = WithIdempotencyKey(ctx, "key-1")

	cl := L(ctx).With(zap.String("policy", "target_first"))
	cl.Debug("d")
	cl.Info("i")
	cl.Warn("w")
	cl.Error("e")

	logs := recorded.All()
	require.Len(t, logs, 4)
	for _, entry := range logs {
		fields := fieldMap(entry)
		assert.Equal(t, "req-9", fields["request_id"])
		assert.Equal(t, "key-1", fields["idempotency_key"])
		assert.Equal(t, "target_first", fields["policy"])
		assert.Contains(t, fields, "trace_id")
	}
	assert.Equal(t, zapcore.ErrorLevel, logs[3].Level)
}

func TestContextLogger_NilLogger(t *testing.T) {
	cl := WithLogger(context.Background(), nil)
	assert.NotPanics(t, func() {
		cl.Info("ignored")
		cl.With(zap.Int("n", 1)).Warn("ignored")
	})
	assert.NotNil(t, cl.Zap())
}
