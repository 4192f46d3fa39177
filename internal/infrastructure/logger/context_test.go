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

func fieldMap(entry observer.LoggedEntry) map[string]string {
	out := map[string]string{}
	for _, f := range entry.Context {
		out[f.Key] = f.String
	}
	return out
}

func TestFromContext(t *testing.T) {
	t.Run("returns attached logger", func(t *testing.T) {
		l := zap.NewExample()
		assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
	})

	t.Run("falls back to nop", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})

	t.Run("ignores wrong type", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), LoggerKey, "not a logger")
		assert.NotNil(t, FromContext(ctx))
	})
}

func TestWithRunID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, l := WithRunID(context.Background(), zap.New(core), "run-42")
	l.Info("started")
	FromContext(ctx).Info("from context")

	assert.Equal(t, "run-42", GetRunID(ctx))
	assert.Empty(t, GetRequestID(ctx))
	require.Len(t, recorded.All(), 2)
	for _, e := range recorded.All() {
		assert.Equal(t, "run-42", fieldMap(e)["run_id"])
	}
}

func TestWithRequestID(t *testing.T) {
	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestL_AddsTraceFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core))

	L(ctx).Info("no span")

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	L(trace.ContextWithSpanContext(ctx, spanCtx)).Info("with span")

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.NotContains(t, fieldMap(logs[0]), "trace_id")
	assert.Equal(t, spanCtx.TraceID().String(), fieldMap(logs[1])["trace_id"])
	assert.Equal(t, spanCtx.SpanID().String(), fieldMap(logs[1])["span_id"])
}
