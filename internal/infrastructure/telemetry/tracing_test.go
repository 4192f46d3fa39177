package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/erp/ledgersync/internal/infrastructure/config"
	"github.com/erp/ledgersync/internal/infrastructure/telemetry"
)

// withRecorder installs an in-memory span recorder as the global provider
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	tp, err := telemetry.NewTracerProvider(ctx, config.TelemetryConfig{
		Enabled:     false,
		ServiceName: "ledgersync-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestStartSpan(t *testing.T) {
	recorder := withRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "reconcile", "sync_contacts",
		telemetry.SpanAttrKind, "contacts",
		telemetry.SpanAttrPage, 2,
	)
	telemetry.SetAttributes(span, telemetry.SpanAttrCreated, 3, 42, "ignored")
	telemetry.AddEvent(span, "record_skipped", telemetry.SpanAttrExternalID, "77")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "reconcile.sync_contacts", ended[0].Name())

	attrs := map[string]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "contacts", attrs[telemetry.SpanAttrKind])
	assert.Equal(t, "2", attrs[telemetry.SpanAttrPage])
	assert.Equal(t, "3", attrs[telemetry.SpanAttrCreated])
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "record_skipped", ended[0].Events()[0].Name)
}

func TestRecordError(t *testing.T) {
	recorder := withRecorder(t)

	_, span := telemetry.StartClientSpan(context.Background(), "parasut.fetch_page")
	telemetry.RecordError(span, errors.New("boom"))
	telemetry.RecordError(span, nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "boom", ended[0].Status().Description)
}

func TestHelpersTolerateNilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.AddEvent(nil, "e")
	})
}
