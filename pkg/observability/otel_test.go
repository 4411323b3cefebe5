package observability

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracingDisabled(t *testing.T) {
	logger, hook := test.NewNullLogger()

	tp, err := InitTracing(context.Background(), OTelConfig{Enabled: false}, logger)
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.Equal(t, "OpenTelemetry tracing is disabled", hook.LastEntry().Message)

	assert.NoError(t, ShutdownTracing(context.Background(), nil))
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

// retainingExporter keeps its spans after shutdown; the in-memory exporter
// clears them
type retainingExporter struct {
	*tracetest.InMemoryExporter
}

func (retainingExporter) Shutdown(context.Context) error { return nil }

func TestShutdownTracingFlushes(t *testing.T) {
	exporter := retainingExporter{tracetest.NewInMemoryExporter()}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))

	_, span := tp.Tracer("test").Start(context.Background(), "purchase")
	span.End()

	require.NoError(t, ShutdownTracing(context.Background(), tp))
	require.Len(t, exporter.GetSpans(), 1)
	assert.Equal(t, "purchase", exporter.GetSpans()[0].Name)
}
