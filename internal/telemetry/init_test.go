package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/rshade/archcost/internal/config"
)

func TestInit_None(t *testing.T) {
	shutdown, err := Init(t.Context(), config.TelemetryConfig{Exporter: config.ExporterNone}, "test", nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Stdout(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Init(t.Context(), config.TelemetryConfig{Exporter: config.ExporterStdout, ServiceName: "archcost"}, "test", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(t.Context(), "estimate")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"estimate"`)
	assert.Contains(t, buf.String(), "archcost")
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(t.Context(), config.TelemetryConfig{Exporter: "zipkin"}, "test", nil)
	assert.Error(t, err)
}
