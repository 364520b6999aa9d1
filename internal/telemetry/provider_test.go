package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func restoreGlobalProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestInitProviderDisabled(t *testing.T) {
	restoreGlobalProvider(t)

	ctx := context.Background()
	shutdown, err := InitProvider(ctx, DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, shutdown(ctx))

	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.False(t, isSDK, "disabled tracing installs a noop provider")
}

func TestInitProviderEnabled(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
	}{
		{"no exporter", ""},
		{"host and port", "collector.example.com:4318"},
		{"full URL", "https://collector.example.com/v1/traces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreGlobalProvider(t)

			cfg := DefaultConfig()
			cfg.Enabled = true
			cfg.Endpoint = tt.endpoint
			cfg.SampleRate = 0.5

			ctx := context.Background()
			shutdown, err := InitProvider(ctx, cfg)
			require.NoError(t, err)

			_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
			assert.True(t, isSDK)

			// nothing was recorded, so shutdown never contacts the collector
			assert.NoError(t, shutdown(ctx))
		})
	}
}
