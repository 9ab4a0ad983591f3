package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"chat-client/internal/config"
)

func TestSetupTracingWithoutEndpoint(t *testing.T) {
	tp, shutdown, err := SetupTracing(context.Background(), config.TelemetryConfig{ServiceName: "chat-client"}, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
	assert.NoError(t, shutdown(context.Background()))
}
