package telemetry

import (
	"context"
	"testing"

	"github.com/cardshifter/server/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{ServiceName: "test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupWithEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{
		Endpoint:    "http://127.0.0.1:4318",
		ServiceName: "test",
		Insecure:    true,
	})
	require.NoError(t, err)
	// Nothing was recorded, so shutdown has nothing to flush.
	assert.NoError(t, shutdown(context.Background()))
}
