package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithComponent(t *testing.T) {
	logger := WithComponent("supervisor")
	// Smoke test: the derived logger must be usable without panicking.
	logger.Debug().Msg("component logger works")
}

func TestContextRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	ctx = ContextWithPlayer(ctx, "kitchen")

	require.Equal(t, "req-123", RequestIDFromContext(ctx))
	require.Equal(t, "kitchen", PlayerFromContext(ctx))
}

func TestContextMissingValues(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Empty(t, PlayerFromContext(context.Background()))
	assert.Empty(t, RequestIDFromContext(nil)) //nolint:staticcheck // nil context tolerance is part of the contract
}

func TestWithContextEnrichment(t *testing.T) {
	ctx := ContextWithPlayer(context.Background(), "patio")
	logger := WithContext(ctx, Base())
	logger.Debug().Msg("enriched logger works")
}
