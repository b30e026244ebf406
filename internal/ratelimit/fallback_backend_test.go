package ratelimit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBackend struct{}

func (failingBackend) CheckRateLimit(context.Context, string, int, float64, int) (bool, int, error) {
	return false, 0, errors.New("primary unavailable")
}

func TestLocalTokenBucketBackendAllowsWithinBurst(t *testing.T) {
	b := NewLocalTokenBucketBackend()
	allowed, remaining, err := b.CheckRateLimit(context.Background(), "station-1", 5, 1.0, 3)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2, remaining)
}

func TestLocalTokenBucketBackendDeniesOverBurst(t *testing.T) {
	b := NewLocalTokenBucketBackend()
	_, _, err := b.CheckRateLimit(context.Background(), "station-2", 2, 1.0, 2)
	require.NoError(t, err)

	allowed, _, err := b.CheckRateLimit(context.Background(), "station-2", 2, 1.0, 1)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestFallbackBackendDegradesWhenPrimaryFails(t *testing.T) {
	fb := NewFallbackBackend(failingBackend{})
	allowed, _, err := fb.CheckRateLimit(context.Background(), "station-3", 5, 1.0, 1)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.True(t, fb.Degraded())
}
