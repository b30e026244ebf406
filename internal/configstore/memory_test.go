package configstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryResolveModelNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.ResolveModel(context.Background(), 42, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryResolveModelFound(t *testing.T) {
	m := NewMemory()
	m.PutModel(&TestModel{RevisionID: "rev-1", MN: 42, Option: "hv"})

	got, err := m.ResolveModel(context.Background(), 42, "hv")
	require.NoError(t, err)
	assert.Equal(t, "rev-1", got.RevisionID)
}

func TestMemoryIterationRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	it, err := m.CreateIteration(ctx, DUT{SN: 1, MN: 42}, "rev-1")
	require.NoError(t, err)
	assert.Equal(t, IterationIdle, it.State)

	idx := it.AddStep(StepConnectionCheck)
	it.CompleteStep(idx, true, "", map[string]any{"classification": "connected"})
	it.State = IterationCompleted
	it.Pass = true

	require.NoError(t, m.CommitIteration(ctx, it))

	recent, err := m.RecentIterations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Pass)
	assert.True(t, recent[0].Steps[0].Success)
}

func TestMemoryRecentIterationsNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.CreateIteration(ctx, DUT{SN: 1, MN: 1}, "rev-1")
	require.NoError(t, err)
	second, err := m.CreateIteration(ctx, DUT{SN: 2, MN: 1}, "rev-1")
	require.NoError(t, err)

	recent, err := m.RecentIterations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, first.ID, recent[1].ID)
}
