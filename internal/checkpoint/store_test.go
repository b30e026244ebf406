package checkpoint

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := NewStore(time.Hour)
	s.Save("iter-1", "rev-1", "connection-check", json.RawMessage(`{"v":5}`))

	snap := s.Load("iter-1")
	require.NotNil(t, snap)
	assert.Equal(t, "connection-check", snap.Step)
	assert.Equal(t, "rev-1", snap.RevisionID)
}

func TestLoadExpiredSnapshotReturnsNil(t *testing.T) {
	s := NewStore(time.Millisecond)
	s.Save("iter-2", "rev-1", "firmware", nil)
	time.Sleep(5 * time.Millisecond)

	assert.Nil(t, s.Load("iter-2"))
}

func TestDeleteRemovesSnapshot(t *testing.T) {
	s := NewStore(time.Hour)
	s.Save("iter-3", "rev-1", "eeprom-config", nil)
	s.Delete("iter-3")

	assert.Nil(t, s.Load("iter-3"))
}

func TestListByRevisionFiltersByRevision(t *testing.T) {
	s := NewStore(time.Hour)
	s.Save("iter-4", "rev-a", "firmware", nil)
	s.Save("iter-5", "rev-b", "firmware", nil)

	out := s.ListByRevision("rev-a")
	require.Len(t, out, 1)
	assert.Equal(t, "iter-4", out[0].IterationID)
}
