package triggers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReloader struct {
	mu    chan struct{}
	paths []string
}

func newFakeReloader() *fakeReloader {
	return &fakeReloader{mu: make(chan struct{}, 8)}
}

func (f *fakeReloader) Reload(ctx context.Context, path string) error {
	f.paths = append(f.paths, path)
	f.mu <- struct{}{}
	return nil
}

func TestManagerRegisterTriggerStartsFilesystemConnector(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("revision: 1\n"), 0o644))

	reloader := newFakeReloader()
	mgr := NewManager(reloader)
	t.Cleanup(func() { mgr.Shutdown() })

	trigger := &Trigger{
		ID:      "yaml-mirror",
		Name:    "config mirror",
		Type:    TriggerTypeFilesystem,
		Enabled: true,
		Config: map[string]interface{}{
			"path":          yamlPath,
			"poll_interval": 1,
		},
	}
	require.NoError(t, mgr.RegisterTrigger(trigger))

	status, err := mgr.GetTriggerStatus("yaml-mirror")
	require.NoError(t, err)
	assert.Equal(t, TriggerTypeFilesystem, status.Type)

	// The connector's first poll tick fires on every file it finds, since
	// it has no prior mtime on record — that alone should drive a reload.
	select {
	case <-reloader.mu:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a reload event from the initial poll")
	}
	assert.Contains(t, reloader.paths, yamlPath)
}

func TestManagerRegisterTriggerRejectsDuplicateID(t *testing.T) {
	mgr := NewManager(newFakeReloader())
	t.Cleanup(func() { mgr.Shutdown() })

	trigger := &Trigger{
		ID:   "dup",
		Type: TriggerTypeFilesystem,
		Config: map[string]interface{}{
			"path": filepath.Join(t.TempDir(), "*.yaml"),
		},
	}
	require.NoError(t, mgr.RegisterTrigger(trigger))
	err := mgr.RegisterTrigger(trigger)
	assert.Error(t, err)
}

func TestManagerRegisterTriggerRejectsUnsupportedType(t *testing.T) {
	mgr := NewManager(newFakeReloader())
	t.Cleanup(func() { mgr.Shutdown() })

	err := mgr.RegisterTrigger(&Trigger{ID: "bad", Type: "kafka"})
	assert.Error(t, err)
}

func TestManagerUnregisterTriggerStopsConnector(t *testing.T) {
	mgr := NewManager(newFakeReloader())
	t.Cleanup(func() { mgr.Shutdown() })

	trigger := &Trigger{
		ID:   "to-remove",
		Type: TriggerTypeFilesystem,
		Config: map[string]interface{}{
			"path": filepath.Join(t.TempDir(), "*.yaml"),
		},
	}
	require.NoError(t, mgr.RegisterTrigger(trigger))
	require.NoError(t, mgr.UnregisterTrigger("to-remove"))

	_, err := mgr.GetTriggerStatus("to-remove")
	assert.Error(t, err)
}
