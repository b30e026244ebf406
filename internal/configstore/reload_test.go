package configstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleMirror = `
models:
  - mn: 10021
    option: ""
    connection_check: standard
    unit_identity: 1
    initial_eeprom:
      - target: main
        index: 1
        value: 7
        verify: true
`

func TestYamlReloaderAppliesModelsToStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirror.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleMirror), 0o600))

	store := NewMemory()
	reloader := NewYamlReloader(store)

	require.NoError(t, reloader.Reload(context.Background(), path))

	model, err := store.ResolveModel(context.Background(), 10021, "")
	require.NoError(t, err)
	require.Equal(t, "standard", model.ConnectionCheck)
	require.Equal(t, UnitIdentityConfirmOnly, model.UnitIdentity)
	require.Len(t, model.InitialEEPROM, 1)
	require.Equal(t, "main", model.InitialEEPROM[0].Target)
}

func TestYamlReloaderRejectsUnparsableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirror.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o600))

	reloader := NewYamlReloader(NewMemory())
	err := reloader.Reload(context.Background(), path)
	require.Error(t, err)
}

func TestYamlReloaderErrorsOnMissingFile(t *testing.T) {
	reloader := NewYamlReloader(NewMemory())
	err := reloader.Reload(context.Background(), "/nonexistent/mirror.yaml")
	require.Error(t, err)
}
