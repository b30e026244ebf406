package firmware

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchLocalReturnsFileContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xDE, 0xAD, 0xBE, 0xEF}, 0o600))

	st := &Store{}
	data, err := st.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, data)
}

func TestFetchLocalMissingFileErrors(t *testing.T) {
	st := &Store{}
	_, err := st.Fetch(context.Background(), "/nonexistent/path/image.bin")
	assert.Error(t, err)
}

func TestFetchS3WithoutClientErrors(t *testing.T) {
	st := &Store{}
	_, err := st.Fetch(context.Background(), "s3://bucket/key")
	assert.Error(t, err)
}

func TestFetchRejectsMalformedS3Reference(t *testing.T) {
	st := &Store{}
	_, err := st.Fetch(context.Background(), "s3://bucket-without-key")
	assert.Error(t, err)
}
