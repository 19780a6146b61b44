package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device_id")

	id, err := LoadOrCreateID(path)
	require.NoError(t, err)
	assert.Len(t, id, 32, "ids are 16 random bytes in hex")

	// A second call must return the same identifier.
	again, err := LoadOrCreateID(path)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestLoadOrCreateIDTrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device_id")
	require.NoError(t, os.WriteFile(path, []byte("  abc123  \n"), 0o600))

	id, err := LoadOrCreateID(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
}

func TestLoadOrCreateIDReplacesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device_id")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))

	id, err := LoadOrCreateID(path)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestIDsAreUnique(t *testing.T) {
	dir := t.TempDir()

	a, err := LoadOrCreateID(filepath.Join(dir, "a"))
	require.NoError(t, err)
	b, err := LoadOrCreateID(filepath.Join(dir, "b"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
