package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenReadAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello events"), 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	require.Equal(t, []byte("hello events"), m.Data)

	p := make([]byte, 6)
	n, err := m.ReadAt(p, 6)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, "events", string(p))
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	require.Nil(t, m.Data)
	require.NoError(t, m.Close())
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
