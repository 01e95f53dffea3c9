package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	w, err := store.Create(ctx, "events.evio")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := store.Open(ctx, "events.evio")
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, int64(5), b.Size())

	p := make([]byte, 5)
	n, err := b.ReadAt(p, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(p[:n]))
}

func TestMemoryStoreOpenMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Open(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStoreOpenCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "events.evio", []byte("aaaa")))

	b, err := store.Open(ctx, "events.evio")
	require.NoError(t, err)
	defer b.Close()

	// Overwriting after Open must not change what the blob reads.
	require.NoError(t, store.Put(ctx, "events.evio", []byte("bbbb")))

	p := make([]byte, 4)
	_, err = b.ReadAt(p, 0)
	require.NoError(t, err)
	require.Equal(t, "aaaa", string(p))
}

func TestMemoryStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "run-1/a", []byte("a")))
	require.NoError(t, store.Put(ctx, "run-1/b", []byte("b")))
	require.NoError(t, store.Put(ctx, "run-2/c", []byte("c")))

	names, err := store.List(ctx, "run-1/")
	require.NoError(t, err)
	require.Equal(t, []string{"run-1/a", "run-1/b"}, names)

	require.NoError(t, store.Delete(ctx, "run-1/b"))

	names, err = store.List(ctx, "run-1/")
	require.NoError(t, err)
	require.Equal(t, []string{"run-1/a"}, names)
}
