package blobstore

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimitedStorePassesDataThrough(t *testing.T) {
	ctx := context.Background()
	store := NewRateLimitedStore(NewMemoryStore(), 1<<20, 1<<20)

	w, err := store.Create(ctx, "events.evio")
	require.NoError(t, err)
	_, err = w.Write([]byte("throttled payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := store.Open(ctx, "events.evio")
	require.NoError(t, err)
	defer b.Close()

	p := make([]byte, b.Size())
	_, err = b.ReadAt(p, 0)
	require.NoError(t, err)
	require.Equal(t, "throttled payload", string(p))
}

func TestRateLimitedStoreThrottlesWrites(t *testing.T) {
	ctx := context.Background()
	// 1 KiB/s with a 512 byte burst: writing 1 KiB must take time.
	store := NewRateLimitedStore(NewMemoryStore(), 1024, 512)

	start := time.Now()
	require.NoError(t, store.Put(ctx, "events.evio", bytes.Repeat([]byte{0xAB}, 1024)))
	require.Greater(t, time.Since(start), 250*time.Millisecond)
}

func TestRateLimitedStoreHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Far below the requested write size, so the wait cannot complete.
	store := NewRateLimitedStore(NewMemoryStore(), 8, 8)

	err := store.Put(ctx, "events.evio", bytes.Repeat([]byte{0x01}, 1024))
	require.Error(t, err)
}
