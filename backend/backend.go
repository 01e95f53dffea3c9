// Package backend defines the boundary between the in-memory event store
// and concrete storage formats. A backend consumes and produces collection
// buffers only; everything else about the medium (layout, chunking,
// compression) is the backend's own concern.
package backend

import (
	"context"

	"github.com/hupe1980/eventio"
)

// Writer persists one event store per call. Implementations drive
// PrepareForWrite and extract buffers; they must persist the schema
// version of every collection alongside its data.
type Writer interface {
	// WriteEvent appends one event to the output.
	WriteEvent(ctx context.Context, store *eventio.Store) (err error)
	// Close finalizes the output. No writes may follow.
	Close(ctx context.Context) error
}

// Reader reconstructs event stores from persisted buffers. Implementations
// must evolve buffers to the current schema version before constructing
// collections, then drive the two-phase read lifecycle.
type Reader interface {
	// Events returns the number of events in the input.
	Events() int
	// ReadEvent reconstructs the i-th event.
	ReadEvent(ctx context.Context, i int) (*eventio.Store, error)
	// Close releases the input.
	Close() error
}
