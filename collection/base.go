package collection

import (
	"fmt"
	"sync"

	"github.com/hupe1980/eventio/model"
	"github.com/hupe1980/eventio/schema"
)

// Base is the type-erased collection interface the store and storage
// backends operate on. Every generated collection type implements it by
// embedding the generic core.
type Base interface {
	// TypeName returns the fully qualified datatype name.
	TypeName() string
	// SchemaVersion returns the current schema version of the datatype.
	SchemaVersion() model.SchemaVersion
	// ID returns the store-assigned collection id.
	ID() model.CollectionID
	// SetID assigns the collection id, exactly once.
	SetID(model.CollectionID) error
	// Size returns the number of records.
	Size() int
	// PrepareForWrite finalizes buffers immediately before extraction.
	PrepareForWrite() error
	// PrepareAfterRead wires a collection constructed from buffers.
	PrepareAfterRead() error
	// SetReferences resolves cross-collection relation targets.
	SetReferences(Provider) error
	// Buffers extracts the typed buffer view for writing.
	Buffers() (schema.ReadBuffers, error)
}

// Provider looks collections up by id during reference resolution. The
// event store implements it.
type Provider interface {
	CollectionFor(id model.CollectionID) (Base, bool)
}

// Maker constructs a collection of one datatype directly over buffers that
// have been evolved to the current schema version.
type Maker func(bufs schema.ReadBuffers) (Base, error)

var (
	makersMu sync.RWMutex
	makers   = make(map[string]Maker)
)

// RegisterMaker registers the buffer constructor for a datatype. Datamodel
// packages call it at init; duplicate registrations fail.
func RegisterMaker(typeName string, maker Maker) error {
	makersMu.Lock()
	defer makersMu.Unlock()
	if _, ok := makers[typeName]; ok {
		return fmt.Errorf("collection: maker for %q already registered", typeName)
	}
	makers[typeName] = maker
	return nil
}

// MakerFor returns the registered buffer constructor for a datatype.
func MakerFor(typeName string) (Maker, bool) {
	makersMu.RLock()
	defer makersMu.RUnlock()
	m, ok := makers[typeName]
	return m, ok
}
