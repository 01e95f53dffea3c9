package model

import (
	"fmt"
)

// CollectionID identifies a collection within one event store.
// IDs are assigned by the store when a collection is registered and are
// stable across a storage roundtrip of the same event.
type CollectionID uint32

// SchemaVersion is the type used for datamodel schema versions throughout.
type SchemaVersion uint32

// Sentinel index values for ObjectID.
const (
	// UntrackedIndex marks a payload that has not been appended to any
	// collection yet.
	UntrackedIndex int32 = -1
	// InvalidIndex marks an identifier that could not be resolved.
	InvalidIndex int32 = -2
)

// ObjectID is the stable (collection, index) pair identifying a record.
//
// It is meaningful only once the record has been appended to a collection;
// before that the index holds UntrackedIndex. Relations are persisted as
// ObjectIDs so they survive a storage roundtrip where in-memory addresses
// are not stable.
//
// The field layout is fixed-width on purpose: relation target arrays are
// serialized as contiguous []ObjectID blocks.
type ObjectID struct {
	Index        int32
	CollectionID CollectionID
}

// Unbound returns the sentinel identifier of a payload that is not a member
// of any collection.
func Unbound() ObjectID {
	return ObjectID{Index: UntrackedIndex}
}

// IsBound reports whether the identifier refers to an actual collection slot.
func (id ObjectID) IsBound() bool {
	return id.Index >= 0
}

// String returns a string representation of the ObjectID.
func (id ObjectID) String() string {
	if !id.IsBound() {
		return "ObjectID(unbound)"
	}
	return fmt.Sprintf("ObjectID(%d:%d)", id.CollectionID, id.Index)
}
