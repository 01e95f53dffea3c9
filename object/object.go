// Package object provides the shared payload backing every generated
// handle type.
//
// A handle is a small value wrapping a *Obj pointer. Copying a handle
// copies the pointer, so every copy observes the same in-progress record;
// the garbage collector takes the role of the reference count. Clone is the
// explicit deep copy: a fresh payload with the same field values, an
// unbound identifier, and relation members that still reference the same
// related records.
package object

import (
	"fmt"

	"github.com/hupe1980/eventio/model"
)

// Obj is the payload shared by all copies of one handle.
//
// D is the record's fixed-width data struct, held by value; R is the
// record's relation state (struct{} for datatypes without relations). The
// payload owns pending relation targets until the record becomes a
// collection member, at which point the targets move into the collection's
// shared relation columns.
type Obj[D, R any] struct {
	id   model.ObjectID
	Data D
	Rel  R
}

// New creates a payload with zero-valued data and an unbound identifier.
func New[D, R any]() *Obj[D, R] {
	return &Obj[D, R]{id: model.Unbound()}
}

// ID returns the bound identifier, or the unbound sentinel before the
// payload has been appended to a collection.
func (o *Obj[D, R]) ID() model.ObjectID {
	return o.id
}

// Bind assigns the identifier of a collection slot. It is called exactly
// once, by the collection the payload is appended to; rebinding a payload
// that is already a collection member fails.
func (o *Obj[D, R]) Bind(id model.ObjectID) error {
	if o.id.IsBound() {
		return fmt.Errorf("object: payload already bound to %s", o.id)
	}
	o.id = id
	return nil
}

// SetCollectionID updates the collection component of a bound identifier.
// The owning collection calls it when the store assigns the collection id
// after records were already appended.
func (o *Obj[D, R]) SetCollectionID(id model.CollectionID) {
	o.id.CollectionID = id
}

// MustAvailable panics with a descriptive message when o is nil. Generated
// accessors call it so that using an unavailable handle fails loudly at the
// access point instead of dereferencing nil.
func MustAvailable[D, R any](o *Obj[D, R], typeName string) *Obj[D, R] {
	if o == nil {
		panic(fmt.Sprintf("eventio: access through unavailable %s handle", typeName))
	}
	return o
}
