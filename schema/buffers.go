package schema

import (
	"github.com/hupe1980/eventio/model"
)

// ReadBuffers is the typed buffer view exchanged between collections,
// the evolution registry, and storage backends.
//
// Records holds the contiguous record-buffer slice of the concrete datatype
// (a []<T>Data for some fixed-width POD struct T). It is type-erased here so
// evolution functions for arbitrary datatypes can be kept in one registry;
// the versioned buffer factories registered by each datatype restore the
// concrete type on the read path.
//
// Relations holds one contiguous ObjectID array per relation field, in the
// field order declared by the datatype's schema. Each record's Data struct
// addresses its targets as a half-open [begin, end) range into the
// corresponding array.
type ReadBuffers struct {
	Records   any
	Relations [][]model.ObjectID
}

// BufferFactory allocates empty ReadBuffers for one datatype at one schema
// version: a Records slice of n zero records and one relation array per
// relation field, sized by relLens.
//
// Backends use factories to give raw file bytes a concrete in-memory type
// before handing the buffers to Evolve.
type BufferFactory func(n int, relLens []int) ReadBuffers
