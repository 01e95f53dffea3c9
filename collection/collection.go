// Package collection provides the generic collection core underlying every
// generated collection type.
//
// A collection is the owning container of all records of one datatype for
// one event. It owns the canonical contiguous record-buffer array and, for
// referencing datatypes, one shared relation-target column per relation
// field. Buffer extraction and construction-from-buffers are the only two
// operations exposed to storage backends; the collection itself performs
// no I/O.
package collection

import (
	"errors"
	"fmt"
	"iter"

	"github.com/hupe1980/eventio/model"
	"github.com/hupe1980/eventio/object"
	"github.com/hupe1980/eventio/schema"
)

var (
	// ErrReadOnly is returned when mutating a collection that has been
	// prepared for writing or materialized from storage.
	ErrReadOnly = errors.New("collection: read-only")
	// ErrRelationOrder is returned when a relation range would be grown
	// out of append order.
	ErrRelationOrder = errors.New("collection: relation append out of order")
	// ErrUnboundTarget is returned when a relation target has no durable
	// identity at write time.
	ErrUnboundTarget = errors.New("collection: relation target not in any collection")
	// ErrHandleUnavailable is returned when an unavailable handle is
	// appended.
	ErrHandleUnavailable = errors.New("collection: handle is unavailable")
	// ErrNotPrepared is returned when buffers are requested before
	// PrepareForWrite.
	ErrNotPrepared = errors.New("collection: not prepared for write")
	// ErrIDAlreadySet is returned when a collection id is assigned twice.
	ErrIDAlreadySet = errors.New("collection: id already set")
	// ErrOutOfRange is returned for record indices outside the collection.
	ErrOutOfRange = errors.New("collection: index out of range")
)

// Hooks connect the generic core to the relation columns and handle
// constructors of one generated collection type. Nil hooks are no-ops.
type Hooks[D, R, H any] struct {
	// Wrap builds a typed handle over a payload.
	Wrap func(*object.Obj[D, R]) H
	// Unwrap extracts the payload of a handle; nil means unavailable.
	Unwrap func(H) *object.Obj[D, R]
	// OnAppend flushes the payload's pending relation targets into the
	// collection's columns and stores the assigned ranges in the record
	// buffer. Called after the payload is bound to its slot.
	OnAppend func(o *object.Obj[D, R], row int) error
	// OnMaterialize wires a payload created from a loaded record buffer
	// to the collection's columns.
	OnMaterialize func(o *object.Obj[D, R], row int)
	// OnPrepare finalizes the relation columns for writing.
	OnPrepare func() error
	// OnAfterRead validates loaded relation ranges against the loaded
	// columns.
	OnAfterRead func() error
	// OnSetReferences resolves cross-collection relation targets through
	// the provider.
	OnSetReferences func(Provider) error
	// Relations returns the identifier form of each relation column, in
	// schema field order.
	Relations func() [][]model.ObjectID
}

type mode uint8

const (
	modeBuilding mode = iota
	modeRead
)

// Collection is the generic core embedded by generated collection types.
//
// D is the record-buffer struct, R the payload relation state, H the
// handle type. In building mode the payloads own the in-progress record
// data and the contiguous buffer is assembled by PrepareForWrite; in read
// mode the loaded buffer is canonical and payloads are materialized
// lazily, one per accessed slot.
type Collection[D, R, H any] struct {
	typeName string
	version  model.SchemaVersion

	id    model.CollectionID
	idSet bool

	mode     mode
	prepared bool

	objs    []*object.Obj[D, R]
	records []D

	hooks Hooks[D, R, H]
}

// New creates an empty collection in building mode.
func New[D, R, H any](typeName string, version model.SchemaVersion, hooks Hooks[D, R, H]) *Collection[D, R, H] {
	return &Collection[D, R, H]{
		typeName: typeName,
		version:  version,
		hooks:    hooks,
	}
}

// FromRecords creates a read-mode collection over record buffers evolved
// to the current schema version. Payload materialization is deferred until
// records are accessed.
func FromRecords[D, R, H any](typeName string, version model.SchemaVersion, records []D, hooks Hooks[D, R, H]) *Collection[D, R, H] {
	return &Collection[D, R, H]{
		typeName: typeName,
		version:  version,
		mode:     modeRead,
		records:  records,
		objs:     make([]*object.Obj[D, R], len(records)),
		hooks:    hooks,
	}
}

// TypeName returns the fully qualified datatype name of the collection.
func (c *Collection[D, R, H]) TypeName() string {
	return c.typeName
}

// SchemaVersion returns the current schema version of the datatype.
func (c *Collection[D, R, H]) SchemaVersion() model.SchemaVersion {
	return c.version
}

// ID returns the store-assigned collection id.
func (c *Collection[D, R, H]) ID() model.CollectionID {
	return c.id
}

// SetID assigns the collection id. It is set exactly once: by the store at
// registration time, or by the backend when reconstructing a read event.
// Records appended before the assignment are rebound to the new id.
func (c *Collection[D, R, H]) SetID(id model.CollectionID) error {
	if c.idSet {
		return fmt.Errorf("%w: %d", ErrIDAlreadySet, c.id)
	}
	c.id = id
	c.idSet = true
	for _, o := range c.objs {
		if o != nil {
			o.SetCollectionID(id)
		}
	}
	return nil
}

// Size returns the number of records in the collection.
func (c *Collection[D, R, H]) Size() int {
	if c.mode == modeRead {
		return len(c.records)
	}
	return len(c.objs)
}

// Append adds the handle's record to the collection: the payload is bound
// to the next sequential slot and its pending relation targets move into
// the shared columns.
func (c *Collection[D, R, H]) Append(h H) error {
	if c.mode == modeRead || c.prepared {
		return ErrReadOnly
	}
	o := c.hooks.Unwrap(h)
	if o == nil {
		return ErrHandleUnavailable
	}
	row := len(c.objs)
	if err := o.Bind(model.ObjectID{Index: int32(row), CollectionID: c.id}); err != nil {
		return err
	}
	c.objs = append(c.objs, o)
	if c.hooks.OnAppend != nil {
		if err := c.hooks.OnAppend(o, row); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the handle for slot i. In read mode the payload is
// materialized on first access and shared by later accesses.
func (c *Collection[D, R, H]) Get(i int) (H, error) {
	var zero H
	if i < 0 || i >= c.Size() {
		return zero, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, c.Size())
	}
	if c.mode == modeRead && c.objs[i] == nil {
		o := object.New[D, R]()
		o.Data = c.records[i]
		if err := o.Bind(model.ObjectID{Index: int32(i), CollectionID: c.id}); err != nil {
			return zero, err
		}
		if c.hooks.OnMaterialize != nil {
			c.hooks.OnMaterialize(o, i)
		}
		c.objs[i] = o
	}
	return c.hooks.Wrap(c.objs[i]), nil
}

// All returns a lazy sequence over all handles in slot order.
func (c *Collection[D, R, H]) All() iter.Seq[H] {
	return func(yield func(H) bool) {
		for i := 0; i < c.Size(); i++ {
			h, err := c.Get(i)
			if err != nil {
				return
			}
			if !yield(h) {
				return
			}
		}
	}
}

// PrepareForWrite finalizes the collection for buffer extraction: the
// contiguous record buffer is assembled from the payloads and the relation
// columns are converted to identifier form. The collection is read-only
// afterwards. Calling it on an already prepared collection is a no-op.
func (c *Collection[D, R, H]) PrepareForWrite() error {
	if c.prepared {
		return nil
	}
	if c.mode == modeBuilding {
		c.records = c.records[:0]
		for _, o := range c.objs {
			c.records = append(c.records, o.Data)
		}
	}
	if c.hooks.OnPrepare != nil {
		if err := c.hooks.OnPrepare(); err != nil {
			return err
		}
	}
	c.prepared = true
	return nil
}

// PrepareAfterRead wires a freshly constructed read-mode collection:
// relation ranges are validated against the loaded columns. Cross-
// collection targets stay identifiers until SetReferences.
func (c *Collection[D, R, H]) PrepareAfterRead() error {
	if c.mode != modeRead {
		return fmt.Errorf("collection: %q was not read from storage", c.typeName)
	}
	if c.hooks.OnAfterRead != nil {
		if err := c.hooks.OnAfterRead(); err != nil {
			return err
		}
	}
	c.prepared = true
	return nil
}

// SetReferences resolves relation identifiers into live handles through
// the provider. Identifiers whose collection the provider does not know
// remain unresolved and dereference to unavailable handles.
func (c *Collection[D, R, H]) SetReferences(p Provider) error {
	if c.hooks.OnSetReferences == nil {
		return nil
	}
	return c.hooks.OnSetReferences(p)
}

// Records returns the canonical contiguous record-buffer array. Valid
// after PrepareForWrite, or at any time for a read-mode collection.
func (c *Collection[D, R, H]) Records() []D {
	return c.records
}

// Buffers extracts the typed buffer view handed to storage backends.
func (c *Collection[D, R, H]) Buffers() (schema.ReadBuffers, error) {
	if !c.prepared {
		return schema.ReadBuffers{}, fmt.Errorf("%w: %q", ErrNotPrepared, c.typeName)
	}
	bufs := schema.ReadBuffers{Records: c.records}
	if c.hooks.Relations != nil {
		bufs.Relations = c.hooks.Relations()
	}
	return bufs, nil
}

// ValidateRanges checks the relation ranges of every loaded record against
// the loaded column: ranges must be half-open, in bounds, contiguous and
// monotonically non-decreasing in record order. Generated OnAfterRead
// hooks call it once per relation field.
func ValidateRanges[D any](records []D, field string, rangeOf func(*D) (int32, int32), targetLen int) error {
	var prevEnd int32
	for i := range records {
		begin, end := rangeOf(&records[i])
		if begin < 0 || end < begin || int(end) > targetLen {
			return fmt.Errorf("collection: relation %q record %d: invalid range [%d,%d) over %d targets",
				field, i, begin, end, targetLen)
		}
		if begin < prevEnd {
			return fmt.Errorf("collection: relation %q record %d: range [%d,%d) overlaps previous end %d",
				field, i, begin, end, prevEnd)
		}
		prevEnd = end
	}
	return nil
}
