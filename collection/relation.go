package collection

import (
	"fmt"
	"iter"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/eventio/model"
)

// RelationColumn is the shared relation-target array for one relation field
// of a collection.
//
// Per-record storage stays fixed-width: each record addresses its targets
// as a half-open [begin, end) range into this column. Ranges are assigned
// in strict append order; the column tracks the row whose range is still
// open and rejects growth of any earlier row, so ranges can never overlap.
//
// During event building the column holds live handles; Finalize converts
// them to ObjectIDs for writing. After a read the column holds loaded
// ObjectIDs and Resolve materializes handles through a Provider lookup,
// tracking still-unresolved positions in a bitmap so late-loaded
// collections can be patched in cheaply.
type RelationColumn[H any] struct {
	field string

	ids     []model.ObjectID
	targets []H

	// idOf extracts the bound identifier of a target handle; ok is false
	// for unavailable or never-appended targets.
	idOf func(H) (model.ObjectID, bool)
	// lookup materializes a handle from a foreign collection slot.
	lookup func(Base, int32) (H, bool)

	// tail is the row whose range may still grow, -1 when none is open.
	tail int

	unresolved *roaring.Bitmap
	readMode   bool
}

// NewRelationColumn creates an empty column for event building.
func NewRelationColumn[H any](field string, idOf func(H) (model.ObjectID, bool), lookup func(Base, int32) (H, bool)) *RelationColumn[H] {
	return &RelationColumn[H]{
		field:  field,
		idOf:   idOf,
		lookup: lookup,
		tail:   -1,
	}
}

// LoadRelationColumn creates a column over identifiers loaded from storage.
// Targets stay unresolved until Resolve is called with a provider that
// knows the referenced collections.
func LoadRelationColumn[H any](field string, ids []model.ObjectID, idOf func(H) (model.ObjectID, bool), lookup func(Base, int32) (H, bool)) *RelationColumn[H] {
	c := &RelationColumn[H]{
		field:      field,
		ids:        ids,
		targets:    make([]H, len(ids)),
		idOf:       idOf,
		lookup:     lookup,
		tail:       -1,
		unresolved: roaring.New(),
		readMode:   true,
	}
	c.unresolved.AddRange(0, uint64(len(ids)))
	return c
}

// Len returns the number of targets in the column.
func (c *RelationColumn[H]) Len() int {
	if c.readMode {
		return len(c.ids)
	}
	return len(c.targets)
}

// Open assigns the range of a freshly appended row and seeds it with the
// targets accumulated on the payload before the append. The previous tail
// row's range is closed for good.
func (c *RelationColumn[H]) Open(row int, pending []H) (begin, end int32, err error) {
	if c.readMode {
		return 0, 0, fmt.Errorf("collection: relation %q: %w", c.field, ErrReadOnly)
	}
	if row <= c.tail {
		return 0, 0, fmt.Errorf("collection: relation %q row %d: %w", c.field, row, ErrRelationOrder)
	}
	c.tail = row
	begin = int32(len(c.targets))
	c.targets = append(c.targets, pending...)
	end = int32(len(c.targets))
	return begin, end, nil
}

// Extend grows the open range at the tail of the column by one target.
// Extending any row other than the tail row violates the append-order
// invariant and fails.
func (c *RelationColumn[H]) Extend(row int, h H) error {
	if c.readMode {
		return fmt.Errorf("collection: relation %q: %w", c.field, ErrReadOnly)
	}
	if row != c.tail {
		return fmt.Errorf("collection: relation %q row %d (tail %d): %w", c.field, row, c.tail, ErrRelationOrder)
	}
	c.targets = append(c.targets, h)
	return nil
}

// Finalize converts the live targets to their bound identifiers for
// writing. A target that was never appended to a collection has no durable
// identity and fails the finalization.
func (c *RelationColumn[H]) Finalize() error {
	if c.readMode {
		return nil
	}
	c.ids = c.ids[:0]
	for i, h := range c.targets {
		id, ok := c.idOf(h)
		if !ok || !id.IsBound() {
			return fmt.Errorf("collection: relation %q target %d: %w", c.field, i, ErrUnboundTarget)
		}
		c.ids = append(c.ids, id)
	}
	return nil
}

// IDs returns the identifier form of the column. Valid after Finalize on
// the write path, or immediately after a load on the read path.
func (c *RelationColumn[H]) IDs() []model.ObjectID {
	return c.ids
}

// Resolve materializes handles for all still-unresolved identifiers whose
// collections the provider knows. Identifiers referring to collections the
// provider does not know remain unresolved; iterating them yields
// unavailable handles. Resolve may be called again once more collections
// have been loaded.
func (c *RelationColumn[H]) Resolve(p Provider) error {
	if !c.readMode || c.unresolved.IsEmpty() {
		return nil
	}
	resolved := roaring.New()
	it := c.unresolved.Iterator()
	for it.HasNext() {
		pos := it.Next()
		id := c.ids[pos]
		coll, ok := p.CollectionFor(id.CollectionID)
		if !ok {
			continue
		}
		h, ok := c.lookup(coll, id.Index)
		if !ok {
			return fmt.Errorf("collection: relation %q target %d: index %d out of range in collection %d",
				c.field, pos, id.Index, id.CollectionID)
		}
		c.targets[pos] = h
		resolved.Add(pos)
	}
	c.unresolved.AndNot(resolved)
	return nil
}

// FullyResolved reports whether every loaded identifier has been turned
// into a live handle.
func (c *RelationColumn[H]) FullyResolved() bool {
	return !c.readMode || c.unresolved.IsEmpty()
}

// Range returns a lazy, restartable sequence over the column slice
// [begin, end). Unresolved positions yield the zero handle, which is
// unavailable.
func (c *RelationColumn[H]) Range(begin, end int32) iter.Seq[H] {
	return func(yield func(H) bool) {
		for i := begin; i < end; i++ {
			if !yield(c.targets[i]) {
				return
			}
		}
	}
}

// Relation is the payload-side relation state for one relation field.
//
// Before the payload joins a collection the relation owns its targets in a
// pending list; the append moves them into the collection's shared column
// and binds the relation to its row. All copies of a handle share one
// Relation through the payload.
type Relation[H any] struct {
	pending []H
	col     *RelationColumn[H]
	row     int
}

// Bound reports whether the relation has been wired to a collection column.
func (r *Relation[H]) Bound() bool {
	return r.col != nil
}

// Add records a target. For a bound relation the target goes straight into
// the shared column, subject to the append-order check; grew reports
// whether the stored range end must be advanced by the caller.
func (r *Relation[H]) Add(h H) (grew bool, err error) {
	if r.col == nil {
		r.pending = append(r.pending, h)
		return false, nil
	}
	if err := r.col.Extend(r.row, h); err != nil {
		return false, err
	}
	return true, nil
}

// Bind flushes the pending targets into col as the range of row and
// returns that range. Bind is called by the owning collection at append
// time.
func (r *Relation[H]) Bind(col *RelationColumn[H], row int) (begin, end int32, err error) {
	begin, end, err = col.Open(row, r.pending)
	if err != nil {
		return 0, 0, err
	}
	r.pending = nil
	r.col = col
	r.row = row
	return begin, end, nil
}

// Attach wires the relation to an already-populated column slot. Used when
// payloads are materialized from a collection read back from storage.
func (r *Relation[H]) Attach(col *RelationColumn[H], row int) {
	r.col = col
	r.row = row
}

// Detach returns a copy of the relation holding the current targets as a
// fresh pending list. The targets themselves are shared, not copied:
// relations denote identity, not data. Used by Clone.
func (r *Relation[H]) Detach(begin, end int32) Relation[H] {
	var out Relation[H]
	if r.col == nil {
		out.pending = append(out.pending, r.pending...)
		return out
	}
	for h := range r.col.Range(begin, end) {
		out.pending = append(out.pending, h)
	}
	return out
}

// Range returns a lazy, restartable sequence over the relation's targets.
// For an unbound relation that is the pending list; for a bound one it is
// the [begin, end) slice of the shared column.
func (r *Relation[H]) Range(begin, end int32) iter.Seq[H] {
	if r.col == nil {
		pending := r.pending
		return func(yield func(H) bool) {
			for _, h := range pending {
				if !yield(h) {
					return
				}
			}
		}
	}
	return r.col.Range(begin, end)
}

// Len returns the number of targets currently related.
func (r *Relation[H]) Len(begin, end int32) int {
	if r.col == nil {
		return len(r.pending)
	}
	return int(end - begin)
}
