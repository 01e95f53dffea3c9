package datamodel

import (
	"github.com/hupe1980/eventio/collection"
	"github.com/hupe1980/eventio/model"
	"github.com/hupe1980/eventio/object"
	"github.com/hupe1980/eventio/schema"
)

const (
	HitTypeName = "datamodel.Hit"
	// HitSchemaVersion is 2: version 2 added CellID, version-1 files are
	// evolved on read.
	HitSchemaVersion = model.SchemaVersion(2)
)

// HitData is the fixed-width storage layout of one Hit record.
type HitData struct {
	X      float64
	Y      float64
	Z      float64
	Energy float64
	CellID uint64
}

// HitDataV1 is the schema-version-1 layout, kept so old files can be
// evolved on read.
type HitDataV1 struct {
	X      float64
	Y      float64
	Z      float64
	Energy float64
}

type hitObj = object.Obj[HitData, struct{}]

// Hit is the handle to one hit record. Copies share the same payload;
// Clone creates an independent one.
type Hit struct {
	obj *hitObj
}

// NewHit creates a new record with a fresh, unbound payload.
func NewHit() Hit {
	return Hit{obj: object.New[HitData, struct{}]()}
}

// NewHitWith creates a new record with the given position and energy.
func NewHitWith(x, y, z, energy float64) Hit {
	h := NewHit()
	h.obj.Data = HitData{X: x, Y: y, Z: z, Energy: energy}
	return h
}

// IsAvailable reports whether the handle owns a payload.
func (h Hit) IsAvailable() bool {
	return h.obj != nil
}

// ObjectID returns the bound identifier, or the unbound sentinel before
// the record joined a collection.
func (h Hit) ObjectID() model.ObjectID {
	return object.MustAvailable(h.obj, "Hit").ID()
}

// Clone returns an independent deep copy with an unbound identifier.
func (h Hit) Clone() Hit {
	o := object.MustAvailable(h.obj, "Hit")
	n := object.New[HitData, struct{}]()
	n.Data = o.Data
	return Hit{obj: n}
}

func (h Hit) X() float64      { return object.MustAvailable(h.obj, "Hit").Data.X }
func (h Hit) Y() float64      { return object.MustAvailable(h.obj, "Hit").Data.Y }
func (h Hit) Z() float64      { return object.MustAvailable(h.obj, "Hit").Data.Z }
func (h Hit) Energy() float64 { return object.MustAvailable(h.obj, "Hit").Data.Energy }
func (h Hit) CellID() uint64  { return object.MustAvailable(h.obj, "Hit").Data.CellID }

func (h Hit) SetX(v float64)      { object.MustAvailable(h.obj, "Hit").Data.X = v }
func (h Hit) SetY(v float64)      { object.MustAvailable(h.obj, "Hit").Data.Y = v }
func (h Hit) SetZ(v float64)      { object.MustAvailable(h.obj, "Hit").Data.Z = v }
func (h Hit) SetEnergy(v float64) { object.MustAvailable(h.obj, "Hit").Data.Energy = v }
func (h Hit) SetCellID(v uint64)  { object.MustAvailable(h.obj, "Hit").Data.CellID = v }

func hitIDOf(h Hit) (model.ObjectID, bool) {
	if h.obj == nil {
		return model.Unbound(), false
	}
	return h.obj.ID(), true
}

func hitLookup(b collection.Base, index int32) (Hit, bool) {
	hc, ok := b.(*HitCollection)
	if !ok {
		return Hit{}, false
	}
	h, err := hc.Get(int(index))
	if err != nil {
		return Hit{}, false
	}
	return h, true
}

// HitCollection is the owning container of all Hit records of one event.
type HitCollection struct {
	*collection.Collection[HitData, struct{}, Hit]
}

func hitHooks() collection.Hooks[HitData, struct{}, Hit] {
	return collection.Hooks[HitData, struct{}, Hit]{
		Wrap:   func(o *hitObj) Hit { return Hit{obj: o} },
		Unwrap: func(h Hit) *hitObj { return h.obj },
	}
}

// NewHitCollection creates an empty collection for event building.
func NewHitCollection() *HitCollection {
	return &HitCollection{
		Collection: collection.New(HitTypeName, HitSchemaVersion, hitHooks()),
	}
}

// HitCollectionFrom constructs a collection directly over buffers evolved
// to the current schema version.
func HitCollectionFrom(bufs schema.ReadBuffers) (*HitCollection, error) {
	records, err := recordsAs[HitData](bufs, HitTypeName)
	if err != nil {
		return nil, err
	}
	return &HitCollection{
		Collection: collection.FromRecords(HitTypeName, HitSchemaVersion, records, hitHooks()),
	}, nil
}
