package datamodel

import (
	"github.com/hupe1980/eventio/collection"
	"github.com/hupe1980/eventio/model"
	"github.com/hupe1980/eventio/object"
	"github.com/hupe1980/eventio/schema"
)

const (
	EventInfoTypeName      = "datamodel.EventInfo"
	EventInfoSchemaVersion = model.SchemaVersion(1)
)

// EventInfoData is the fixed-width storage layout of one EventInfo record.
type EventInfoData struct {
	Number int32
}

type eventInfoObj = object.Obj[EventInfoData, struct{}]

// EventInfo is the handle to one event-info record. Copies share the same
// payload; Clone creates an independent one.
type EventInfo struct {
	obj *eventInfoObj
}

// NewEventInfo creates a new record with a fresh, unbound payload.
func NewEventInfo() EventInfo {
	return EventInfo{obj: object.New[EventInfoData, struct{}]()}
}

// NewEventInfoWith creates a new record with the given event number.
func NewEventInfoWith(number int32) EventInfo {
	e := NewEventInfo()
	e.obj.Data.Number = number
	return e
}

// IsAvailable reports whether the handle owns a payload.
func (e EventInfo) IsAvailable() bool {
	return e.obj != nil
}

// ObjectID returns the bound identifier, or the unbound sentinel before
// the record joined a collection.
func (e EventInfo) ObjectID() model.ObjectID {
	return object.MustAvailable(e.obj, "EventInfo").ID()
}

// Clone returns an independent deep copy with an unbound identifier.
func (e EventInfo) Clone() EventInfo {
	o := object.MustAvailable(e.obj, "EventInfo")
	n := object.New[EventInfoData, struct{}]()
	n.Data = o.Data
	return EventInfo{obj: n}
}

func (e EventInfo) Number() int32 {
	return object.MustAvailable(e.obj, "EventInfo").Data.Number
}

func (e EventInfo) SetNumber(n int32) {
	object.MustAvailable(e.obj, "EventInfo").Data.Number = n
}

// EventInfoCollection is the owning container of all EventInfo records of
// one event.
type EventInfoCollection struct {
	*collection.Collection[EventInfoData, struct{}, EventInfo]
}

func eventInfoHooks() collection.Hooks[EventInfoData, struct{}, EventInfo] {
	return collection.Hooks[EventInfoData, struct{}, EventInfo]{
		Wrap:   func(o *eventInfoObj) EventInfo { return EventInfo{obj: o} },
		Unwrap: func(e EventInfo) *eventInfoObj { return e.obj },
	}
}

// NewEventInfoCollection creates an empty collection for event building.
func NewEventInfoCollection() *EventInfoCollection {
	return &EventInfoCollection{
		Collection: collection.New(EventInfoTypeName, EventInfoSchemaVersion, eventInfoHooks()),
	}
}

// EventInfoCollectionFrom constructs a collection directly over buffers
// evolved to the current schema version.
func EventInfoCollectionFrom(bufs schema.ReadBuffers) (*EventInfoCollection, error) {
	records, err := recordsAs[EventInfoData](bufs, EventInfoTypeName)
	if err != nil {
		return nil, err
	}
	return &EventInfoCollection{
		Collection: collection.FromRecords(EventInfoTypeName, EventInfoSchemaVersion, records, eventInfoHooks()),
	}, nil
}
