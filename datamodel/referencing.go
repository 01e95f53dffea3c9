package datamodel

import (
	"iter"

	"github.com/hupe1980/eventio/collection"
	"github.com/hupe1980/eventio/model"
	"github.com/hupe1980/eventio/object"
	"github.com/hupe1980/eventio/schema"
)

const (
	ReferencingTypeName          = "datamodel.ReferencingType"
	ReferencingTypeSchemaVersion = model.SchemaVersion(1)
)

// ReferencingTypeData is the fixed-width storage layout of one
// ReferencingType record: two relation ranges, one into the cluster-target
// column and one into the self-target column.
type ReferencingTypeData struct {
	ClustersBegin int32
	ClustersEnd   int32
	RefsBegin     int32
	RefsEnd       int32
}

type referencingRels struct {
	Clusters collection.Relation[Cluster]
	Refs     collection.Relation[ReferencingType]
}

type referencingObj = object.Obj[ReferencingTypeData, referencingRels]

// ReferencingType is the handle to a record relating to clusters and to
// other records of its own type, possibly in another collection.
type ReferencingType struct {
	obj *referencingObj
}

// NewReferencingType creates a new record with a fresh, unbound payload.
func NewReferencingType() ReferencingType {
	return ReferencingType{obj: object.New[ReferencingTypeData, referencingRels]()}
}

// IsAvailable reports whether the handle owns a payload.
func (r ReferencingType) IsAvailable() bool {
	return r.obj != nil
}

// ObjectID returns the bound identifier, or the unbound sentinel before
// the record joined a collection.
func (r ReferencingType) ObjectID() model.ObjectID {
	return object.MustAvailable(r.obj, "ReferencingType").ID()
}

// Clone returns an independent deep copy with an unbound identifier;
// relation targets are shared, not cloned.
func (r ReferencingType) Clone() ReferencingType {
	o := object.MustAvailable(r.obj, "ReferencingType")
	n := object.New[ReferencingTypeData, referencingRels]()
	n.Rel.Clusters = o.Rel.Clusters.Detach(o.Data.ClustersBegin, o.Data.ClustersEnd)
	n.Rel.Refs = o.Rel.Refs.Detach(o.Data.RefsBegin, o.Data.RefsEnd)
	return ReferencingType{obj: n}
}

// AddCluster relates a cluster to the record.
func (r ReferencingType) AddCluster(c Cluster) error {
	o := object.MustAvailable(r.obj, "ReferencingType")
	grew, err := o.Rel.Clusters.Add(c)
	if err != nil {
		return err
	}
	if grew {
		o.Data.ClustersEnd++
	}
	return nil
}

// AddRef relates another ReferencingType record to the record.
func (r ReferencingType) AddRef(other ReferencingType) error {
	o := object.MustAvailable(r.obj, "ReferencingType")
	grew, err := o.Rel.Refs.Add(other)
	if err != nil {
		return err
	}
	if grew {
		o.Data.RefsEnd++
	}
	return nil
}

// Clusters returns a lazy, restartable sequence over the related clusters.
func (r ReferencingType) Clusters() iter.Seq[Cluster] {
	o := object.MustAvailable(r.obj, "ReferencingType")
	return o.Rel.Clusters.Range(o.Data.ClustersBegin, o.Data.ClustersEnd)
}

// Refs returns a lazy, restartable sequence over the related records.
func (r ReferencingType) Refs() iter.Seq[ReferencingType] {
	o := object.MustAvailable(r.obj, "ReferencingType")
	return o.Rel.Refs.Range(o.Data.RefsBegin, o.Data.RefsEnd)
}

func referencingIDOf(r ReferencingType) (model.ObjectID, bool) {
	if r.obj == nil {
		return model.Unbound(), false
	}
	return r.obj.ID(), true
}

func referencingLookup(b collection.Base, index int32) (ReferencingType, bool) {
	rc, ok := b.(*ReferencingTypeCollection)
	if !ok {
		return ReferencingType{}, false
	}
	r, err := rc.Get(int(index))
	if err != nil {
		return ReferencingType{}, false
	}
	return r, true
}

// ReferencingTypeCollection is the owning container of all ReferencingType
// records of one event, including the shared cluster- and self-target
// columns.
type ReferencingTypeCollection struct {
	*collection.Collection[ReferencingTypeData, referencingRels, ReferencingType]
	clusters *collection.RelationColumn[Cluster]
	refs     *collection.RelationColumn[ReferencingType]
}

func (c *ReferencingTypeCollection) hooks() collection.Hooks[ReferencingTypeData, referencingRels, ReferencingType] {
	return collection.Hooks[ReferencingTypeData, referencingRels, ReferencingType]{
		Wrap:   func(o *referencingObj) ReferencingType { return ReferencingType{obj: o} },
		Unwrap: func(r ReferencingType) *referencingObj { return r.obj },
		OnAppend: func(o *referencingObj, row int) error {
			begin, end, err := o.Rel.Clusters.Bind(c.clusters, row)
			if err != nil {
				return err
			}
			o.Data.ClustersBegin, o.Data.ClustersEnd = begin, end

			begin, end, err = o.Rel.Refs.Bind(c.refs, row)
			if err != nil {
				return err
			}
			o.Data.RefsBegin, o.Data.RefsEnd = begin, end
			return nil
		},
		OnMaterialize: func(o *referencingObj, row int) {
			o.Rel.Clusters.Attach(c.clusters, row)
			o.Rel.Refs.Attach(c.refs, row)
		},
		OnPrepare: func() error {
			if err := c.clusters.Finalize(); err != nil {
				return err
			}
			return c.refs.Finalize()
		},
		OnAfterRead: func() error {
			if err := collection.ValidateRanges(c.Records(), "clusters", func(d *ReferencingTypeData) (int32, int32) {
				return d.ClustersBegin, d.ClustersEnd
			}, c.clusters.Len()); err != nil {
				return err
			}
			return collection.ValidateRanges(c.Records(), "refs", func(d *ReferencingTypeData) (int32, int32) {
				return d.RefsBegin, d.RefsEnd
			}, c.refs.Len())
		},
		OnSetReferences: func(p collection.Provider) error {
			if err := c.clusters.Resolve(p); err != nil {
				return err
			}
			return c.refs.Resolve(p)
		},
		Relations: func() [][]model.ObjectID {
			return [][]model.ObjectID{c.clusters.IDs(), c.refs.IDs()}
		},
	}
}

// NewReferencingTypeCollection creates an empty collection for event
// building.
func NewReferencingTypeCollection() *ReferencingTypeCollection {
	c := &ReferencingTypeCollection{
		clusters: collection.NewRelationColumn("clusters", clusterIDOf, clusterLookup),
		refs:     collection.NewRelationColumn("refs", referencingIDOf, referencingLookup),
	}
	c.Collection = collection.New(ReferencingTypeName, ReferencingTypeSchemaVersion, c.hooks())
	return c
}

// ReferencingTypeCollectionFrom constructs a collection directly over
// buffers evolved to the current schema version.
func ReferencingTypeCollectionFrom(bufs schema.ReadBuffers) (*ReferencingTypeCollection, error) {
	records, err := recordsAs[ReferencingTypeData](bufs, ReferencingTypeName)
	if err != nil {
		return nil, err
	}
	rels, err := relationsOf(bufs, ReferencingTypeName, 2)
	if err != nil {
		return nil, err
	}
	c := &ReferencingTypeCollection{
		clusters: collection.LoadRelationColumn("clusters", rels[0], clusterIDOf, clusterLookup),
		refs:     collection.LoadRelationColumn("refs", rels[1], referencingIDOf, referencingLookup),
	}
	c.Collection = collection.FromRecords(ReferencingTypeName, ReferencingTypeSchemaVersion, records, c.hooks())
	return c, nil
}
