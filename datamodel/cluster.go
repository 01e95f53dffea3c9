package datamodel

import (
	"iter"

	"github.com/hupe1980/eventio/collection"
	"github.com/hupe1980/eventio/model"
	"github.com/hupe1980/eventio/object"
	"github.com/hupe1980/eventio/schema"
)

const (
	ClusterTypeName      = "datamodel.Cluster"
	ClusterSchemaVersion = model.SchemaVersion(1)
)

// ClusterData is the fixed-width storage layout of one Cluster record. The
// hit relation is stored as a half-open range into the collection's shared
// hit-target column.
type ClusterData struct {
	Energy    float64
	HitsBegin int32
	HitsEnd   int32
}

type clusterRels struct {
	Hits collection.Relation[Hit]
}

type clusterObj = object.Obj[ClusterData, clusterRels]

// Cluster is the handle to one cluster record. Copies share the same
// payload; Clone creates an independent one whose hit relation still
// references the same hits.
type Cluster struct {
	obj *clusterObj
}

// NewCluster creates a new record with a fresh, unbound payload.
func NewCluster() Cluster {
	return Cluster{obj: object.New[ClusterData, clusterRels]()}
}

// NewClusterWith creates a new record with the given energy.
func NewClusterWith(energy float64) Cluster {
	c := NewCluster()
	c.obj.Data.Energy = energy
	return c
}

// IsAvailable reports whether the handle owns a payload.
func (c Cluster) IsAvailable() bool {
	return c.obj != nil
}

// ObjectID returns the bound identifier, or the unbound sentinel before
// the record joined a collection.
func (c Cluster) ObjectID() model.ObjectID {
	return object.MustAvailable(c.obj, "Cluster").ID()
}

// Clone returns an independent deep copy with an unbound identifier. The
// related hits are not cloned: the copy references the same hit records.
func (c Cluster) Clone() Cluster {
	o := object.MustAvailable(c.obj, "Cluster")
	n := object.New[ClusterData, clusterRels]()
	n.Data = o.Data
	n.Rel.Hits = o.Rel.Hits.Detach(o.Data.HitsBegin, o.Data.HitsEnd)
	n.Data.HitsBegin, n.Data.HitsEnd = 0, 0
	return Cluster{obj: n}
}

func (c Cluster) Energy() float64 {
	return object.MustAvailable(c.obj, "Cluster").Data.Energy
}

func (c Cluster) SetEnergy(v float64) {
	object.MustAvailable(c.obj, "Cluster").Data.Energy = v
}

// AddHit relates a hit to the cluster. Once the cluster is a collection
// member, only the most recently appended record's relation may still
// grow; adding to an earlier record fails with ErrRelationOrder.
func (c Cluster) AddHit(h Hit) error {
	o := object.MustAvailable(c.obj, "Cluster")
	grew, err := o.Rel.Hits.Add(h)
	if err != nil {
		return err
	}
	if grew {
		o.Data.HitsEnd++
	}
	return nil
}

// Hits returns a lazy, restartable sequence over the related hits.
func (c Cluster) Hits() iter.Seq[Hit] {
	o := object.MustAvailable(c.obj, "Cluster")
	return o.Rel.Hits.Range(o.Data.HitsBegin, o.Data.HitsEnd)
}

// HitCount returns the number of related hits.
func (c Cluster) HitCount() int {
	o := object.MustAvailable(c.obj, "Cluster")
	return o.Rel.Hits.Len(o.Data.HitsBegin, o.Data.HitsEnd)
}

func clusterIDOf(c Cluster) (model.ObjectID, bool) {
	if c.obj == nil {
		return model.Unbound(), false
	}
	return c.obj.ID(), true
}

func clusterLookup(b collection.Base, index int32) (Cluster, bool) {
	cc, ok := b.(*ClusterCollection)
	if !ok {
		return Cluster{}, false
	}
	c, err := cc.Get(int(index))
	if err != nil {
		return Cluster{}, false
	}
	return c, true
}

// ClusterCollection is the owning container of all Cluster records of one
// event, including the shared hit-target column.
type ClusterCollection struct {
	*collection.Collection[ClusterData, clusterRels, Cluster]
	hits *collection.RelationColumn[Hit]
}

func (c *ClusterCollection) hooks() collection.Hooks[ClusterData, clusterRels, Cluster] {
	return collection.Hooks[ClusterData, clusterRels, Cluster]{
		Wrap:   func(o *clusterObj) Cluster { return Cluster{obj: o} },
		Unwrap: func(cl Cluster) *clusterObj { return cl.obj },
		OnAppend: func(o *clusterObj, row int) error {
			begin, end, err := o.Rel.Hits.Bind(c.hits, row)
			if err != nil {
				return err
			}
			o.Data.HitsBegin, o.Data.HitsEnd = begin, end
			return nil
		},
		OnMaterialize: func(o *clusterObj, row int) {
			o.Rel.Hits.Attach(c.hits, row)
		},
		OnPrepare: func() error { return c.hits.Finalize() },
		OnAfterRead: func() error {
			return collection.ValidateRanges(c.Records(), "hits", func(d *ClusterData) (int32, int32) {
				return d.HitsBegin, d.HitsEnd
			}, c.hits.Len())
		},
		OnSetReferences: func(p collection.Provider) error { return c.hits.Resolve(p) },
		Relations:       func() [][]model.ObjectID { return [][]model.ObjectID{c.hits.IDs()} },
	}
}

// NewClusterCollection creates an empty collection for event building.
func NewClusterCollection() *ClusterCollection {
	c := &ClusterCollection{
		hits: collection.NewRelationColumn("hits", hitIDOf, hitLookup),
	}
	c.Collection = collection.New(ClusterTypeName, ClusterSchemaVersion, c.hooks())
	return c
}

// ClusterCollectionFrom constructs a collection directly over buffers
// evolved to the current schema version.
func ClusterCollectionFrom(bufs schema.ReadBuffers) (*ClusterCollection, error) {
	records, err := recordsAs[ClusterData](bufs, ClusterTypeName)
	if err != nil {
		return nil, err
	}
	rels, err := relationsOf(bufs, ClusterTypeName, 1)
	if err != nil {
		return nil, err
	}
	c := &ClusterCollection{
		hits: collection.LoadRelationColumn("hits", rels[0], hitIDOf, hitLookup),
	}
	c.Collection = collection.FromRecords(ClusterTypeName, ClusterSchemaVersion, records, c.hooks())
	return c, nil
}
