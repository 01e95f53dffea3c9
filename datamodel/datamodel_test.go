package datamodel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventio/collection"
	"github.com/hupe1980/eventio/model"
)

func TestHandleCopiesSharePayload(t *testing.T) {
	h0 := NewHitWith(1, 2, 3, 4.5)
	h1 := h0
	h2 := h1

	h1.SetEnergy(9.0)

	assert.Equal(t, 9.0, h0.Energy())
	assert.Equal(t, 9.0, h2.Energy())
}

func TestCloneIsDeepCopyWithSharedRelations(t *testing.T) {
	hits := NewHitCollection()
	target := NewHitWith(0, 0, 0, 7.0)
	require.NoError(t, hits.Append(target))

	cl := NewClusterWith(1.0)
	require.NoError(t, cl.AddHit(target))

	clone := cl.Clone()
	clone.SetEnergy(2.0)

	// Data is independent, relation targets stay visible.
	assert.Equal(t, 1.0, cl.Energy())
	assert.Equal(t, 2.0, clone.Energy())
	require.Equal(t, 1, clone.HitCount())
	for h := range clone.Hits() {
		assert.Equal(t, 7.0, h.Energy())
	}

	// The clone starts unbound and may join its own collection.
	assert.False(t, clone.ObjectID().IsBound())
	clusters := NewClusterCollection()
	require.NoError(t, clusters.Append(clone))
}

func TestUnavailableHandleAccessPanics(t *testing.T) {
	var h Hit
	require.False(t, h.IsAvailable())
	assert.Panics(t, func() { h.Energy() })
	assert.Panics(t, func() { h.SetEnergy(1) })

	var r ReferencingType
	assert.Panics(t, func() { r.Clusters() })
}

func TestAppendUnavailableHandleFails(t *testing.T) {
	hits := NewHitCollection()
	err := hits.Append(Hit{})
	require.True(t, errors.Is(err, collection.ErrHandleUnavailable))
}

func TestAppendBindsExactlyOnce(t *testing.T) {
	hits := NewHitCollection()
	other := NewHitCollection()

	h := NewHit()
	require.NoError(t, hits.Append(h))
	require.Error(t, other.Append(h))
}

func TestEventInfoRoundValues(t *testing.T) {
	infos := NewEventInfoCollection()
	info := NewEventInfoWith(1234)
	require.NoError(t, infos.Append(info))

	got, err := infos.Get(0)
	require.NoError(t, err)
	assert.Equal(t, int32(1234), got.Number())

	got.SetNumber(5678)
	assert.Equal(t, int32(5678), info.Number())
}

func TestReferencingTypeSelfAndCrossRelations(t *testing.T) {
	hits := NewHitCollection()
	h := NewHitWith(0, 0, 0, 1.0)
	require.NoError(t, hits.Append(h))

	clusters := NewClusterCollection()
	require.NoError(t, clusters.SetID(10))
	cl := NewClusterWith(3.0)
	require.NoError(t, cl.AddHit(h))
	require.NoError(t, clusters.Append(cl))

	refs := NewReferencingTypeCollection()
	require.NoError(t, refs.SetID(11))

	r0 := NewReferencingType()
	r1 := NewReferencingType()
	require.NoError(t, r0.AddCluster(cl))
	require.NoError(t, refs.Append(r0))
	require.NoError(t, refs.Append(r1))
	// Self-relation to an already appended record of the same collection.
	require.NoError(t, r1.AddRef(r0))

	var clusterEnergies []float64
	for c := range r0.Clusters() {
		clusterEnergies = append(clusterEnergies, c.Energy())
	}
	assert.Equal(t, []float64{3.0}, clusterEnergies)

	var related []model.ObjectID
	for other := range r1.Refs() {
		related = append(related, other.ObjectID())
	}
	assert.Equal(t, []model.ObjectID{{Index: 0, CollectionID: 11}}, related)
}

func TestReferencingTypeBufferRoundTrip(t *testing.T) {
	hits := NewHitCollection()
	h := NewHitWith(0, 0, 0, 1.0)
	require.NoError(t, hits.Append(h))

	clusters := NewClusterCollection()
	require.NoError(t, clusters.SetID(10))
	cl := NewClusterWith(3.0)
	require.NoError(t, cl.AddHit(h))
	require.NoError(t, clusters.Append(cl))

	refs := NewReferencingTypeCollection()
	require.NoError(t, refs.SetID(11))
	r0 := NewReferencingType()
	require.NoError(t, r0.AddCluster(cl))
	require.NoError(t, refs.Append(r0))
	r1 := NewReferencingType()
	require.NoError(t, refs.Append(r1))
	require.NoError(t, r1.AddRef(r0))

	require.NoError(t, refs.PrepareForWrite())
	bufs, err := refs.Buffers()
	require.NoError(t, err)
	require.Len(t, bufs.Relations, 2)

	require.NoError(t, clusters.PrepareForWrite())
	clBufs, err := clusters.Buffers()
	require.NoError(t, err)

	loadedClusters, err := ClusterCollectionFrom(clBufs)
	require.NoError(t, err)
	require.NoError(t, loadedClusters.SetID(10))

	loaded, err := ReferencingTypeCollectionFrom(bufs)
	require.NoError(t, err)
	require.NoError(t, loaded.SetID(11))
	require.NoError(t, loaded.PrepareAfterRead())

	provider := mapProvider{10: loadedClusters, 11: loaded}
	require.NoError(t, loadedClusters.PrepareAfterRead())
	require.NoError(t, loaded.SetReferences(provider))

	got0, err := loaded.Get(0)
	require.NoError(t, err)
	var energies []float64
	for c := range got0.Clusters() {
		require.True(t, c.IsAvailable())
		energies = append(energies, c.Energy())
	}
	assert.Equal(t, []float64{3.0}, energies)

	got1, err := loaded.Get(1)
	require.NoError(t, err)
	var related []model.ObjectID
	for other := range got1.Refs() {
		require.True(t, other.IsAvailable())
		related = append(related, other.ObjectID())
	}
	assert.Equal(t, []model.ObjectID{{Index: 0, CollectionID: 11}}, related)
}

type mapProvider map[model.CollectionID]collection.Base

func (p mapProvider) CollectionFor(id model.CollectionID) (collection.Base, bool) {
	c, ok := p[id]
	return c, ok
}

func TestLazyMaterializationSharesPayload(t *testing.T) {
	hits := NewHitCollection()
	require.NoError(t, hits.Append(NewHitWith(1, 2, 3, 4.0)))
	require.NoError(t, hits.PrepareForWrite())
	bufs, err := hits.Buffers()
	require.NoError(t, err)

	loaded, err := HitCollectionFrom(bufs)
	require.NoError(t, err)

	a, err := loaded.Get(0)
	require.NoError(t, err)
	b, err := loaded.Get(0)
	require.NoError(t, err)

	a.SetEnergy(8.0)
	assert.Equal(t, 8.0, b.Energy())
}
