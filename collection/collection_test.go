package collection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventio/model"
	"github.com/hupe1980/eventio/object"
	"github.com/hupe1980/eventio/schema"
)

// track is a minimal self-referencing datatype exercising the generic
// core without depending on the datamodel package.
type trackData struct {
	Charge    int32
	TiesBegin int32
	TiesEnd   int32
}

type trackRels struct {
	Ties Relation[track]
}

type trackObj = object.Obj[trackData, trackRels]

type track struct {
	obj *trackObj
}

func newTrack(charge int32) track {
	t := track{obj: object.New[trackData, trackRels]()}
	t.obj.Data.Charge = charge
	return t
}

func (t track) available() bool { return t.obj != nil }

func (t track) addTie(o track) error {
	grew, err := t.obj.Rel.Ties.Add(o)
	if err != nil {
		return err
	}
	if grew {
		t.obj.Data.TiesEnd++
	}
	return nil
}

func trackIDOf(t track) (model.ObjectID, bool) {
	if t.obj == nil {
		return model.Unbound(), false
	}
	return t.obj.ID(), true
}

func trackLookup(b Base, index int32) (track, bool) {
	tc, ok := b.(*trackCollection)
	if !ok {
		return track{}, false
	}
	t, err := tc.Get(int(index))
	if err != nil {
		return track{}, false
	}
	return t, true
}

type trackCollection struct {
	*Collection[trackData, trackRels, track]
	ties *RelationColumn[track]
}

func (c *trackCollection) hooks() Hooks[trackData, trackRels, track] {
	return Hooks[trackData, trackRels, track]{
		Wrap:   func(o *trackObj) track { return track{obj: o} },
		Unwrap: func(t track) *trackObj { return t.obj },
		OnAppend: func(o *trackObj, row int) error {
			begin, end, err := o.Rel.Ties.Bind(c.ties, row)
			if err != nil {
				return err
			}
			o.Data.TiesBegin, o.Data.TiesEnd = begin, end
			return nil
		},
		OnMaterialize: func(o *trackObj, row int) {
			o.Rel.Ties.Attach(c.ties, row)
		},
		OnPrepare: func() error { return c.ties.Finalize() },
		OnAfterRead: func() error {
			return ValidateRanges(c.Records(), "ties", func(d *trackData) (int32, int32) {
				return d.TiesBegin, d.TiesEnd
			}, c.ties.Len())
		},
		OnSetReferences: func(p Provider) error { return c.ties.Resolve(p) },
		Relations:       func() [][]model.ObjectID { return [][]model.ObjectID{c.ties.IDs()} },
	}
}

func newTrackCollection() *trackCollection {
	c := &trackCollection{
		ties: NewRelationColumn("ties", trackIDOf, trackLookup),
	}
	c.Collection = New("test.Track", 1, c.hooks())
	return c
}

func trackCollectionFrom(records []trackData, ids []model.ObjectID) *trackCollection {
	c := &trackCollection{
		ties: LoadRelationColumn("ties", ids, trackIDOf, trackLookup),
	}
	c.Collection = FromRecords("test.Track", 1, records, c.hooks())
	return c
}

type mapProvider map[model.CollectionID]Base

func (p mapProvider) CollectionFor(id model.CollectionID) (Base, bool) {
	c, ok := p[id]
	return c, ok
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	c := newTrackCollection()
	require.NoError(t, c.SetID(5))

	seen := map[model.ObjectID]bool{}
	for i := int32(0); i < 4; i++ {
		tr := newTrack(i)
		require.NoError(t, c.Append(tr))
		id := tr.obj.ID()
		assert.Equal(t, model.ObjectID{Index: i, CollectionID: 5}, id)
		require.False(t, seen[id], "duplicate identifier %v", id)
		seen[id] = true
	}
}

func TestSetIDExactlyOnce(t *testing.T) {
	c := newTrackCollection()
	require.NoError(t, c.SetID(1))
	require.True(t, errors.Is(c.SetID(2), ErrIDAlreadySet))
}

func TestAppendAfterPrepareFails(t *testing.T) {
	c := newTrackCollection()
	require.NoError(t, c.Append(newTrack(1)))
	require.NoError(t, c.PrepareForWrite())
	require.True(t, errors.Is(c.Append(newTrack(2)), ErrReadOnly))
}

func TestGetOutOfRange(t *testing.T) {
	c := newTrackCollection()
	_, err := c.Get(0)
	require.True(t, errors.Is(err, ErrOutOfRange))
}

func TestRelationRanges(t *testing.T) {
	c := newTrackCollection()
	require.NoError(t, c.SetID(1))

	t0 := newTrack(0)
	t1 := newTrack(1)
	require.NoError(t, c.Append(t0))

	// Targets added after the append extend the open tail range.
	require.NoError(t, t0.addTie(t1))
	require.NoError(t, c.Append(t1))

	require.Equal(t, int32(0), t0.obj.Data.TiesBegin)
	require.Equal(t, int32(1), t0.obj.Data.TiesEnd)
	require.Equal(t, int32(1), t1.obj.Data.TiesBegin)
	require.Equal(t, int32(1), t1.obj.Data.TiesEnd)
}

func TestRelationAppendOrder(t *testing.T) {
	c := newTrackCollection()
	require.NoError(t, c.SetID(1))

	t0 := newTrack(0)
	t1 := newTrack(1)
	require.NoError(t, c.Append(t0))

	// Two targets land in t0's range while it is still the tail.
	require.NoError(t, t0.addTie(t1))
	require.NoError(t, t0.addTie(t0))

	require.NoError(t, c.Append(t1))

	// t1 closed t0's range; growing it now is an ordering violation.
	err := t0.addTie(t1)
	require.True(t, errors.Is(err, ErrRelationOrder))

	require.Equal(t, int32(0), t0.obj.Data.TiesBegin)
	require.Equal(t, int32(2), t0.obj.Data.TiesEnd)
	require.Equal(t, 0, int(t1.obj.Data.TiesEnd-t1.obj.Data.TiesBegin))
	require.Equal(t, 2, c.ties.Len())
}

func TestPrepareFailsOnUnboundTarget(t *testing.T) {
	c := newTrackCollection()
	require.NoError(t, c.SetID(1))

	t0 := newTrack(0)
	require.NoError(t, c.Append(t0))
	// stray was never appended anywhere, so it has no durable identity.
	stray := newTrack(9)
	require.NoError(t, t0.addTie(stray))

	err := c.PrepareForWrite()
	require.True(t, errors.Is(err, ErrUnboundTarget))
}

func TestBuffersRequirePrepare(t *testing.T) {
	c := newTrackCollection()
	require.NoError(t, c.Append(newTrack(3)))

	_, err := c.Buffers()
	require.True(t, errors.Is(err, ErrNotPrepared))

	require.NoError(t, c.PrepareForWrite())
	bufs, err := c.Buffers()
	require.NoError(t, err)

	records, ok := bufs.Records.([]trackData)
	require.True(t, ok)
	require.Len(t, records, 1)
	assert.Equal(t, int32(3), records[0].Charge)
	require.Len(t, bufs.Relations, 1)
}

func TestBufferRoundTripReproducesTopology(t *testing.T) {
	c := newTrackCollection()
	require.NoError(t, c.SetID(7))

	t0 := newTrack(10)
	t1 := newTrack(11)
	t2 := newTrack(12)
	for _, tr := range []track{t0, t1, t2} {
		require.NoError(t, c.Append(tr))
	}
	require.NoError(t, t2.addTie(t0))
	require.NoError(t, t2.addTie(t1))

	require.NoError(t, c.PrepareForWrite())
	bufs, err := c.Buffers()
	require.NoError(t, err)

	loaded := trackCollectionFrom(bufs.Records.([]trackData), bufs.Relations[0])
	require.NoError(t, loaded.SetID(7))
	require.NoError(t, loaded.PrepareAfterRead())
	require.NoError(t, loaded.SetReferences(mapProvider{7: loaded}))
	require.True(t, loaded.ties.FullyResolved())

	require.Equal(t, 3, loaded.Size())
	got, err := loaded.Get(2)
	require.NoError(t, err)
	assert.Equal(t, int32(12), got.obj.Data.Charge)

	var charges []int32
	for tie := range got.obj.Rel.Ties.Range(got.obj.Data.TiesBegin, got.obj.Data.TiesEnd) {
		require.True(t, tie.available())
		charges = append(charges, tie.obj.Data.Charge)
	}
	assert.Equal(t, []int32{10, 11}, charges)
}

func TestUnknownTargetCollectionStaysUnavailable(t *testing.T) {
	records := []trackData{{Charge: 1, TiesBegin: 0, TiesEnd: 1}}
	// Identifier pointing into collection 99, which is never loaded.
	ids := []model.ObjectID{{Index: 0, CollectionID: 99}}

	loaded := trackCollectionFrom(records, ids)
	require.NoError(t, loaded.SetID(1))
	require.NoError(t, loaded.PrepareAfterRead())
	require.NoError(t, loaded.SetReferences(mapProvider{1: loaded}))
	require.False(t, loaded.ties.FullyResolved())

	got, err := loaded.Get(0)
	require.NoError(t, err)
	for tie := range got.obj.Rel.Ties.Range(0, 1) {
		assert.False(t, tie.available())
	}
}

func TestPrepareAfterReadValidatesRanges(t *testing.T) {
	records := []trackData{
		{TiesBegin: 0, TiesEnd: 2},
		{TiesBegin: 1, TiesEnd: 2}, // overlaps the previous range
	}
	ids := []model.ObjectID{{Index: 0, CollectionID: 1}, {Index: 1, CollectionID: 1}}

	loaded := trackCollectionFrom(records, ids)
	require.Error(t, loaded.PrepareAfterRead())
}

func TestValidateRanges(t *testing.T) {
	rangeOf := func(d *trackData) (int32, int32) { return d.TiesBegin, d.TiesEnd }

	require.NoError(t, ValidateRanges([]trackData{
		{TiesBegin: 0, TiesEnd: 2},
		{TiesBegin: 2, TiesEnd: 2},
		{TiesBegin: 2, TiesEnd: 3},
	}, "ties", rangeOf, 3))

	require.Error(t, ValidateRanges([]trackData{
		{TiesBegin: 0, TiesEnd: 4},
	}, "ties", rangeOf, 3), "end past column length")

	require.Error(t, ValidateRanges([]trackData{
		{TiesBegin: 2, TiesEnd: 1},
	}, "ties", rangeOf, 3), "inverted range")
}

func TestMakerRegistryRejectsDuplicates(t *testing.T) {
	maker := func(bufs schema.ReadBuffers) (Base, error) { return nil, nil }

	require.NoError(t, RegisterMaker("test.MakerDup", maker))
	require.Error(t, RegisterMaker("test.MakerDup", maker))

	_, ok := MakerFor("test.MakerDup")
	require.True(t, ok)
	_, ok = MakerFor("test.NoSuchMaker")
	require.False(t, ok)
}
