package eventio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventio/datamodel"
	"github.com/hupe1980/eventio/model"
)

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	st := NewStore()

	hits := datamodel.NewHitCollection()
	clusters := datamodel.NewClusterCollection()
	require.NoError(t, st.Register("hits", hits))
	require.NoError(t, st.Register("clusters", clusters))

	assert.Equal(t, model.CollectionID(1), hits.ID())
	assert.Equal(t, model.CollectionID(2), clusters.ID())
	assert.Equal(t, []string{"hits", "clusters"}, st.Names())
}

func TestRegisterKeepsPersistedID(t *testing.T) {
	st := NewStore()

	loaded := datamodel.NewHitCollection()
	require.NoError(t, loaded.SetID(7))
	require.NoError(t, st.Register("hits", loaded))
	assert.Equal(t, model.CollectionID(7), loaded.ID())

	// Fresh collections registered afterwards never collide with it.
	next := datamodel.NewClusterCollection()
	require.NoError(t, st.Register("clusters", next))
	assert.Equal(t, model.CollectionID(8), next.ID())
}

func TestRegisterDuplicateNameFails(t *testing.T) {
	st := NewStore()
	require.NoError(t, st.Register("hits", datamodel.NewHitCollection()))
	err := st.Register("hits", datamodel.NewHitCollection())
	require.True(t, errors.Is(err, ErrDuplicateName))
}

func TestRegisterDuplicateIDFails(t *testing.T) {
	st := NewStore()

	a := datamodel.NewHitCollection()
	require.NoError(t, a.SetID(3))
	b := datamodel.NewHitCollection()
	require.NoError(t, b.SetID(3))

	require.NoError(t, st.Register("a", a))
	require.Error(t, st.Register("b", b))
}

func TestGetAs(t *testing.T) {
	st := NewStore()
	require.NoError(t, st.Register("hits", datamodel.NewHitCollection()))

	hits, err := GetAs[*datamodel.HitCollection](st, "hits")
	require.NoError(t, err)
	require.NotNil(t, hits)

	_, err = GetAs[*datamodel.ClusterCollection](st, "hits")
	require.True(t, errors.Is(err, ErrWrongCollectionType))

	_, err = GetAs[*datamodel.HitCollection](st, "missing")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestCollectionForImplementsProvider(t *testing.T) {
	st := NewStore()
	hits := datamodel.NewHitCollection()
	require.NoError(t, st.Register("hits", hits))

	got, ok := st.CollectionFor(hits.ID())
	require.True(t, ok)
	assert.Same(t, any(hits), any(got))

	_, ok = st.CollectionFor(model.CollectionID(99))
	require.False(t, ok)
}

// A cluster whose hit collection was never loaded resolves to
// unavailable handles, not an error.
func TestFinishReadWithMissingTargetCollection(t *testing.T) {
	hits := datamodel.NewHitCollection()
	h := datamodel.NewHitWith(0, 0, 0, 1.0)
	require.NoError(t, hits.Append(h))

	write := NewStore()
	require.NoError(t, write.Register("hits", hits))

	clusters := datamodel.NewClusterCollection()
	cl := datamodel.NewClusterWith(2.0)
	require.NoError(t, cl.AddHit(h))
	require.NoError(t, clusters.Append(cl))
	require.NoError(t, write.Register("clusters", clusters))
	require.NoError(t, write.PrepareForWrite())

	bufs, err := clusters.Buffers()
	require.NoError(t, err)

	loaded, err := datamodel.ClusterCollectionFrom(bufs)
	require.NoError(t, err)
	require.NoError(t, loaded.SetID(clusters.ID()))

	read := NewStore()
	require.NoError(t, read.Register("clusters", loaded))
	require.NoError(t, read.FinishRead())

	got, err := loaded.Get(0)
	require.NoError(t, err)
	require.Equal(t, 1, got.HitCount())
	for hit := range got.Hits() {
		assert.False(t, hit.IsAvailable())
	}
}
