package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventio/datamodel"
)

func TestRNGDeterminism(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)

	require.Equal(t, a.HitData(16), b.HitData(16))
}

func TestRNGReset(t *testing.T) {
	r := NewRNG(7)
	first := r.HitData(8)
	r.Reset()
	require.Equal(t, first, r.HitData(8))
	assert.Equal(t, int64(7), r.Seed())
}

func TestFloat64InRange(t *testing.T) {
	r := NewRNG(1)
	for i := 0; i < 100; i++ {
		v := r.Float64InRange(-5, 5)
		require.GreaterOrEqual(t, v, -5.0)
		require.Less(t, v, 5.0)
	}
}

func TestFillHitCollection(t *testing.T) {
	r := NewRNG(3)
	c := datamodel.NewHitCollection()

	hits, err := r.FillHitCollection(c, 10)
	require.NoError(t, err)
	require.Len(t, hits, 10)
	require.Equal(t, 10, c.Size())

	for i, h := range hits {
		require.True(t, h.IsAvailable())
		assert.Equal(t, int32(i), h.ObjectID().Index)
	}
}
