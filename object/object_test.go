package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventio/model"
)

type testData struct {
	X int32
}

func TestNewIsUnbound(t *testing.T) {
	o := New[testData, struct{}]()

	assert.False(t, o.ID().IsBound())
	assert.Equal(t, int32(0), o.Data.X)
}

func TestBindOnce(t *testing.T) {
	o := New[testData, struct{}]()
	id := model.ObjectID{Index: 3, CollectionID: 1}

	require.NoError(t, o.Bind(id))
	assert.Equal(t, id, o.ID())

	err := o.Bind(model.ObjectID{Index: 4, CollectionID: 1})
	assert.Error(t, err)
	assert.Equal(t, id, o.ID())
}

func TestMustAvailable(t *testing.T) {
	o := New[testData, struct{}]()
	assert.Same(t, o, MustAvailable(o, "Test"))

	assert.PanicsWithValue(t, "eventio: access through unavailable Test handle", func() {
		MustAvailable[testData, struct{}](nil, "Test")
	})
}
