package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnbound(t *testing.T) {
	id := Unbound()

	assert.False(t, id.IsBound())
	assert.Equal(t, UntrackedIndex, id.Index)
	assert.Equal(t, "ObjectID(unbound)", id.String())
}

func TestBoundObjectID(t *testing.T) {
	id := ObjectID{Index: 7, CollectionID: 3}

	assert.True(t, id.IsBound())
	assert.Equal(t, "ObjectID(3:7)", id.String())
}

func TestObjectIDEquality(t *testing.T) {
	a := ObjectID{Index: 1, CollectionID: 2}
	b := ObjectID{Index: 1, CollectionID: 2}
	c := ObjectID{Index: 1, CollectionID: 3}

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestInvalidIndexIsNotBound(t *testing.T) {
	id := ObjectID{Index: InvalidIndex}
	assert.False(t, id.IsBound())
}
