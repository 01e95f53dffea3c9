package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventio/model"
)

type stepData struct {
	Value int32
}

// tagStep returns an evolution function that appends tag to every record.
func tagStep(tag int32) EvolutionFunc {
	return func(buffers ReadBuffers, _ model.SchemaVersion) (ReadBuffers, error) {
		records := buffers.Records.([]stepData)
		out := make([]stepData, len(records))
		for i, rec := range records {
			out[i] = stepData{Value: rec.Value*10 + tag}
		}
		return ReadBuffers{Records: out, Relations: buffers.Relations}, nil
	}
}

func TestEvolveChainsAllSteps(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterEvolution("StepType", 1, 3, tagStep(1), AutoGenerated))
	require.NoError(t, r.RegisterEvolution("StepType", 2, 3, tagStep(2), AutoGenerated))
	r.Freeze()

	in := ReadBuffers{Records: []stepData{{Value: 7}}}
	out, err := r.Evolve(in, 1, "StepType")
	require.NoError(t, err)

	// v1 -> v2 appends 1, v2 -> v3 appends 2.
	assert.Equal(t, []stepData{{Value: 712}}, out.Records)
}

func TestEvolveIdentityAtCurrentVersion(t *testing.T) {
	r := NewRegistry()
	invoked := false
	fn := func(buffers ReadBuffers, _ model.SchemaVersion) (ReadBuffers, error) {
		invoked = true
		return buffers, nil
	}
	require.NoError(t, r.RegisterEvolution("StepType", 1, 2, fn, AutoGenerated))
	r.Freeze()

	records := []stepData{{Value: 1}}
	in := ReadBuffers{Records: records}
	out, err := r.Evolve(in, 2, "StepType")
	require.NoError(t, err)

	assert.False(t, invoked)
	assert.Equal(t, in, out)
}

func TestEvolveUnknownType(t *testing.T) {
	r := NewRegistry()
	r.Freeze()

	_, err := r.Evolve(ReadBuffers{}, 1, "Nobody")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestEvolveMissingStep(t *testing.T) {
	r := NewRegistry()
	// Current version 3 but only the 2 -> 3 step registered.
	require.NoError(t, r.RegisterEvolution("Gappy", 2, 3, tagStep(2), AutoGenerated))
	r.Freeze()

	_, err := r.Evolve(ReadBuffers{Records: []stepData{}}, 1, "Gappy")
	assert.ErrorIs(t, err, ErrMissingStep)
}

func TestEvolveFutureVersion(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterEvolution("StepType", 2, 2, NoOpEvolution, AutoGenerated))
	r.Freeze()

	_, err := r.Evolve(ReadBuffers{}, 5, "StepType")
	assert.ErrorIs(t, err, ErrFutureVersion)
}

func TestEvolveRequiresFreeze(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterEvolution("StepType", 1, 1, NoOpEvolution, AutoGenerated))

	_, err := r.Evolve(ReadBuffers{}, 1, "StepType")
	assert.ErrorIs(t, err, ErrNotFrozen)
}

func TestRegisterAfterFreezeFails(t *testing.T) {
	r := NewRegistry()
	r.Freeze()

	err := r.RegisterEvolution("StepType", 1, 1, NoOpEvolution, AutoGenerated)
	assert.ErrorIs(t, err, ErrFrozen)
}

func TestUserDefinedOverridesAutoGenerated(t *testing.T) {
	invoke := func(register func(r *Registry)) []stepData {
		r := NewRegistry()
		register(r)
		r.Freeze()

		out, err := r.Evolve(ReadBuffers{Records: []stepData{{Value: 0}}}, 1, "TypeX")
		require.NoError(t, err)
		return out.Records.([]stepData)
	}

	// Auto first, user second: user wins.
	got := invoke(func(r *Registry) {
		require.NoError(t, r.RegisterEvolution("TypeX", 1, 2, tagStep(1), AutoGenerated))
		require.NoError(t, r.RegisterEvolution("TypeX", 1, 2, tagStep(9), UserDefined))
	})
	assert.Equal(t, []stepData{{Value: 9}}, got)

	// User first, auto second: auto is rejected, user still wins.
	got = invoke(func(r *Registry) {
		require.NoError(t, r.RegisterEvolution("TypeX", 1, 2, tagStep(9), UserDefined))
		err := r.RegisterEvolution("TypeX", 1, 2, tagStep(1), AutoGenerated)
		assert.ErrorIs(t, err, ErrDuplicateRegistration)
	})
	assert.Equal(t, []stepData{{Value: 9}}, got)
}

func TestSamePriorityReRegistrationRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterEvolution("TypeX", 1, 2, tagStep(1), UserDefined))

	err := r.RegisterEvolution("TypeX", 1, 2, tagStep(2), UserDefined)
	assert.ErrorIs(t, err, ErrDuplicateRegistration)
}

func TestConflictingCurrentVersion(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterEvolution("TypeX", 1, 2, tagStep(1), AutoGenerated))

	err := r.RegisterEvolution("TypeX", 2, 3, tagStep(2), AutoGenerated)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestBufferFactoryRoundtrip(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterEvolution("StepType", 1, 1, NoOpEvolution, AutoGenerated))
	require.NoError(t, r.RegisterBuffers("StepType", 1, func(n int, relLens []int) ReadBuffers {
		rels := make([][]model.ObjectID, len(relLens))
		for i, l := range relLens {
			rels[i] = make([]model.ObjectID, l)
		}
		return ReadBuffers{Records: make([]stepData, n), Relations: rels}
	}))
	r.Freeze()

	bufs, err := r.Buffers("StepType", 1, 4, []int{2})
	require.NoError(t, err)
	assert.Len(t, bufs.Records.([]stepData), 4)
	require.Len(t, bufs.Relations, 1)
	assert.Len(t, bufs.Relations[0], 2)

	_, err = r.Buffers("StepType", 9, 4, nil)
	assert.Error(t, err)
}

func TestRegisterBuffersUnknownType(t *testing.T) {
	r := NewRegistry()

	err := r.RegisterBuffers("Nobody", 1, func(int, []int) ReadBuffers { return ReadBuffers{} })
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestCurrentVersion(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterEvolution("StepType", 3, 3, NoOpEvolution, AutoGenerated))

	v, err := r.CurrentVersion("StepType")
	require.NoError(t, err)
	assert.Equal(t, model.SchemaVersion(3), v)

	_, err = r.CurrentVersion("Nobody")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestEvolutionFuncErrorPropagates(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	fail := func(ReadBuffers, model.SchemaVersion) (ReadBuffers, error) { return ReadBuffers{}, boom }
	require.NoError(t, r.RegisterEvolution("StepType", 1, 2, fail, AutoGenerated))
	r.Freeze()

	_, err := r.Evolve(ReadBuffers{Records: []stepData{}}, 1, "StepType")
	assert.ErrorIs(t, err, boom)
}
