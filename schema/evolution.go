// Package schema holds the process-wide schema-evolution registry.
//
// Datamodel packages register their evolution chains and buffer factories
// during init, before any file is read. Once registration is complete the
// registry is frozen; a frozen registry is immutable and safe for
// concurrent lock-free reads from any number of goroutines. The
// register/freeze/evolve split is enforced at the API boundary: Register*
// fails after Freeze, Evolve fails before it.
package schema

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/eventio/model"
)

var (
	// ErrFrozen is returned when registering against a frozen registry.
	ErrFrozen = errors.New("schema: registry is frozen")
	// ErrNotFrozen is returned when evolving buffers before Freeze.
	ErrNotFrozen = errors.New("schema: registry is not frozen yet")
	// ErrUnknownType is returned when no evolution chain is registered for
	// a datatype.
	ErrUnknownType = errors.New("schema: unknown datatype")
	// ErrDuplicateRegistration is returned when an evolution function is
	// already registered for the same (type, fromVersion) at equal or
	// higher priority.
	ErrDuplicateRegistration = errors.New("schema: evolution function already registered")
	// ErrVersionMismatch is returned when registrations for one datatype
	// disagree about its current schema version.
	ErrVersionMismatch = errors.New("schema: conflicting current version")
	// ErrMissingStep is returned when the evolution chain has a gap for a
	// version that buffers need to pass through.
	ErrMissingStep = errors.New("schema: no evolution function for version")
	// ErrFutureVersion is returned when buffers claim a schema version
	// newer than the current one.
	ErrFutureVersion = errors.New("schema: buffers are newer than current version")
)

// Priority orders competing registrations for the same evolution step.
// UserDefined always overrides AutoGenerated, regardless of registration
// order; a registration at equal or lower priority than the existing one is
// rejected.
type Priority uint8

const (
	AutoGenerated Priority = iota
	UserDefined
)

// String returns the string representation of the Priority.
func (p Priority) String() string {
	switch p {
	case AutoGenerated:
		return "AutoGenerated"
	case UserDefined:
		return "UserDefined"
	default:
		return "Unknown"
	}
}

// EvolutionFunc transforms record buffers written at schema version v into
// buffers at version v+1. Functions must be pure: no retries are ever
// attempted, and a frozen registry calls them concurrently.
type EvolutionFunc func(buffers ReadBuffers, from model.SchemaVersion) (ReadBuffers, error)

// NoOpEvolution returns the buffers unchanged. Datatypes whose schema never
// changed register it so the registry still knows them.
func NoOpEvolution(buffers ReadBuffers, _ model.SchemaVersion) (ReadBuffers, error) {
	return buffers, nil
}

type evolutionStep struct {
	fn       EvolutionFunc
	priority Priority
	set      bool
}

type typeEvolution struct {
	current model.SchemaVersion
	// steps[v-1] evolves buffers from version v to version v+1.
	steps []evolutionStep
	// factories[v] allocates buffers laid out as schema version v.
	factories map[model.SchemaVersion]BufferFactory
}

// Registry maps datatype names to their evolution chains and versioned
// buffer factories. The zero value is not usable; use NewRegistry.
//
// A Registry has a two-phase lifecycle: a single-owner build phase during
// which Register* mutate it under a lock, and a read phase entered by
// Freeze after which it is immutable and read without locking.
type Registry struct {
	mu     sync.Mutex
	frozen atomic.Bool
	types  map[string]*typeEvolution
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*typeEvolution)}
}

// defaultRegistry is the process-wide instance populated by datamodel
// packages at init time.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// RegisterEvolution registers fn as the step evolving collType buffers from
// fromVersion to fromVersion+1, with currentVersion as the datatype's
// current schema version.
//
// The registration is rejected when a function for (collType, fromVersion)
// already exists at equal or higher priority; a UserDefined registration
// replaces an AutoGenerated one. Every version in [1, currentVersion) must
// eventually have a registered step for the datatype to be readable from
// old files; that completeness is a deployment-time invariant checked when
// buffers are evolved, not here.
func (r *Registry) RegisterEvolution(collType string, fromVersion, currentVersion model.SchemaVersion, fn EvolutionFunc, priority Priority) error {
	if fromVersion < 1 || fromVersion > currentVersion {
		return fmt.Errorf("schema: fromVersion %d out of range for %q (current %d)", fromVersion, collType, currentVersion)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register %q", ErrFrozen, collType)
	}

	te := r.types[collType]
	if te == nil {
		te = &typeEvolution{
			current:   currentVersion,
			factories: make(map[model.SchemaVersion]BufferFactory),
		}
		r.types[collType] = te
	} else if te.current != currentVersion {
		return fmt.Errorf("%w: %q registered at %d, got %d", ErrVersionMismatch, collType, te.current, currentVersion)
	}

	// fromVersion == currentVersion only makes sense for the no-op
	// registration of an unevolved type; it occupies no step slot.
	if fromVersion == currentVersion {
		return nil
	}

	for model.SchemaVersion(len(te.steps)) < fromVersion {
		te.steps = append(te.steps, evolutionStep{})
	}
	slot := &te.steps[fromVersion-1]
	if slot.set && slot.priority >= priority {
		return fmt.Errorf("%w: %q from version %d at priority %s", ErrDuplicateRegistration, collType, fromVersion, slot.priority)
	}
	*slot = evolutionStep{fn: fn, priority: priority, set: true}
	return nil
}

// RegisterBuffers registers the factory allocating buffers of collType as
// laid out at the given schema version. Backends look the factory up by the
// version recorded in the file being read.
func (r *Registry) RegisterBuffers(collType string, version model.SchemaVersion, factory BufferFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register buffers for %q", ErrFrozen, collType)
	}

	te := r.types[collType]
	if te == nil {
		return fmt.Errorf("%w: %q (register an evolution chain first)", ErrUnknownType, collType)
	}
	if _, ok := te.factories[version]; ok {
		return fmt.Errorf("%w: buffers for %q version %d", ErrDuplicateRegistration, collType, version)
	}
	te.factories[version] = factory
	return nil
}

// Freeze transitions the registry to its immutable read phase. Freeze is
// idempotent; after the first call all further registrations fail and
// Evolve becomes available.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen reports whether the registry has entered its read phase.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// CurrentVersion returns the current schema version of collType.
func (r *Registry) CurrentVersion(collType string) (model.SchemaVersion, error) {
	te, err := r.lookup(collType)
	if err != nil {
		return 0, err
	}
	return te.current, nil
}

// Buffers allocates empty buffers for collType laid out as the given schema
// version, via the factory registered for that version.
func (r *Registry) Buffers(collType string, version model.SchemaVersion, n int, relLens []int) (ReadBuffers, error) {
	te, err := r.lookup(collType)
	if err != nil {
		return ReadBuffers{}, err
	}
	factory, ok := te.factories[version]
	if !ok {
		return ReadBuffers{}, fmt.Errorf("schema: no buffer factory for %q version %d", collType, version)
	}
	return factory(n, relLens), nil
}

// Evolve transforms buffers written at fromVersion into buffers at the
// current schema version of collType by chaining the registered step
// functions. When fromVersion already is the current version the input is
// returned unchanged without invoking any function.
//
// Evolve fails when the registry is not frozen, the datatype is unknown,
// the buffers claim a future version, or a required step is missing.
func (r *Registry) Evolve(buffers ReadBuffers, fromVersion model.SchemaVersion, collType string) (ReadBuffers, error) {
	if !r.frozen.Load() {
		return ReadBuffers{}, ErrNotFrozen
	}

	te := r.types[collType]
	if te == nil {
		return ReadBuffers{}, fmt.Errorf("%w: %q", ErrUnknownType, collType)
	}

	if fromVersion == te.current {
		return buffers, nil
	}
	if fromVersion > te.current {
		return ReadBuffers{}, fmt.Errorf("%w: %q version %d, current %d", ErrFutureVersion, collType, fromVersion, te.current)
	}

	for v := fromVersion; v < te.current; v++ {
		if model.SchemaVersion(len(te.steps)) < v || !te.steps[v-1].set {
			return ReadBuffers{}, fmt.Errorf("%w: %q version %d", ErrMissingStep, collType, v)
		}
		var err error
		buffers, err = te.steps[v-1].fn(buffers, v)
		if err != nil {
			return ReadBuffers{}, fmt.Errorf("schema: evolving %q from version %d: %w", collType, v, err)
		}
	}
	return buffers, nil
}

func (r *Registry) lookup(collType string) (*typeEvolution, error) {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	te := r.types[collType]
	if te == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, collType)
	}
	return te, nil
}
