package eventio

import (
	"errors"
	"fmt"

	"github.com/hupe1980/eventio/collection"
	"github.com/hupe1980/eventio/model"
)

var (
	// ErrDuplicateName is returned when a collection name is registered
	// twice in one store.
	ErrDuplicateName = errors.New("eventio: collection name already registered")
	// ErrNotFound is returned when a named collection does not exist.
	ErrNotFound = errors.New("eventio: collection not found")
	// ErrWrongCollectionType is returned when a named collection has a
	// different concrete type than requested.
	ErrWrongCollectionType = errors.New("eventio: wrong collection type")
)

// StoreOptions configures a Store.
type StoreOptions struct {
	// Logger receives store lifecycle logs. Defaults to a noop logger.
	Logger *Logger
}

// Store tracks the named collections of one event and assigns their
// collection ids. It implements collection.Provider, so it also drives the
// second resolution phase after a read: once every collection of the event
// has been registered, FinishRead turns stored relation identifiers into
// live handles.
//
// A Store is not safe for concurrent mutation; ownership is
// single-threaded per event.
type Store struct {
	logger *Logger

	names  map[string]collection.Base
	order  []string
	byID   map[model.CollectionID]collection.Base
	nextID model.CollectionID
}

// NewStore creates an empty event store.
func NewStore(optFns ...func(o *StoreOptions)) *Store {
	opts := StoreOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	return &Store{
		logger: opts.Logger,
		names:  make(map[string]collection.Base),
		byID:   make(map[model.CollectionID]collection.Base),
		nextID: 1,
	}
}

// Register adds a collection under a name. A collection without an id gets
// the next sequential one; a collection reconstructed from storage keeps
// the id recorded in the file, so persisted relation identifiers stay
// valid.
func (s *Store) Register(name string, c collection.Base) error {
	if _, ok := s.names[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	if err := c.SetID(s.nextID); err != nil {
		if !errors.Is(err, collection.ErrIDAlreadySet) {
			return err
		}
	}
	id := c.ID()
	if _, ok := s.byID[id]; ok {
		return fmt.Errorf("eventio: collection id %d already registered", id)
	}
	if id >= s.nextID {
		s.nextID = id + 1
	}

	s.names[name] = c
	s.order = append(s.order, name)
	s.byID[id] = c

	s.logger.Debug("collection registered",
		"name", name,
		"type", c.TypeName(),
		"id", uint32(id),
	)
	return nil
}

// Get returns the collection registered under name.
func (s *Store) Get(name string) (collection.Base, bool) {
	c, ok := s.names[name]
	return c, ok
}

// Names returns the collection names in registration order.
func (s *Store) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// CollectionFor implements collection.Provider.
func (s *Store) CollectionFor(id model.CollectionID) (collection.Base, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// PrepareForWrite finalizes every collection of the event immediately
// before buffer extraction by a backend.
func (s *Store) PrepareForWrite() error {
	for _, name := range s.order {
		if err := s.names[name].PrepareForWrite(); err != nil {
			return fmt.Errorf("eventio: preparing %q: %w", name, err)
		}
	}
	return nil
}

// FinishRead completes an event read: every collection is wired after its
// load, then cross-collection relation targets are resolved against the
// full set. Identifiers whose collection was not loaded stay unresolved
// and dereference to unavailable handles.
func (s *Store) FinishRead() error {
	for _, name := range s.order {
		if err := s.names[name].PrepareAfterRead(); err != nil {
			return fmt.Errorf("eventio: wiring %q: %w", name, err)
		}
	}
	for _, name := range s.order {
		if err := s.names[name].SetReferences(s); err != nil {
			return fmt.Errorf("eventio: resolving %q: %w", name, err)
		}
	}
	s.logger.Debug("event read finished", "collections", len(s.order))
	return nil
}

// GetAs returns the collection registered under name as its concrete type.
func GetAs[T collection.Base](s *Store, name string) (T, error) {
	var zero T
	c, ok := s.Get(name)
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	t, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is %T", ErrWrongCollectionType, name, c)
	}
	return t, nil
}
