// Package registry provides a keyed-by-short-name producer factory
// registry, populated at startup by the surrounding (out-of-scope) layer
// per spec.md §9's "global module initialization" design note. The core
// itself only ever registers "empty", since EmptyProducer is the one
// producer type the Stage invariants require to always be available.
package registry

import (
	"fmt"
	"sync"

	"github.com/onairstack/stagecast/internal/playout/frame"
	"github.com/onairstack/stagecast/internal/playout/producer"
)

// ProducerFactory builds a Producer from an opaque parameter list. The
// core does not parse params; the surrounding layer that calls Create
// is responsible for giving them meaning ("file" params are a path,
// "scene" params are a scene reference, and so on).
type ProducerFactory interface {
	// Type returns the short name this factory is registered under
	// ("file", "image", "scene", "text", "color", "empty", ...).
	Type() string

	// Create builds a new, uninitialized Producer from params.
	Create(params map[string]string) (producer.Producer, error)
}

// Registry is a thread-safe, keyed-by-type producer factory registry,
// generalized from a handler-factory pattern (handlers keyed by source
// type, looked up by name, built from opaque parameters).
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProducerFactory
}

// New creates an empty Registry. Concrete factories are registered by the
// surrounding layer via Register; the core package itself only ever
// registers the "empty" factory, via RegisterEmpty.
func New() *Registry {
	return &Registry{
		factories: make(map[string]ProducerFactory),
	}
}

// emptyFactory builds EmptyProducers for the given channel format. Its
// params are ignored: the empty producer has nothing to parameterize.
type emptyFactory struct {
	format frame.FormatDesc
}

func (f emptyFactory) Type() string { return "empty" }

func (f emptyFactory) Create(_ map[string]string) (producer.Producer, error) {
	return producer.NewEmptyProducer(producer.EmptyConfig{Format: f.format}), nil
}

// RegisterEmpty registers the "empty" producer factory for the given
// channel format. Every channel's Stage already falls back to its own
// EmptyProducer internally (spec.md §3's Stage invariant); RegisterEmpty
// exists so the same producer type is reachable through the registry by
// any surrounding layer that loads producers by type name rather than by
// constructing them directly.
func (r *Registry) RegisterEmpty(format frame.FormatDesc) {
	r.Register(emptyFactory{format: format})
}

// Register adds a factory to the registry, keyed by its Type().
func (r *Registry) Register(factory ProducerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[factory.Type()] = factory
}

// Get returns the factory registered for producerType.
func (r *Registry) Get(producerType string) (ProducerFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[producerType]
	if !ok {
		return nil, fmt.Errorf("no producer factory registered for type: %s", producerType)
	}
	return factory, nil
}

// Create looks up the factory for producerType and builds a Producer from
// params.
func (r *Registry) Create(producerType string, params map[string]string) (producer.Producer, error) {
	factory, err := r.Get(producerType)
	if err != nil {
		return nil, err
	}
	return factory.Create(params)
}

// SupportedTypes returns all registered producer type names.
func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}
