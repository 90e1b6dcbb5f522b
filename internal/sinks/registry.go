package sinks

import (
	"fmt"
	"sync"
)

type Registry struct {
	factories map[string]SinkFactory
	mu        sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]SinkFactory),
	}
}

func (r *Registry) Register(sinkType string, factory SinkFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[sinkType] = factory
}

func (r *Registry) Create(sinkType string, config SinkConfig) (Sink, error) {
	r.mu.RLock()
	factory, exists := r.factories[sinkType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("sink type %s not registered", sinkType)
	}

	return factory.Create(config)
}

func (r *Registry) IsRegistered(sinkType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[sinkType]
	return exists
}

func (r *Registry) GetAvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for sinkType := range r.factories {
		types = append(types, sinkType)
	}
	return types
}

var DefaultRegistry = NewRegistry()

func Register(sinkType string, factory SinkFactory) {
	DefaultRegistry.Register(sinkType, factory)
}

func Create(sinkType string, config SinkConfig) (Sink, error) {
	return DefaultRegistry.Create(sinkType, config)
}
