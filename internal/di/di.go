// Package di provides a small typed dependency injection container.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry resolves registered services by key.
type ServiceRegistry interface {
	Get(key string) any
}

// Container is a ServiceRegistry that accepts registrations.
type Container interface {
	ServiceRegistry
	Register(key string, value any)
	RegisterFactory(key string, factory func(ServiceRegistry) any)
}

type entry struct {
	factory func(ServiceRegistry) any
	value   any
	built   bool
}

type container struct {
	mu       sync.Mutex
	entries  map[string]*entry
	building map[string]bool
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{
		entries:  make(map[string]*entry),
		building: make(map[string]bool),
	}
}

// Register stores a ready-made value.
func (c *container) Register(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{value: value, built: true}
}

// RegisterFactory stores a lazy singleton factory.
func (c *container) RegisterFactory(key string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{factory: factory}
}

// Get resolves a service, building it on first use. It panics on unknown
// keys and dependency cycles since both are wiring bugs.
func (c *container) Get(key string) any {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		panic(fmt.Sprintf("di: service %q not registered", key))
	}
	if e.built {
		v := e.value
		c.mu.Unlock()
		return v
	}
	if c.building[key] {
		c.mu.Unlock()
		panic(fmt.Sprintf("di: dependency cycle detected at %q", key))
	}
	c.building[key] = true
	c.mu.Unlock()

	// Factories may call Get, so build outside the lock.
	v := e.factory(c)

	c.mu.Lock()
	delete(c.building, key)
	e.value = v
	e.built = true
	c.mu.Unlock()

	return v
}

// Token is a typed key for a service.
type Token[T any] struct {
	key string
}

// NewToken creates a typed token.
func NewToken[T any](key string) Token[T] {
	return Token[T]{key: key}
}

// Key returns the registry key.
func (t Token[T]) Key() string {
	return t.key
}

// RegisterToken registers a typed lazy factory.
func RegisterToken[T any](c Container, t Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(t.key, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves a typed service.
func GetToken[T any](sr ServiceRegistry, t Token[T]) T {
	v, ok := sr.Get(t.key).(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has unexpected type", t.key))
	}
	return v
}
