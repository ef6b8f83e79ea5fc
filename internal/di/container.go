// Package di provides a minimal string-token service container used to wire
// bounded contexts together without import cycles.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry resolves registered services by token.
type ServiceRegistry interface {
	// Get returns the service registered under token, instantiating it on
	// first use if it was registered as a factory. Panics on unknown tokens;
	// wiring errors are programmer errors and should fail fast at startup.
	Get(token string) any
}

// Container is a ServiceRegistry that also accepts registrations.
type Container interface {
	ServiceRegistry

	// Register binds token to an already-constructed value.
	Register(token string, value any)

	// RegisterFactory binds token to a lazily-invoked constructor. The
	// factory runs at most once; the result is cached.
	RegisterFactory(token string, factory func(ServiceRegistry) any)
}

type binding struct {
	once    sync.Once
	value   any
	factory func(ServiceRegistry) any
}

type container struct {
	mu       sync.RWMutex
	bindings map[string]*binding
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{bindings: make(map[string]*binding)}
}

func (c *container) Register(token string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[token] = &binding{value: value}
}

func (c *container) RegisterFactory(token string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[token] = &binding{factory: factory}
}

func (c *container) Get(token string) any {
	c.mu.RLock()
	b, ok := c.bindings[token]
	c.mu.RUnlock()

	if !ok {
		panic(fmt.Sprintf("di: no service registered for token %q", token))
	}

	if b.factory != nil {
		b.once.Do(func() {
			b.value = b.factory(c)
		})
	}
	return b.value
}

// Token is a typed handle for a registered service.
type Token[T any] struct {
	name string
}

// NewToken creates a typed token with the given name.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// String returns the token name.
func (t Token[T]) String() string {
	return t.name
}

// RegisterToken registers a typed factory under token.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves the service registered under token, asserting its type.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	v, ok := sr.Get(token.name).(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has unexpected type %T", token.name, sr.Get(token.name)))
	}
	return v
}
