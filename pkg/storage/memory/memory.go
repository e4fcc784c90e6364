// Package memory provides mutex guarded, tenant scoped in-memory
// implementations of every repository interface. It backs the example server
// and serves as the canonical test fixture; production deployments plug in
// their own persistence.
package memory

import (
	"sync"

	"github.com/authcove/idp/pkg/op"
)

// tenantKey prefixes every stored key with the owning tenant so records of
// different tenants can never collide.
func tenantKey(tenant op.Tenant, id string) string {
	return tenant.ID + "/" + id
}

// store is the shared map-with-mutex every repository builds on.
type store[T any] struct {
	mu sync.RWMutex
	m  map[string]T
}

func newStore[T any]() *store[T] {
	return &store[T]{m: make(map[string]T)}
}

func (s *store[T]) set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *store[T]) get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.m[key]
	return value, ok
}

func (s *store[T]) delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[key]
	delete(s.m, key)
	return ok
}
