// Package session keeps chat sessions in memory keyed by an opaque session id.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kiku/internal/chat"
	"github.com/patrickmn/go-cache"
)

// Factory builds a fresh chat session.
type Factory func() *chat.Session

// Registry holds sessions with a sliding expiry: every lookup renews the entry.
type Registry struct {
	cache   *cache.Cache
	factory Factory
	ttl     time.Duration
	mu      sync.Mutex
}

// NewRegistry creates a registry whose sessions expire after ttl of inactivity.
// Expired sessions are purged every cleanupInterval.
func NewRegistry(factory Factory, ttl, cleanupInterval time.Duration) *Registry {
	return &Registry{
		cache:   cache.New(ttl, cleanupInterval),
		factory: factory,
		ttl:     ttl,
	}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Get returns the session with id and renews its expiry.
func (r *Registry) Get(id string) (*chat.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *Registry) get(id string) (*chat.Session, bool) {
	if id == "" {
		return nil, false
	}
	x, found := r.cache.Get(id)
	if !found {
		return nil, false
	}
	s := x.(*chat.Session)
	r.cache.Set(id, s, cache.DefaultExpiration)
	return s, true
}

// GetOrCreate returns the session with id, creating it when missing or expired.
// An empty id gets a generated one. The returned id is the key the session is stored under.
func (r *Registry) GetOrCreate(id string) (*chat.Session, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.get(id); ok {
		return s, id, false
	}
	if id == "" {
		id = NewID()
	}
	s := r.factory()
	r.cache.Set(id, s, cache.DefaultExpiration)
	return s, id, true
}

// Delete drops the session with id.
func (r *Registry) Delete(id string) {
	r.cache.Delete(id)
}

// Count returns the number of stored sessions, including expired ones not yet purged.
func (r *Registry) Count() int {
	return r.cache.ItemCount()
}

// Each calls fn for every live session.
func (r *Registry) Each(fn func(id string, s *chat.Session)) {
	for id, item := range r.cache.Items() {
		fn(id, item.Object.(*chat.Session))
	}
}
