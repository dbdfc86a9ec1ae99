package accounts

import (
	"context"
	"sync"
)

// ClientCache holds per-account clients derived from stored credentials.
// Entries are built on first use and dropped by Invalidate; register the
// cache with Manager.AddInvalidator so account mutations reach it.
type ClientCache[T any] struct {
	build func(ctx context.Context, email string) (T, error)

	mu      sync.Mutex
	entries map[string]T
}

// NewClientCache returns a cache that builds missing entries with build.
func NewClientCache[T any](build func(ctx context.Context, email string) (T, error)) *ClientCache[T] {
	return &ClientCache[T]{build: build, entries: map[string]T{}}
}

// Get returns the cached client for email, building it if needed.
func (c *ClientCache[T]) Get(ctx context.Context, email string) (T, error) {
	email = normalizeEmail(email)

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.entries[email]; ok {
		return client, nil
	}
	client, err := c.build(ctx, email)
	if err != nil {
		var zero T
		return zero, err
	}
	c.entries[email] = client
	return client, nil
}

// Invalidate drops the entry for email.
func (c *ClientCache[T]) Invalidate(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, normalizeEmail(email))
}

// Reset drops every entry.
func (c *ClientCache[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]T{}
}

// Len returns the number of cached clients.
func (c *ClientCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
