package cache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is an in-process LRU cache with a fixed TTL per entry.
type Memory[V any] struct {
	lru *expirable.LRU[string, V]
}

// NewMemory creates an in-process cache holding at most size entries for ttl each.
func NewMemory[V any](size int, ttl time.Duration) *Memory[V] {
	if size <= 0 {
		size = 128
	}
	return &Memory[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}
}

// Get returns the cached value and whether it was present.
func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

// Set stores value under key.
func (m *Memory[V]) Set(_ context.Context, key string, value V) error {
	m.lru.Add(key, value)
	return nil
}

// Delete removes a single key.
func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (m *Memory[V]) DeletePrefix(_ context.Context, prefix string) error {
	for _, key := range m.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.lru.Remove(key)
		}
	}
	return nil
}

// Purge drops all entries.
func (m *Memory[V]) Purge(context.Context) error {
	m.lru.Purge()
	return nil
}

// Len reports the number of live entries.
func (m *Memory[V]) Len() int {
	return m.lru.Len()
}
