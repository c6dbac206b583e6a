// Package cache provides thread-safe generic caching and the rendered description cache.
package cache

import "sync"

type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]V),
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.items[key]
	return val, ok
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]V)
}

// SetTo replaces the cache contents with items. The map is owned by the cache afterwards.
func (c *Cache[K, V]) SetTo(items map[K]V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if items == nil {
		items = make(map[K]V)
	}
	c.items = items
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Values returns the cached values in no particular order.
func (c *Cache[K, V]) Values() []V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]V, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, v)
	}
	return out
}

// Rendered descriptions are keyed by the hash of their markdown source, so
// edits naturally miss and unchanged text is rendered once.
var renderedDescriptions = NewCache[string, []byte]()

func GetRenderedDescription(contentHash string) ([]byte, bool) {
	return renderedDescriptions.Get(contentHash)
}

func SetRenderedDescription(contentHash string, html []byte) {
	renderedDescriptions.Set(contentHash, html)
}

func ClearRenderedDescriptions() {
	renderedDescriptions.Clear()
}
