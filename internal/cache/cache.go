// Package cache provides a thread-safe generic cache plus the process-wide
// rendered-content and asset caches.
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

func (c *Cache[K, V]) SetTo(items map[K]V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
}

// RenderedPost is a cached public rendering of a post's cell list.
type RenderedPost struct {
	HTML []byte
}

var renderedPostCache = NewCache[string, *RenderedPost]()

// GetRenderedPost looks up a rendering by the post's content hash and the
// syntax theme it was highlighted with.
func GetRenderedPost(contentHash, syntaxTheme string) (*RenderedPost, bool) {
	return renderedPostCache.Get(contentHash + ":" + syntaxTheme)
}

func SetRenderedPost(contentHash, syntaxTheme string, html []byte) {
	renderedPostCache.Set(contentHash+":"+syntaxTheme, &RenderedPost{HTML: html})
}

func ClearRenderedPostCache() {
	renderedPostCache.Clear()
}
