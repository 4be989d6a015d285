package resolver

import (
	"container/list"
	"sync"
)

// DefaultCacheSize is capacity of resolution cache unless configured.
const DefaultCacheSize = 100

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

// lruCache is bounded recency ordered cache. Get promotes entries, so every
// operation takes the exclusive lock.
type lruCache[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]*list.Element
	order *list.List // front is least recently used
	size  int
}

func newLruCache[K comparable, V any](size int) *lruCache[K, V] {
	if size < 1 {
		size = DefaultCacheSize
	}
	return &lruCache[K, V]{
		items: make(map[K]*list.Element, size),
		order: list.New(),
		size:  size,
	}
}

// set stores value and reports whether an entry was evicted to make room.
func (c *lruCache[K, V]) set(key K, value V) (evicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value = lruEntry[K, V]{key: key, value: value}
		c.order.MoveToBack(elem)
		return false
	}
	c.items[key] = c.order.PushBack(lruEntry[K, V]{key: key, value: value})
	if len(c.items) > c.size {
		front := c.order.Front()
		c.order.Remove(front)
		delete(c.items, front.Value.(lruEntry[K, V]).key)
		return true
	}
	return false
}

func (c *lruCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToBack(elem)
	return elem.Value.(lruEntry[K, V]).value, true
}

func (c *lruCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// keys returns cached keys from least to most recently used.
func (c *lruCache[K, V]) keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]K, 0, len(c.items))
	for e := c.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(lruEntry[K, V]).key)
	}
	return out
}
