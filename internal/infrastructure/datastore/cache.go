package datastore

import (
	"bytes"
	"sort"
	"sync"
)

// Cache mirrors the last durably written document of each collection.
// Documents are held as encoded JSON; Get hands out a private copy so callers
// decoding or editing it never share memory with the cache.
type Cache struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{docs: make(map[string][]byte)}
}

// Get returns a copy of the cached document, or false if the collection is not loaded.
func (c *Cache) Get(collection string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[collection]
	if !ok {
		return nil, false
	}
	return bytes.Clone(doc), true
}

// Put stores a copy of doc.
func (c *Cache) Put(collection string, doc []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs[collection] = bytes.Clone(doc)
}

// Equal reports whether the cached document is byte-identical to doc.
func (c *Cache) Equal(collection string, doc []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.docs[collection]
	return ok && bytes.Equal(cached, doc)
}

// Names returns the loaded collection names, sorted.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.docs))
	for name := range c.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the total cached bytes.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, doc := range c.docs {
		n += len(doc)
	}
	return n
}
