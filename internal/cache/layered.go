package cache

import "time"

// LayeredCache reads through layers in order and backfills faster layers on a hit.
// Writes go to every layer.
type LayeredCache struct {
	layers []Cache
}

// NewLayeredCache creates a layered cache, fastest layer first
func NewLayeredCache(layers ...Cache) *LayeredCache {
	return &LayeredCache{layers: layers}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	for i, layer := range c.layers {
		val, found := layer.Get(key)
		if !found {
			continue
		}
		for _, faster := range c.layers[:i] {
			_ = faster.Set(key, val, 0)
		}
		return val, true
	}
	return nil, false
}

func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	for _, layer := range c.layers {
		if err := layer.Set(key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes key from every layer and returns the first error
func (c *LayeredCache) Delete(key string) error {
	var first error
	for _, layer := range c.layers {
		if err := layer.Delete(key); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *LayeredCache) Clear() error {
	var first error
	for _, layer := range c.layers {
		if err := layer.Clear(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
