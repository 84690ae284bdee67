package cache

import (
	"context"
	"sync"
)

// syncMap is a sync.Map restricted to one key and value type.
type syncMap[K comparable, V any] struct {
	m sync.Map
}

func (s *syncMap[K, V]) load(k K) (V, bool) {
	v, ok := s.m.Load(k)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

func (s *syncMap[K, V]) store(k K, v V) {
	s.m.Store(k, v)
}

// MapCache keeps responses in process memory for the life of the server.
type MapCache struct {
	tiles syncMap[TileCacheKey, TileCacheValue]
}

func NewMapCache() *MapCache {
	return &MapCache{}
}

var _ TileCache = (*MapCache)(nil)

func (c *MapCache) Get(_ context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	v, ok := c.tiles.load(k)
	return v, ok, nil
}

// Set stores a copy of v so callers may reuse their buffer.
func (c *MapCache) Set(_ context.Context, k TileCacheKey, v TileCacheValue) error {
	c.tiles.store(k, append(TileCacheValue(nil), v...))
	return nil
}
