// Package cache stores encoded API responses so repeated requests skip
// tile decoding and re-encoding.
package cache

import "context"

// TileCacheKey identifies one response. Version is the source's disk cache
// version, so responses encoded before a version bump are never served.
type TileCacheKey struct {
	Source  string
	Version uint16
	X       int
	Z       int
}

type TileCacheValue []byte

type TileCache interface {
	Get(context.Context, TileCacheKey) (TileCacheValue, bool, error)
	Set(context.Context, TileCacheKey, TileCacheValue) error
}

// Nop never stores anything.
type Nop struct{}

var _ TileCache = Nop{}

func (Nop) Get(context.Context, TileCacheKey) (TileCacheValue, bool, error) {
	return nil, false, nil
}

func (Nop) Set(context.Context, TileCacheKey, TileCacheValue) error {
	return nil
}
