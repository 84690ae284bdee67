package source

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
)

// CacheInfo exposes where a source keeps a tile, for diagnostics.
type CacheInfo interface {
	CacheRoot() string
	CachedName(pos geo.TilePosition) string
	Cached(pos geo.TilePosition) bool
	// Version changes whenever cached payloads are invalidated.
	Version() uint16
}

type Entry struct {
	Name   string
	Source Typed
	// Cache is nil for sources without a disk cache.
	Cache CacheInfo
	// Bounds is the geographic extent of a tile, when the source knows it.
	Bounds func(geo.TilePosition) geo.Bounds

	ElementType ElementType
}

// Registry holds sources of different tile types by name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds e under e.Name. The element type is taken from the source.
func (r *Registry) Register(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[e.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, e.Name)
	}
	e.ElementType = e.Source.ElementType()
	r.entries[e.Name] = e
	return nil
}

func (r *Registry) Entry(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return e, ok
}

// Entries returns all sources sorted by name.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the named source if it produces tiles of type T.
func Lookup[T any](r *Registry, name string) (TiledSource[T], error) {
	e, ok := r.Entry(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
	}

	src, ok := e.Source.(TiledSource[T])
	if !ok {
		var want T
		return nil, fmt.Errorf("%w: %s produces %s tiles, not %T", ErrElementType, name, e.ElementType, want)
	}
	return src, nil
}
