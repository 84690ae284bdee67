package source

import (
	"context"
	"time"

	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
	"github.com/karlseguin/ccache/v3"
	"golang.org/x/sync/singleflight"
)

type MemoConfig struct {
	// Size is the LRU capacity in tiles. A non-positive size disables it.
	Size int64
	TTL  time.Duration
	// LoadTimeout bounds a shared load. Zero leaves it to the source's own
	// transport timeouts.
	LoadTimeout time.Duration
}

// Memoized keeps the most recently loaded tiles of a source in memory and
// collapses concurrent loads of the same position into one.
// Returned tiles are shared between callers and must be treated as read-only.
type Memoized[T any] struct {
	TiledSource[T]

	disk        CacheInfo
	cache       *ccache.Cache[T]
	ttl         time.Duration
	loadTimeout time.Duration
	group       singleflight.Group
}

// Memoize wraps src with an LRU. When disk is non-nil a loaded tile is only
// kept if disk reports it cached, so fallback tiles are reloaded next time.
func Memoize[T any](src TiledSource[T], disk CacheInfo, cfg MemoConfig) TiledSource[T] {
	if cfg.Size <= 0 {
		return src
	}

	return &Memoized[T]{
		TiledSource: src,
		disk:        disk,
		cache:       ccache.New(ccache.Configure[T]().MaxSize(cfg.Size).ItemsToPrune(1)),
		ttl:         cfg.TTL,
		loadTimeout: cfg.LoadTimeout,
	}
}

// LoadTile joins or starts the shared load of pos. The shared load is
// detached from ctx, so a caller giving up returns DefaultTile without
// affecting the others waiting on it.
func (m *Memoized[T]) LoadTile(ctx context.Context, pos geo.TilePosition) T {
	key := pos.String()

	if item := m.cache.Get(key); item != nil && !item.Expired() {
		return item.Value()
	}

	ch := m.group.DoChan(key, func() (any, error) {
		return m.load(context.WithoutCancel(ctx), key, pos), nil
	})

	select {
	case res := <-ch:
		return res.Val.(T)
	case <-ctx.Done():
		return m.TiledSource.DefaultTile()
	}
}

func (m *Memoized[T]) load(ctx context.Context, key string, pos geo.TilePosition) T {
	if m.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.loadTimeout)
		defer cancel()
	}

	tile := m.TiledSource.LoadTile(ctx, pos)
	if ctx.Err() == nil && (m.disk == nil || m.disk.Cached(pos)) {
		m.cache.Set(key, tile, m.ttl)
	}
	return tile
}

// Stop releases the LRU's background worker.
func (m *Memoized[T]) Stop() {
	m.cache.Stop()
}
