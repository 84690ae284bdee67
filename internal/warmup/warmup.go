// Package warmup fills the on-disk tile caches ahead of traffic.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"slices"
	"sync/atomic"

	"github.com/google/hilbert"
	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
	"github.com/jaennil/guide_helper/backend/geodata/internal/osm"
	"github.com/jaennil/guide_helper/backend/geodata/internal/raster"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// MaxPlanTiles caps a single plan. A whole-world elevation sweep is 360x180.
const MaxPlanTiles = 1 << 17

var (
	ErrEmptyRange = errors.New("warmup: empty tile range")
	ErrTooLarge   = errors.New("warmup: tile range too large")
	ErrNoCache    = errors.New("warmup: source has no disk cache")
)

// Plan lists every position in the inclusive range [lo, hi] along a Hilbert
// curve, so consecutive fetches stay spatially close.
func Plan(lo, hi geo.TilePosition) ([]geo.TilePosition, error) {
	if hi.X < lo.X || hi.Z < lo.Z {
		return nil, fmt.Errorf("%w: %v..%v", ErrEmptyRange, lo, hi)
	}

	// Unsigned spans stay exact for any lo <= hi.
	sw, sh := uint(hi.X)-uint(lo.X), uint(hi.Z)-uint(lo.Z)
	if sw >= MaxPlanTiles || sh >= MaxPlanTiles || (sw+1)*(sh+1) > MaxPlanTiles {
		return nil, fmt.Errorf("%w: %v..%v, limit %d tiles", ErrTooLarge, lo, hi, MaxPlanTiles)
	}
	w, h := int(sw)+1, int(sh)+1

	side := max(2, 1<<bits.Len(uint(max(w, h)-1)))
	curve, err := hilbert.NewHilbert(side)
	if err != nil {
		return nil, err
	}

	type ordered struct {
		pos geo.TilePosition
		d   int
	}
	tiles := make([]ordered, 0, w*h)
	for dz := range h {
		for dx := range w {
			d, err := curve.MapInverse(dx, dz)
			if err != nil {
				return nil, err
			}
			tiles = append(tiles, ordered{pos: lo.Offset(dx, dz), d: d})
		}
	}
	slices.SortFunc(tiles, func(a, b ordered) int { return a.d - b.d })

	out := make([]geo.TilePosition, len(tiles))
	for i, t := range tiles {
		out[i] = t.pos
	}
	return out, nil
}

// LoadFunc loads one tile and discards it.
type LoadFunc func(ctx context.Context, pos geo.TilePosition)

// Loader returns a LoadFunc for a registered source of any known element type.
func Loader(r *source.Registry, name string) (LoadFunc, error) {
	e, ok := r.Entry(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrUnknown, name)
	}

	switch e.ElementType {
	case source.ShortRaster:
		src, err := source.Lookup[*raster.ShortRasterTile](r, name)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, pos geo.TilePosition) { src.LoadTile(ctx, pos) }, nil
	case source.Vector:
		src, err := source.Lookup[*osm.Tile](r, name)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, pos geo.TilePosition) { src.LoadTile(ctx, pos) }, nil
	default:
		return nil, fmt.Errorf("%w: %s has element type %q", source.ErrElementType, name, e.ElementType)
	}
}

type Report struct {
	Total int
	// Cached counts tiles present on disk afterwards.
	Cached int
	// Missing tiles were served as defaults, e.g. ocean or a failed fetch.
	Missing int
}

// Prefetcher loads planned positions with bounded concurrency.
type Prefetcher struct {
	Load    LoadFunc
	Cache   source.CacheInfo
	Workers int
	// Progress, when set, is called once per finished tile from any worker.
	Progress func(pos geo.TilePosition, cached bool)
	Logger   logger.Logger
}

// Run loads every position not already cached. It stops early only when ctx
// is cancelled; individual tile failures are counted as missing.
func (p *Prefetcher) Run(ctx context.Context, positions []geo.TilePosition) (Report, error) {
	if p.Cache == nil {
		return Report{}, ErrNoCache
	}
	l := p.Logger
	if l == nil {
		l = logger.NewNoOp()
	}

	var cached, missing atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Workers, 1))

	for _, pos := range positions {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if !p.Cache.Cached(pos) {
				p.Load(gctx, pos)
			}
			if err := gctx.Err(); err != nil {
				return err
			}

			ok := p.Cache.Cached(pos)
			if ok {
				cached.Add(1)
			} else {
				missing.Add(1)
				l.Debug("tile not cached after load", "pos", pos, "name", p.Cache.CachedName(pos))
			}
			if p.Progress != nil {
				p.Progress(pos, ok)
			}
			return nil
		})
	}

	err := g.Wait()
	report := Report{Total: len(positions), Cached: int(cached.Load()), Missing: int(missing.Load())}
	if err == nil {
		err = ctx.Err()
	}
	return report, err
}

// Status counts cached positions without loading anything.
func Status(c source.CacheInfo, positions []geo.TilePosition) (Report, error) {
	if c == nil {
		return Report{}, ErrNoCache
	}
	r := Report{Total: len(positions)}
	for _, pos := range positions {
		if c.Cached(pos) {
			r.Cached++
		} else {
			r.Missing++
		}
	}
	return r, nil
}
