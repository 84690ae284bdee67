package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
	"github.com/jaennil/guide_helper/backend/geodata/internal/osm"
	"github.com/jaennil/guide_helper/backend/geodata/internal/raster"
	"github.com/jaennil/guide_helper/backend/geodata/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source/elevation"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source/overpass"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/metrics"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ElevationTile struct {
	Data   []byte
	Width  int
	Height int
	Range  raster.Range
}

type TileInfo struct {
	Source      string
	ElementType source.ElementType
	X           int
	Z           int
	CacheRoot   string
	CachedName  string
	Cached      bool
	Bounds      *geo.Bounds
}

type SourceInfo struct {
	Name        string
	ElementType source.ElementType
	CacheRoot   string
}

type TileUseCase struct {
	registry  *source.Registry
	elevation source.TiledSource[*raster.ShortRasterTile]
	osm       source.TiledSource[*osm.Tile]
	responses cache.TileCache
	logger    logger.Logger
}

// NewTileUseCase resolves the elevation and OSM sources from registry.
func NewTileUseCase(registry *source.Registry, responses cache.TileCache, l logger.Logger) (*TileUseCase, error) {
	elev, err := source.Lookup[*raster.ShortRasterTile](registry, elevation.Name)
	if err != nil {
		return nil, err
	}
	osmSource, err := source.Lookup[*osm.Tile](registry, overpass.Name)
	if err != nil {
		return nil, err
	}

	return &TileUseCase{
		registry:  registry,
		elevation: elev,
		osm:       osmSource,
		responses: responses,
		logger:    l,
	}, nil
}

func (uc *TileUseCase) GetElevation(ctx context.Context, x, z int) (ElevationTile, error) {
	ctx, span := startSpan(ctx, "TileUseCase.GetElevation", x, z)
	defer span.End()

	key := uc.cacheKey(elevation.Name, x, z)

	if data, ok := uc.cached(ctx, key); ok {
		tile, err := raster.ReadShortRasterTile(bytes.NewReader(data), elevation.TileDataSize, elevation.TileDataSize)
		if err == nil {
			span.SetAttributes(attribute.Bool("response_cache.hit", true))
			return elevationTile(tile, data), nil
		}
		uc.logger.Warn("discarding malformed cached elevation response", "x", x, "z", z, "error", err)
	}

	pos := geo.TilePosition{X: x, Z: z}
	tile := uc.elevation.LoadTile(ctx, pos)

	data, err := tile.MarshalBinary()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ElevationTile{}, fmt.Errorf("encode elevation tile: %w", err)
	}

	uc.store(ctx, key, pos, data)
	return elevationTile(tile, data), nil
}

func elevationTile(tile *raster.ShortRasterTile, data []byte) ElevationTile {
	return ElevationTile{
		Data:   data,
		Width:  tile.Width(),
		Height: tile.Height(),
		Range:  tile.Range(),
	}
}

// GetOsm returns the tile's features as a GeoJSON feature collection,
// clipped to the tile when the source knows its bounds.
func (uc *TileUseCase) GetOsm(ctx context.Context, x, z int) ([]byte, error) {
	ctx, span := startSpan(ctx, "TileUseCase.GetOsm", x, z)
	defer span.End()

	key := uc.cacheKey(overpass.Name, x, z)

	if data, ok := uc.cached(ctx, key); ok {
		span.SetAttributes(attribute.Bool("response_cache.hit", true))
		return data, nil
	}

	pos := geo.TilePosition{X: x, Z: z}
	tile := uc.osm.LoadTile(ctx, pos)

	if entry, ok := uc.registry.Entry(overpass.Name); ok && entry.Bounds != nil {
		tile = tile.Clip(entry.Bounds(pos).Orb())
	}

	data, err := json.Marshal(FeatureCollection(tile))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("encode osm tile: %w", err)
	}

	uc.store(ctx, key, pos, data)
	return data, nil
}

func (uc *TileUseCase) Sources() []SourceInfo {
	entries := uc.registry.Entries()

	out := make([]SourceInfo, 0, len(entries))
	for _, e := range entries {
		info := SourceInfo{Name: e.Name, ElementType: e.ElementType}
		if e.Cache != nil {
			info.CacheRoot = e.Cache.CacheRoot()
		}
		out = append(out, info)
	}
	return out
}

// CacheInfo describes where the named source keeps the tile at (x, z).
func (uc *TileUseCase) CacheInfo(name string, x, z int) (TileInfo, error) {
	entry, ok := uc.registry.Entry(name)
	if !ok {
		return TileInfo{}, fmt.Errorf("%w: %s", source.ErrUnknown, name)
	}

	pos := geo.TilePosition{X: x, Z: z}
	info := TileInfo{
		Source:      entry.Name,
		ElementType: entry.ElementType,
		X:           x,
		Z:           z,
	}
	if entry.Cache != nil {
		info.CacheRoot = entry.Cache.CacheRoot()
		info.CachedName = entry.Cache.CachedName(pos)
		info.Cached = entry.Cache.Cached(pos)
	}
	if entry.Bounds != nil {
		b := entry.Bounds(pos)
		info.Bounds = &b
	}
	return info, nil
}

// cacheKey tags the response with the source's disk cache version.
func (uc *TileUseCase) cacheKey(name string, x, z int) cache.TileCacheKey {
	key := cache.TileCacheKey{Source: name, X: x, Z: z}
	if entry, ok := uc.registry.Entry(name); ok && entry.Cache != nil {
		key.Version = entry.Cache.Version()
	}
	return key
}

func (uc *TileUseCase) cached(ctx context.Context, key cache.TileCacheKey) ([]byte, bool) {
	data, ok, err := uc.responses.Get(ctx, key)
	if err != nil {
		uc.logger.Warn("response cache lookup failed", "source", key.Source, "x", key.X, "z", key.Z, "error", err)
		return nil, false
	}
	if !ok {
		metrics.ResponseCacheMisses.Inc()
		return nil, false
	}

	metrics.ResponseCacheHits.Inc()
	return data, true
}

// store keeps the response only when the tile came from the source's disk
// cache, so fallback tiles are never persisted.
func (uc *TileUseCase) store(ctx context.Context, key cache.TileCacheKey, pos geo.TilePosition, data []byte) {
	entry, ok := uc.registry.Entry(key.Source)
	if !ok || entry.Cache == nil || !entry.Cache.Cached(pos) {
		return
	}

	if err := uc.responses.Set(ctx, key, data); err != nil && !errors.Is(err, context.Canceled) {
		uc.logger.Warn("failed to store response", "source", key.Source, "x", key.X, "z", key.Z, "error", err)
	}
}

func startSpan(ctx context.Context, name string, x, z int) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, name,
		trace.WithAttributes(
			attribute.Int("tile.x", x),
			attribute.Int("tile.z", z),
		),
	)
}
