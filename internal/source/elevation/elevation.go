// Package elevation loads SRTM-style height grids, one file per whole-degree
// tile, from a remote mirror.
package elevation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
	"github.com/jaennil/guide_helper/backend/geodata/internal/raster"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/config"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/metrics"
)

const (
	Name = "srtm"

	// TileSize is the geographic edge of a tile in samples.
	TileSize = 1200
	// TileDataSize is the payload edge. Neighbouring tiles share a row and column.
	TileDataSize = TileSize + 1
)

type Source struct {
	cache    *source.RemoteCache
	client   *http.Client
	manifest *ValidTiles
	policy   source.DecodePolicy
	logger   logger.Logger

	baseURL  string
	endpoint string
	template string

	state geo.CoordinateState
}

var (
	_ source.TiledSource[*raster.ShortRasterTile] = (*Source)(nil)
	_ source.Remote                               = (*Source)(nil)
)

// New builds a source whose cache lives in <globalRoot>/<cfg.CacheDir>.
// A nil manifest permits every tile.
func New(cfg config.Elevation, state geo.CoordinateState, globalRoot string, client *http.Client, manifest *ValidTiles, l logger.Logger) (*Source, error) {
	if client == nil {
		client = source.NewHTTPClient(cfg.Timeout, cfg.Timeout)
	}
	if manifest == nil {
		manifest = NewValidTiles()
	}

	s := &Source{
		client:   client,
		manifest: manifest,
		policy: source.DecodePolicy{
			Invalidate: cfg.InvalidateCorrupt,
			MaxRetries: cfg.CorruptRetries,
		},
		logger:   l,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		endpoint: cfg.HeightsEndpoint,
		template: cfg.HeightsQuery,
		state:    state,
	}

	var err error
	s.cache, err = source.NewRemoteCache(Name, globalRoot, cfg.CacheDir, cfg.FormatVersion, s, l)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LookupPosition is the position a tile is named and fetched by. Files are
// named after their northern edge, one row above the requested tile.
func LookupPosition(pos geo.TilePosition) geo.TilePosition {
	return pos.Offset(0, 1)
}

func (s *Source) Cache() *source.RemoteCache {
	return s.cache
}

func (s *Source) Manifest() *ValidTiles {
	return s.manifest
}

func (s *Source) ElementType() source.ElementType {
	return source.ShortRaster
}

func (s *Source) DefaultTile() *raster.ShortRasterTile {
	return raster.NewShortRasterTile(TileDataSize, TileDataSize)
}

// Bounds is the geographic extent of the requested tile.
func (s *Source) Bounds(pos geo.TilePosition) geo.Bounds {
	return geo.BoundingBox(pos, s.state, geo.SquareTile(TileSize))
}

// CachedName names a lookup position, e.g. N06W070.hgt for Z=6, X=-70.
func (s *Source) CachedName(pos geo.TilePosition) string {
	lat, lng := pos.Z, pos.X

	latPrefix := "N"
	if lat < 0 {
		latPrefix = "S"
		lat = -lat
	}
	lngPrefix := "E"
	if lng < 0 {
		lngPrefix = "W"
		lng = -lng
	}

	return fmt.Sprintf(s.template,
		fmt.Sprintf("%s%02d", latPrefix, lat),
		fmt.Sprintf("%s%03d", lngPrefix, lng),
	)
}

func (s *Source) TileURL(pos geo.TilePosition) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.endpoint, s.CachedName(pos))
}

func (s *Source) LoadTile(ctx context.Context, pos geo.TilePosition) *raster.ShortRasterTile {
	key := LookupPosition(pos)

	if !s.manifest.Permits(key) {
		metrics.TileLoads.WithLabelValues(Name, "skipped").Inc()
		return s.DefaultTile()
	}

	tile, err := source.Load(ctx, s.cache, key, s.policy, decode, s.logger)
	if err != nil {
		s.logger.Error("failed to load height tile", "name", s.CachedName(key), "error", err)
		metrics.TileLoads.WithLabelValues(Name, "default").Inc()
		return s.DefaultTile()
	}

	metrics.TileLoads.WithLabelValues(Name, "loaded").Inc()
	return tile
}

func decode(r io.Reader) (*raster.ShortRasterTile, error) {
	return raster.ReadShortRasterTile(r, TileDataSize, TileDataSize)
}

func (s *Source) GetRemoteStream(ctx context.Context, pos geo.TilePosition) (io.ReadCloser, error) {
	url := s.TileURL(pos)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &source.TransportError{URL: url, Err: err}
	}
	if err := source.CheckStatus(resp, url); err != nil {
		return nil, err
	}

	return source.GunzipBody(resp.Body)
}

// Diagnostics reports cache state by requested position rather than lookup position.
func (s *Source) Diagnostics() source.CacheInfo {
	return diagnostics{s}
}

type diagnostics struct {
	s *Source
}

func (d diagnostics) CacheRoot() string {
	return d.s.cache.CacheRoot()
}

func (d diagnostics) Version() uint16 {
	return d.s.cache.Version()
}

func (d diagnostics) CachedName(pos geo.TilePosition) string {
	return d.s.CachedName(LookupPosition(pos))
}

func (d diagnostics) Cached(pos geo.TilePosition) bool {
	return d.s.cache.Cached(LookupPosition(pos))
}
