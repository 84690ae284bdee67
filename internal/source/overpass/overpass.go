// Package overpass loads OpenStreetMap features for a tile by posting a
// bounding-box query to an Overpass API endpoint.
package overpass

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
	"github.com/jaennil/guide_helper/backend/geodata/internal/osm"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/config"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/metrics"
	"github.com/sethvargo/go-retry"
)

const (
	Name = "osm"

	// SampleBuffer is added around the tile box, in degrees, so features just
	// outside the tile are available when sampling near its edges.
	SampleBuffer = 5e-4

	bboxPlaceholder = "{{bbox}}"
	sampleThreshold = 512
)

//go:embed queries/*.overpassql
var queries embed.FS

// A tile that fails to parse is invalidated and fetched again, twice at most.
var decodePolicy = source.DecodePolicy{Invalidate: true, MaxRetries: 2}

type Source struct {
	cache  *source.RemoteCache
	client *http.Client
	logger logger.Logger

	endpoint  string
	userAgent string
	referer   string
	query     string

	state geo.CoordinateState
	size  geo.TileSize

	rateLimitDelay   time.Duration
	rateLimitRetries uint64

	shouldSample bool
}

var (
	_ source.TiledSource[*osm.Tile] = (*Source)(nil)
	_ source.Remote                 = (*Source)(nil)
)

var ErrRateLimitDelay = errors.New("overpass: rate limit delay must be positive")

// New builds a source whose cache lives in <globalRoot>/<cfg.CacheDir>.
// A nil client gets one with the configured connect and read timeouts.
func New(cfg config.Overpass, state geo.CoordinateState, globalRoot string, client *http.Client, l logger.Logger) (*Source, error) {
	if cfg.RateLimitDelay <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrRateLimitDelay, cfg.RateLimitDelay)
	}
	query, err := LoadQuery(cfg.Query)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = source.NewHTTPClient(cfg.ConnectTimeout, cfg.ReadTimeout)
	}

	s := &Source{
		client:           client,
		logger:           l,
		endpoint:         cfg.Endpoint,
		userAgent:        cfg.UserAgent,
		referer:          cfg.Referer,
		query:            query,
		state:            state,
		size:             geo.SquareTile(cfg.TileSize),
		rateLimitDelay:   cfg.RateLimitDelay,
		rateLimitRetries: cfg.RateLimitRetries,
		shouldSample:     cfg.TileSize > sampleThreshold,
	}

	s.cache, err = source.NewRemoteCache(Name, globalRoot, cfg.CacheDir, cfg.QueryVersion, s, l)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LoadQuery reads an embedded query template. Lines are joined without
// separators, so templates must not contain line comments.
func LoadQuery(name string) (string, error) {
	raw, err := queries.ReadFile(path.Join("queries", name))
	if err != nil {
		return "", fmt.Errorf("load overpass query %q: %w", name, err)
	}

	var b strings.Builder
	for _, line := range strings.Split(string(raw), "\n") {
		b.WriteString(strings.TrimSpace(line))
	}

	query := b.String()
	if !strings.Contains(query, bboxPlaceholder) {
		return "", fmt.Errorf("overpass query %q has no %s placeholder", name, bboxPlaceholder)
	}
	return query, nil
}

func (s *Source) Cache() *source.RemoteCache {
	return s.cache
}

// ShouldSample reports whether the tile is large enough that consumers
// should thin out dense feature sets.
func (s *Source) ShouldSample() bool {
	return s.shouldSample
}

func (s *Source) ElementType() source.ElementType {
	return source.Vector
}

func (s *Source) DefaultTile() *osm.Tile {
	return osm.NewTile()
}

func (s *Source) CachedName(pos geo.TilePosition) string {
	return fmt.Sprintf("%d_%d.osm", pos.X, pos.Z)
}

// Bounds is the geographic extent of the tile at pos.
func (s *Source) Bounds(pos geo.TilePosition) geo.Bounds {
	return geo.BoundingBox(pos, s.state, s.size)
}

// QueryBounds is the tile box expanded by SampleBuffer.
func (s *Source) QueryBounds(pos geo.TilePosition) geo.Bounds {
	return s.Bounds(pos).Expand(SampleBuffer)
}

// Query returns the request body for pos.
func (s *Source) Query(pos geo.TilePosition) string {
	return strings.ReplaceAll(s.query, bboxPlaceholder, s.QueryBounds(pos).QueryString())
}

func (s *Source) LoadTile(ctx context.Context, pos geo.TilePosition) *osm.Tile {
	tile, err := source.Load(ctx, s.cache, pos, decodePolicy, parse, s.logger)
	if err != nil {
		s.logger.Error("failed to load overpass tile", "name", s.CachedName(pos), "error", err)
		metrics.TileLoads.WithLabelValues(Name, "default").Inc()
		return s.DefaultTile()
	}

	metrics.TileLoads.WithLabelValues(Name, "loaded").Inc()
	return tile
}

func parse(r io.Reader) (*osm.Tile, error) {
	return osm.Parse(r)
}

// GetRemoteStream posts the query for pos. 429 responses are retried after
// a constant delay, at most rateLimitRetries times.
func (s *Source) GetRemoteStream(ctx context.Context, pos geo.TilePosition) (io.ReadCloser, error) {
	query := s.Query(pos)
	backoff := retry.WithMaxRetries(s.rateLimitRetries, retry.NewConstant(s.rateLimitDelay))

	var body io.ReadCloser
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(query))
		if err != nil {
			return err
		}
		req.Header.Set("Accept-Encoding", "gzip")
		req.Header.Set("User-Agent", s.userAgent)
		req.Header.Set("Referer", s.referer)

		resp, err := s.client.Do(req)
		if err != nil {
			return &source.TransportError{URL: s.endpoint, Err: err}
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			metrics.RateLimited.WithLabelValues(Name).Inc()
			s.logger.Warn("overpass rate limited, retrying", "tile", pos, "delay", s.rateLimitDelay)
			return retry.RetryableError(source.ErrRateLimited)
		}
		if err := source.CheckStatus(resp, s.endpoint); err != nil {
			return err
		}

		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}

	return source.GunzipBody(body)
}
