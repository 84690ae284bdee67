package overpass

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/config"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleTile = `{"elements": [
  {"type": "node", "id": 1, "lat": 0.3, "lon": 0.6},
  {"type": "node", "id": 2, "lat": 0.4, "lon": 0.7},
  {"type": "way", "id": 10, "nodes": [1, 2], "tags": {"highway": "track"}}
]}`

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testConfig(endpoint string) config.Overpass {
	return config.Overpass{
		Endpoint:         endpoint,
		CacheDir:         "osm",
		Query:            "general.overpassql",
		QueryVersion:     1,
		TileSize:         0.25,
		ConnectTimeout:   time.Second,
		ReadTimeout:      5 * time.Second,
		RateLimitDelay:   time.Millisecond,
		RateLimitRetries: 16,
		UserAgent:        "geodata-test",
		Referer:          "https://example.com/geodata",
	}
}

func newTestSource(t *testing.T, cfg config.Overpass) *Source {
	t.Helper()
	s, err := New(cfg, geo.LatLng(), t.TempDir(), nil, logger.Wrap(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return s
}

func TestQueryBoundsExpandedBySampleBuffer(t *testing.T) {
	s := newTestSource(t, testConfig("http://127.0.0.1:0"))
	pos := geo.TilePosition{X: 2, Z: 1}

	assert.Equal(t, "0.249500,0.499500,0.500500,0.750500", s.QueryBounds(pos).QueryString())
	assert.Contains(t, s.Query(pos), `way["highway"](0.249500,0.499500,0.500500,0.750500);`)
	assert.NotContains(t, s.Query(pos), bboxPlaceholder)
}

func TestCachedName(t *testing.T) {
	s := newTestSource(t, testConfig("http://127.0.0.1:0"))
	assert.Equal(t, "-3_7.osm", s.CachedName(geo.TilePosition{X: -3, Z: 7}))
}

func TestShouldSample(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	assert.False(t, newTestSource(t, cfg).ShouldSample())

	cfg.TileSize = 1024
	assert.True(t, newTestSource(t, cfg).ShouldSample())
}

func TestUnknownQuery(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	cfg.Query = "missing.overpassql"

	_, err := New(cfg, geo.LatLng(), t.TempDir(), nil, logger.NewNoOp())
	assert.Error(t, err)
}

func TestNewRejectsRateLimitDelay(t *testing.T) {
	for _, delay := range []time.Duration{0, -time.Second} {
		cfg := testConfig("http://127.0.0.1:0")
		cfg.RateLimitDelay = delay

		_, err := New(cfg, geo.LatLng(), t.TempDir(), nil, logger.NewNoOp())
		assert.ErrorIs(t, err, ErrRateLimitDelay, "delay %s", delay)
	}
}

func TestLoadTileRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))
		assert.Equal(t, "geodata-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "https://example.com/geodata", r.Header.Get("Referer"))

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "0.249500,0.499500,0.500500,0.750500")

		w.Write(gzipped(t, sampleTile))
	}))
	defer srv.Close()

	s := newTestSource(t, testConfig(srv.URL))
	pos := geo.TilePosition{X: 2, Z: 1}

	tile := s.LoadTile(context.Background(), pos)
	require.Len(t, tile.Ways, 1)
	assert.Equal(t, "track", tile.Ways[10].Tags["highway"])
	assert.True(t, s.Cache().Cached(pos))

	// Served from disk the second time.
	s.LoadTile(context.Background(), pos)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRateLimitedRequestIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(gzipped(t, sampleTile))
	}))
	defer srv.Close()

	s := newTestSource(t, testConfig(srv.URL))

	tile := s.LoadTile(context.Background(), geo.TilePosition{X: 2, Z: 1})
	assert.Len(t, tile.Nodes, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRateLimitRetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RateLimitRetries = 3
	s := newTestSource(t, cfg)
	pos := geo.TilePosition{}

	_, err := s.GetRemoteStream(context.Background(), pos)
	assert.ErrorIs(t, err, source.ErrRateLimited)
	assert.Equal(t, int32(4), calls.Load())

	assert.True(t, s.LoadTile(context.Background(), pos).Empty())
	assert.NoFileExists(t, s.Cache().MetadataFile(pos))
}

func TestServerErrorFallsBackToDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	s := newTestSource(t, testConfig(srv.URL))
	pos := geo.TilePosition{X: 1, Z: 1}

	_, err := s.GetRemoteStream(context.Background(), pos)
	var transportErr *source.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusGatewayTimeout, transportErr.StatusCode)

	assert.True(t, s.LoadTile(context.Background(), pos).Empty())
	assert.NoFileExists(t, s.Cache().CacheFile(pos))
}

func TestCorruptTileIsReloadedThenDefaulted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write(gzipped(t, `{"elements": [{"type": "node", "id": 1`))
	}))
	defer srv.Close()

	s := newTestSource(t, testConfig(srv.URL))
	pos := geo.TilePosition{X: 4, Z: 4}

	tile := s.LoadTile(context.Background(), pos)
	assert.True(t, tile.Empty())
	assert.Equal(t, int32(3), calls.Load())
	assert.NoFileExists(t, s.Cache().CacheFile(pos))
	assert.NoFileExists(t, s.Cache().MetadataFile(pos))
}
