package cache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

func testTileCache(t *testing.T, c TileCache) {
	t.Helper()
	ctx := context.Background()

	key := TileCacheKey{Source: "srtm", Version: 1, X: -70, Z: 5}

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, TileCacheValue("first")))
	require.NoError(t, c.Set(ctx, TileCacheKey{Source: "osm", Version: 1, X: -70, Z: 5}, TileCacheValue("other source")))

	v, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, TileCacheValue("first"), v)

	require.NoError(t, c.Set(ctx, key, TileCacheValue("second")))
	v, _, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, TileCacheValue("second"), v)

	bumped := key
	bumped.Version = 2
	_, ok, err = c.Get(ctx, bumped)
	require.NoError(t, err)
	assert.False(t, ok, "response from an older source version")

	require.NoError(t, c.Set(ctx, bumped, TileCacheValue("third")))
	v, _, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, TileCacheValue("second"), v)
}

func TestMapCache(t *testing.T) {
	testTileCache(t, NewMapCache())
}

func TestFilesystemCache(t *testing.T) {
	c, err := NewFilesystemCache(filepath.Join(t.TempDir(), "responses"))
	require.NoError(t, err)
	testTileCache(t, c)
}

func TestFilesystemCacheConcurrentSet(t *testing.T) {
	root := filepath.Join(t.TempDir(), "responses")
	c, err := NewFilesystemCache(root)
	require.NoError(t, err)

	ctx := context.Background()
	key := TileCacheKey{Source: "srtm", Version: 1, X: 3, Z: 4}
	values := make([]TileCacheValue, 16)
	for i := range values {
		values[i] = TileCacheValue(bytes.Repeat([]byte{byte('a' + i)}, 64<<10))
	}

	var g errgroup.Group
	for _, v := range values {
		g.Go(func() error { return c.Set(ctx, key, v) })
	}
	require.NoError(t, g.Wait())

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, values, got, "stored value is one complete write")

	entries, err := os.ReadDir(filepath.Dir(c.keyToPath(key)))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are cleaned up")
	assert.Equal(t, "4", entries[0].Name())
}

func TestSQLiteCache(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "test.db"), logger.Wrap(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer c.Close()

	testTileCache(t, c)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	c, err := NewRedisCache(context.Background(), RedisConfig{Addr: addr, DB: 15, KeyPrefix: "geodata-test"})
	require.NoError(t, err)
	defer c.Close()

	testTileCache(t, c)
}

func TestNopCache(t *testing.T) {
	ctx := context.Background()
	key := TileCacheKey{Source: "osm"}

	require.NoError(t, Nop{}.Set(ctx, key, TileCacheValue("x")))
	_, ok, err := Nop{}.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
