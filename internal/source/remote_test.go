package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/iotest"

	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

type fakeRemote struct {
	payload []byte
	err     error
	// failAfter makes the stream fail after that many bytes when non-zero.
	failAfter int
	calls     atomic.Int32
}

func (f *fakeRemote) CachedName(pos geo.TilePosition) string {
	return pos.String() + ".bin"
}

func (f *fakeRemote) GetRemoteStream(_ context.Context, _ geo.TilePosition) (io.ReadCloser, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.failAfter > 0 {
		return io.NopCloser(io.MultiReader(
			bytes.NewReader(f.payload[:f.failAfter]),
			iotest.ErrReader(errors.New("connection reset")),
		)), nil
	}
	return io.NopCloser(bytes.NewReader(f.payload)), nil
}

func newTestCache(t *testing.T, root string, version uint16, remote Remote) *RemoteCache {
	t.Helper()
	c, err := NewRemoteCache("test", root, "sub", version, remote, logger.Wrap(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return c
}

func readAll(t *testing.T, rc io.ReadCloser) []byte {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return b
}

func TestRemoteCacheRoundTrip(t *testing.T) {
	root := t.TempDir()
	remote := &fakeRemote{payload: []byte("tile payload")}
	pos := geo.TilePosition{X: 3, Z: -2}

	c := newTestCache(t, root, 7, remote)
	assert.Equal(t, []byte("tile payload"), readAll(t, mustStream(t, c, pos)))
	assert.Equal(t, int32(1), remote.calls.Load())
	assert.True(t, c.Cached(pos))

	// Same version: served from disk.
	again := newTestCache(t, root, 7, remote)
	assert.Equal(t, []byte("tile payload"), readAll(t, mustStream(t, again, pos)))
	assert.Equal(t, int32(1), remote.calls.Load())

	// Bumped version: the well-formed payload on disk is ignored.
	bumped := newTestCache(t, root, 8, remote)
	assert.False(t, bumped.Cached(pos))
	assert.Equal(t, []byte("tile payload"), readAll(t, mustStream(t, bumped, pos)))
	assert.Equal(t, int32(2), remote.calls.Load())

	meta, err := os.ReadFile(bumped.MetadataFile(pos))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x08}, meta)
}

func TestRemoteCacheLayout(t *testing.T) {
	root := t.TempDir()
	c := newTestCache(t, root, 1, &fakeRemote{})
	pos := geo.TilePosition{X: 1, Z: 2}

	assert.Equal(t, filepath.Join(root, "sub"), c.CacheRoot())
	assert.Equal(t, filepath.Join(root, "sub", "1_2.bin"), c.CacheFile(pos))
	assert.Equal(t, filepath.Join(root, "sub", "1_2.meta"), c.MetadataFile(pos))
}

func TestRemoteCacheMissingMetadataIsMiss(t *testing.T) {
	remote := &fakeRemote{payload: []byte("fresh")}
	c := newTestCache(t, t.TempDir(), 1, remote)
	pos := geo.TilePosition{X: 0, Z: 0}

	require.NoError(t, os.WriteFile(c.CacheFile(pos), []byte("stale"), 0o644))
	assert.False(t, c.ShouldLoadCache(pos, c.CacheFile(pos)))

	assert.Equal(t, []byte("fresh"), readAll(t, mustStream(t, c, pos)))
	assert.Equal(t, int32(1), remote.calls.Load())
}

func TestRemoteCacheTruncatedMetadataIsMiss(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 1, &fakeRemote{})
	pos := geo.TilePosition{X: 0, Z: 0}

	require.NoError(t, os.WriteFile(c.CacheFile(pos), []byte("payload"), 0o644))
	require.NoError(t, os.WriteFile(c.MetadataFile(pos), []byte{0x01}, 0o644))
	assert.False(t, c.Cached(pos))
}

func TestRemoteCacheFailedFetchLeavesNoEntry(t *testing.T) {
	cases := map[string]*fakeRemote{
		"request error": {err: &TransportError{URL: "http://remote", StatusCode: 500}},
		"stream error":  {payload: []byte("partial payload"), failAfter: 4},
	}

	for name, remote := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestCache(t, t.TempDir(), 1, remote)
			pos := geo.TilePosition{X: 5, Z: 5}

			_, err := c.GetStream(context.Background(), pos)
			require.Error(t, err)

			assert.NoFileExists(t, c.CacheFile(pos))
			assert.NoFileExists(t, c.MetadataFile(pos))

			entries, err := os.ReadDir(c.CacheRoot())
			require.NoError(t, err)
			assert.Empty(t, entries, "temporary files must be cleaned up")
		})
	}
}

func TestRemoteCacheConcurrentGetStream(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 16<<10)
	remote := &fakeRemote{payload: payload}
	c := newTestCache(t, t.TempDir(), 3, remote)
	pos := geo.TilePosition{X: 1, Z: 2}

	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			rc, err := c.GetStream(context.Background(), pos)
			if err != nil {
				return err
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				return err
			}
			if !bytes.Equal(payload, got) {
				return errors.New("stream returned a partial payload")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.True(t, c.Cached(pos))
	stored, err := os.ReadFile(c.CacheFile(pos))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, stored), "payload on disk is one complete download")

	meta, err := os.ReadFile(c.MetadataFile(pos))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 3}, meta)

	entries, err := os.ReadDir(c.CacheRoot())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"1_2.bin", "1_2.meta"}, names, "no temporary files left behind")
}

func TestRemoteCacheRemove(t *testing.T) {
	c := newTestCache(t, t.TempDir(), 1, &fakeRemote{payload: []byte("x")})
	pos := geo.TilePosition{X: 9, Z: 9}

	readAll(t, mustStream(t, c, pos))
	require.FileExists(t, c.CacheFile(pos))

	before := testutil.ToFloat64(metrics.CacheInvalidations.WithLabelValues("test"))
	require.NoError(t, c.RemoveCache(pos))
	assert.NoFileExists(t, c.CacheFile(pos))
	assert.NoFileExists(t, c.MetadataFile(pos))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CacheInvalidations.WithLabelValues("test")))

	// Removing an absent entry is fine.
	assert.NoError(t, c.RemoveCache(pos))
}

func mustStream(t *testing.T, c *RemoteCache, pos geo.TilePosition) io.ReadCloser {
	t.Helper()
	rc, err := c.GetStream(context.Background(), pos)
	require.NoError(t, err)
	return rc
}
