package source

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/metrics"
)

const metadataExt = ".meta"

// Remote is the source-specific half of a cached remote source.
type Remote interface {
	// CachedName is the payload file name for pos inside the cache root.
	CachedName(pos geo.TilePosition) string
	// GetRemoteStream fetches pos and returns the decompressed payload.
	GetRemoteStream(ctx context.Context, pos geo.TilePosition) (io.ReadCloser, error)
}

type CachedRemoteSource interface {
	Remote
	CacheRoot() string
	ShouldLoadCache(pos geo.TilePosition, cacheFile string) bool
	CacheMetadata(pos geo.TilePosition) error
	RemoveCache(pos geo.TilePosition) error
	GetStream(ctx context.Context, pos geo.TilePosition) (io.ReadCloser, error)
}

// RemoteCache stores payloads fetched by a Remote under one directory, with
// a sibling .meta file per payload holding a big-endian uint16 version.
// A payload is only trusted when its metadata matches the current version.
type RemoteCache struct {
	name    string
	root    string
	version uint16
	remote  Remote
	logger  logger.Logger
}

var _ CachedRemoteSource = (*RemoteCache)(nil)

// NewRemoteCache creates <globalRoot>/<subdir> if needed.
func NewRemoteCache(name, globalRoot, subdir string, version uint16, remote Remote, l logger.Logger) (*RemoteCache, error) {
	root := filepath.Join(globalRoot, subdir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root %s: %w", root, err)
	}

	return &RemoteCache{
		name:    name,
		root:    root,
		version: version,
		remote:  remote,
		logger:  l,
	}, nil
}

func (c *RemoteCache) CacheRoot() string {
	return c.root
}

func (c *RemoteCache) Version() uint16 {
	return c.version
}

func (c *RemoteCache) CachedName(pos geo.TilePosition) string {
	return c.remote.CachedName(pos)
}

func (c *RemoteCache) GetRemoteStream(ctx context.Context, pos geo.TilePosition) (io.ReadCloser, error) {
	return c.remote.GetRemoteStream(ctx, pos)
}

func (c *RemoteCache) CacheFile(pos geo.TilePosition) string {
	return filepath.Join(c.root, c.CachedName(pos))
}

func (c *RemoteCache) MetadataFile(pos geo.TilePosition) string {
	name := c.CachedName(pos)
	return filepath.Join(c.root, strings.TrimSuffix(name, filepath.Ext(name))+metadataExt)
}

func (c *RemoteCache) ShouldLoadCache(pos geo.TilePosition, cacheFile string) bool {
	if _, err := os.Stat(cacheFile); err != nil {
		return false
	}

	f, err := os.Open(c.MetadataFile(pos))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("failed to open tile metadata", "source", c.name, "tile", pos, "error", err)
		}
		return false
	}
	defer f.Close()

	var version uint16
	if err := binary.Read(f, binary.BigEndian, &version); err != nil {
		c.logger.Warn("failed to read tile metadata", "source", c.name, "tile", pos, "error", err)
		return false
	}

	return version == c.version
}

// Cached reports whether pos would currently be served from disk.
func (c *RemoteCache) Cached(pos geo.TilePosition) bool {
	return c.ShouldLoadCache(pos, c.CacheFile(pos))
}

func (c *RemoteCache) CacheMetadata(pos geo.TilePosition) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], c.version)

	if err := writeFileAtomic(c.root, c.MetadataFile(pos), bytes.NewReader(buf[:])); err != nil {
		return fmt.Errorf("write metadata for %s: %w", c.CachedName(pos), err)
	}
	return nil
}

// RemoveCache deletes the payload and its metadata. Missing files are not an error.
func (c *RemoteCache) RemoveCache(pos geo.TilePosition) error {
	metrics.CacheInvalidations.WithLabelValues(c.name).Inc()

	var errs []error
	for _, path := range []string{c.CacheFile(pos), c.MetadataFile(pos)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetStream opens the cached payload for pos, fetching and caching it first
// when the cache is missing or stale. The payload is written to a temporary
// file and renamed into place, and metadata is only written after a complete
// download.
func (c *RemoteCache) GetStream(ctx context.Context, pos geo.TilePosition) (io.ReadCloser, error) {
	cacheFile := c.CacheFile(pos)

	if c.ShouldLoadCache(pos, cacheFile) {
		f, err := os.Open(cacheFile)
		if err == nil {
			metrics.DiskCacheHits.WithLabelValues(c.name).Inc()
			return f, nil
		}
		c.logger.Warn("failed to open cached tile, fetching again", "source", c.name, "file", cacheFile, "error", err)
	}
	metrics.DiskCacheMisses.WithLabelValues(c.name).Inc()

	start := time.Now()
	c.logger.Debug("fetching remote tile", "source", c.name, "tile", pos, "name", c.CachedName(pos))

	stream, err := c.remote.GetRemoteStream(ctx, pos)
	if err != nil {
		metrics.RemoteFetches.WithLabelValues(c.name, "error").Inc()
		return nil, err
	}
	err = writeFileAtomic(c.root, cacheFile, stream)
	stream.Close()
	if err != nil {
		metrics.RemoteFetches.WithLabelValues(c.name, "error").Inc()
		return nil, fmt.Errorf("cache %s: %w", c.CachedName(pos), err)
	}

	metrics.RemoteFetches.WithLabelValues(c.name, "ok").Inc()
	metrics.RemoteLatency.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	if err := c.CacheMetadata(pos); err != nil {
		c.logger.Error("failed to cache tile metadata", "source", c.name, "tile", pos, "error", err)
	}

	return os.Open(cacheFile)
}

func writeFileAtomic(dir, path string, r io.Reader) (err error) {
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
