package elevation

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/metrics"
)

// One entry per whole-degree cell on the globe.
const maxManifestEntries = 360 * 180

var ErrManifestLoaded = errors.New("elevation: tile manifest already loaded")

// ValidTiles is the set of tiles known to exist on the remote server.
// It is published once and read without locking afterwards. Until then, and
// while it is empty, every tile is permitted.
type ValidTiles struct {
	tiles atomic.Pointer[map[geo.TilePosition]struct{}]
}

func NewValidTiles() *ValidTiles {
	return &ValidTiles{}
}

// Load parses a gzip stream holding a big-endian int32 count followed by
// that many (int16 latitude, int16 longitude) pairs, and publishes it.
func (v *ValidTiles) Load(r io.Reader) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open tile manifest: %w", err)
	}
	defer zr.Close()

	br := bufio.NewReader(zr)

	var count int32
	if err := binary.Read(br, binary.BigEndian, &count); err != nil {
		return fmt.Errorf("read tile manifest count: %w", err)
	}
	if count < 0 || count > maxManifestEntries {
		return fmt.Errorf("tile manifest count %d out of range", count)
	}

	tiles := make(map[geo.TilePosition]struct{}, count)
	var entry [2]int16
	for i := int32(0); i < count; i++ {
		if err := binary.Read(br, binary.BigEndian, &entry); err != nil {
			return fmt.Errorf("read tile manifest entry %d: %w", i, err)
		}
		lat, lng := entry[0], entry[1]
		tiles[geo.TilePosition{X: int(lng), Z: int(lat)}] = struct{}{}
	}

	if !v.tiles.CompareAndSwap(nil, &tiles) {
		return ErrManifestLoaded
	}
	metrics.ValidTiles.Set(float64(len(tiles)))
	return nil
}

// Fetch downloads the manifest from url and loads it.
func (v *ValidTiles) Fetch(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return &source.TransportError{URL: url, Err: err}
	}
	if err := source.CheckStatus(resp, url); err != nil {
		return err
	}
	defer resp.Body.Close()

	return v.Load(resp.Body)
}

func (v *ValidTiles) Loaded() bool {
	return v.tiles.Load() != nil
}

func (v *ValidTiles) Len() int {
	tiles := v.tiles.Load()
	if tiles == nil {
		return 0
	}
	return len(*tiles)
}

// Permits reports whether a fetch for pos may succeed. pos is a lookup
// position with X as longitude and Z as latitude.
func (v *ValidTiles) Permits(pos geo.TilePosition) bool {
	tiles := v.tiles.Load()
	if tiles == nil || len(*tiles) == 0 {
		return true
	}
	_, ok := (*tiles)[pos]
	return ok
}
