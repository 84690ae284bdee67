// Package source defines tiled data sources and the on-disk cache shared by
// sources that fetch their tiles from a remote endpoint.
package source

import (
	"context"

	"github.com/jaennil/guide_helper/backend/geodata/internal/geo"
)

// ElementType tags the kind of tile a source produces.
type ElementType string

const (
	ShortRaster ElementType = "short_raster"
	Vector      ElementType = "osm"
)

// TiledSource produces a tile for any position in its grid.
//
// LoadTile never fails: missing data, transport errors, corrupt cache entries
// and filesystem errors are logged and replaced with DefaultTile.
type TiledSource[T any] interface {
	LoadTile(ctx context.Context, pos geo.TilePosition) T
	DefaultTile() T
	ElementType() ElementType
}

// Typed is the part of TiledSource that does not depend on the tile type.
type Typed interface {
	ElementType() ElementType
}
