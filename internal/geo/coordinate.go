// Package geo maps tile positions in a source's tile grid to geographic extents.
package geo

import (
	"fmt"

	"github.com/paulmach/orb"
)

// TilePosition identifies a cell in a source-local tile grid.
// It is comparable and used directly as a map and cache key.
type TilePosition struct {
	X int
	Z int
}

func (p TilePosition) Offset(dx, dz int) TilePosition {
	return TilePosition{X: p.X + dx, Z: p.Z + dz}
}

func (p TilePosition) String() string {
	return fmt.Sprintf("%d_%d", p.X, p.Z)
}

// CoordinateState translates native grid units into degrees:
// degrees = origin + units*Scale.
type CoordinateState struct {
	OriginLat float64
	OriginLng float64
	Scale     float64
}

// LatLng is the identity state where native units are degrees.
func LatLng() CoordinateState {
	return CoordinateState{Scale: 1}
}

// TileSize is the edge length of a tile in native units.
type TileSize struct {
	X float64
	Z float64
}

func SquareTile(size float64) TileSize {
	return TileSize{X: size, Z: size}
}

// Bounds is a latitude/longitude rectangle in degrees.
type Bounds struct {
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
}

// BoundingBox returns the geographic extent covered by the tile at pos.
// Max is always computed as min plus the tile size in degrees.
func BoundingBox(pos TilePosition, state CoordinateState, size TileSize) Bounds {
	sizeLat := size.Z * state.Scale
	sizeLng := size.X * state.Scale

	minLat := state.OriginLat + float64(pos.Z)*sizeLat
	minLng := state.OriginLng + float64(pos.X)*sizeLng

	return Bounds{
		MinLat: minLat,
		MinLng: minLng,
		MaxLat: minLat + sizeLat,
		MaxLng: minLng + sizeLng,
	}
}

// Expand grows the box by d degrees on every side.
func (b Bounds) Expand(d float64) Bounds {
	return Bounds{
		MinLat: b.MinLat - d,
		MinLng: b.MinLng - d,
		MaxLat: b.MaxLat + d,
		MaxLng: b.MaxLng + d,
	}
}

func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Orb converts the box to an orb.Bound with X as longitude and Y as latitude.
func (b Bounds) Orb() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLng, b.MinLat},
		Max: orb.Point{b.MaxLng, b.MaxLat},
	}
}

// QueryString formats the box the way Overpass expects a bbox filter:
// south,west,north,east.
func (b Bounds) QueryString() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLat, b.MinLng, b.MaxLat, b.MaxLng)
}
