package usecase

import (
	"fmt"
	"maps"
	"slices"

	"github.com/jaennil/guide_helper/backend/geodata/internal/osm"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection converts tagged nodes and resolvable ways to GeoJSON.
// Features are ordered by element id.
func FeatureCollection(tile *osm.Tile) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, id := range slices.Sorted(maps.Keys(tile.Nodes)) {
		n := tile.Nodes[id]
		if len(n.Tags) == 0 {
			continue
		}
		fc.Append(feature(n.Point, "node", id, n.Tags))
	}

	for _, id := range slices.Sorted(maps.Keys(tile.Ways)) {
		w := tile.Ways[id]
		g := tile.Geometry(w)
		if ls, ok := g.(orb.LineString); ok && len(ls) < 2 {
			continue
		}
		fc.Append(feature(g, "way", id, w.Tags))
	}

	return fc
}

func feature(g orb.Geometry, kind string, id int64, tags osm.Tags) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.ID = fmt.Sprintf("%s/%d", kind, id)
	for k, v := range tags {
		f.Properties[k] = v
	}
	return f
}
