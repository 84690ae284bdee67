package osm

import (
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "version": 0.6,
  "generator": "Overpass API",
  "elements": [
    {"type": "node", "id": 1, "lat": 51.50, "lon": -0.12},
    {"type": "node", "id": 2, "lat": 51.51, "lon": -0.12},
    {"type": "node", "id": 3, "lat": 51.51, "lon": -0.11, "tags": {"natural": "tree"}},
    {"type": "node", "id": 4, "lat": 52.00, "lon": 1.00},
    {"type": "way", "id": 10, "nodes": [1, 2, 3, 1], "tags": {"natural": "water"}},
    {"type": "way", "id": 11, "nodes": [4, 99], "tags": {"highway": "path"}},
    {"type": "relation", "id": 20, "members": [{"type": "way", "ref": 10, "role": "outer"}], "tags": {"type": "multipolygon"}}
  ]
}`

func TestParse(t *testing.T) {
	tile, err := Parse(strings.NewReader(sampleResponse))
	require.NoError(t, err)

	require.Len(t, tile.Nodes, 4)
	require.Len(t, tile.Ways, 2)
	require.Len(t, tile.Relations, 1)

	assert.Equal(t, orb.Point{-0.11, 51.51}, tile.Nodes[3].Point)
	assert.Equal(t, "tree", tile.Nodes[3].Tags["natural"])
	assert.Equal(t, []Member{{Type: "way", Ref: 10, Role: "outer"}}, tile.Relations[20].Members)

	water := tile.Ways[10]
	assert.True(t, water.Closed())
	_, isPolygon := tile.Geometry(water).(orb.Polygon)
	assert.True(t, isPolygon)

	path := tile.Ways[11]
	assert.Equal(t, orb.LineString{{1, 52}}, tile.LineString(path))
}

func TestParseEmptyElements(t *testing.T) {
	tile, err := Parse(strings.NewReader(`{"elements": []}`))
	require.NoError(t, err)
	assert.True(t, tile.Empty())
}

func TestParseMalformed(t *testing.T) {
	inputs := []string{
		"",
		"not json",
		sampleResponse[:len(sampleResponse)/2],
		`{"version": 0.6}`,
		`{"elements": [{"type": "node", "id": 1}]}`,
	}

	for _, in := range inputs {
		_, err := Parse(strings.NewReader(in))
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, ErrMalformed), "input %q", in)
	}
}

func TestClip(t *testing.T) {
	tile, err := Parse(strings.NewReader(sampleResponse))
	require.NoError(t, err)

	clipped := tile.Clip(orb.Bound{Min: orb.Point{-0.2, 51.4}, Max: orb.Point{0, 51.6}})

	assert.Len(t, clipped.Nodes, 3)
	assert.Contains(t, clipped.Ways, int64(10))
	assert.NotContains(t, clipped.Ways, int64(11))
	assert.Len(t, clipped.Relations, 1)
}
