// Package osm holds vector features returned by Overpass queries.
package osm

import (
	"github.com/paulmach/orb"
)

type Tags map[string]string

type Node struct {
	ID    int64
	Point orb.Point
	Tags  Tags
}

type Way struct {
	ID    int64
	Nodes []int64
	Tags  Tags
}

type Member struct {
	Type string
	Ref  int64
	Role string
}

type Relation struct {
	ID      int64
	Members []Member
	Tags    Tags
}

// Tile is the parsed content of one Overpass response. The zero value is not
// usable; use NewTile.
type Tile struct {
	Nodes     map[int64]Node
	Ways      map[int64]Way
	Relations map[int64]Relation
}

func NewTile() *Tile {
	return &Tile{
		Nodes:     make(map[int64]Node),
		Ways:      make(map[int64]Way),
		Relations: make(map[int64]Relation),
	}
}

func (t *Tile) Empty() bool {
	return len(t.Nodes) == 0 && len(t.Ways) == 0 && len(t.Relations) == 0
}

// LineString resolves the way's node references. Nodes missing from the tile
// are skipped.
func (t *Tile) LineString(w Way) orb.LineString {
	ls := make(orb.LineString, 0, len(w.Nodes))
	for _, id := range w.Nodes {
		if n, ok := t.Nodes[id]; ok {
			ls = append(ls, n.Point)
		}
	}
	return ls
}

// Closed reports whether the way forms a ring.
func (w Way) Closed() bool {
	return len(w.Nodes) > 3 && w.Nodes[0] == w.Nodes[len(w.Nodes)-1]
}

// Geometry returns a polygon for closed ways and a line string otherwise.
func (t *Tile) Geometry(w Way) orb.Geometry {
	ls := t.LineString(w)
	if w.Closed() && len(ls) == len(w.Nodes) {
		return orb.Polygon{orb.Ring(ls)}
	}
	return ls
}

// Clip returns a copy holding only the nodes inside bound, the ways that
// reference at least one of them and all relations.
func (t *Tile) Clip(bound orb.Bound) *Tile {
	out := NewTile()
	for id, n := range t.Nodes {
		if bound.Contains(n.Point) {
			out.Nodes[id] = n
		}
	}
	for id, w := range t.Ways {
		for _, ref := range w.Nodes {
			if _, ok := out.Nodes[ref]; ok {
				out.Ways[id] = w
				break
			}
		}
	}
	for id, r := range t.Relations {
		out.Relations[id] = r
	}
	return out
}
