package osm

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
)

var ErrMalformed = errors.New("osm: malformed overpass response")

type response struct {
	Elements *[]element `json:"elements"`
}

type element struct {
	Type    string   `json:"type"`
	ID      int64    `json:"id"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Nodes   []int64  `json:"nodes"`
	Members []member `json:"members"`
	Tags    Tags     `json:"tags"`
}

type member struct {
	Type string `json:"type"`
	Ref  int64  `json:"ref"`
	Role string `json:"role"`
}

// Parse decodes an Overpass "[out:json]" response. Any structural problem,
// including a truncated document, is reported as ErrMalformed.
func Parse(r io.Reader) (*Tile, error) {
	var resp response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if resp.Elements == nil {
		return nil, fmt.Errorf("%w: missing elements", ErrMalformed)
	}

	tile := NewTile()
	for _, e := range *resp.Elements {
		switch e.Type {
		case "node":
			if e.Lat == nil || e.Lon == nil {
				return nil, fmt.Errorf("%w: node %d has no position", ErrMalformed, e.ID)
			}
			tile.Nodes[e.ID] = Node{ID: e.ID, Point: orb.Point{*e.Lon, *e.Lat}, Tags: e.Tags}
		case "way":
			tile.Ways[e.ID] = Way{ID: e.ID, Nodes: e.Nodes, Tags: e.Tags}
		case "relation":
			members := make([]Member, len(e.Members))
			for i, m := range e.Members {
				members[i] = Member(m)
			}
			tile.Relations[e.ID] = Relation{ID: e.ID, Members: members, Tags: e.Tags}
		}
	}

	return tile, nil
}
