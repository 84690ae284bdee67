package dto

type TileParams struct {
	X int `uri:"x"`
	Z int `uri:"z"`
}

type SourceTileParams struct {
	Source string `uri:"source" validate:"required"`
	X      int    `uri:"x"`
	Z      int    `uri:"z"`
}

type BoundsResponse struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

type TileInfoResponse struct {
	Source      string          `json:"source"`
	ElementType string          `json:"element_type"`
	X           int             `json:"x"`
	Z           int             `json:"z"`
	CacheRoot   string          `json:"cache_root,omitempty"`
	CachedName  string          `json:"cached_name,omitempty"`
	Cached      bool            `json:"cached"`
	Bounds      *BoundsResponse `json:"bounds,omitempty"`
}

type SourceResponse struct {
	Name        string `json:"name"`
	ElementType string `json:"element_type"`
	CacheRoot   string `json:"cache_root,omitempty"`
}
