package boundary

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// BBox represents a geographic bounding box.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// LngLat is a WGS84 coordinate.
type LngLat struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Center returns the arithmetic midpoint of the box.
func (b BBox) Center() LngLat {
	return LngLat{
		Lng: (b.MinLng + b.MaxLng) / 2,
		Lat: (b.MinLat + b.MaxLat) / 2,
	}
}

// Union returns the smallest box enclosing both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		MinLng: math.Min(b.MinLng, o.MinLng),
		MinLat: math.Min(b.MinLat, o.MinLat),
		MaxLng: math.Max(b.MaxLng, o.MaxLng),
		MaxLat: math.Max(b.MaxLat, o.MaxLat),
	}
}

// Array returns the box in GeoJSON order [minLng, minLat, maxLng, maxLat].
func (b BBox) Array() []float64 {
	return []float64{b.MinLng, b.MinLat, b.MaxLng, b.MaxLat}
}

// Aggregate returns the minimal box enclosing every input box, or nil when boxes is empty.
func Aggregate(boxes []BBox) *BBox {
	if len(boxes) == 0 {
		return nil
	}
	agg := boxes[0]
	for _, b := range boxes[1:] {
		agg = agg.Union(b)
	}
	return &agg
}

// FromBounds converts go-geom bounds to a BBox. Returns nil for nil or empty bounds.
func FromBounds(bounds *geom.Bounds) *BBox {
	if bounds == nil || bounds.IsEmpty() {
		return nil
	}
	return &BBox{
		MinLng: bounds.Min(0),
		MinLat: bounds.Min(1),
		MaxLng: bounds.Max(0),
		MaxLat: bounds.Max(1),
	}
}

// FromArray parses a GeoJSON bbox member. Both 2D (4 values) and 3D (6 values)
// boxes are accepted; the elevation axis is dropped.
func FromArray(v []float64) (*BBox, error) {
	switch len(v) {
	case 0:
		return nil, nil
	case 4:
		return &BBox{MinLng: v[0], MinLat: v[1], MaxLng: v[2], MaxLat: v[3]}, nil
	case 6:
		return &BBox{MinLng: v[0], MinLat: v[1], MaxLng: v[3], MaxLat: v[4]}, nil
	default:
		return nil, eris.Errorf("boundary: bbox must have 4 or 6 values, got %d", len(v))
	}
}
