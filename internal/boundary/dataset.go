// Package boundary holds region outline geometries keyed by region name.
package boundary

import (
	"maps"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// DefaultNameProperty is the feature property used as the join key when none is configured.
const DefaultNameProperty = "name"

// Feature is one named region outline.
type Feature struct {
	Name       string         `json:"name"`
	Geometry   geom.T         `json:"-"`
	BBox       *BBox          `json:"bbox,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Bounds returns the feature's precomputed bbox when present, otherwise the
// bounds of its geometry. Returns nil when neither is available.
func (f Feature) Bounds() *BBox {
	if f.BBox != nil {
		b := *f.BBox
		return &b
	}
	if f.Geometry == nil {
		return nil
	}
	return FromBounds(f.Geometry.Bounds())
}

// Clone returns a copy of f that shares the (immutable) geometry but owns its
// bbox and properties.
func (f Feature) Clone() Feature {
	out := Feature{Name: f.Name, Geometry: f.Geometry}
	if f.BBox != nil {
		b := *f.BBox
		out.BBox = &b
	}
	if f.Properties != nil {
		out.Properties = maps.Clone(f.Properties)
	}
	return out
}

// Dataset is an immutable collection of boundary features with a name index.
type Dataset struct {
	nameProperty string
	features     []Feature
	byName       map[string]int
}

// NewDataset builds a Dataset over features. The first feature wins when two
// features share a name; duplicates are logged.
func NewDataset(nameProperty string, features []Feature) *Dataset {
	if nameProperty == "" {
		nameProperty = DefaultNameProperty
	}
	d := &Dataset{
		nameProperty: nameProperty,
		features:     make([]Feature, 0, len(features)),
		byName:       make(map[string]int, len(features)),
	}
	var dupes int
	for _, f := range features {
		d.features = append(d.features, f.Clone())
		if f.Name == "" {
			continue
		}
		if _, ok := d.byName[f.Name]; ok {
			dupes++
			continue
		}
		d.byName[f.Name] = len(d.features) - 1
	}
	if dupes > 0 {
		zap.L().Warn("boundary: duplicate feature names, first occurrence kept",
			zap.String("name_property", nameProperty),
			zap.Int("duplicates", dupes),
		)
	}
	return d
}

// NameProperty returns the property used as the feature name.
func (d *Dataset) NameProperty() string {
	if d == nil {
		return DefaultNameProperty
	}
	return d.nameProperty
}

// Len returns the number of features. A nil Dataset is empty.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.features)
}

// Features returns copies of all features in source order.
func (d *Dataset) Features() []Feature {
	if d == nil {
		return nil
	}
	out := make([]Feature, len(d.features))
	for i, f := range d.features {
		out[i] = f.Clone()
	}
	return out
}

// Lookup returns the feature whose name equals name exactly.
func (d *Dataset) Lookup(name string) (Feature, bool) {
	if d == nil {
		return Feature{}, false
	}
	i, ok := d.byName[name]
	if !ok {
		return Feature{}, false
	}
	return d.features[i].Clone(), true
}

// Each calls fn for every feature in source order until fn returns false.
func (d *Dataset) Each(fn func(Feature) bool) {
	if d == nil {
		return
	}
	for _, f := range d.features {
		if !fn(f.Clone()) {
			return
		}
	}
}

// Merge folds the features of one source document into a single feature named
// name. Several geometries become a GeometryCollection. The precomputed bbox is
// kept only when every contributing feature carried one. Returns nil when no
// feature has geometry or a bbox.
func Merge(name string, features []Feature) *Feature {
	var geoms []geom.T
	var boxes []BBox
	var props map[string]any
	allBoxed := true

	for _, f := range features {
		if f.Geometry == nil && f.BBox == nil {
			continue
		}
		if props == nil && f.Properties != nil {
			props = maps.Clone(f.Properties)
		}
		if f.Geometry != nil {
			geoms = append(geoms, f.Geometry)
		}
		if f.BBox != nil {
			boxes = append(boxes, *f.BBox)
		} else {
			allBoxed = false
		}
	}
	if len(geoms) == 0 && len(boxes) == 0 {
		return nil
	}

	out := &Feature{Name: name, Properties: props}
	switch len(geoms) {
	case 0:
	case 1:
		out.Geometry = geoms[0]
	default:
		gc := geom.NewGeometryCollection()
		if err := gc.Push(geoms...); err != nil {
			zap.L().Debug("boundary: cannot collect geometries, keeping first",
				zap.String("name", name), zap.Error(err))
			out.Geometry = geoms[0]
		} else {
			out.Geometry = gc
		}
	}
	if allBoxed {
		out.BBox = Aggregate(boxes)
	}
	return out
}
