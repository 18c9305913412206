package geojoin

import (
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/internal/boundary"
	"github.com/sells-group/geobrowser/internal/electoral"
	"github.com/sells-group/geobrowser/internal/filter"
	"github.com/sells-group/geobrowser/internal/refresh"
)

// Selection is what the join resolves: the geography choice, whether any
// deeper dimension narrowed it, and the districts in scope (the result set
// when narrowed, otherwise every district under the geography).
type Selection struct {
	Geography filter.Geography
	Narrowed  bool
	Districts []electoral.District
}

// SelectionFor builds the Selection for a filter state.
func SelectionFor(ds *electoral.Dataset, s filter.State) Selection {
	return Selection{
		Geography: s.Geography,
		Narrowed:  s.Narrowed(),
		Districts: filter.ResultSet(ds, s),
	}
}

// RenderGeometry is one resolved overlay. Features are in selection order.
// BBox and Center are nil when nothing resolved, in which case the map keeps
// its last view.
type RenderGeometry struct {
	Features []boundary.Feature
	BBox     *boundary.BBox
	Center   *boundary.LngLat
	Token    refresh.Token
	Missing  []string
}

// Empty reports whether no feature resolved.
func (r RenderGeometry) Empty() bool { return len(r.Features) == 0 }

// GeoJSON renders the overlay as a FeatureCollection. The refresh token, the
// center and unresolved names travel as foreign members.
func (r RenderGeometry) GeoJSON(nameProperty string) ([]byte, error) {
	foreign := map[string]any{
		"refreshToken": r.Token.String(),
	}
	if r.Center != nil {
		foreign["center"] = []float64{r.Center.Lng, r.Center.Lat}
	}
	if len(r.Missing) > 0 {
		foreign["missing"] = r.Missing
	}
	return boundary.EncodeCollection(r.Features, r.BBox, nameProperty, foreign)
}

// MarshalJSON implements json.Marshaler using the default name property.
func (r RenderGeometry) MarshalJSON() ([]byte, error) {
	return r.GeoJSON(boundary.DefaultNameProperty)
}

// Joiner resolves selections against a boundary dataset.
type Joiner struct {
	matcher Matcher
	tokens  *refresh.Minter

	// ProvinceFallback unions a province's district outlines when the
	// boundary dataset has no feature for the province itself.
	ProvinceFallback bool
}

// NewJoiner returns a Joiner. A nil matcher means exact matching; a nil minter
// gets a fresh one.
func NewJoiner(m Matcher, tokens *refresh.Minter) *Joiner {
	if m == nil {
		m = ExactMatcher{}
	}
	if tokens == nil {
		tokens = refresh.NewMinter()
	}
	return &Joiner{matcher: m, tokens: tokens}
}

// Resolve turns a selection into a render geometry. It never fails: names
// that do not resolve are reported in Missing and otherwise skipped. Every
// call mints a new token, even when the result equals the previous one. A nil
// boundary dataset resolves only the districts that carry their own geometry.
func (j *Joiner) Resolve(sel Selection, bd *boundary.Dataset) RenderGeometry {
	var features []boundary.Feature
	var missing []string

	switch {
	case sel.Narrowed:
		features, missing = j.resolveDistricts(sel.Districts, bd)

	case sel.Geography.Nation:
		features, missing = j.resolveNation(sel.Districts, bd)

	case sel.Geography.IsProvince():
		if f, ok := j.matcher.Match(sel.Geography.Province, bd); ok && hasShape(f) {
			features = []boundary.Feature{f}
		} else if j.ProvinceFallback {
			features, missing = j.resolveDistricts(sel.Districts, bd)
		} else {
			missing = []string{sel.Geography.Province}
		}
	}

	out := RenderGeometry{
		Features: features,
		Missing:  missing,
		Token:    j.tokens.Next(),
	}
	out.BBox = aggregate(features)
	if out.BBox != nil {
		c := out.BBox.Center()
		out.Center = &c
	}

	if len(missing) > 0 {
		zap.L().Debug("geojoin: unresolved names",
			zap.Int("missing", len(missing)),
			zap.Int("resolved", len(features)),
		)
	}
	return out
}

// resolveDistricts resolves each district in order, preferring geometry
// embedded in the electoral feed over a name match.
func (j *Joiner) resolveDistricts(districts []electoral.District, bd *boundary.Dataset) ([]boundary.Feature, []string) {
	var features []boundary.Feature
	var missing []string
	for _, d := range districts {
		f, ok := j.resolveDistrict(d, bd)
		if !ok {
			missing = append(missing, d.Name)
			continue
		}
		features = append(features, f)
	}
	return features, missing
}

// resolveNation resolves every district province by province. A province
// whose districts resolve to nothing falls back to its own outline.
func (j *Joiner) resolveNation(districts []electoral.District, bd *boundary.Dataset) ([]boundary.Feature, []string) {
	var features []boundary.Feature
	var missing []string

	for _, group := range groupByProvince(districts) {
		var found []boundary.Feature
		var lost []string
		for _, d := range group.Districts {
			if f, ok := j.resolveDistrict(d, bd); ok {
				found = append(found, f)
			} else {
				lost = append(lost, d.Name)
			}
		}
		if len(found) == 0 {
			if f, ok := j.matcher.Match(group.Name, bd); ok && hasShape(f) {
				features = append(features, f)
				continue
			}
		}
		features = append(features, found...)
		missing = append(missing, lost...)
	}
	return features, missing
}

func (j *Joiner) resolveDistrict(d electoral.District, bd *boundary.Dataset) (boundary.Feature, bool) {
	if d.Geometry != nil && hasShape(*d.Geometry) {
		f := d.Geometry.Clone()
		f.Name = d.Name
		return f, true
	}
	f, ok := j.matcher.Match(d.Name, bd)
	if !ok || !hasShape(f) {
		return boundary.Feature{}, false
	}
	return f, true
}

func hasShape(f boundary.Feature) bool {
	return f.Geometry != nil || f.BBox != nil
}

func groupByProvince(districts []electoral.District) []electoral.Province {
	var out []electoral.Province
	idx := make(map[string]int)
	for _, d := range districts {
		i, ok := idx[d.Province]
		if !ok {
			i = len(out)
			idx[d.Province] = i
			out = append(out, electoral.Province{Name: d.Province})
		}
		out[i].Districts = append(out[i].Districts, d)
	}
	return out
}

// aggregate returns the box enclosing every feature's bounds. A single
// feature's precomputed bbox is used as-is.
func aggregate(features []boundary.Feature) *boundary.BBox {
	boxes := make([]boundary.BBox, 0, len(features))
	for _, f := range features {
		if b := f.Bounds(); b != nil {
			boxes = append(boxes, *b)
		}
	}
	return boundary.Aggregate(boxes)
}
