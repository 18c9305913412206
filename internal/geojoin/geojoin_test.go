package geojoin

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geobrowser/internal/boundary"
	"github.com/sells-group/geobrowser/internal/electoral"
	"github.com/sells-group/geobrowser/internal/filter"
	"github.com/sells-group/geobrowser/internal/refresh"
)

func square(minX, minY, maxX, maxY float64) geom.T {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
}

func boxed(name string, b boundary.BBox) boundary.Feature {
	return boundary.Feature{Name: name, BBox: &b, Geometry: square(b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)}
}

func fixtures(t *testing.T) (*electoral.Dataset, *boundary.Dataset) {
	t.Helper()
	embedded := boxed("ignored", boundary.BBox{MinLng: 30, MinLat: 30, MaxLng: 31, MaxLat: 31})

	ds, err := electoral.New([]electoral.Province{
		{Name: "Ontario", Districts: []electoral.District{
			{Name: "A", Class: electoral.Urban, Candidates: []electoral.Candidate{{Party: "X", Percentage: 60}}},
			{Name: "B", Class: electoral.Rural, Candidates: []electoral.Candidate{{Party: "Y", Percentage: 40}}},
			{Name: "Lost", Class: electoral.Rural, Candidates: []electoral.Candidate{{Party: "X", Percentage: 20}}},
		}},
		{Name: "Quebec", Districts: []electoral.District{
			{Name: "Q1", Candidates: []electoral.Candidate{{Party: "X", Percentage: 70}}},
		}},
		{Name: "Yukon", Districts: []electoral.District{
			{Name: "Y1", Geometry: &embedded, Candidates: []electoral.Candidate{{Party: "Z", Percentage: 90}}},
		}},
	})
	require.NoError(t, err)

	bd := boundary.NewDataset("name", []boundary.Feature{
		boxed("A", boundary.BBox{MinLng: 0, MinLat: 0, MaxLng: 10, MaxLat: 10}),
		boxed("B", boundary.BBox{MinLng: 5, MinLat: 5, MaxLng: 20, MaxLat: 20}),
		{Name: "C", Geometry: square(-5, -5, 1, 1)},
		boxed("Quebec", boundary.BBox{MinLng: 100, MinLat: 40, MaxLng: 110, MaxLat: 50}),
		boxed("Ontario", boundary.BBox{MinLng: -95, MinLat: 41, MaxLng: -74, MaxLat: 57}),
	})
	return ds, bd
}

func featureNames(r RenderGeometry) []string {
	out := make([]string, 0, len(r.Features))
	for _, f := range r.Features {
		out = append(out, f.Name)
	}
	return out
}

func TestResolve_EmptyResultSet(t *testing.T) {
	_, bd := fixtures(t)
	j := NewJoiner(nil, nil)

	r := j.Resolve(Selection{Geography: filter.Nation(), Narrowed: true}, bd)
	assert.True(t, r.Empty())
	assert.Nil(t, r.BBox)
	assert.Nil(t, r.Center)
	assert.False(t, r.Token.IsZero())
}

func TestResolve_SingleDistrictCenter(t *testing.T) {
	ds, bd := fixtures(t)
	j := NewJoiner(ExactMatcher{}, nil)

	s := filter.State{Geography: filter.Province("Ontario"), District: "A", Class: electoral.Urban}
	r := j.Resolve(SelectionFor(ds, s), bd)
	require.Equal(t, []string{"A"}, featureNames(r))
	require.NotNil(t, r.BBox)
	assert.Equal(t, boundary.BBox{MinLng: 0, MinLat: 0, MaxLng: 10, MaxLat: 10}, *r.BBox)
	require.NotNil(t, r.Center)
	assert.Equal(t, boundary.LngLat{Lng: 5, Lat: 5}, *r.Center)
}

func TestResolve_AggregateBBox(t *testing.T) {
	ds, bd := fixtures(t)
	j := NewJoiner(nil, nil)

	s := filter.State{Geography: filter.Province("Ontario"), Percentage: filter.Above}
	r := j.Resolve(SelectionFor(ds, s), bd)
	assert.Equal(t, []string{"A", "B"}, featureNames(r))
	require.NotNil(t, r.BBox)
	assert.Equal(t, boundary.BBox{MinLng: 0, MinLat: 0, MaxLng: 20, MaxLat: 20}, *r.BBox)
	assert.Equal(t, boundary.LngLat{Lng: 10, Lat: 10}, *r.Center)
}

func TestResolve_NarrowedSkipsMisses(t *testing.T) {
	ds, bd := fixtures(t)
	j := NewJoiner(nil, nil)

	s := filter.State{Geography: filter.Province("Ontario"), Party: "X"}
	r := j.Resolve(SelectionFor(ds, s), bd)
	assert.Equal(t, []string{"A"}, featureNames(r))
	assert.Equal(t, []string{"Lost"}, r.Missing)
}

func TestResolve_ProvinceWithoutNarrowing(t *testing.T) {
	ds, bd := fixtures(t)
	j := NewJoiner(nil, nil)

	r := j.Resolve(SelectionFor(ds, filter.State{Geography: filter.Province("Quebec")}), bd)
	assert.Equal(t, []string{"Quebec"}, featureNames(r))

	r = j.Resolve(SelectionFor(ds, filter.State{Geography: filter.Province("Yukon")}), bd)
	assert.True(t, r.Empty())
	assert.Nil(t, r.BBox)
	assert.Equal(t, []string{"Yukon"}, r.Missing)
}

func TestResolve_ProvinceFallback(t *testing.T) {
	ds, bd := fixtures(t)
	j := NewJoiner(nil, nil)
	j.ProvinceFallback = true

	r := j.Resolve(SelectionFor(ds, filter.State{Geography: filter.Province("Yukon")}), bd)
	assert.Equal(t, []string{"Y1"}, featureNames(r))
}

func TestResolve_WholeNation(t *testing.T) {
	ds, bd := fixtures(t)
	j := NewJoiner(nil, nil)

	r := j.Resolve(SelectionFor(ds, filter.State{Geography: filter.Nation()}), bd)
	// Ontario districts resolve (Lost is skipped), Quebec falls back to its
	// province outline, Yukon uses the geometry embedded in the feed.
	assert.Equal(t, []string{"A", "B", "Quebec", "Y1"}, featureNames(r))
	assert.Equal(t, []string{"Lost"}, r.Missing)
	require.NotNil(t, r.BBox)
	assert.Equal(t, boundary.BBox{MinLng: 0, MinLat: 0, MaxLng: 110, MaxLat: 50}, *r.BBox)
}

func TestResolve_UnsetGeography(t *testing.T) {
	ds, bd := fixtures(t)
	j := NewJoiner(nil, nil)
	r := j.Resolve(SelectionFor(ds, filter.State{}), bd)
	assert.True(t, r.Empty())
	assert.Nil(t, r.BBox)
}

func TestResolve_NilBoundaryDataset(t *testing.T) {
	ds, _ := fixtures(t)
	j := NewJoiner(nil, nil)

	r := j.Resolve(SelectionFor(ds, filter.State{Geography: filter.Nation()}), nil)
	assert.Equal(t, []string{"Y1"}, featureNames(r))

	r = j.Resolve(SelectionFor(ds, filter.State{Geography: filter.Province("Ontario")}), nil)
	assert.True(t, r.Empty())
}

func TestResolve_TokenChangesOnIdenticalInputs(t *testing.T) {
	ds, bd := fixtures(t)
	j := NewJoiner(nil, refresh.NewMinterAt(0))
	sel := SelectionFor(ds, filter.State{Geography: filter.Province("Quebec")})

	first := j.Resolve(sel, bd)
	second := j.Resolve(sel, bd)
	assert.Equal(t, featureNames(first), featureNames(second))
	assert.NotEqual(t, first.Token, second.Token)
	assert.Greater(t, second.Token, first.Token)
}

func TestResolve_ComputesBBoxFromGeometry(t *testing.T) {
	_, bd := fixtures(t)
	j := NewJoiner(nil, nil)
	r := j.Resolve(Selection{
		Geography: filter.Nation(),
		Narrowed:  true,
		Districts: []electoral.District{{Name: "C"}},
	}, bd)
	require.NotNil(t, r.BBox)
	assert.Equal(t, boundary.BBox{MinLng: -5, MinLat: -5, MaxLng: 1, MaxLat: 1}, *r.BBox)
}

func TestExactMatcher_CaseSensitive(t *testing.T) {
	_, bd := fixtures(t)
	_, ok := ExactMatcher{}.Match("quebec", bd)
	assert.False(t, ok)
	_, ok = ExactMatcher{}.Match("Quebec", bd)
	assert.True(t, ok)
	_, ok = ExactMatcher{}.Match("", bd)
	assert.False(t, ok)
}

func TestFoldMatcher(t *testing.T) {
	bd := boundary.NewDataset("name", []boundary.Feature{
		{Name: "Québec", Geometry: square(0, 0, 1, 1)},
		{Name: "Banff--Airdrie", Geometry: square(0, 0, 1, 1)},
	})
	m := NewFoldMatcher()

	f, ok := m.Match("QUEBEC", bd)
	require.True(t, ok)
	assert.Equal(t, "Québec", f.Name)

	f, ok = m.Match("banff—airdrie", bd)
	require.True(t, ok)
	assert.Equal(t, "Banff--Airdrie", f.Name)

	_, ok = m.Match("Ontario", bd)
	assert.False(t, ok)
	_, ok = m.Match("Québec", nil)
	assert.False(t, ok)
}

func TestNewMatcher(t *testing.T) {
	assert.IsType(t, ExactMatcher{}, NewMatcher(StrategyExact))
	assert.IsType(t, ExactMatcher{}, NewMatcher("bogus"))
	assert.IsType(t, &FoldMatcher{}, NewMatcher(StrategyFold))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "montreal nord", Fold("  Montréal   NORD "))
}

func TestRenderGeometry_GeoJSON(t *testing.T) {
	ds, bd := fixtures(t)
	j := NewJoiner(nil, refresh.NewMinterAt(99))
	r := j.Resolve(SelectionFor(ds, filter.State{Geography: filter.Province("Quebec")}), bd)

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "FeatureCollection", out["type"])
	assert.Equal(t, refresh.Token(100).String(), out["refreshToken"])
	assert.Equal(t, []any{100.0, 40.0, 110.0, 50.0}, out["bbox"])
	assert.Equal(t, []any{105.0, 45.0}, out["center"])
	assert.Len(t, out["features"], 1)
}
