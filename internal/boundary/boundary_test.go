package boundary

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

const sampleCollection = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "bbox": [-80, 43, -79, 44],
      "properties": {"name": "Toronto Centre", "fednum": 35109},
      "geometry": {"type": "Polygon", "coordinates": [[[-80,43],[-79,43],[-79,44],[-80,44],[-80,43]]]}
    },
    {
      "type": "Feature",
      "properties": {"name": "Ottawa Centre", "fednum": 35075},
      "geometry": {"type": "Polygon", "coordinates": [[[-76,45],[-75,45],[-75,46],[-76,46],[-76,45]]]}
    },
    {
      "type": "Feature",
      "properties": {"name": "No Geometry"},
      "geometry": null
    }
  ]
}`

func TestParseGeoJSON_FeatureCollection(t *testing.T) {
	ds, err := ParseGeoJSON(strings.NewReader(sampleCollection), "name")
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())

	f, ok := ds.Lookup("Toronto Centre")
	require.True(t, ok)
	require.NotNil(t, f.BBox)
	assert.Equal(t, BBox{MinLng: -80, MinLat: 43, MaxLng: -79, MaxLat: 44}, *f.BBox)
	assert.NotNil(t, f.Geometry)

	ottawa, ok := ds.Lookup("Ottawa Centre")
	require.True(t, ok)
	assert.Nil(t, ottawa.BBox)
	b := ottawa.Bounds()
	require.NotNil(t, b)
	assert.Equal(t, BBox{MinLng: -76, MinLat: 45, MaxLng: -75, MaxLat: 46}, *b)

	empty, ok := ds.Lookup("No Geometry")
	require.True(t, ok)
	assert.Nil(t, empty.Geometry)
	assert.Nil(t, empty.Bounds())
}

func TestParseGeoJSON_NumericNameProperty(t *testing.T) {
	ds, err := ParseGeoJSON(strings.NewReader(sampleCollection), "fednum")
	require.NoError(t, err)

	_, ok := ds.Lookup("35109")
	assert.True(t, ok)
	assert.Equal(t, "fednum", ds.NameProperty())
}

func TestLookup_IsCaseSensitive(t *testing.T) {
	ds, err := ParseGeoJSON(strings.NewReader(sampleCollection), "")
	require.NoError(t, err)

	_, ok := ds.Lookup("toronto centre")
	assert.False(t, ok)
	_, ok = ds.Lookup("Toronto Centre ")
	assert.False(t, ok)
}

func TestParseGeoJSON_Invalid(t *testing.T) {
	_, err := ParseGeoJSON(strings.NewReader(`{"type":`), "name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode geojson")

	_, err = ParseGeoJSON(strings.NewReader(`{"features":[]}`), "name")
	require.Error(t, err)
}

func TestDecodeFeatures_NullAndBareGeometry(t *testing.T) {
	fs, err := DecodeFeatures([]byte("null"), "name")
	require.NoError(t, err)
	assert.Empty(t, fs)

	fs, err = DecodeFeatures([]byte(`{"type":"Point","coordinates":[1,2]}`), "name")
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "", fs[0].Name)
	assert.Equal(t, BBox{MinLng: 1, MinLat: 2, MaxLng: 1, MaxLat: 2}, *fs[0].Bounds())
}

func TestDuplicateNames_FirstWins(t *testing.T) {
	a := Feature{Name: "X", Properties: map[string]any{"v": 1}}
	b := Feature{Name: "X", Properties: map[string]any{"v": 2}}
	ds := NewDataset("name", []Feature{a, b})

	f, ok := ds.Lookup("X")
	require.True(t, ok)
	assert.Equal(t, 1, f.Properties["v"])
	assert.Equal(t, 2, ds.Len())
}

func TestNilDataset(t *testing.T) {
	var ds *Dataset
	assert.Equal(t, 0, ds.Len())
	assert.Nil(t, ds.Features())
	_, ok := ds.Lookup("anything")
	assert.False(t, ok)
	assert.Equal(t, DefaultNameProperty, ds.NameProperty())
}

func TestAggregate(t *testing.T) {
	assert.Nil(t, Aggregate(nil))

	agg := Aggregate([]BBox{
		{MinLng: 0, MinLat: 0, MaxLng: 10, MaxLat: 10},
		{MinLng: 5, MinLat: 5, MaxLng: 20, MaxLat: 20},
	})
	require.NotNil(t, agg)
	assert.Equal(t, BBox{MinLng: 0, MinLat: 0, MaxLng: 20, MaxLat: 20}, *agg)
}

func TestBBoxCenter(t *testing.T) {
	c := BBox{MinLng: -80, MinLat: 43, MaxLng: -79, MaxLat: 44}.Center()
	assert.InDelta(t, -79.5, c.Lng, 1e-9)
	assert.InDelta(t, 43.5, c.Lat, 1e-9)
}

func TestFromArray(t *testing.T) {
	b, err := FromArray([]float64{1, 2, 0, 3, 4, 9})
	require.NoError(t, err)
	assert.Equal(t, BBox{MinLng: 1, MinLat: 2, MaxLng: 3, MaxLat: 4}, *b)

	b, err = FromArray(nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = FromArray([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestEncodeCollection(t *testing.T) {
	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}})
	fs := []Feature{{Name: "Square", Geometry: poly}}
	bbox := &BBox{MinLng: 0, MinLat: 0, MaxLng: 10, MaxLat: 10}

	data, err := EncodeCollection(fs, bbox, "name", map[string]any{"refreshToken": "42", "type": "ignored"})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "FeatureCollection", out["type"])
	assert.Equal(t, "42", out["refreshToken"])
	assert.Equal(t, []any{0.0, 0.0, 10.0, 10.0}, out["bbox"])

	features := out["features"].([]any)
	require.Len(t, features, 1)
	f := features[0].(map[string]any)
	assert.Equal(t, "Square", f["properties"].(map[string]any)["name"])
	assert.Equal(t, "Polygon", f["geometry"].(map[string]any)["type"])
}

func TestEncodeCollection_EmptyHasNoBBox(t *testing.T) {
	data, err := EncodeCollection(nil, nil, "name", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}

func TestWriteGeoJSON_RoundTrip(t *testing.T) {
	ds, err := ParseGeoJSON(strings.NewReader(sampleCollection), "name")
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, WriteGeoJSON(&sb, ds))

	again, err := ParseGeoJSON(strings.NewReader(sb.String()), "name")
	require.NoError(t, err)
	assert.Equal(t, ds.Len(), again.Len())
	_, ok := again.Lookup("Ottawa Centre")
	assert.True(t, ok)
}

func TestReadWKTCSV(t *testing.T) {
	csv := "ED_NAME,the_geom,POP\n" +
		"\"Alpha\",\"POLYGON ((0 0, 1 0, 1 1, 0 1, 0 0))\",100\n" +
		"\"Broken\",\"POLYGON ((not wkt\",5\n" +
		"\"Beta\",\"MULTIPOLYGON (((2 2, 3 2, 3 3, 2 3, 2 2)))\",200\n"

	ds, err := ReadWKTCSV(context.Background(), strings.NewReader(csv), WKTOptions{NameColumn: "ED_NAME"})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())

	beta, ok := ds.Lookup("Beta")
	require.True(t, ok)
	assert.Equal(t, "200", beta.Properties["POP"])
	assert.Equal(t, BBox{MinLng: 2, MinLat: 2, MaxLng: 3, MaxLat: 3}, *beta.Bounds())
}

func TestReadWKTCSV_MissingColumn(t *testing.T) {
	csv := "name,wkt\nA,POINT (1 1)\n"
	_, err := ReadWKTCSV(context.Background(), strings.NewReader(csv), WKTOptions{NameColumn: "name"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the_geom")
}

func TestShapeToGeom_Polygon(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			{X: -80.0, Y: 25.0}, {X: -80.0, Y: 26.0}, {X: -79.0, Y: 26.0}, {X: -79.0, Y: 25.0}, {X: -80.0, Y: 25.0},
			{X: -81.0, Y: 26.0}, {X: -81.0, Y: 27.0}, {X: -80.0, Y: 27.0}, {X: -80.0, Y: 26.0}, {X: -81.0, Y: 26.0},
		},
	}

	g := shapeToGeom(poly)
	require.NotNil(t, g)
	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, BBox{MinLng: -81, MinLat: 25, MaxLng: -79, MaxLat: 27}, *FromBounds(g.Bounds()))
}

func TestShapeToGeom_PolyLineAndPoint(t *testing.T) {
	pl := &shp.PolyLine{
		NumParts: 1,
		Parts:    []int32{0},
		Points:   []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
	}
	g := shapeToGeom(pl)
	require.NotNil(t, g)
	_, ok := g.(*geom.MultiLineString)
	assert.True(t, ok)

	pt := shapeToGeom(&shp.Point{X: 3, Y: 4})
	require.NotNil(t, pt)
	assert.Equal(t, 4326, pt.SRID())
}

func TestShapeToGeom_Unsupported(t *testing.T) {
	assert.Nil(t, shapeToGeom(nil))
	assert.Nil(t, shapeToGeom(&shp.Polygon{}))
	assert.Nil(t, shapeToGeom(&shp.PolyLine{NumParts: 1, Parts: []int32{5}, Points: []shp.Point{{X: 0, Y: 0}}}))
}
