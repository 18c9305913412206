package boundary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// rawObject covers the three top-level GeoJSON shapes we accept.
type rawObject struct {
	Type       string            `json:"type"`
	BBox       []float64         `json:"bbox,omitempty"`
	Properties map[string]any    `json:"properties,omitempty"`
	Geometry   json.RawMessage   `json:"geometry,omitempty"`
	Features   []json.RawMessage `json:"features,omitempty"`
}

// ParseGeoJSON reads a GeoJSON FeatureCollection (or a single Feature) into a
// Dataset keyed by nameProperty.
func ParseGeoJSON(r io.Reader, nameProperty string) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: read geojson")
	}
	if nameProperty == "" {
		nameProperty = DefaultNameProperty
	}
	features, err := DecodeFeatures(data, nameProperty)
	if err != nil {
		return nil, err
	}
	return NewDataset(nameProperty, features), nil
}

// DecodeFeatures decodes a FeatureCollection, Feature, or bare geometry. A JSON
// null decodes to no features.
func DecodeFeatures(data []byte, nameProperty string) ([]Feature, error) {
	data = bytes.TrimSpace(data)
	if isNull(data) {
		return nil, nil
	}

	var obj rawObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, eris.Wrap(err, "boundary: decode geojson")
	}

	switch obj.Type {
	case "FeatureCollection":
		features := make([]Feature, 0, len(obj.Features))
		for i, raw := range obj.Features {
			var fo rawObject
			if err := json.Unmarshal(raw, &fo); err != nil {
				return nil, eris.Wrapf(err, "boundary: decode feature %d", i)
			}
			f, err := featureFromRaw(fo, nameProperty)
			if err != nil {
				return nil, eris.Wrapf(err, "boundary: feature %d", i)
			}
			features = append(features, f)
		}
		return features, nil
	case "Feature":
		f, err := featureFromRaw(obj, nameProperty)
		if err != nil {
			return nil, err
		}
		return []Feature{f}, nil
	case "":
		return nil, eris.New("boundary: geojson object has no type")
	default:
		g, err := decodeGeometry(data)
		if err != nil {
			return nil, err
		}
		bbox, err := FromArray(obj.BBox)
		if err != nil {
			return nil, err
		}
		return []Feature{{Geometry: g, BBox: bbox}}, nil
	}
}

func featureFromRaw(obj rawObject, nameProperty string) (Feature, error) {
	g, err := decodeGeometry(obj.Geometry)
	if err != nil {
		return Feature{}, err
	}
	bbox, err := FromArray(obj.BBox)
	if err != nil {
		return Feature{}, err
	}
	return Feature{
		Name:       propertyString(obj.Properties, nameProperty),
		Geometry:   g,
		BBox:       bbox,
		Properties: obj.Properties,
	}, nil
}

func decodeGeometry(raw json.RawMessage) (geom.T, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil, nil
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrap(err, "boundary: decode geometry")
	}
	return g, nil
}

func isNull(b []byte) bool {
	return len(b) == 0 || string(b) == "null"
}

// propertyString renders a name property as a string. Numeric ids (district
// numbers) are rendered without a fractional part.
func propertyString(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// EncodeFeature renders one feature as a GeoJSON Feature object.
func EncodeFeature(f Feature, nameProperty string) (map[string]any, error) {
	props := map[string]any{}
	if f.Properties != nil {
		props = maps.Clone(f.Properties)
	}
	if nameProperty == "" {
		nameProperty = DefaultNameProperty
	}
	if _, ok := props[nameProperty]; !ok && f.Name != "" {
		props[nameProperty] = f.Name
	}

	geometry := json.RawMessage("null")
	if f.Geometry != nil {
		b, err := geojson.Marshal(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: encode geometry for %q", f.Name)
		}
		geometry = b
	}

	out := map[string]any{
		"type":       "Feature",
		"properties": props,
		"geometry":   geometry,
	}
	if b := f.Bounds(); b != nil {
		out["bbox"] = b.Array()
	}
	return out, nil
}

// EncodeCollection renders features as a GeoJSON FeatureCollection. Foreign
// members are added at the top level; they never replace type, features or bbox.
func EncodeCollection(features []Feature, bbox *BBox, nameProperty string, foreign map[string]any) ([]byte, error) {
	encoded := make([]map[string]any, 0, len(features))
	for _, f := range features {
		ef, err := EncodeFeature(f, nameProperty)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, ef)
	}

	out := make(map[string]any, len(foreign)+3)
	for k, v := range foreign {
		out[k] = v
	}
	out["type"] = "FeatureCollection"
	out["features"] = encoded
	if bbox != nil {
		out["bbox"] = bbox.Array()
	} else {
		delete(out, "bbox")
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: marshal feature collection")
	}
	return data, nil
}

// WriteGeoJSON writes a Dataset as a FeatureCollection.
func WriteGeoJSON(w io.Writer, d *Dataset) error {
	features := d.Features()
	boxes := make([]BBox, 0, len(features))
	for _, f := range features {
		if b := f.Bounds(); b != nil {
			boxes = append(boxes, *b)
		}
	}
	data, err := EncodeCollection(features, Aggregate(boxes), d.NameProperty(), nil)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "boundary: write geojson")
	}
	return nil
}
