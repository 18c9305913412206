package electoral

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geobrowser/internal/boundary"
)

// Decode reads an electoral dataset. Two shapes are accepted: the nested
// province-keyed object ({"Ontario": [district, ...], ...}), whose key order is
// preserved, and the flat backend row array ([row, ...]).
func Decode(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, eris.Wrap(err, "electoral: read opening token")
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, eris.Errorf("electoral: expected object or array, got %v", tok)
	}

	switch delim {
	case '{':
		return decodeNested(dec)
	case '[':
		var rows []Row
		for dec.More() {
			var row Row
			if err := dec.Decode(&row); err != nil {
				return nil, eris.Wrapf(err, "electoral: decode row %d", len(rows))
			}
			rows = append(rows, row)
		}
		if _, err := dec.Token(); err != nil {
			return nil, eris.Wrap(err, "electoral: read closing token")
		}
		return FromRows(rows)
	default:
		return nil, eris.Errorf("electoral: expected object or array, got %v", delim)
	}
}

func decodeNested(dec *json.Decoder) (*Dataset, error) {
	var provinces []Province
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, eris.Wrap(err, "electoral: read province key")
		}
		name, ok := tok.(string)
		if !ok {
			return nil, eris.Errorf("electoral: expected province name, got %v", tok)
		}

		var districts []District
		if err := dec.Decode(&districts); err != nil {
			return nil, eris.Wrapf(err, "electoral: decode districts of %q", name)
		}
		provinces = append(provinces, Province{Name: name, Districts: districts})
	}
	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(err, "electoral: read closing token")
	}
	return New(provinces)
}

// Encode writes ds in the nested province-keyed shape, provinces in order.
func Encode(w io.Writer, ds *Dataset) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range ds.provinces {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Name)
		if err != nil {
			return eris.Wrap(err, "electoral: encode province name")
		}
		buf.Write(key)
		buf.WriteByte(':')

		districts := p.Districts
		if districts == nil {
			districts = []District{}
		}
		val, err := json.Marshal(districts)
		if err != nil {
			return eris.Wrapf(err, "electoral: encode districts of %q", p.Name)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')

	if _, err := w.Write(buf.Bytes()); err != nil {
		return eris.Wrap(err, "electoral: write dataset")
	}
	return nil
}

type districtJSON struct {
	Number     string          `json:"ELECTORAL_DISTRICT_NUMBER"`
	Name       string          `json:"ELECTORAL_DISTRICT_NAME"`
	Class      SettlementClass `json:"URBAN_SEMIURBAN_RURAL"`
	Candidates []Candidate     `json:"candidates"`
	GeoJSON    json.RawMessage `json:"geojson"`
}

// MarshalJSON writes the district with the feed's key names.
func (d District) MarshalJSON() ([]byte, error) {
	out := districtJSON{
		Number:     d.Number,
		Name:       d.Name,
		Class:      d.Class,
		Candidates: d.Candidates,
		GeoJSON:    json.RawMessage("null"),
	}
	if out.Candidates == nil {
		out.Candidates = []Candidate{}
	}
	if d.Geometry != nil {
		f, err := boundary.EncodeFeature(*d.Geometry, boundary.DefaultNameProperty)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(f)
		if err != nil {
			return nil, eris.Wrap(err, "electoral: marshal district geometry")
		}
		out.GeoJSON = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a district. Besides the feed keys, short aliases
// (name, number, settlementClass, geometry) are accepted.
func (d *District) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return eris.Wrap(err, "electoral: decode district")
	}

	d.Number = rawString(pick(m, "ELECTORAL_DISTRICT_NUMBER", "number", "id"))
	d.Name = rawString(pick(m, "ELECTORAL_DISTRICT_NAME", "name"))
	d.Class = ParseSettlementClass(rawString(pick(m, "URBAN_SEMIURBAN_RURAL", "settlementClass", "settlement_class", "class")))
	d.Candidates = nil
	d.Geometry = nil

	if raw := pick(m, "candidates"); raw != nil && !isNull(raw) {
		if err := json.Unmarshal(raw, &d.Candidates); err != nil {
			return eris.Wrapf(err, "electoral: decode candidates of %q", d.Name)
		}
	}

	if raw := pick(m, "geojson", "geometry"); raw != nil && !isNull(raw) {
		features, err := boundary.DecodeFeatures(raw, boundary.DefaultNameProperty)
		if err != nil {
			return eris.Wrapf(err, "electoral: decode geojson of %q", d.Name)
		}
		d.Geometry = boundary.Merge(d.Name, features)
	}
	return nil
}

// UnmarshalJSON reads a candidate, accepting short aliases (name, party,
// votes, pct, percentage, votePercentage). Numbers may arrive as strings. An
// absent, null or empty share is unknown; a share that is not a number is an
// error.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return eris.Wrap(err, "electoral: decode candidate")
	}
	c.Name = rawString(pick(m, "CANDIDATE_NAME", "name"))
	c.Party = rawString(pick(m, "CANDIDATE_PARTY", "party"))

	votes, _, err := rawNumber(pick(m, "VOTES_OBTAINED", "votes"))
	if err != nil {
		return eris.Wrapf(err, "electoral: votes of candidate %q", c.Name)
	}
	c.Votes = int(votes)

	pct, ok, err := rawNumber(pick(m, "PERCENTAGE_OF_VOTES_OBTAINED", "pct", "percentage", "votePercentage"))
	if err != nil {
		return eris.Wrapf(err, "electoral: vote share of candidate %q", c.Name)
	}
	c.Percentage = clampPercentage(pct)
	c.PercentageUnknown = !ok
	return nil
}

type candidateOut struct {
	Name       string   `json:"CANDIDATE_NAME" yaml:"CANDIDATE_NAME"`
	Party      string   `json:"CANDIDATE_PARTY" yaml:"CANDIDATE_PARTY"`
	Votes      int      `json:"VOTES_OBTAINED" yaml:"VOTES_OBTAINED"`
	Percentage *float64 `json:"PERCENTAGE_OF_VOTES_OBTAINED" yaml:"PERCENTAGE_OF_VOTES_OBTAINED"`
}

func (c Candidate) out() candidateOut {
	out := candidateOut{Name: c.Name, Party: c.Party, Votes: c.Votes}
	if !c.PercentageUnknown {
		pct := c.Percentage
		out.Percentage = &pct
	}
	return out
}

// MarshalJSON writes an unknown share as null.
func (c Candidate) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.out())
}

// MarshalYAML writes an unknown share as null.
func (c Candidate) MarshalYAML() (any, error) {
	return c.out(), nil
}

func pick(m map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || string(raw) == "null"
}

// rawString renders a JSON scalar as a string. Whole numbers lose their
// fractional part so district numbers stay stable.
func rawString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.TrimSpace(string(raw))
}

// rawNumber parses a JSON number or a numeric string ("1,234", "45.2%").
// Absent, null and empty values report ok=false; anything else that is not a
// number is an error.
func rawNumber(raw json.RawMessage) (v float64, ok bool, err error) {
	if isNull(raw) {
		return 0, false, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true, nil
	}
	return ParseNumber(rawString(raw))
}

// ParseNumber reads a feed number that may carry thousands separators or a
// trailing percent sign. An empty string reports ok=false.
func ParseNumber(s string) (v float64, ok bool, err error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, eris.Errorf("electoral: invalid number %q", s)
	}
	return f, true, nil
}
