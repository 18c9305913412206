package electoral

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedSample = `{
  "Quebec": [
    {
      "ELECTORAL_DISTRICT_NUMBER": 24003,
      "ELECTORAL_DISTRICT_NAME": "Beauce",
      "URBAN_SEMIURBAN_RURAL": "RURAL",
      "candidates": [
        {"CANDIDATE_NAME": "A", "CANDIDATE_PARTY": "Conservative", "VOTES_OBTAINED": 30000, "PERCENTAGE_OF_VOTES_OBTAINED": 48.5},
        {"CANDIDATE_NAME": "B", "CANDIDATE_PARTY": "Liberal", "VOTES_OBTAINED": "12000", "PERCENTAGE_OF_VOTES_OBTAINED": "19.4"}
      ],
      "geojson": null
    }
  ],
  "Alberta": [
    {
      "ELECTORAL_DISTRICT_NUMBER": "48001",
      "ELECTORAL_DISTRICT_NAME": "Banff--Airdrie",
      "URBAN_SEMIURBAN_RURAL": "Semi-Urban",
      "candidates": [],
      "geojson": {
        "type": "Feature",
        "bbox": [-116, 50, -114, 52],
        "properties": {"name": "ignored"},
        "geometry": {"type": "Polygon", "coordinates": [[[-116,50],[-114,50],[-114,52],[-116,52],[-116,50]]]}
      }
    }
  ],
  "Ontario": []
}`

func TestDecode_PreservesProvinceOrder(t *testing.T) {
	ds, err := Decode(strings.NewReader(feedSample))
	require.NoError(t, err)

	assert.Equal(t, []string{"Quebec", "Alberta", "Ontario"}, ds.Provinces())
	assert.Equal(t, 2, ds.Len())
	assert.True(t, ds.HasProvince("Ontario"))
	assert.Empty(t, ds.Districts("Ontario"))
}

func TestDecode_FeedKeys(t *testing.T) {
	ds, err := Decode(strings.NewReader(feedSample))
	require.NoError(t, err)

	d, ok := ds.District("Quebec", "Beauce")
	require.True(t, ok)
	assert.Equal(t, "24003", d.Number)
	assert.Equal(t, Rural, d.Class)
	assert.Equal(t, "Quebec", d.Province)
	require.Len(t, d.Candidates, 2)
	assert.Equal(t, Candidate{Name: "B", Party: "Liberal", Votes: 12000, Percentage: 19.4}, d.Candidates[1])
	assert.Nil(t, d.Geometry)

	w, ok := d.Winner()
	require.True(t, ok)
	assert.Equal(t, "A", w.Name)
	assert.Equal(t, []string{"Conservative", "Liberal"}, d.Parties())
}

func TestDecode_EmbeddedGeometry(t *testing.T) {
	ds, err := Decode(strings.NewReader(feedSample))
	require.NoError(t, err)

	d, ok := ds.District("Alberta", "Banff--Airdrie")
	require.True(t, ok)
	assert.Equal(t, SemiUrban, d.Class)
	require.NotNil(t, d.Geometry)
	assert.Equal(t, "Banff--Airdrie", d.Geometry.Name)
	require.NotNil(t, d.Geometry.BBox)
	assert.Equal(t, -116.0, d.Geometry.BBox.MinLng)
	assert.Equal(t, 52.0, d.Geometry.BBox.MaxLat)
}

func TestDecode_Aliases(t *testing.T) {
	in := `{"Ontario":[{"name":"Toronto Centre","settlementClass":"Urban","candidates":[{"party":"Liberal","pct":52.1}]}]}`
	ds, err := Decode(strings.NewReader(in))
	require.NoError(t, err)

	d, ok := ds.District("Ontario", "Toronto Centre")
	require.True(t, ok)
	assert.Equal(t, Urban, d.Class)
	require.Len(t, d.Candidates, 1)
	assert.Equal(t, "Liberal", d.Candidates[0].Party)
	assert.InDelta(t, 52.1, d.Candidates[0].Percentage, 1e-9)
}

func TestDecode_ClampsPercentage(t *testing.T) {
	in := `{"P":[{"name":"D","candidates":[{"party":"X","pct":140},{"party":"Y","pct":-3}]}]}`
	ds, err := Decode(strings.NewReader(in))
	require.NoError(t, err)

	d, _ := ds.District("P", "D")
	assert.Equal(t, 100.0, d.Candidates[0].Percentage)
	assert.Equal(t, 0.0, d.Candidates[1].Percentage)
}

func TestDecode_UnknownShare(t *testing.T) {
	in := `{"P":[{"name":"D","candidates":[{"party":"X","pct":12},{"party":"Y"},{"party":"Z","pct":""},{"party":"W","pct":null}]}]}`
	ds, err := Decode(strings.NewReader(in))
	require.NoError(t, err)

	d, _ := ds.District("P", "D")
	require.Len(t, d.Candidates, 4)
	pct, known := d.Candidates[0].Share()
	assert.True(t, known)
	assert.Equal(t, 12.0, pct)
	for _, c := range d.Candidates[1:] {
		_, known := c.Share()
		assert.False(t, known, c.Party)
	}

	w, ok := d.Winner()
	require.True(t, ok)
	assert.Equal(t, "X", w.Party)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ds))
	assert.Contains(t, buf.String(), `"CANDIDATE_PARTY":"Y","VOTES_OBTAINED":0,"PERCENTAGE_OF_VOTES_OBTAINED":null`)

	back, err := Decode(&buf)
	require.NoError(t, err)
	again, _ := back.District("P", "D")
	assert.Equal(t, d.Candidates, again.Candidates)
}

func TestDistrict_WinnerNeedsKnownShare(t *testing.T) {
	d := District{Candidates: []Candidate{{Party: "X", PercentageUnknown: true}}}
	_, ok := d.Winner()
	assert.False(t, ok)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"scalar", `42`},
		{"truncated", `{"Ontario": [`},
		{"districts not array", `{"Ontario": {"name": "x"}}`},
		{"duplicate province", `{"A": [], "A": []}`},
		{"duplicate district", `{"A": [{"name": "x"}, {"name": "x"}]}`},
		{"empty", ``},
		{"unparseable share", `{"A": [{"name": "x", "candidates": [{"party": "P", "pct": "n/a"}]}]}`},
		{"unparseable votes", `{"A": [{"name": "x", "candidates": [{"party": "P", "votes": "lots"}]}]}`},
		{"unparseable row share", `[{"PROVINCE": "A", "ELECTORAL_DISTRICT_NAME": "x", "CANDIDATE_PARTY": "P", "PERCENTAGE_OF_VOTES_OBTAINED": "n/a"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	ds, err := Decode(strings.NewReader(feedSample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ds))
	assert.True(t, strings.HasPrefix(buf.String(), `{"Quebec":`))

	back, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, ds.Provinces(), back.Provinces())

	orig, _ := ds.District("Quebec", "Beauce")
	got, _ := back.District("Quebec", "Beauce")
	assert.Equal(t, orig.Candidates, got.Candidates)
	assert.Equal(t, orig.Class, got.Class)

	banff, _ := back.District("Alberta", "Banff--Airdrie")
	require.NotNil(t, banff.Geometry)
	assert.NotNil(t, banff.Geometry.Geometry)
}

func TestDataset_ReturnsCopies(t *testing.T) {
	ds, err := New([]Province{{
		Name: "P",
		Districts: []District{{
			Name:       "D",
			Candidates: []Candidate{{Party: "X"}},
		}},
	}})
	require.NoError(t, err)

	d := ds.Districts("P")
	d[0].Candidates[0].Party = "mutated"
	again, _ := ds.District("P", "D")
	assert.Equal(t, "X", again.Candidates[0].Party)
}

func TestDataset_NilSafe(t *testing.T) {
	var ds *Dataset
	assert.Nil(t, ds.Provinces())
	assert.Nil(t, ds.AllDistricts())
	assert.Equal(t, 0, ds.Len())
	assert.False(t, ds.HasProvince("x"))
	_, ok := ds.District("x", "y")
	assert.False(t, ok)
	_, ok = ds.Province("x")
	assert.False(t, ok)
	assert.Nil(t, ds.Flatten())
}

func TestParseSettlementClass(t *testing.T) {
	tests := map[string]SettlementClass{
		"URBAN":      Urban,
		"urban":      Urban,
		"SEMI-URBAN": SemiUrban,
		"Semi Urban": SemiUrban,
		"SEMIURBAN":  SemiUrban,
		"Rural ":     Rural,
		"suburban":   "",
		"Semi-Rural": "",
		"semirural":  "",
		"":           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseSettlementClass(in), in)
	}
}

func TestFlattenFromRows_RoundTrip(t *testing.T) {
	ds, err := Decode(strings.NewReader(feedSample))
	require.NoError(t, err)

	rows := ds.Flatten()
	// Beauce has two candidates, Banff one empty-candidate row, Ontario none.
	require.Len(t, rows, 3)
	assert.Equal(t, "Quebec", rows[0].Province)
	assert.False(t, rows[2].HasCandidate())

	back, err := FromRows(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"Quebec", "Alberta"}, back.Provinces())

	beauce, _ := back.District("Quebec", "Beauce")
	assert.Len(t, beauce.Candidates, 2)
	banff, _ := back.District("Alberta", "Banff--Airdrie")
	assert.Empty(t, banff.Candidates)
	assert.Equal(t, SemiUrban, banff.Class)
}

func TestDecode_FlatRows(t *testing.T) {
	in := `[
	  {"PROVINCE":"Ontario","ELECTORAL_DISTRICT_NUMBER":35109,"ELECTORAL_DISTRICT_NAME":"Toronto Centre","URBAN_SEMIURBAN_RURAL":"URBAN","CANDIDATE_NAME":"M","CANDIDATE_PARTY":"Liberal","VOTES_OBTAINED":"20000","PERCENTAGE_OF_VOTES_OBTAINED":"52.1"},
	  {"PROVINCE":"Ontario","ELECTORAL_DISTRICT_NUMBER":35109,"ELECTORAL_DISTRICT_NAME":"Toronto Centre","URBAN_SEMIURBAN_RURAL":"URBAN","CANDIDATE_NAME":"N","CANDIDATE_PARTY":"NDP","VOTES_OBTAINED":9000,"PERCENTAGE_OF_VOTES_OBTAINED":23.5},
	  {"PROVINCE":"Manitoba","ELECTORAL_DISTRICT_NUMBER":46001,"ELECTORAL_DISTRICT_NAME":"Brandon--Souris","URBAN_SEMIURBAN_RURAL":"Rural","CANDIDATE_NAME":"O","CANDIDATE_PARTY":"Conservative","VOTES_OBTAINED":1,"PERCENTAGE_OF_VOTES_OBTAINED":60}
	]`
	ds, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"Ontario", "Manitoba"}, ds.Provinces())

	tc, ok := ds.District("Ontario", "Toronto Centre")
	require.True(t, ok)
	assert.Equal(t, "35109", tc.Number)
	require.Len(t, tc.Candidates, 2)
	assert.Equal(t, 20000, tc.Candidates[0].Votes)
}

func TestFromRows_MissingKeys(t *testing.T) {
	_, err := FromRows([]Row{{DistrictName: "x"}})
	assert.Error(t, err)
	_, err = FromRows([]Row{{Province: "x"}})
	assert.Error(t, err)
}

func TestRow_JSONShape(t *testing.T) {
	b, err := json.Marshal(Row{Province: "P", DistrictName: "D", Votes: 3})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"PROVINCE":"P"`)
	assert.Contains(t, string(b), `"VOTES_OBTAINED":3`)
	assert.NotContains(t, string(b), "GEOJSON")
	assert.Contains(t, string(b), `"PERCENTAGE_OF_VOTES_OBTAINED":0`)

	b, err = json.Marshal(Row{Province: "P", DistrictName: "D", CandidateParty: "X", PercentageUnknown: true})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"PERCENTAGE_OF_VOTES_OBTAINED":null`)

	var back Row
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.PercentageUnknown)
	assert.Equal(t, "X", back.CandidateParty)
}

func TestFlattenFromRows_KeepsUnknownShare(t *testing.T) {
	ds, err := New([]Province{{Name: "P", Districts: []District{{
		Name:       "D",
		Candidates: []Candidate{{Party: "X", PercentageUnknown: true}, {Party: "Y", Percentage: 30}},
	}}}})
	require.NoError(t, err)

	rows := ds.Flatten()
	require.Len(t, rows, 2)
	assert.True(t, rows[0].PercentageUnknown)
	assert.False(t, rows[1].PercentageUnknown)

	back, err := FromRows(rows)
	require.NoError(t, err)
	d, _ := back.District("P", "D")
	assert.Equal(t, ds.Districts("P")[0].Candidates, d.Candidates)
}
