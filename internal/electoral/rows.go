package electoral

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geobrowser/internal/boundary"
)

// Row is one candidate line of the flat backend feed (electoral_data[]).
// A district without candidates is carried as a single row with empty
// candidate fields. An unknown share is written as null.
type Row struct {
	Province          string
	DistrictNumber    string
	DistrictName      string
	Class             string
	CandidateName     string
	CandidateParty    string
	Votes             int
	Percentage        float64
	PercentageUnknown bool
	GeoJSON           json.RawMessage
}

type rowJSON struct {
	Province       string          `json:"PROVINCE"`
	DistrictNumber string          `json:"ELECTORAL_DISTRICT_NUMBER"`
	DistrictName   string          `json:"ELECTORAL_DISTRICT_NAME"`
	Class          string          `json:"URBAN_SEMIURBAN_RURAL"`
	CandidateName  string          `json:"CANDIDATE_NAME"`
	CandidateParty string          `json:"CANDIDATE_PARTY"`
	Votes          int             `json:"VOTES_OBTAINED"`
	Percentage     *float64        `json:"PERCENTAGE_OF_VOTES_OBTAINED"`
	GeoJSON        json.RawMessage `json:"GEOJSON,omitempty"`
}

// MarshalJSON writes the row with the feed's column names.
func (r Row) MarshalJSON() ([]byte, error) {
	out := rowJSON{
		Province:       r.Province,
		DistrictNumber: r.DistrictNumber,
		DistrictName:   r.DistrictName,
		Class:          r.Class,
		CandidateName:  r.CandidateName,
		CandidateParty: r.CandidateParty,
		Votes:          r.Votes,
		GeoJSON:        r.GeoJSON,
	}
	if !r.PercentageUnknown {
		pct := r.Percentage
		out.Percentage = &pct
	}
	return json.Marshal(out)
}

// HasCandidate reports whether the row carries a candidate.
func (r Row) HasCandidate() bool {
	return r.CandidateName != "" || r.CandidateParty != ""
}

// UnmarshalJSON accepts numbers or numeric strings for the numeric columns.
func (r *Row) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return eris.Wrap(err, "electoral: decode row")
	}
	r.Province = rawString(pick(m, "PROVINCE", "province"))
	r.DistrictNumber = rawString(pick(m, "ELECTORAL_DISTRICT_NUMBER", "number"))
	r.DistrictName = rawString(pick(m, "ELECTORAL_DISTRICT_NAME", "district"))
	r.Class = rawString(pick(m, "URBAN_SEMIURBAN_RURAL", "settlementClass"))
	r.CandidateName = rawString(pick(m, "CANDIDATE_NAME", "candidate"))
	r.CandidateParty = rawString(pick(m, "CANDIDATE_PARTY", "party"))

	votes, _, err := rawNumber(pick(m, "VOTES_OBTAINED", "votes"))
	if err != nil {
		return eris.Wrapf(err, "electoral: votes of %q in %q", r.CandidateName, r.DistrictName)
	}
	r.Votes = int(votes)

	pct, ok, err := rawNumber(pick(m, "PERCENTAGE_OF_VOTES_OBTAINED", "pct"))
	if err != nil {
		return eris.Wrapf(err, "electoral: vote share of %q in %q", r.CandidateName, r.DistrictName)
	}
	r.Percentage = pct
	r.PercentageUnknown = !ok
	r.GeoJSON = nil
	if raw := pick(m, "GEOJSON", "geojson"); raw != nil && !isNull(raw) {
		r.GeoJSON = raw
	}
	return nil
}

// Flatten projects the dataset to flat rows, province by province.
func (ds *Dataset) Flatten() []Row {
	if ds == nil {
		return nil
	}
	var rows []Row
	for _, p := range ds.provinces {
		for _, d := range p.Districts {
			base := Row{
				Province:       p.Name,
				DistrictNumber: d.Number,
				DistrictName:   d.Name,
				Class:          string(d.Class),
			}
			if len(d.Candidates) == 0 {
				rows = append(rows, base)
				continue
			}
			for _, c := range d.Candidates {
				row := base
				row.CandidateName = c.Name
				row.CandidateParty = c.Party
				row.Votes = c.Votes
				row.Percentage = c.Percentage
				row.PercentageUnknown = c.PercentageUnknown
				rows = append(rows, row)
			}
		}
	}
	return rows
}

type districtKey struct {
	province string
	name     string
}

// FromRows groups flat rows into a Dataset. Provinces and districts keep the
// order of their first row. The first row of a district carrying GEOJSON
// supplies its geometry.
func FromRows(rows []Row) (*Dataset, error) {
	var provinces []Province
	provIdx := make(map[string]int)
	distIdx := make(map[districtKey]int)

	for i, r := range rows {
		if r.Province == "" {
			return nil, eris.Errorf("electoral: row %d has no province", i)
		}
		if r.DistrictName == "" {
			return nil, eris.Errorf("electoral: row %d has no district name", i)
		}

		pi, ok := provIdx[r.Province]
		if !ok {
			pi = len(provinces)
			provIdx[r.Province] = pi
			provinces = append(provinces, Province{Name: r.Province})
		}

		key := districtKey{province: r.Province, name: r.DistrictName}
		di, ok := distIdx[key]
		if !ok {
			di = len(provinces[pi].Districts)
			distIdx[key] = di
			provinces[pi].Districts = append(provinces[pi].Districts, District{
				Number: r.DistrictNumber,
				Name:   r.DistrictName,
				Class:  ParseSettlementClass(r.Class),
			})
		}

		d := &provinces[pi].Districts[di]
		if d.Geometry == nil && len(r.GeoJSON) > 0 {
			features, err := boundary.DecodeFeatures(r.GeoJSON, boundary.DefaultNameProperty)
			if err != nil {
				return nil, eris.Wrapf(err, "electoral: row %d geojson", i)
			}
			d.Geometry = boundary.Merge(r.DistrictName, features)
		}
		if r.HasCandidate() {
			d.Candidates = append(d.Candidates, Candidate{
				Name:              r.CandidateName,
				Party:             r.CandidateParty,
				Votes:             r.Votes,
				Percentage:        clampPercentage(r.Percentage),
				PercentageUnknown: r.PercentageUnknown,
			})
		}
	}
	return New(provinces)
}
