// Package electoral models the nested province -> district -> candidate dataset.
package electoral

import (
	"slices"
	"strings"

	"github.com/sells-group/geobrowser/internal/boundary"
)

// SettlementClass is the Urban / Semi-Urban / Rural classification of a district.
type SettlementClass string

// Settlement classes.
const (
	Urban     SettlementClass = "Urban"
	SemiUrban SettlementClass = "Semi-Urban"
	Rural     SettlementClass = "Rural"
)

// SettlementClasses lists the known classes in display order.
var SettlementClasses = []SettlementClass{Urban, SemiUrban, Rural}

// ParseSettlementClass accepts the feed spellings (URBAN, SEMI-URBAN, SEMIURBAN,
// Semi Urban, RURAL, ...) case-insensitively. Unknown values yield "".
func ParseSettlementClass(s string) SettlementClass {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.NewReplacer("-", "", " ", "", "_", "").Replace(n)
	switch n {
	case "urban":
		return Urban
	case "semiurban":
		return SemiUrban
	case "rural":
		return Rural
	default:
		return ""
	}
}

// Candidate is one contestant in a district. PercentageUnknown marks a share
// the feed left empty; Percentage is then 0 and must not be read as a share.
type Candidate struct {
	Name              string  `json:"CANDIDATE_NAME" yaml:"CANDIDATE_NAME"`
	Party             string  `json:"CANDIDATE_PARTY" yaml:"CANDIDATE_PARTY"`
	Votes             int     `json:"VOTES_OBTAINED" yaml:"VOTES_OBTAINED"`
	Percentage        float64 `json:"PERCENTAGE_OF_VOTES_OBTAINED" yaml:"PERCENTAGE_OF_VOTES_OBTAINED"`
	PercentageUnknown bool    `json:"-" yaml:"-"`
}

// Share returns the vote share and whether it is known.
func (c Candidate) Share() (float64, bool) {
	return c.Percentage, !c.PercentageUnknown
}

// District is the smallest electoral unit.
type District struct {
	Number     string
	Name       string
	Province   string
	Class      SettlementClass
	Candidates []Candidate

	// Geometry is the outline embedded in the electoral feed, nil when the feed
	// had none.
	Geometry *boundary.Feature
}

// Clone returns a copy of d that owns its candidate slice and geometry.
func (d District) Clone() District {
	out := d
	out.Candidates = slices.Clone(d.Candidates)
	if d.Geometry != nil {
		g := d.Geometry.Clone()
		out.Geometry = &g
	}
	return out
}

// Parties returns the distinct parties of the district's candidates in order.
func (d District) Parties() []string {
	seen := make(map[string]bool, len(d.Candidates))
	var out []string
	for _, c := range d.Candidates {
		if seen[c.Party] {
			continue
		}
		seen[c.Party] = true
		out = append(out, c.Party)
	}
	return out
}

// Winner returns the candidate with the highest known vote share. A district
// whose shares are all unknown has no winner.
func (d District) Winner() (Candidate, bool) {
	var best Candidate
	found := false
	for _, c := range d.Candidates {
		if c.PercentageUnknown {
			continue
		}
		if !found || c.Percentage > best.Percentage {
			best = c
			found = true
		}
	}
	return best, found
}

// Province is a named, ordered list of districts.
type Province struct {
	Name      string
	Districts []District
}

func clampPercentage(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
