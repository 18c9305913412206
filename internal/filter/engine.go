package filter

import (
	"github.com/sells-group/geobrowser/internal/electoral"
)

// Options are the selectable values of each dimension under a state. Lists are
// in dataset order and never contain duplicates.
type Options struct {
	Geographies []string                    `json:"geographies" yaml:"geographies"`
	Districts   []string                    `json:"districts" yaml:"districts"`
	Classes     []electoral.SettlementClass `json:"classes" yaml:"classes"`
	Parties     []string                    `json:"parties" yaml:"parties"`
	Candidates  []string                    `json:"candidates" yaml:"candidates"`
	Percentages []Percentage                `json:"percentages" yaml:"percentages"`
}

type predicate func(State, electoral.District) bool

// predicates are ANDed; each treats an unset dimension as true.
var predicates = []predicate{
	matchGeography,
	matchDistrict,
	matchClass,
	matchParty,
	matchCandidate,
	matchPercentage,
}

func matchGeography(s State, d electoral.District) bool {
	if !s.Geography.IsProvince() {
		return true
	}
	return d.Province == s.Geography.Province
}

func matchDistrict(s State, d electoral.District) bool {
	return s.District == "" || d.Name == s.District
}

func matchClass(s State, d electoral.District) bool {
	return s.Class == "" || d.Class == s.Class
}

// matchParty holds only when every candidate of the district belongs to the
// party. A district without candidates never matches a party.
func matchParty(s State, d electoral.District) bool {
	if s.Party == "" {
		return true
	}
	if len(d.Candidates) == 0 {
		return false
	}
	for _, c := range d.Candidates {
		if c.Party != s.Party {
			return false
		}
	}
	return true
}

func matchCandidate(s State, d electoral.District) bool {
	if s.Candidate == "" {
		return true
	}
	for _, c := range d.Candidates {
		if c.Name == s.Candidate {
			return true
		}
	}
	return false
}

// matchPercentage holds only when every candidate's share is known and passes.
// A district without candidates never matches a percentage predicate.
func matchPercentage(s State, d electoral.District) bool {
	if s.Percentage == PercentageUnset {
		return true
	}
	if len(d.Candidates) == 0 {
		return false
	}
	for _, c := range d.Candidates {
		pct, known := c.Share()
		if !known || !s.Percentage.Holds(pct) {
			return false
		}
	}
	return true
}

// Matches reports whether d satisfies every active predicate of s.
func Matches(s State, d electoral.District) bool {
	for _, p := range predicates {
		if !p(s, d) {
			return false
		}
	}
	return true
}

// ResultSet returns the districts satisfying s, in dataset order. A nil
// dataset yields an empty result.
func ResultSet(ds *electoral.Dataset, s State) []electoral.District {
	var out []electoral.District
	for _, d := range ds.AllDistricts() {
		if Matches(s, d) {
			out = append(out, d)
		}
	}
	return out
}

// reachable returns the districts left by the geography and district
// dimensions alone.
func reachable(ds *electoral.Dataset, s State) []electoral.District {
	scope := State{Geography: s.Geography, District: s.District}
	return ResultSet(ds, scope)
}

// ComputeOptions returns the option lists for s. Downstream lists are drawn
// from the districts reachable under the upstream selections: parties from
// the geography/district scope, candidates from that scope narrowed by party.
// The district list is populated only when a single province is selected.
func ComputeOptions(ds *electoral.Dataset, s State) Options {
	opts := Options{
		Geographies: []string{},
		Districts:   []string{},
		Classes:     []electoral.SettlementClass{},
		Parties:     []string{},
		Candidates:  []string{},
		Percentages: []Percentage{},
	}
	if ds == nil {
		return opts
	}

	opts.Geographies = append(opts.Geographies, WholeNation)
	opts.Geographies = append(opts.Geographies, ds.Provinces()...)

	if s.Geography.IsProvince() {
		for _, d := range ds.Districts(s.Geography.Province) {
			opts.Districts = append(opts.Districts, d.Name)
		}
	}

	if s.Class != "" {
		opts.Classes = append(opts.Classes, s.Class)
	}

	pool := reachable(ds, s)
	opts.Parties = distinct(pool, func(c electoral.Candidate) string { return c.Party })

	partyScope := State{Geography: s.Geography, District: s.District, Party: s.Party}
	var byParty []electoral.District
	for _, d := range pool {
		if matchParty(partyScope, d) {
			byParty = append(byParty, d)
		}
	}
	opts.Candidates = distinct(byParty, func(c electoral.Candidate) string { return c.Name })

	if len(pool) > 0 {
		opts.Percentages = append(opts.Percentages, Percentages...)
	}
	return opts
}

func distinct(districts []electoral.District, key func(electoral.Candidate) string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, d := range districts {
		for _, c := range d.Candidates {
			k := key(c)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
