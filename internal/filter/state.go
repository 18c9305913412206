// Package filter holds the cascading filter state over an electoral dataset and
// the pure engine that computes option lists and result sets from it.
package filter

import (
	"strings"

	"github.com/sells-group/geobrowser/internal/electoral"
)

// WholeNation is the geography value that selects every province.
const WholeNation = "*"

// Threshold is the fixed vote-share cut used by the percentage predicate.
const Threshold = 15.0

// Geography is the top filter dimension: unset, the whole nation, or one
// province. The zero value is unset.
type Geography struct {
	Nation   bool   `json:"nation,omitempty" yaml:"nation,omitempty"`
	Province string `json:"province,omitempty" yaml:"province,omitempty"`
}

// Nation returns the whole-nation geography.
func Nation() Geography { return Geography{Nation: true} }

// Province returns the geography for one province.
func Province(name string) Geography { return Geography{Province: name} }

// ParseGeography maps a wire value to a Geography: "" is unset and
// WholeNation selects the nation.
func ParseGeography(v string) Geography {
	switch v {
	case "":
		return Geography{}
	case WholeNation:
		return Nation()
	default:
		return Province(v)
	}
}

// IsSet reports whether a geography was chosen.
func (g Geography) IsSet() bool { return g.Nation || g.Province != "" }

// IsProvince reports whether g names a single province.
func (g Geography) IsProvince() bool { return !g.Nation && g.Province != "" }

// Value is the wire form accepted by ParseGeography.
func (g Geography) Value() string {
	if g.Nation {
		return WholeNation
	}
	return g.Province
}

// Percentage is the all-candidates vote-share predicate.
type Percentage string

// Percentage predicates. Unset matches every district.
const (
	PercentageUnset Percentage = ""
	Above           Percentage = "Above 15%"
	Below           Percentage = "Below 15%"
)

// Percentages lists the selectable predicates in display order.
var Percentages = []Percentage{Above, Below}

// ParsePercentage accepts the display labels and the short forms "above",
// "below", ">" and "<". Unknown values return false.
func ParsePercentage(v string) (Percentage, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return PercentageUnset, true
	case "above 15%", "above", ">":
		return Above, true
	case "below 15%", "below", "<":
		return Below, true
	default:
		return PercentageUnset, false
	}
}

// Holds reports whether p accepts a single vote share. A share exactly equal
// to Threshold satisfies neither Above nor Below.
func (p Percentage) Holds(pct float64) bool {
	switch p {
	case Above:
		return pct > Threshold
	case Below:
		return pct < Threshold
	default:
		return true
	}
}

// State is an immutable snapshot of every filter dimension, in cascade order:
// geography, district, class, party, candidate, percentage. Class is derived
// from the chosen district and never set directly.
type State struct {
	Geography  Geography                 `json:"geography" yaml:"geography"`
	District   string                    `json:"district,omitempty" yaml:"district,omitempty"`
	Class      electoral.SettlementClass `json:"settlementClass,omitempty" yaml:"settlementClass,omitempty"`
	Party      string                    `json:"party,omitempty" yaml:"party,omitempty"`
	Candidate  string                    `json:"candidate,omitempty" yaml:"candidate,omitempty"`
	Percentage Percentage                `json:"percentage,omitempty" yaml:"percentage,omitempty"`
}

// Narrowed reports whether any dimension below geography is active.
func (s State) Narrowed() bool {
	return s.District != "" || s.Party != "" || s.Candidate != "" || s.Percentage != PercentageUnset
}

// IsZero reports whether nothing is selected.
func (s State) IsZero() bool { return s == State{} }
