package filter

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/geobrowser/internal/electoral"
)

// Kind names the dimension an Event selects.
type Kind string

// Event kinds. There is no class event: the class follows the district.
const (
	KindGeography  Kind = "geography"
	KindDistrict   Kind = "district"
	KindParty      Kind = "party"
	KindCandidate  Kind = "candidate"
	KindPercentage Kind = "percentage"
	KindReset      Kind = "reset"
)

// Event is one user interaction. An empty Value clears the dimension, which
// still clears everything downstream of it.
type Event struct {
	Kind  Kind   `json:"type"`
	Value string `json:"value,omitempty"`
}

// SelectGeography returns the event choosing g.
func SelectGeography(g Geography) Event { return Event{Kind: KindGeography, Value: g.Value()} }

// SelectDistrict returns the event choosing a district of the current province.
func SelectDistrict(name string) Event { return Event{Kind: KindDistrict, Value: name} }

// SelectParty returns the event choosing a party.
func SelectParty(party string) Event { return Event{Kind: KindParty, Value: party} }

// SelectCandidate returns the event choosing a candidate name.
func SelectCandidate(name string) Event { return Event{Kind: KindCandidate, Value: name} }

// SelectPercentage returns the event choosing a percentage predicate.
func SelectPercentage(p Percentage) Event { return Event{Kind: KindPercentage, Value: string(p)} }

// Reset returns the event clearing every dimension.
func Reset() Event { return Event{Kind: KindReset} }

// Check rejects events whose kind is unknown or whose value cannot be parsed.
// It does not consult a dataset; see Validate.
func (e Event) Check() error {
	switch e.Kind {
	case KindGeography, KindDistrict, KindParty, KindCandidate, KindReset:
		return nil
	case KindPercentage:
		if _, ok := ParsePercentage(e.Value); !ok {
			return eris.Errorf("filter: unknown percentage predicate %q", e.Value)
		}
		return nil
	default:
		return eris.Errorf("filter: unknown event type %q", e.Kind)
	}
}

// Reduce applies ev to s and returns the next state. Selecting a dimension
// clears every dimension after it; choosing a district derives its class from
// ds. Unknown events return s unchanged. Reduce never mutates its inputs.
func Reduce(ds *electoral.Dataset, s State, ev Event) State {
	switch ev.Kind {
	case KindReset:
		return State{}

	case KindGeography:
		return State{Geography: ParseGeography(ev.Value)}

	case KindDistrict:
		next := State{Geography: s.Geography, District: ev.Value}
		next.Class = deriveClass(ds, next.Geography, next.District)
		return next

	case KindParty:
		return State{
			Geography: s.Geography,
			District:  s.District,
			Class:     s.Class,
			Party:     ev.Value,
		}

	case KindCandidate:
		return State{
			Geography: s.Geography,
			District:  s.District,
			Class:     s.Class,
			Party:     s.Party,
			Candidate: ev.Value,
		}

	case KindPercentage:
		p, ok := ParsePercentage(ev.Value)
		if !ok {
			return s
		}
		next := s
		next.Percentage = p
		return next

	default:
		return s
	}
}

// deriveClass returns the stored class of the named district in the selected
// province, or "" when no such district exists.
func deriveClass(ds *electoral.Dataset, g Geography, district string) electoral.SettlementClass {
	if district == "" || !g.IsProvince() {
		return ""
	}
	d, ok := ds.District(g.Province, district)
	if !ok {
		return ""
	}
	return d.Class
}
