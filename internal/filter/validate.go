package filter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sells-group/geobrowser/internal/electoral"
)

// ValidationError lists every selection of a state that the dataset cannot
// satisfy.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "filter: invalid selection: " + strings.Join(e.Problems, "; ")
}

// Validate checks that every selection in s is offered by the dataset under
// the selections upstream of it. A nil dataset accepts any state, since
// options are empty until the dataset has loaded.
func Validate(ds *electoral.Dataset, s State) error {
	if ds == nil {
		return nil
	}

	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if s.Geography.Nation && s.Geography.Province != "" {
		add("geography cannot be both the whole nation and province %q", s.Geography.Province)
	}
	if s.Geography.IsProvince() && !ds.HasProvince(s.Geography.Province) {
		add("unknown province %q", s.Geography.Province)
	}

	if s.District != "" {
		if !s.Geography.IsProvince() {
			add("district %q requires a province", s.District)
		} else if d, ok := ds.District(s.Geography.Province, s.District); !ok {
			add("district %q not in province %q", s.District, s.Geography.Province)
		} else if s.Class != d.Class {
			add("settlement class %q does not match district %q (%q)", s.Class, s.District, d.Class)
		}
	} else if s.Class != "" {
		add("settlement class %q set without a district", s.Class)
	}

	opts := ComputeOptions(ds, s)
	if s.Party != "" && !slices.Contains(opts.Parties, s.Party) {
		add("party %q not available", s.Party)
	}
	if s.Candidate != "" && !slices.Contains(opts.Candidates, s.Candidate) {
		add("candidate %q not available", s.Candidate)
	}
	if s.Percentage != PercentageUnset && !slices.Contains(Percentages, s.Percentage) {
		add("unknown percentage predicate %q", s.Percentage)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
