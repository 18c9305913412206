// Package browser runs filter sessions: each session owns a filter state and
// the view derived from it, replaced wholesale on every event.
package browser

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/internal/allocator"
	"github.com/sells-group/geobrowser/internal/boundary"
	"github.com/sells-group/geobrowser/internal/electoral"
	"github.com/sells-group/geobrowser/internal/filter"
	"github.com/sells-group/geobrowser/internal/geojoin"
	"github.com/sells-group/geobrowser/internal/metrics"
)

// Datasets are the immutable inputs shared by sessions. Either dataset may be
// nil when its load failed or has not happened yet.
type Datasets struct {
	Electoral    *electoral.Dataset
	Boundary     *boundary.Dataset
	NameProperty string
	Notices      []string
}

// DistrictSummary is the result-table projection of a district.
type DistrictSummary struct {
	Province   string                    `json:"province" yaml:"province"`
	Number     string                    `json:"number,omitempty" yaml:"number,omitempty"`
	Name       string                    `json:"name" yaml:"name"`
	Class      electoral.SettlementClass `json:"settlementClass,omitempty" yaml:"settlementClass,omitempty"`
	Winner     string                    `json:"winner,omitempty" yaml:"winner,omitempty"`
	Candidates []electoral.Candidate     `json:"candidates" yaml:"candidates"`
}

// Summarize projects districts for display.
func Summarize(districts []electoral.District) []DistrictSummary {
	out := make([]DistrictSummary, 0, len(districts))
	for _, d := range districts {
		s := DistrictSummary{
			Province:   d.Province,
			Number:     d.Number,
			Name:       d.Name,
			Class:      d.Class,
			Candidates: d.Candidates,
		}
		if s.Candidates == nil {
			s.Candidates = []electoral.Candidate{}
		}
		if w, ok := d.Winner(); ok {
			s.Winner = w.Party
		}
		out = append(out, s)
	}
	return out
}

// View is everything a client renders for one state. Center is the last known
// map center: it survives recomputations whose overlay is empty.
type View struct {
	State   filter.State           `json:"state"`
	Options filter.Options         `json:"options"`
	Results []DistrictSummary      `json:"results"`
	Render  geojoin.RenderGeometry `json:"render"`
	Center  *boundary.LngLat       `json:"center,omitempty"`
	Notices []string               `json:"notices,omitempty"`
}

// Session is one analyst's filter session. Events are applied one at a time.
type Session struct {
	ID string

	mu      sync.Mutex
	data    Datasets
	joiner  *geojoin.Joiner
	state   filter.State
	results []electoral.District
	view    View
	plan    *allocator.Plan
	created time.Time

	// lastUsed is UnixNano; read by the registry without taking mu.
	lastUsed atomic.Int64
}

// NewSession starts a session at the empty state and computes its first view.
func NewSession(id string, data Datasets, joiner *geojoin.Joiner) *Session {
	now := time.Now()
	s := &Session{
		ID:      id,
		data:    data,
		joiner:  joiner,
		created: now,
	}
	s.lastUsed.Store(now.UnixNano())
	s.recompute(filter.State{})
	return s
}

// Apply reduces ev into the session state and replaces the view. Events that
// are malformed or select values the dataset does not offer are rejected: the
// previous view stays current and is returned with the error.
func (s *Session) Apply(ev filter.Event) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markUsed()

	if err := ev.Check(); err != nil {
		metrics.FilterEventsTotal.WithLabelValues(string(ev.Kind), "rejected").Inc()
		return s.view, err
	}

	next := filter.Reduce(s.data.Electoral, s.state, ev)
	if err := filter.Validate(s.data.Electoral, next); err != nil {
		metrics.FilterEventsTotal.WithLabelValues(string(ev.Kind), "rejected").Inc()
		zap.L().Debug("browser: event rejected",
			zap.String("session", s.ID),
			zap.String("type", string(ev.Kind)),
			zap.String("value", ev.Value),
			zap.Error(err),
		)
		return s.view, eris.Wrap(err, "browser: apply event")
	}

	metrics.FilterEventsTotal.WithLabelValues(string(ev.Kind), "applied").Inc()
	s.recompute(next)
	return s.view, nil
}

// recompute derives a fresh view from state. Callers hold s.mu (or own s).
func (s *Session) recompute(state filter.State) {
	results := filter.ResultSet(s.data.Electoral, state)

	start := time.Now()
	render := s.joiner.Resolve(geojoin.Selection{
		Geography: state.Geography,
		Narrowed:  state.Narrowed(),
		Districts: results,
	}, s.data.Boundary)
	metrics.JoinsTotal.Inc()
	metrics.JoinMissesTotal.Add(float64(len(render.Missing)))
	metrics.JoinDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	metrics.ResultSetSize.Observe(float64(len(results)))

	center := s.view.Center
	if render.Center != nil {
		c := *render.Center
		center = &c
	}

	s.state = state
	s.results = results
	s.view = View{
		State:   state,
		Options: filter.ComputeOptions(s.data.Electoral, state),
		Results: Summarize(results),
		Render:  render,
		Center:  center,
		Notices: s.data.Notices,
	}
}

// View returns the current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markUsed()
	return s.view
}

// Results returns the current result set.
func (s *Session) Results() []electoral.District {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]electoral.District, len(s.results))
	for i, d := range s.results {
		out[i] = d.Clone()
	}
	return out
}

// Allocate seeds a budget plan from the current result set, replacing any
// previous plan.
func (s *Session) Allocate(budget int64) (*allocator.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markUsed()

	p, err := allocator.FromDistricts(s.results, budget)
	if err != nil {
		return nil, err
	}
	s.plan = p
	return p.Clone(), nil
}

// Plan returns a copy of the session's budget plan.
func (s *Session) Plan() (*allocator.Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		return nil, false
	}
	return s.plan.Clone(), true
}

// UpdatePlan applies fn to the session's plan. The plan is left untouched when
// fn fails.
func (s *Session) UpdatePlan(fn func(*allocator.Plan) error) (*allocator.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markUsed()
	if s.plan == nil {
		return nil, eris.New("browser: session has no allocation plan")
	}
	next := s.plan.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.plan = next
	return next.Clone(), nil
}

// NameProperty is the boundary name property used when encoding geometry.
func (s *Session) NameProperty() string {
	if s.data.NameProperty == "" {
		return boundary.DefaultNameProperty
	}
	return s.data.NameProperty
}

func (s *Session) markUsed() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// idleSince reports when the session was last used. It never blocks on mu.
func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}
