// Package geojoin resolves filtered districts and provinces to boundary
// geometry and assembles the collection the map renders.
package geojoin

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/geobrowser/internal/boundary"
)

// Matcher resolves a region name to a boundary feature.
type Matcher interface {
	Match(name string, bd *boundary.Dataset) (boundary.Feature, bool)
}

// Strategy names a Matcher for configuration.
const (
	StrategyExact = "exact"
	StrategyFold  = "fold"
)

// NewMatcher returns the matcher for a strategy name. Unknown names fall back
// to exact matching.
func NewMatcher(strategy string) Matcher {
	if strategy == StrategyFold {
		return NewFoldMatcher()
	}
	return ExactMatcher{}
}

// ExactMatcher matches names by case-sensitive string equality.
type ExactMatcher struct{}

// Match implements Matcher.
func (ExactMatcher) Match(name string, bd *boundary.Dataset) (boundary.Feature, bool) {
	if name == "" {
		return boundary.Feature{}, false
	}
	return bd.Lookup(name)
}

// FoldMatcher tries an exact match first and then compares names with case,
// diacritics, dash style and repeated whitespace folded away. The folded
// index is built once per boundary dataset.
type FoldMatcher struct {
	mu    sync.Mutex
	ds    *boundary.Dataset
	index map[string]string
}

// NewFoldMatcher returns an empty FoldMatcher.
func NewFoldMatcher() *FoldMatcher {
	return &FoldMatcher{}
}

// Match implements Matcher.
func (m *FoldMatcher) Match(name string, bd *boundary.Dataset) (boundary.Feature, bool) {
	if name == "" || bd == nil {
		return boundary.Feature{}, false
	}
	if f, ok := bd.Lookup(name); ok {
		return f, true
	}

	m.mu.Lock()
	if m.ds != bd {
		m.index = buildFoldIndex(bd)
		m.ds = bd
	}
	exact, ok := m.index[Fold(name)]
	m.mu.Unlock()

	if !ok {
		return boundary.Feature{}, false
	}
	return bd.Lookup(exact)
}

func buildFoldIndex(bd *boundary.Dataset) map[string]string {
	idx := make(map[string]string, bd.Len())
	bd.Each(func(f boundary.Feature) bool {
		if f.Name == "" {
			return true
		}
		k := Fold(f.Name)
		if _, dup := idx[k]; !dup {
			idx[k] = f.Name
		}
		return true
	})
	return idx
}

var dashes = strings.NewReplacer("—", "--", "–", "-", "‒", "-")

// Fold normalizes a region name for loose comparison.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(dashes.Replace(out))
	return strings.Join(strings.Fields(out), " ")
}
