// Package patterns holds the immutable categorized pattern sets used by the
// input validator. All regexes are compiled once at registry construction and
// never mutated afterwards, so matching needs no locking.
package patterns

import "regexp"

type Category string

const (
	CategoryCritical       Category = "critical"
	CategoryHighRisk       Category = "high_risk"
	CategoryNoSQLCommand   Category = "nosql_command"
	CategoryChildTargeting Category = "child_targeting"
)

// DefaultMaxInputLength bounds the text handed to regex evaluation.
// Pathologically long inputs are truncated before matching so a crafted
// payload cannot trigger worst-case regex behaviour.
const DefaultMaxInputLength = 4096

// Pattern holds a compiled regex with its registry identity.
type Pattern struct {
	ID       string
	Category Category
	Regex    *regexp.Regexp
}

// Match reports a single pattern hit.
type Match struct {
	Category  Category
	PatternID string
}

// Registry is the immutable base pattern set. Learned patterns live in the
// learning package; they are never merged back into this registry.
type Registry struct {
	byCategory  map[Category][]*Pattern
	maxInputLen int
}

func NewRegistry(maxInputLen int) *Registry {
	if maxInputLen <= 0 {
		maxInputLen = DefaultMaxInputLength
	}
	r := &Registry{
		byCategory:  make(map[Category][]*Pattern),
		maxInputLen: maxInputLen,
	}
	r.registerCriticalPatterns()
	r.registerHighRiskPatterns()
	r.registerNoSQLCommandPatterns()
	r.registerChildTargetingPatterns()
	return r
}

func (r *Registry) register(id string, category Category, expr string) {
	p := &Pattern{
		ID:       id,
		Category: category,
		Regex:    regexp.MustCompile(expr),
	}
	r.byCategory[category] = append(r.byCategory[category], p)
}

// Bound truncates text to the registry's maximum evaluated length.
func (r *Registry) Bound(text string) string {
	if len(text) > r.maxInputLen {
		return text[:r.maxInputLen]
	}
	return text
}

// Match returns every pattern hit in the given categories. Passing no
// categories matches against the full base set.
func (r *Registry) Match(text string, cats ...Category) []Match {
	text = r.Bound(text)
	var matches []Match
	for _, p := range r.patternsFor(cats) {
		if p.Regex.MatchString(text) {
			matches = append(matches, Match{Category: p.Category, PatternID: p.ID})
		}
	}
	return matches
}

// MatchAny returns the first pattern hit in the given categories,
// short-circuiting on the first match.
func (r *Registry) MatchAny(text string, cats ...Category) (Match, bool) {
	text = r.Bound(text)
	for _, p := range r.patternsFor(cats) {
		if p.Regex.MatchString(text) {
			return Match{Category: p.Category, PatternID: p.ID}, true
		}
	}
	return Match{}, false
}

func (r *Registry) patternsFor(cats []Category) []*Pattern {
	if len(cats) == 0 {
		cats = []Category{
			CategoryCritical,
			CategoryHighRisk,
			CategoryNoSQLCommand,
			CategoryChildTargeting,
		}
	}
	var out []*Pattern
	for _, c := range cats {
		out = append(out, r.byCategory[c]...)
	}
	return out
}

func (r *Registry) CategoryCount(cat Category) int {
	return len(r.byCategory[cat])
}

func (r *Registry) TotalPatterns() int {
	n := 0
	for _, ps := range r.byCategory {
		n += len(ps)
	}
	return n
}
