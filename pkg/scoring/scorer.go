// Package scoring turns a detection into a 0-100 threat score and a
// severity. Scoring is pure: identical (attack type, text) inputs always
// produce the identical score.
package scoring

import (
	"math"
	"regexp"
	"strings"

	"github.com/SafeNest/QueryShield/pkg/encoding"
	"github.com/SafeNest/QueryShield/pkg/types"
)

// Profile carries the tunable keyword lists and thresholds. The child-data
// vocabulary and tier thresholds are configuration, not fixed constants;
// DefaultProfile is the shipped tuning.
type Profile struct {
	ChildDataKeywords     []string
	QueryOperatorKeywords []string
	EntropyThreshold      float64
}

func DefaultProfile() Profile {
	return Profile{
		ChildDataKeywords: []string{
			"age", "birth", "birthday", "birthdate", "school", "grade",
			"classroom", "parent", "guardian", "medical", "health",
			"allergy", "allergies", "medication", "diagnosis",
			"address", "phone", "email", "ssn", "child", "children",
		},
		QueryOperatorKeywords: []string{
			"select", "union", "drop", "delete", "insert", "update",
			"where", "or", "and", "like",
		},
		EntropyThreshold: 4.8,
	}
}

var baseScores = map[types.AttackType]int{
	types.AttackSQL:            95,
	types.AttackNoSQL:          95,
	types.AttackCommand:        95,
	types.AttackLDAP:           95,
	types.AttackHighRisk:       80,
	types.AttackEncoded:        85,
	types.AttackChildTargeting: 100,
	types.AttackLearnedPattern: 88,
	types.AttackCachedRepeat:   90,
}

var attackKeywords = []string{
	"select", "union", "insert", "update", "delete", "drop", "truncate",
	"alter", "create", "exec", "sleep", "benchmark", "waitfor",
	"load_file", "outfile", "xp_cmdshell",
}

var commentMarkers = []string{"--", "/*", "*/", "#;", "';--"}

type Scorer struct {
	profile    Profile
	childRe    *regexp.Regexp
	operatorRe *regexp.Regexp
	keywordRe  *regexp.Regexp
}

func NewScorer(profile Profile) *Scorer {
	return &Scorer{
		profile:    profile,
		childRe:    wordListRegexp(profile.ChildDataKeywords),
		operatorRe: wordListRegexp(profile.QueryOperatorKeywords),
		keywordRe:  wordListRegexp(attackKeywords),
	}
}

func wordListRegexp(words []string) *regexp.Regexp {
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(escaped, "|") + `)\b`)
}

// TargetsChildData reports whether the text combines child-identifying
// vocabulary with query-operator syntax.
func (s *Scorer) TargetsChildData(text string) bool {
	return s.childRe.MatchString(text) && s.operatorRe.MatchString(text)
}

// Score computes the threat score for a detected input.
//
// The child-data override is deliberate zero tolerance, not a heuristic:
// any co-occurrence of a child-data keyword and a query operator forces
// the maximum score regardless of tier.
func (s *Scorer) Score(attack types.AttackType, text string) int {
	if s.TargetsChildData(text) {
		return 100
	}

	score, ok := baseScores[attack]
	if !ok {
		score = 80
	}

	extraKeywords := len(dedupeFold(s.keywordRe.FindAllString(text, -1))) - 1
	if extraKeywords > 0 {
		score += capInt(extraKeywords*3, 20)
	}

	score += capInt(encoding.MarkerCount(text)*5, 15)

	commentHits := 0
	for _, m := range commentMarkers {
		if strings.Contains(text, m) {
			commentHits++
		}
	}
	score += capInt(commentHits*4, 12)

	return capInt(score, 100)
}

// SeverityFor derives the verdict severity. Child-data targeting is always
// Critical independent of score.
func SeverityFor(score int, targetsChildData bool) types.Severity {
	switch {
	case targetsChildData:
		return types.SeverityCritical
	case score >= 95:
		return types.SeverityCritical
	case score >= 80:
		return types.SeverityHigh
	case score >= 60:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

// Entropy returns the Shannon entropy of the text in bits per character.
func Entropy(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	counts := make(map[rune]float64)
	total := 0.0
	for _, r := range text {
		counts[r]++
		total++
	}
	entropy := 0.0
	for _, count := range counts {
		p := count / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// HighEntropy reports whether the text exceeds the profile threshold,
// which correlates with encoded or randomized payloads.
func (s *Scorer) HighEntropy(text string) bool {
	return len(text) >= 32 && Entropy(text) > s.profile.EntropyThreshold
}

func dedupeFold(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func capInt(v, max int) int {
	if v > max {
		return max
	}
	return v
}
