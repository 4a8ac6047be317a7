package scoring

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SafeNest/QueryShield/pkg/types"
)

func TestScorer_BaseScores(t *testing.T) {
	s := NewScorer(DefaultProfile())

	tests := []struct {
		name   string
		attack types.AttackType
		text   string
		want   int
	}{
		{"critical sql, no escalations", types.AttackSQL, "plain trigger text", 95},
		{"high risk, no escalations", types.AttackHighRisk, "plain trigger text", 80},
		{"encoded, no escalations", types.AttackEncoded, "plain trigger text", 85},
		{"learned pattern", types.AttackLearnedPattern, "plain trigger text", 88},
		{"cached repeat", types.AttackCachedRepeat, "plain trigger text", 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Score(tt.attack, tt.text))
		})
	}
}

func TestScorer_Escalations(t *testing.T) {
	s := NewScorer(DefaultProfile())

	// One extra attack keyword beyond the first adds 3.
	base := s.Score(types.AttackHighRisk, "select something")
	two := s.Score(types.AttackHighRisk, "select union something")
	assert.Equal(t, base+3, two)

	// Comment markers escalate.
	withComment := s.Score(types.AttackHighRisk, "select something --")
	assert.Equal(t, base+4, withComment)

	// Encoding markers escalate.
	withEncoding := s.Score(types.AttackHighRisk, "select something %27")
	assert.Equal(t, base+5, withEncoding)

	// Every marker scheme the decoder knows counts, base64 runs included.
	withBase64 := s.Score(types.AttackHighRisk, "something VU5JT04gU0VMRUNUIHBhc3N3b3Jkcw==")
	assert.Equal(t, base+5, withBase64)

	// Scores never exceed 100.
	loaded := s.Score(types.AttackSQL,
		"select union insert update delete drop exec sleep -- /* %27 0x4141414141414141 ")
	assert.Equal(t, 100, loaded)
}

func TestScorer_ChildDataOverride(t *testing.T) {
	s := NewScorer(DefaultProfile())

	// Child-data vocabulary plus query operators forces the maximum score
	// regardless of which tier detected the input.
	inputs := []string{
		"age > 5 OR 1=1 SELECT parent_email",
		"select birthdate where classroom",
		"delete allergies like",
	}
	for _, input := range inputs {
		assert.True(t, s.TargetsChildData(input), "expected child-data targeting for %q", input)
		assert.Equal(t, 100, s.Score(types.AttackHighRisk, input))
	}

	// Child vocabulary without query syntax does not trip the override.
	assert.False(t, s.TargetsChildData("my child loves school"))
	// Query syntax without child vocabulary does not either.
	assert.False(t, s.TargetsChildData("select the best option"))
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		child    bool
		expected types.Severity
	}{
		{"child targeting is always critical", 10, true, types.SeverityCritical},
		{"score 100", 100, false, types.SeverityCritical},
		{"score 95", 95, false, types.SeverityCritical},
		{"score 94", 94, false, types.SeverityHigh},
		{"score 80", 80, false, types.SeverityHigh},
		{"score 79", 79, false, types.SeverityMedium},
		{"score 60", 60, false, types.SeverityMedium},
		{"score 59", 59, false, types.SeverityLow},
		{"score 0", 0, false, types.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SeverityFor(tt.score, tt.child))
		})
	}
}

func TestEntropy(t *testing.T) {
	assert.Equal(t, 0.0, Entropy(""))
	assert.Equal(t, 0.0, Entropy("aaaa"))

	// Two symbols, equal frequency: exactly 1 bit per character.
	assert.InDelta(t, 1.0, Entropy("abab"), 1e-9)

	// Four symbols, equal frequency: exactly 2 bits.
	assert.InDelta(t, 2.0, Entropy("abcd"), 1e-9)

	// Entropy is bounded by log2 of the alphabet size.
	text := "abcdefgh"
	assert.LessOrEqual(t, Entropy(text), math.Log2(8)+1e-9)
}

func TestHighEntropy(t *testing.T) {
	s := NewScorer(DefaultProfile())

	// Short strings never qualify regardless of content.
	assert.False(t, s.HighEntropy("aB3$xY9!"))

	// Long repetitive text stays below the threshold.
	assert.False(t, s.HighEntropy(strings.Repeat("abc", 20)))

	// A long string using a wide symbol set crosses it.
	wide := "AbCdEfGhIjKlMnOpQrStUvWxYz0123456789!@#$%^&*()_+-=[]{}<>?,./;:"
	assert.True(t, s.HighEntropy(wide))
}
