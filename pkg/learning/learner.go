// Package learning promotes repeatedly-seen suspicious structures into
// active blocking rules. It only ever sees inputs that already passed the
// hard pattern tiers; raw input text is never retained, only indicator ids
// and audit-safe hashes.
package learning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultPromotionThreshold is the cumulative sighting count at which
	// an indicator becomes a blocking rule.
	DefaultPromotionThreshold = 5

	// DefaultMaxPatterns caps the learned set; oldest promotions are
	// evicted first.
	DefaultMaxPatterns = 1000
)

// indicator is a structural-but-not-yet-blocking shape the learner tracks.
type indicator struct {
	id    string
	regex *regexp.Regexp
}

// The curated indicator set: shapes that show up in probing traffic but are
// too noisy to block on first sight.
var indicators = []indicator{
	{"sql_function_shape", regexp.MustCompile(`(?i)\b(?:concat|char|chr|substring|substr|ascii|hex|unhex|cast|convert)\s*\(`)},
	{"nosql_operator_shape", regexp.MustCompile(`\{\s*"?\$\w+"?\s*:`)},
	{"shell_chain_shape", regexp.MustCompile(`(?:[;&|]{1,2}\s*\w+\s*){2,}`)},
	{"percent_run_shape", regexp.MustCompile(`(?:%[0-9a-fA-F]{2}){4,}`)},
	{"hex_escape_shape", regexp.MustCompile(`(?:\\x[0-9a-fA-F]{2}){4,}`)},
	{"quote_operator_probe", regexp.MustCompile(`(?i)['"]\s*(?:or|and)\s+\w`)},
}

// LearnedPattern is one tracked or promoted structure.
type LearnedPattern struct {
	Pattern   string    `json:"pattern"`
	Frequency int       `json:"frequency"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// SuspiciousInputRecord is the hash-only observation fed to the learner by
// the validator's non-blocking analysis pass.
type SuspiciousInputRecord struct {
	InputHash         string
	MatchedIndicators []string
	Context           string
	Entropy           float64
	Timestamp         time.Time
}

// Promotion reports an indicator crossing the blocking threshold.
type Promotion struct {
	PatternID string
	Frequency int
	InputHash string
}

type promoted struct {
	id    string
	meta  LearnedPattern
	regex *regexp.Regexp
}

// Learner frequency-tracks indicator sightings and maintains the promoted
// blocking set. All state is behind a single short-held mutex.
type Learner struct {
	logger    logrus.FieldLogger
	threshold int
	maxSize   int

	mu         sync.Mutex
	candidates map[string]*LearnedPattern
	active     []promoted
}

func NewLearner(logger logrus.FieldLogger, threshold, maxSize int) *Learner {
	if threshold <= 0 {
		threshold = DefaultPromotionThreshold
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxPatterns
	}
	return &Learner{
		logger:     logger,
		threshold:  threshold,
		maxSize:    maxSize,
		candidates: make(map[string]*LearnedPattern),
	}
}

// Observe records one suspicious input and returns any promotions it
// caused. The record carries hashes and indicator ids only.
func (l *Learner) Observe(rec SuspiciousInputRecord) []Promotion {
	l.mu.Lock()
	defer l.mu.Unlock()

	var promotions []Promotion
	for _, id := range rec.MatchedIndicators {
		ind, ok := indicatorByID(id)
		if !ok {
			continue
		}

		c := l.candidates[id]
		if c == nil {
			c = &LearnedPattern{
				Pattern:   ind.regex.String(),
				FirstSeen: rec.Timestamp,
			}
			l.candidates[id] = c
		}
		c.Frequency++
		c.LastSeen = rec.Timestamp

		if c.Frequency >= l.threshold && !l.isActiveLocked(id) {
			l.promoteLocked(id, *c, ind.regex)
			promotions = append(promotions, Promotion{
				PatternID: id,
				Frequency: c.Frequency,
				InputHash: rec.InputHash,
			})
		}
	}

	for _, p := range promotions {
		l.logger.WithFields(logrus.Fields{
			"pattern_id": p.PatternID,
			"frequency":  p.Frequency,
			"input_hash": p.InputHash,
			"context":    rec.Context,
		}).Warn("suspicious structure promoted to blocking rule")
	}
	return promotions
}

// Indicators returns the ids of curated indicators matching the text.
// Matching an indicator is not a rejection by itself.
func (l *Learner) Indicators(text string) []string {
	var ids []string
	for _, ind := range indicators {
		if ind.regex.MatchString(text) {
			ids = append(ids, ind.id)
		}
	}
	return ids
}

// Match checks the text against the promoted blocking set.
func (l *Learner) Match(text string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.active {
		if p.regex.MatchString(text) {
			return p.id, true
		}
	}
	return "", false
}

// Export returns the promoted pattern texts for out-of-band persistence.
// Export is never called implicitly on the validation path.
func (l *Learner) Export() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.active))
	for _, p := range l.active {
		out = append(out, p.meta.Pattern)
	}
	return out
}

// Import compiles and activates previously exported patterns. Patterns that
// fail to compile abort the import; a partially applied rule set would make
// blocking behavior depend on import order.
func (l *Learner) Import(patterns []string) error {
	compiled := make([]promoted, 0, len(patterns))
	now := time.Now()
	for _, expr := range patterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("invalid learned pattern %q: %w", patternDigest(expr), err)
		}
		compiled = append(compiled, promoted{
			id: "learned_" + patternDigest(expr),
			meta: LearnedPattern{
				Pattern:   expr,
				Frequency: l.threshold,
				FirstSeen: now,
				LastSeen:  now,
			},
			regex: re,
		})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range compiled {
		if l.isActiveLocked(p.id) {
			continue
		}
		l.appendActiveLocked(p)
	}
	return nil
}

// Clear drops all learned state. Administrative action; the caller is
// responsible for auditing it.
func (l *Learner) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := len(l.active)
	l.active = nil
	l.candidates = make(map[string]*LearnedPattern)
	l.logger.WithField("removed", removed).Warn("learned pattern set cleared")
	return removed
}

// ActiveCount returns the size of the promoted blocking set.
func (l *Learner) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}

func (l *Learner) promoteLocked(id string, meta LearnedPattern, re *regexp.Regexp) {
	l.appendActiveLocked(promoted{id: id, meta: meta, regex: re})
}

func (l *Learner) appendActiveLocked(p promoted) {
	l.active = append(l.active, p)
	if len(l.active) > l.maxSize {
		l.active = l.active[len(l.active)-l.maxSize:]
	}
}

func (l *Learner) isActiveLocked(id string) bool {
	for _, p := range l.active {
		if p.id == id {
			return true
		}
	}
	return false
}

func indicatorByID(id string) (indicator, bool) {
	for _, ind := range indicators {
		if ind.id == id {
			return ind, true
		}
	}
	return indicator{}, false
}

func patternDigest(expr string) string {
	sum := sha256.Sum256([]byte(expr))
	return hex.EncodeToString(sum[:4])
}
