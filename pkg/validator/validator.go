// Package validator runs externally-sourced values through the tiered
// detection pipeline and returns a Verdict. The pipeline does no I/O and
// holds no locks while matching; shared state (hash cache, learner, audit
// ring) is touched only through short critical sections.
package validator

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/SafeNest/QueryShield/pkg/audit"
	"github.com/SafeNest/QueryShield/pkg/encoding"
	metrics "github.com/SafeNest/QueryShield/pkg/infra/prometheus"
	"github.com/SafeNest/QueryShield/pkg/learning"
	"github.com/SafeNest/QueryShield/pkg/patterns"
	"github.com/SafeNest/QueryShield/pkg/scoring"
	"github.com/SafeNest/QueryShield/pkg/types"
)

// DefaultCacheSize bounds the blocked-verdict cache keyed by salted input
// hash. Only blocked inputs are cached: allowed inputs must re-run the full
// pipeline so repeated probes keep feeding the learning pass.
const DefaultCacheSize = 4096

type Options struct {
	CacheSize int
}

type Validator struct {
	logger   logrus.FieldLogger
	registry *patterns.Registry
	decoder  *encoding.Detector
	scorer   *scoring.Scorer
	learner  *learning.Learner
	auditLog *audit.Log
	hasher   audit.Hasher

	// Concurrent identical inputs evaluate once; everyone gets the same
	// verdict.
	group singleflight.Group

	// Blocked verdicts only, keyed by salted input hash, FIFO-evicted.
	mu        sync.Mutex
	cache     map[string]types.Verdict
	cacheKeys []string
	cacheSize int
}

func New(
	logger logrus.FieldLogger,
	registry *patterns.Registry,
	decoder *encoding.Detector,
	scorer *scoring.Scorer,
	learner *learning.Learner,
	auditLog *audit.Log,
	hasher audit.Hasher,
	opts Options,
) *Validator {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Validator{
		logger:    logger,
		registry:  registry,
		decoder:   decoder,
		scorer:    scorer,
		learner:   learner,
		auditLog:  auditLog,
		hasher:    hasher,
		cache:     make(map[string]types.Verdict, size),
		cacheSize: size,
	}
}

// Validate inspects one externally-sourced value. The context string names
// the call site (field name, endpoint) and ends up in logs and audit
// records; it is never matched against patterns.
func (v *Validator) Validate(value, context string) types.Verdict {
	if value == "" {
		return allowedVerdict()
	}

	hash := v.hasher.Hash(value)
	if cached, ok := v.cacheGet(hash); ok {
		return v.repeatBlocked(cached, hash, context)
	}

	result, _, _ := v.group.Do(hash, func() (interface{}, error) {
		// Re-check under the flight lock: a finished flight stores its
		// blocked verdict before it is forgotten, so a replay of the same
		// hash cannot re-evaluate.
		if cached, ok := v.cacheGet(hash); ok {
			return v.repeatBlocked(cached, hash, context), nil
		}
		verdict := v.evaluate(value, context, hash)
		if !verdict.Allowed {
			v.cachePut(hash, verdict)
		}
		return verdict, nil
	})
	return result.(types.Verdict)
}

// repeatBlocked turns a cache hit on a previously blocked input into a
// CachedRepeat verdict. A replay is a blocking branch of its own: it
// appends an audit record under the replaying caller's context and counts
// in the block metrics, so a thousand replays leave a thousand records.
func (v *Validator) repeatBlocked(cached types.Verdict, hash, context string) types.Verdict {
	metrics.CacheHitsTotal.Inc()
	cached.CacheHit = true
	cached.AttackType = types.AttackCachedRepeat
	if cached.ThreatScore < 90 {
		cached.ThreatScore = 90
		cached.Severity = scoring.SeverityFor(cached.ThreatScore, cached.TargetsChildData)
	}

	patternID := "cached_repeat"
	if len(cached.Matched) > 0 {
		patternID = cached.Matched[0]
	}
	v.auditLog.Append(audit.BlockedAttempt{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Severity:  cached.Severity,
		PatternID: patternID,
		InputHash: hash,
		Context:   context,
	})

	metrics.ValidationsTotal.WithLabelValues("blocked").Inc()
	metrics.BlockedTotal.WithLabelValues(string(types.AttackCachedRepeat), string(cached.Severity)).Inc()
	return cached
}

func (v *Validator) evaluate(value, context, hash string) types.Verdict {
	text := v.registry.Bound(value)

	if ms := v.registry.Match(text, patterns.CategoryCritical); len(ms) > 0 {
		return v.block(attackTypeFor(ms[0].PatternID, types.AttackSQL), ms, text, hash, context)
	}

	if ms := v.registry.Match(text, patterns.CategoryNoSQLCommand); len(ms) > 0 {
		return v.block(attackTypeFor(ms[0].PatternID, types.AttackNoSQL), ms, text, hash, context)
	}

	if ms := v.registry.Match(text, patterns.CategoryHighRisk); len(ms) > 0 {
		return v.block(types.AttackHighRisk, ms, text, hash, context)
	}

	if m, ok := v.scanDecoded(text, 1); ok {
		return v.block(types.AttackEncoded, []patterns.Match{m}, text, hash, context+":decoded")
	}

	if ms := v.registry.Match(text, patterns.CategoryChildTargeting); len(ms) > 0 {
		return v.block(types.AttackChildTargeting, ms, text, hash, context)
	}
	if v.scorer.TargetsChildData(text) {
		m := patterns.Match{Category: patterns.CategoryChildTargeting, PatternID: "child_data_co_occurrence"}
		return v.block(types.AttackChildTargeting, []patterns.Match{m}, text, hash, context)
	}

	if id, ok := v.learner.Match(text); ok {
		m := patterns.Match{PatternID: id}
		return v.block(types.AttackLearnedPattern, []patterns.Match{m}, text, hash, context)
	}

	v.observeSuspicious(text, context, hash)
	metrics.ValidationsTotal.WithLabelValues("allowed").Inc()
	return allowedVerdict()
}

// scanDecoded decodes the text through every scheme and re-runs the hard
// pattern tiers against each decoded form, recursing on the decoded output
// up to the detector's depth cap.
func (v *Validator) scanDecoded(text string, depth int) (patterns.Match, bool) {
	if depth > encoding.MaxDecodeDepth {
		return patterns.Match{}, false
	}
	for _, outcome := range v.decoder.Decode(text) {
		decoded := v.registry.Bound(outcome.Text)
		if m, ok := v.registry.MatchAny(decoded,
			patterns.CategoryCritical,
			patterns.CategoryNoSQLCommand,
			patterns.CategoryHighRisk,
			patterns.CategoryChildTargeting,
		); ok {
			return m, true
		}
		if m, ok := v.scanDecoded(decoded, depth+1); ok {
			return m, true
		}
	}
	return patterns.Match{}, false
}

func (v *Validator) block(attack types.AttackType, matches []patterns.Match, text, hash, context string) types.Verdict {
	score := v.scorer.Score(attack, text)
	targets := attack == types.AttackChildTargeting || v.scorer.TargetsChildData(text)
	if targets {
		score = 100
	}
	severity := scoring.SeverityFor(score, targets)

	matched := make([]string, len(matches))
	for i, m := range matches {
		matched[i] = m.PatternID
	}

	v.auditLog.Append(audit.BlockedAttempt{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Severity:  severity,
		PatternID: matched[0],
		InputHash: hash,
		Context:   context,
	})

	v.logger.WithFields(logrus.Fields{
		"attack_type":        string(attack),
		"severity":           string(severity),
		"threat_score":       score,
		"matched":            strings.Join(matched, ","),
		"input_hash":         hash,
		"context":            context,
		"targets_child_data": targets,
	}).Warn("blocked suspicious input")

	metrics.ValidationsTotal.WithLabelValues("blocked").Inc()
	metrics.BlockedTotal.WithLabelValues(string(attack), string(severity)).Inc()

	return types.Verdict{
		Allowed:          false,
		Matched:          matched,
		AttackType:       attack,
		ThreatScore:      score,
		Severity:         severity,
		TargetsChildData: targets,
	}
}

// observeSuspicious is the non-blocking learning pass for values that
// cleared every tier. Only indicator ids and the salted hash leave here.
func (v *Validator) observeSuspicious(text, context, hash string) {
	indicators := v.learner.Indicators(text)
	entropy := scoring.Entropy(text)
	if len(indicators) == 0 {
		if v.scorer.HighEntropy(text) {
			v.logger.WithFields(logrus.Fields{
				"input_hash": hash,
				"entropy":    entropy,
				"context":    context,
			}).Debug("high-entropy value allowed without indicators")
		}
		return
	}

	promotions := v.learner.Observe(learning.SuspiciousInputRecord{
		InputHash:         hash,
		MatchedIndicators: indicators,
		Context:           context,
		Entropy:           entropy,
		Timestamp:         time.Now().UTC(),
	})
	for range promotions {
		metrics.LearnerPromotionsTotal.Inc()
	}
}

func (v *Validator) cacheGet(hash string) (types.Verdict, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	verdict, ok := v.cache[hash]
	return verdict, ok
}

func (v *Validator) cachePut(hash string, verdict types.Verdict) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.cache[hash]; exists {
		return
	}
	v.cache[hash] = verdict
	v.cacheKeys = append(v.cacheKeys, hash)
	if len(v.cacheKeys) > v.cacheSize {
		oldest := v.cacheKeys[0]
		v.cacheKeys = v.cacheKeys[1:]
		delete(v.cache, oldest)
	}
}

// CacheLen reports the number of cached verdicts.
func (v *Validator) CacheLen() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.cache)
}

func attackTypeFor(patternID string, fallback types.AttackType) types.AttackType {
	switch {
	case strings.HasPrefix(patternID, "sql_"):
		return types.AttackSQL
	case strings.HasPrefix(patternID, "nosql_"):
		return types.AttackNoSQL
	case strings.HasPrefix(patternID, "ldap_"):
		return types.AttackLDAP
	case strings.HasPrefix(patternID, "shell_"):
		return types.AttackCommand
	default:
		return fallback
	}
}

func allowedVerdict() types.Verdict {
	return types.Verdict{
		Allowed:  true,
		Severity: types.SeverityLow,
	}
}
