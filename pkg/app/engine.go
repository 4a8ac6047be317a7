// Package app assembles the detection engine from its parts and exposes
// the surface embedding applications use: input validation, secure query
// building, audit access, and learned-pattern administration.
package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/SafeNest/QueryShield/pkg/audit"
	"github.com/SafeNest/QueryShield/pkg/config"
	"github.com/SafeNest/QueryShield/pkg/encoding"
	"github.com/SafeNest/QueryShield/pkg/infra/cache"
	"github.com/SafeNest/QueryShield/pkg/infra/secrets"
	"github.com/SafeNest/QueryShield/pkg/learning"
	"github.com/SafeNest/QueryShield/pkg/patterns"
	"github.com/SafeNest/QueryShield/pkg/querybuilder"
	"github.com/SafeNest/QueryShield/pkg/scoring"
	"github.com/SafeNest/QueryShield/pkg/types"
	"github.com/SafeNest/QueryShield/pkg/validator"
)

// Engine is one fully wired instance. Construct exactly one per process at
// the composition root and inject it; the engine holds all mutable state.
type Engine struct {
	logger    *logrus.Logger
	registry  *patterns.Registry
	scorer    *scoring.Scorer
	learner   *learning.Learner
	auditLog  *audit.Log
	validator *validator.Validator
	builder   *querybuilder.Builder

	patternStore *cache.LearnedPatternStore
}

// NewEngine wires the engine from configuration. The secret provider feeds
// the audit hasher; the optional pattern store enables learned-pattern
// persistence.
func NewEngine(
	logger *logrus.Logger,
	cfg *config.Config,
	secretProvider secrets.Provider,
	patternStore *cache.LearnedPatternStore,
) *Engine {
	engineCfg := cfg.Engine

	profile := scoring.DefaultProfile()
	if engineCfg.EntropyThreshold > 0 {
		profile.EntropyThreshold = engineCfg.EntropyThreshold
	}

	registry := patterns.NewRegistry(engineCfg.MaxInputLength)
	scorer := scoring.NewScorer(profile)
	learner := learning.NewLearner(logger, engineCfg.PromotionThreshold, engineCfg.MaxLearnedPatterns)
	auditLog := audit.NewLog(engineCfg.AuditCapacity)
	hasher := audit.NewHasher(secretProvider.GetSalt())

	v := validator.New(
		logger,
		registry,
		encoding.NewDetector(),
		scorer,
		learner,
		auditLog,
		hasher,
		validator.Options{CacheSize: engineCfg.CacheSize},
	)

	policy := make(querybuilder.Policy, len(cfg.Tables))
	for table, tc := range cfg.Tables {
		policy[table] = querybuilder.TablePolicy{
			ChildData:      tc.ChildData,
			IdentifyingKey: tc.IdentifyingKey,
		}
	}
	builder := querybuilder.NewBuilder(logger, v, policy)

	return &Engine{
		logger:       logger,
		registry:     registry,
		scorer:       scorer,
		learner:      learner,
		auditLog:     auditLog,
		validator:    v,
		builder:      builder,
		patternStore: patternStore,
	}
}

// Validate inspects a single externally-sourced value.
func (e *Engine) Validate(value, context string) types.Verdict {
	return e.validator.Validate(value, context)
}

// ValidateDocument inspects every key and string value in a JSON payload.
func (e *Engine) ValidateDocument(body []byte, context string) (types.Verdict, error) {
	return e.validator.ValidateDocument(body, context)
}

// Builder returns the secure query builder.
func (e *Engine) Builder() *querybuilder.Builder {
	return e.builder
}

// AuditSummary aggregates the retained audit window.
func (e *Engine) AuditSummary() audit.Summary {
	return e.auditLog.Summary()
}

// AuditSnapshot copies the retained blocked-attempt records.
func (e *Engine) AuditSnapshot() []audit.BlockedAttempt {
	return e.auditLog.Snapshot()
}

// ExportPatterns returns the promoted learned-pattern set.
func (e *Engine) ExportPatterns() []string {
	return e.learner.Export()
}

// ImportPatterns activates a previously exported set.
func (e *Engine) ImportPatterns(patterns []string) error {
	return e.learner.Import(patterns)
}

// ClearPatterns drops all learned state and reports how many rules were
// removed.
func (e *Engine) ClearPatterns() int {
	return e.learner.Clear()
}

// PersistPatterns stores the current learned set through the configured
// pattern store. Admin path; no-op error when no store is wired.
func (e *Engine) PersistPatterns(ctx context.Context) error {
	if e.patternStore == nil {
		return errNoPatternStore
	}
	return e.patternStore.Persist(ctx, e.learner.Export())
}

// RestorePatterns loads and activates the stored learned set.
func (e *Engine) RestorePatterns(ctx context.Context) error {
	if e.patternStore == nil {
		return errNoPatternStore
	}
	stored, err := e.patternStore.Load(ctx)
	if err != nil {
		return err
	}
	return e.learner.Import(stored)
}
