package app

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SafeNest/QueryShield/pkg/config"
	"github.com/SafeNest/QueryShield/pkg/types"
)

type staticSalt struct{}

func (staticSalt) GetSalt() []byte { return []byte("test-salt") }

func newTestConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			MaxInputLength:     4096,
			CacheSize:          128,
			PromotionThreshold: 5,
			MaxLearnedPatterns: 100,
			AuditCapacity:      100,
			EntropyThreshold:   4.8,
		},
		Tables: map[string]config.TableConfig{
			"children_profiles": {ChildData: true, IdentifyingKey: "child_id"},
			"orders":            {ChildData: false},
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewEngine(logger, newTestConfig(), staticSalt{}, nil)
}

func TestEngine_ValidateAndAudit(t *testing.T) {
	e := newTestEngine(t)

	assert.True(t, e.Validate("a harmless sentence", "test").Allowed)

	verdict := e.Validate("'; DROP TABLE users; --", "test")
	assert.False(t, verdict.Allowed)
	assert.Equal(t, types.SeverityCritical, verdict.Severity)

	summary := e.AuditSummary()
	assert.Equal(t, uint64(1), summary.TotalBlocked)
	require.Len(t, e.AuditSnapshot(), 1)
}

func TestEngine_BuilderUsesConfiguredPolicy(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Builder().BuildDelete("children_profiles", map[string]interface{}{"child_id": "c-1"})
	require.Error(t, err)

	q, err := e.Builder().DeleteAudited("children_profiles",
		map[string]interface{}{"child_id": "c-1"}, "guardian request")
	require.NoError(t, err)
	assert.True(t, q.Authorized())
}

func TestEngine_PatternAdministration(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.ImportPatterns([]string{`attackmarker\d+`}))
	verdict := e.Validate("payload attackmarker42", "test")
	assert.False(t, verdict.Allowed)
	assert.Equal(t, types.AttackLearnedPattern, verdict.AttackType)

	exported := e.ExportPatterns()
	assert.Contains(t, exported, `attackmarker\d+`)

	assert.Equal(t, 1, e.ClearPatterns())
	assert.Empty(t, e.ExportPatterns())
}

func TestEngine_PersistWithoutStoreFails(t *testing.T) {
	e := newTestEngine(t)
	assert.Error(t, e.PersistPatterns(context.Background()))
	assert.Error(t, e.RestorePatterns(context.Background()))
}
