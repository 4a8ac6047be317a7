package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesStrictProfile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
engine:
  profile: strict

tables:
  children_profiles:
    child_data: true
    identifying_key: child_id
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0600))

	require.NoError(t, Load(dir))
	cfg := GetConfig()

	assert.Equal(t, "strict", cfg.Engine.Profile)
	assert.Equal(t, 2048, cfg.Engine.MaxInputLength)
	assert.Equal(t, 3, cfg.Engine.PromotionThreshold)
	assert.Equal(t, 2000, cfg.Engine.AuditCapacity)
	assert.InDelta(t, 4.2, cfg.Engine.EntropyThreshold, 1e-9)
	assert.Equal(t, "QUERYSHIELD_AUDIT_SALT", cfg.Engine.SaltEnvVar)

	require.Contains(t, cfg.Tables, "children_profiles")
	assert.True(t, cfg.Tables["children_profiles"].ChildData)
	assert.Equal(t, "child_id", cfg.Tables["children_profiles"].IdentifyingKey)
}

func TestLoad_ExplicitValuesOverrideProfile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
engine:
  profile: strict
  promotion_threshold: 7
  max_input_length: 1024
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0600))

	require.NoError(t, Load(dir))
	cfg := GetConfig()

	assert.Equal(t, 7, cfg.Engine.PromotionThreshold)
	assert.Equal(t, 1024, cfg.Engine.MaxInputLength)
	// Unset values still come from the profile preset.
	assert.Equal(t, 8192, cfg.Engine.CacheSize)
}

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	require.NoError(t, Load(t.TempDir()))
	cfg := GetConfig()

	assert.Equal(t, 4096, cfg.Engine.MaxInputLength)
	assert.Equal(t, 5, cfg.Engine.PromotionThreshold)
	assert.Equal(t, 1000, cfg.Engine.MaxLearnedPatterns)
	assert.Equal(t, 1000, cfg.Engine.AuditCapacity)
	assert.InDelta(t, 4.8, cfg.Engine.EntropyThreshold, 1e-9)
}
