package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the full engine configuration loaded from YAML with env
// overrides.
type Config struct {
	Engine   EngineConfig           `mapstructure:"engine"`
	Tables   map[string]TableConfig `mapstructure:"tables"`
	Metrics  MetricsConfig          `mapstructure:"metrics"`
	Database DatabaseConfig         `mapstructure:"database"`
	Redis    RedisConfig            `mapstructure:"redis"`
}

// EngineConfig carries the detection-engine tuning. The profile selects a
// preset; explicit values override the preset.
type EngineConfig struct {
	Profile            string  `mapstructure:"profile"`
	MaxInputLength     int     `mapstructure:"max_input_length"`
	CacheSize          int     `mapstructure:"cache_size"`
	PromotionThreshold int     `mapstructure:"promotion_threshold"`
	MaxLearnedPatterns int     `mapstructure:"max_learned_patterns"`
	AuditCapacity      int     `mapstructure:"audit_capacity"`
	EntropyThreshold   float64 `mapstructure:"entropy_threshold"`
	SaltEnvVar         string  `mapstructure:"salt_env_var"`
}

// TableConfig is one allowlist entry for the query builder.
type TableConfig struct {
	ChildData      bool   `mapstructure:"child_data"`
	IdentifyingKey string `mapstructure:"identifying_key"`
}

type MetricsConfig struct {
	Enabled              bool `mapstructure:"enabled"`
	EnableProcessMetrics bool `mapstructure:"enable_process_metrics"`
	EnablePerTable       bool `mapstructure:"enable_per_table"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TLS      bool   `mapstructure:"tls"`
}

var globalConfig Config

// Load reads config.yaml from the given path (falling back to ./config and
// the working directory) and applies the strictness profile.
func Load(configPath string) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	globalConfig = Config{}
	if err := v.Unmarshal(&globalConfig, decodeHook); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	applyProfile(&globalConfig.Engine)
	return nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *Config {
	return &globalConfig
}

// applyProfile fills unset engine values from the named preset. The strict
// profile promotes faster and caps inputs harder; lenient does the
// opposite. Unknown profile names fall back to the default preset.
func applyProfile(e *EngineConfig) {
	preset := defaultPreset()
	switch e.Profile {
	case "strict":
		preset = EngineConfig{
			MaxInputLength:     2048,
			CacheSize:          8192,
			PromotionThreshold: 3,
			MaxLearnedPatterns: 1000,
			AuditCapacity:      2000,
			EntropyThreshold:   4.2,
		}
	case "lenient":
		preset = EngineConfig{
			MaxInputLength:     8192,
			CacheSize:          4096,
			PromotionThreshold: 10,
			MaxLearnedPatterns: 500,
			AuditCapacity:      1000,
			EntropyThreshold:   5.2,
		}
	}

	if e.MaxInputLength <= 0 {
		e.MaxInputLength = preset.MaxInputLength
	}
	if e.CacheSize <= 0 {
		e.CacheSize = preset.CacheSize
	}
	if e.PromotionThreshold <= 0 {
		e.PromotionThreshold = preset.PromotionThreshold
	}
	if e.MaxLearnedPatterns <= 0 {
		e.MaxLearnedPatterns = preset.MaxLearnedPatterns
	}
	if e.AuditCapacity <= 0 {
		e.AuditCapacity = preset.AuditCapacity
	}
	if e.EntropyThreshold <= 0 {
		e.EntropyThreshold = preset.EntropyThreshold
	}
	if e.SaltEnvVar == "" {
		e.SaltEnvVar = "QUERYSHIELD_AUDIT_SALT"
	}
}

func defaultPreset() EngineConfig {
	return EngineConfig{
		MaxInputLength:     4096,
		CacheSize:          4096,
		PromotionThreshold: 5,
		MaxLearnedPatterns: 1000,
		AuditCapacity:      1000,
		EntropyThreshold:   4.8,
	}
}
