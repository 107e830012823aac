package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default thresholds. These are starting points; usage analysis may adjust
// the cache thresholds over time within [MinAdaptiveThreshold, MaxAdaptiveThreshold].
const (
	DefaultSimilarityThreshold = 0.85
	DefaultPredictiveThreshold = 0.75
	DefaultCacheThreshold      = 0.95
	DefaultMinSourceRelevance  = 0.1

	MinAdaptiveThreshold = 0.65
	MaxAdaptiveThreshold = 0.95
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Oracle defaults
	v.SetDefault("oracle.provider", "openrouter")
	v.SetDefault("oracle.model", "openai/gpt-4o-mini") // Cost-effective default
	v.SetDefault("oracle.temperature", 0.2)            // Deterministic
	v.SetDefault("oracle.max_tokens", 1000)            // Token limit
	v.SetDefault("oracle.rate_limit_per_min", 30)
	v.SetDefault("oracle.timeout_seconds", 120)

	// Local inference (Ollama) defaults
	v.SetDefault("local_inference.enabled", false)
	v.SetDefault("local_inference.base_url", "http://localhost:11434/v1")
	v.SetDefault("local_inference.model", "llama3.2:3b")
	v.SetDefault("local_inference.timeout_seconds", 3600)

	// Cache defaults
	v.SetDefault("cache.similarity_threshold", DefaultSimilarityThreshold)
	v.SetDefault("cache.predictive_threshold", DefaultPredictiveThreshold)
	v.SetDefault("cache.predictive_enabled", true)
	v.SetDefault("cache.purge_interval_hours", 24)
	v.SetDefault("cache.retention_hours", 2160) // 90 days
	v.SetDefault("cache.high_usage_threshold", 10)
	v.SetDefault("cache.recent_window_hours", 168) // 7 days

	// Resolver defaults
	v.SetDefault("resolver.cache_threshold", DefaultCacheThreshold)
	v.SetDefault("resolver.min_source_relevance", DefaultMinSourceRelevance)

	// Rules defaults
	v.SetDefault("rules.path", "mappings.toml")
	v.SetDefault("rules.watch", true)

	// Storage defaults
	v.SetDefault("storage.path", "~/.concord/concord.db")

	// Log defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.theme", "everforest")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// Oracle credentials
	v.BindEnv("oracle.api_key", "CONCORD_ORACLE_API_KEY")

	// Storage path
	v.BindEnv("storage.path", "CONCORD_STORAGE_PATH")

	// Local inference configuration
	v.BindEnv("local_inference.enabled", "CONCORD_LOCAL_INFERENCE_ENABLED")
	v.BindEnv("local_inference.base_url", "CONCORD_LOCAL_INFERENCE_BASE_URL")
	v.BindEnv("local_inference.model", "CONCORD_LOCAL_INFERENCE_MODEL")
}

// ExpandPath expands a leading ~/ to the user's home directory
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// GetStoragePath returns the configured database path with ~ expanded
func (c *Config) GetStoragePath() string {
	if c.Storage.Path == "" {
		return ExpandPath("~/.concord/concord.db") // Fallback default
	}
	return ExpandPath(c.Storage.Path)
}

// GetLogTheme returns the log theme (default: everforest)
func (c *Config) GetLogTheme() string {
	if c.Log.Theme == "" {
		return "everforest"
	}
	return c.Log.Theme
}

// GetRulesPath returns the mapping rules file path with ~ expanded
func (c *Config) GetRulesPath() string {
	if c.Rules.Path == "" {
		return "mappings.toml"
	}
	return ExpandPath(c.Rules.Path)
}

// GetTemperature returns the oracle sampling temperature (default: 0.2)
func (o *OracleConfig) GetTemperature() float64 {
	if o.Temperature == nil {
		return 0.2
	}
	return *o.Temperature
}

// GetMaxTokens returns the oracle token limit (default: 1000)
func (o *OracleConfig) GetMaxTokens() int {
	if o.MaxTokens == nil {
		return 1000
	}
	return *o.MaxTokens
}

// GetTimeout returns the oracle request timeout (default: 120s)
func (o *OracleConfig) GetTimeout() time.Duration {
	if o.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// GetTimeout returns the local inference request timeout (default: 1h)
func (l *LocalInferenceConfig) GetTimeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// PurgeInterval returns how often the purge ticker fires (0 = disabled)
func (cc *CacheConfig) PurgeInterval() time.Duration {
	return time.Duration(cc.PurgeIntervalHours) * time.Hour
}

// Retention returns how long unused entries are kept before purging
func (cc *CacheConfig) Retention() time.Duration {
	return time.Duration(cc.RetentionHours) * time.Hour
}

// RecentWindow returns the window used to classify entries as recently used
func (cc *CacheConfig) RecentWindow() time.Duration {
	return time.Duration(cc.RecentWindowHours) * time.Hour
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Oracle: {Provider: %s, Model: %s}, Cache: {Similarity: %.2f, Predictive: %.2f}, Storage: %s}",
		c.Oracle.Provider, c.Oracle.Model, c.Cache.SimilarityThreshold, c.Cache.PredictiveThreshold, c.Storage.Path)
}
