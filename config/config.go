package config

// Config represents the core concord configuration
type Config struct {
	Oracle         OracleConfig         `mapstructure:"oracle"`
	LocalInference LocalInferenceConfig `mapstructure:"local_inference"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Resolver       ResolverConfig       `mapstructure:"resolver"`
	Rules          RulesConfig          `mapstructure:"rules"`
	Storage        StorageConfig        `mapstructure:"storage"`
	Log            LogConfig            `mapstructure:"log"`
}

// OracleConfig configures the semantic oracle used as the fallback
// resolution strategy and for similarity judgments
type OracleConfig struct {
	Provider        string   `mapstructure:"provider"`           // "openrouter" or "local"
	APIKey          string   `mapstructure:"api_key"`            // OpenRouter API key
	Model           string   `mapstructure:"model"`              // Default model (e.g., "openai/gpt-4o-mini")
	Temperature     *float64 `mapstructure:"temperature"`        // Sampling temperature (nil = default 0.2)
	MaxTokens       *int     `mapstructure:"max_tokens"`         // Maximum tokens per request (nil = default 1000)
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"` // Max oracle calls per minute (0 = unlimited)
	TimeoutSeconds  int      `mapstructure:"timeout_seconds"`    // Request timeout in seconds
}

// LocalInferenceConfig configures local model inference (Ollama, LocalAI, etc.)
type LocalInferenceConfig struct {
	Enabled        bool   `mapstructure:"enabled"`         // Enable local inference instead of cloud APIs
	BaseURL        string `mapstructure:"base_url"`        // e.g., "http://localhost:11434/v1" for Ollama
	Model          string `mapstructure:"model"`           // e.g., "mistral", "qwen2.5-coder:7b"
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // Request timeout in seconds
}

// CacheConfig configures the semantic resolution cache
type CacheConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"` // Minimum key similarity for a cache hit (default: 0.85)
	PredictiveThreshold float64 `mapstructure:"predictive_threshold"` // Minimum score for predictive suggestions (default: 0.75)
	PredictiveEnabled   bool    `mapstructure:"predictive_enabled"`   // Enable predictive suggestion scoring
	PurgeIntervalHours  int     `mapstructure:"purge_interval_hours"` // How often the purge ticker runs (0 = disabled)
	RetentionHours      int     `mapstructure:"retention_hours"`      // Entries unused this long are purged (default: 2160 = 90 days)
	HighUsageThreshold  int     `mapstructure:"high_usage_threshold"` // Usage count that marks an entry "hot" for analysis
	RecentWindowHours   int     `mapstructure:"recent_window_hours"`  // Window for "recently used" in usage analysis (default: 168 = 7 days)
}

// ResolverConfig configures the resolution pipeline
type ResolverConfig struct {
	CacheThreshold     float64 `mapstructure:"cache_threshold"`      // Similarity above which a cached result is applied without re-resolution (default: 0.95)
	MinSourceRelevance float64 `mapstructure:"min_source_relevance"` // Minimum keyword relevance for candidate source discovery (default: 0.1)
}

// RulesConfig configures the explicit mapping rules file
type RulesConfig struct {
	Path  string `mapstructure:"path"`  // Path to the mapping rules TOML file
	Watch bool   `mapstructure:"watch"` // Hot-reload rules on file change
}

// StorageConfig configures the SQLite database
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig configures logging output
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`  // Emit structured JSON instead of console output
	Theme string `mapstructure:"theme"` // Color theme: gruvbox, everforest
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
