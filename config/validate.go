package config

import "github.com/teranos/concord/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Oracle provider must be a known backend
	if c.Oracle.Provider != "" && c.Oracle.Provider != "openrouter" && c.Oracle.Provider != "local" {
		return errors.Newf("oracle.provider must be \"openrouter\" or \"local\", got %q", c.Oracle.Provider)
	}

	// Temperature: nil = default, otherwise must be sane for sampling
	if c.Oracle.Temperature != nil && (*c.Oracle.Temperature < 0 || *c.Oracle.Temperature > 2) {
		return errors.Newf("oracle.temperature must be in [0, 2], got %f", *c.Oracle.Temperature)
	}
	if c.Oracle.MaxTokens != nil && *c.Oracle.MaxTokens <= 0 {
		return errors.Newf("oracle.max_tokens must be > 0, got %d (omit for default)", *c.Oracle.MaxTokens)
	}

	// Rate limit: 0 = unlimited, negative = invalid
	if c.Oracle.RateLimitPerMin < 0 {
		return errors.Newf("oracle.rate_limit_per_min must be >= 0, got %d", c.Oracle.RateLimitPerMin)
	}
	if c.Oracle.TimeoutSeconds < 0 {
		return errors.Newf("oracle.timeout_seconds must be >= 0, got %d", c.Oracle.TimeoutSeconds)
	}

	// Validate local inference configuration only when enabled
	if c.LocalInference.Enabled {
		if c.LocalInference.BaseURL == "" {
			return errors.New("local_inference.base_url cannot be empty when enabled")
		}
		if c.LocalInference.Model == "" {
			return errors.New("local_inference.model cannot be empty when enabled")
		}
		if c.LocalInference.TimeoutSeconds <= 0 {
			return errors.Newf("local_inference.timeout_seconds must be > 0, got %d", c.LocalInference.TimeoutSeconds)
		}
	}

	// Similarity scores live on [0, 1]
	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > 1 {
		return errors.Newf("cache.similarity_threshold must be in [0, 1], got %f", c.Cache.SimilarityThreshold)
	}
	if c.Cache.PredictiveThreshold < 0 || c.Cache.PredictiveThreshold > 1 {
		return errors.Newf("cache.predictive_threshold must be in [0, 1], got %f", c.Cache.PredictiveThreshold)
	}
	if c.Resolver.CacheThreshold < 0 || c.Resolver.CacheThreshold > 1 {
		return errors.Newf("resolver.cache_threshold must be in [0, 1], got %f", c.Resolver.CacheThreshold)
	}
	if c.Resolver.MinSourceRelevance < 0 || c.Resolver.MinSourceRelevance > 1 {
		return errors.Newf("resolver.min_source_relevance must be in [0, 1], got %f", c.Resolver.MinSourceRelevance)
	}

	// Intervals: 0 = disabled, negative = invalid
	if c.Cache.PurgeIntervalHours < 0 {
		return errors.Newf("cache.purge_interval_hours must be >= 0, got %d", c.Cache.PurgeIntervalHours)
	}
	if c.Cache.RetentionHours < 0 {
		return errors.Newf("cache.retention_hours must be >= 0, got %d", c.Cache.RetentionHours)
	}
	if c.Cache.RecentWindowHours < 0 {
		return errors.Newf("cache.recent_window_hours must be >= 0, got %d", c.Cache.RecentWindowHours)
	}
	if c.Cache.HighUsageThreshold < 0 {
		return errors.Newf("cache.high_usage_threshold must be >= 0, got %d", c.Cache.HighUsageThreshold)
	}

	return nil
}
