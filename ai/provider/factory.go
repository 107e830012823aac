// Package provider selects which oracle backend answers a chat request.
// Callers program against AIClient and stay ignorant of whether the
// completion came from OpenRouter or a local inference server.
package provider

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/teranos/concord/ai/local"
	"github.com/teranos/concord/ai/openrouter"
	"github.com/teranos/concord/config"
)

// Provider identifies an oracle backend
type Provider string

const (
	// ProviderLocal uses local inference (Ollama, LocalAI)
	ProviderLocal Provider = "local"
	// ProviderOpenRouter uses the OpenRouter.ai API
	ProviderOpenRouter Provider = "openrouter"
	// ProviderAuto selects based on configuration
	ProviderAuto Provider = "auto"
)

// AIClient is the contract every oracle backend satisfies.
// The resolver and the similarity oracle depend on this, never on a
// concrete client.
type AIClient interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
}

// ClientConfig carries the call-site context a backend stamps onto its
// usage records. SourceType and TargetType are the module pair under
// resolution, empty for standalone probes.
type ClientConfig struct {
	DB            *sql.DB
	Logger        *zap.SugaredLogger
	OperationType string
	SourceType    string
	TargetType    string
}

// NewAIClient creates an oracle client honoring the configured provider.
// An unknown or empty oracle.provider value falls back to auto-selection.
func NewAIClient(cfg *config.Config, db *sql.DB, logger *zap.SugaredLogger, operationType, sourceType, targetType string) AIClient {
	provider, err := ParseProvider(cfg.Oracle.Provider)
	if err != nil {
		provider = ProviderAuto
	}
	return NewAIClientWithProvider(cfg, provider, ClientConfig{
		DB:            db,
		Logger:        logger,
		OperationType: operationType,
		SourceType:    sourceType,
		TargetType:    targetType,
	})
}

// NewAIClientWithProvider creates an oracle client for a specific provider.
// Use ProviderAuto to let the factory decide based on configuration.
func NewAIClientWithProvider(cfg *config.Config, provider Provider, clientCfg ClientConfig) AIClient {
	switch provider {
	case ProviderLocal:
		return newLocalClient(cfg, clientCfg)
	case ProviderOpenRouter:
		return newOpenRouterClient(cfg, clientCfg)
	default:
		return autoSelectClient(cfg, clientCfg)
	}
}

// autoSelectClient picks local inference when it is enabled, OpenRouter
// otherwise.
func autoSelectClient(cfg *config.Config, clientCfg ClientConfig) AIClient {
	if cfg.LocalInference.Enabled {
		return newLocalClient(cfg, clientCfg)
	}
	return newOpenRouterClient(cfg, clientCfg)
}

func newLocalClient(cfg *config.Config, clientCfg ClientConfig) AIClient {
	return local.NewClient(local.Config{
		BaseURL:       cfg.LocalInference.BaseURL,
		Model:         cfg.LocalInference.Model,
		Timeout:       cfg.LocalInference.GetTimeout(),
		Logger:        clientCfg.Logger,
		DB:            clientCfg.DB,
		OperationType: clientCfg.OperationType,
		SourceType:    clientCfg.SourceType,
		TargetType:    clientCfg.TargetType,
	})
}

func newOpenRouterClient(cfg *config.Config, clientCfg ClientConfig) AIClient {
	return openrouter.NewClient(openrouter.Config{
		APIKey:          cfg.Oracle.APIKey,
		Model:           cfg.Oracle.Model,
		Temperature:     cfg.Oracle.Temperature,
		MaxTokens:       cfg.Oracle.MaxTokens,
		RateLimitPerMin: cfg.Oracle.RateLimitPerMin,
		Timeout:         cfg.Oracle.GetTimeout(),
		Logger:          clientCfg.Logger,
		DB:              clientCfg.DB,
		OperationType:   clientCfg.OperationType,
		SourceType:      clientCfg.SourceType,
		TargetType:      clientCfg.TargetType,
	})
}

// GetAvailableProviders returns the providers usable with the current
// configuration.
func GetAvailableProviders(cfg *config.Config) []Provider {
	var providers []Provider
	if cfg.LocalInference.Enabled {
		providers = append(providers, ProviderLocal)
	}
	if cfg.Oracle.APIKey != "" {
		providers = append(providers, ProviderOpenRouter)
	}
	return providers
}

// ParseProvider converts a string to a Provider type
func ParseProvider(s string) (Provider, error) {
	switch s {
	case "local", "ollama", "localai":
		return ProviderLocal, nil
	case "openrouter", "or":
		return ProviderOpenRouter, nil
	case "auto", "":
		return ProviderAuto, nil
	default:
		return "", errors.Newf("unknown provider: %s (valid: local, openrouter, auto)", s)
	}
}

// Verify both backends satisfy the client contract
var _ AIClient = (*openrouter.Client)(nil)
var _ AIClient = (*local.Client)(nil)
