package provider

import (
	"testing"

	"github.com/teranos/concord/ai/local"
	"github.com/teranos/concord/ai/openrouter"
	"github.com/teranos/concord/config"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		input    string
		expected Provider
		wantErr  bool
	}{
		{"local", ProviderLocal, false},
		{"ollama", ProviderLocal, false},
		{"localai", ProviderLocal, false},
		{"openrouter", ProviderOpenRouter, false},
		{"or", ProviderOpenRouter, false},
		{"auto", ProviderAuto, false},
		{"", ProviderAuto, false},
		{"anthropic", "", true},
		{"gpt", "", true},
	}

	for _, tt := range tests {
		t.Run("input="+tt.input, func(t *testing.T) {
			got, err := ParseProvider(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseProvider(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseProvider(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseProvider(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewAIClientWithProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    *config.Config
		provider  Provider
		wantLocal bool
	}{
		{
			name:      "explicit local",
			config:    &config.Config{},
			provider:  ProviderLocal,
			wantLocal: true,
		},
		{
			name: "explicit openrouter even when local is enabled",
			config: &config.Config{
				LocalInference: config.LocalInferenceConfig{Enabled: true},
			},
			provider:  ProviderOpenRouter,
			wantLocal: false,
		},
		{
			name: "auto prefers local when enabled",
			config: &config.Config{
				LocalInference: config.LocalInferenceConfig{
					Enabled: true,
					BaseURL: "http://localhost:11434/v1",
				},
			},
			provider:  ProviderAuto,
			wantLocal: true,
		},
		{
			name:      "auto falls back to openrouter",
			config:    &config.Config{},
			provider:  ProviderAuto,
			wantLocal: false,
		},
		{
			name:      "unknown provider falls back to auto",
			config:    &config.Config{},
			provider:  Provider("bogus"),
			wantLocal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewAIClientWithProvider(tt.config, tt.provider, ClientConfig{})
			_, isLocal := client.(*local.Client)
			_, isOpenRouter := client.(*openrouter.Client)

			if tt.wantLocal && !isLocal {
				t.Errorf("expected *local.Client, got %T", client)
			}
			if !tt.wantLocal && !isOpenRouter {
				t.Errorf("expected *openrouter.Client, got %T", client)
			}
		})
	}
}

func TestNewAIClient_HonorsConfiguredProvider(t *testing.T) {
	cfg := &config.Config{
		Oracle: config.OracleConfig{Provider: "local"},
	}

	client := NewAIClient(cfg, nil, nil, "resolve", "userProfile", "authRecord")
	if _, ok := client.(*local.Client); !ok {
		t.Errorf("expected configured local provider to win, got %T", client)
	}
}

func TestNewAIClient_BadProviderFallsBackToAuto(t *testing.T) {
	cfg := &config.Config{
		Oracle: config.OracleConfig{Provider: "nonsense"},
	}

	client := NewAIClient(cfg, nil, nil, "resolve", "", "")
	if _, ok := client.(*openrouter.Client); !ok {
		t.Errorf("expected auto-selected openrouter client, got %T", client)
	}
}

func TestGetAvailableProviders(t *testing.T) {
	tests := []struct {
		name     string
		config   *config.Config
		expected []Provider
	}{
		{
			name: "both configured",
			config: &config.Config{
				Oracle:         config.OracleConfig{APIKey: "sk-test"},
				LocalInference: config.LocalInferenceConfig{Enabled: true},
			},
			expected: []Provider{ProviderLocal, ProviderOpenRouter},
		},
		{
			name: "only openrouter",
			config: &config.Config{
				Oracle: config.OracleConfig{APIKey: "sk-test"},
			},
			expected: []Provider{ProviderOpenRouter},
		},
		{
			name:     "nothing configured",
			config:   &config.Config{},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetAvailableProviders(tt.config)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d providers, got %d: %v", len(tt.expected), len(got), got)
			}
			for i, p := range tt.expected {
				if got[i] != p {
					t.Errorf("provider %d: expected %v, got %v", i, p, got[i])
				}
			}
		})
	}
}
