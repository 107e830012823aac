// Package local implements the oracle client contract against any
// OpenAI-compatible local inference server (Ollama, LocalAI, llama.cpp).
package local

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/concord/ai/openrouter"
	"github.com/teranos/concord/ai/tracker"
	"github.com/teranos/concord/errors"
	"github.com/teranos/concord/internal/httpclient"
	"github.com/teranos/concord/internal/util"
)

const (
	// DefaultBaseURL targets a stock Ollama install. The URL carries the
	// version prefix; endpoints are appended to it.
	DefaultBaseURL = "http://localhost:11434/v1"

	// DefaultModel is the fallback model when none is configured.
	// Should match the default in config/defaults.go for consistency.
	DefaultModel = "llama3.2:3b"

	// DefaultTimeout is generous because local models without GPU
	// acceleration can take minutes per completion.
	DefaultTimeout = time.Hour

	defaultTemperature = 0.2
	defaultMaxTokens   = 1000
)

// Client talks to a local inference endpoint. It implements the same Chat
// contract as the OpenRouter client so the provider factory can swap them.
type Client struct {
	baseURL      string
	model        string
	httpClient   *httpclient.SaferClient
	config       Config
	usageTracker *tracker.UsageTracker
	logger       *zap.SugaredLogger
}

// Config holds local inference client configuration.
type Config struct {
	BaseURL       string        // Endpoint root including version prefix (e.g. "http://localhost:11434/v1")
	Model         string        // Model tag known to the local server
	Timeout       time.Duration // Per-request timeout (0 = DefaultTimeout)
	Logger        *zap.SugaredLogger
	DB            *sql.DB // Database for usage tracking (nil disables tracking)
	OperationType string  // Operation for tracking context
	SourceType    string  // Source module for tracking context
	TargetType    string  // Target module for tracking context
}

// NewClient creates a local inference client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	var usageTracker *tracker.UsageTracker
	if config.DB != nil {
		usageTracker = tracker.NewUsageTracker(config.DB)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// Local endpoints are loopback by definition, so the private-IP screen
	// is disabled. Scheme and redirect screening still apply.
	saferClient := httpclient.NewSaferClientWithOptions(config.Timeout, httpclient.SaferClientOptions{
		BlockPrivateIP: util.Ptr(false),
	})

	return &Client{
		baseURL:      strings.TrimSuffix(config.BaseURL, "/"),
		model:        config.Model,
		httpClient:   saferClient,
		config:       config,
		usageTracker: usageTracker,
		logger:       logger,
	}
}

// chatCompletionRequest matches the OpenAI wire format (Ollama is compatible).
type chatCompletionRequest struct {
	Model    string          `json:"model"`
	Messages []chatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *completionOpts `json:"options,omitempty"` // Ollama-specific options
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionOpts struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"num_predict,omitempty"` // Ollama uses num_predict
}

// chatCompletionResponse matches the OpenAI wire format. Usage is optional;
// some local servers omit it.
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Chat sends a chat completion request to the local inference server.
func (c *Client) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	model := c.model
	if req.Model != nil {
		model = *req.Model
	}

	messages := []chatMessage{{Role: "user", Content: req.UserPrompt}}
	if req.SystemPrompt != "" {
		messages = append([]chatMessage{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	c.logger.Debugw("Local inference request",
		"model", model,
		"temperature", temperature,
		"max_tokens", maxTokens,
		"base_url", c.baseURL,
	)

	reqBody := chatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options: &completionOpts{
			Temperature: temperature,
			MaxTokens:   maxTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	requestTime := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.trackRequest(requestTime, model, temperature, maxTokens, nil, err)
		return nil, errors.Wrap(err, "local inference request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := errors.Newf("local inference returned status %d: %s", resp.StatusCode, string(body))
		c.trackRequest(requestTime, model, temperature, maxTokens, nil, err)
		return nil, err
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		err = errors.Wrap(err, "failed to decode response")
		c.trackRequest(requestTime, model, temperature, maxTokens, nil, err)
		return nil, err
	}

	if len(completion.Choices) == 0 {
		err := errors.New("no completion choices returned")
		c.trackRequest(requestTime, model, temperature, maxTokens, nil, err)
		return nil, err
	}

	content := completion.Choices[0].Message.Content

	var usage openrouter.Usage
	if completion.Usage != nil {
		usage = openrouter.Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		}
	}

	c.logger.Debugw("Local inference response",
		"content_length", len(content),
		"total_tokens", usage.TotalTokens,
	)

	c.trackRequest(requestTime, model, temperature, maxTokens, &usage, nil)

	return &openrouter.ChatResponse{
		Content: strings.TrimSpace(content),
		Usage:   usage,
	}, nil
}

// trackRequest records one call in the usage table. Cost is always zero for
// local inference.
func (c *Client) trackRequest(requestTime time.Time, model string, temperature float64, maxTokens int, usage *openrouter.Usage, callErr error) {
	if c.usageTracker == nil {
		return
	}

	responseTime := time.Now()
	record := &tracker.ModelUsage{
		OperationType:     c.config.OperationType,
		SourceType:        c.config.SourceType,
		TargetType:        c.config.TargetType,
		ModelName:         model,
		ModelProvider:     "local",
		ModelConfig:       tracker.NewModelConfig(&temperature, &maxTokens),
		RequestTimestamp:  requestTime,
		ResponseTimestamp: &responseTime,
		Cost:              util.Ptr(0.0),
		Success:           callErr == nil,
	}

	if usage != nil && usage.TotalTokens > 0 {
		record.TokensUsed = util.Ptr(usage.TotalTokens)
	}
	if callErr != nil {
		record.ErrorMessage = util.Ptr(callErr.Error())
	}

	if err := c.usageTracker.TrackUsage(record); err != nil {
		c.logger.Warnw("Failed to track local inference usage", "error", err, "model", model)
	}
}

// IsConfigured reports whether the client has an endpoint to talk to.
// Local inference needs no credentials, so a base URL is enough.
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}
