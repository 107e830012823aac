package openrouter

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/concord/ai/tracker"
	"github.com/teranos/concord/errors"
	"github.com/teranos/concord/internal/httpclient"
)

const (
	// DefaultModel is the fallback model when none is specified.
	// Should match the default in config/defaults.go for consistency.
	DefaultModel = "openai/gpt-4o-mini"

	// DefaultTimeout bounds a single completion request.
	DefaultTimeout = 120 * time.Second
)

// Client is an OpenRouter.ai API client with usage tracking and rate limiting.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *httpclient.SaferClient
	config       Config
	limiter      *rate.Limiter
	usageTracker *tracker.UsageTracker
	logger       *zap.SugaredLogger
}

// Config holds oracle client configuration.
type Config struct {
	APIKey          string
	Model           string
	Temperature     *float64      // nil = use default (0.2)
	MaxTokens       *int          // nil = use default (1000)
	RateLimitPerMin int           // Max requests per minute (0 = unlimited)
	Timeout         time.Duration // Per-request timeout (0 = DefaultTimeout)
	Logger          *zap.SugaredLogger
	DB              *sql.DB // Database for cost/usage tracking (nil disables tracking)
	OperationType   string  // Operation for tracking context (e.g., "resolve")
	SourceType      string  // Source module for tracking context
	TargetType      string  // Target module for tracking context
}

// NewClient creates a new OpenRouter.ai client.
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Temperature == nil {
		defaultTemp := 0.2
		config.Temperature = &defaultTemp
	}
	if config.MaxTokens == nil {
		defaultTokens := 1000
		config.MaxTokens = &defaultTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	var usageTracker *tracker.UsageTracker
	if config.DB != nil {
		usageTracker = tracker.NewUsageTracker(config.DB)
	}

	// Rate limiting applies to retries as well as first attempts, so a
	// misbehaving retry loop cannot exceed the configured call budget.
	var limiter *rate.Limiter
	if config.RateLimitPerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(config.RateLimitPerMin)/60.0), 1)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// SSRF-safer HTTP client with redirect protection.
	// Blocks private IPs, localhost, cloud metadata endpoints, dangerous schemes.
	blockPrivateIP := true
	saferClient := httpclient.NewSaferClientWithOptions(config.Timeout, httpclient.SaferClientOptions{
		BlockPrivateIP: &blockPrivateIP,
	})

	return &Client{
		apiKey:       config.APIKey,
		baseURL:      "https://openrouter.ai/api/v1",
		httpClient:   saferClient,
		config:       config,
		limiter:      limiter,
		usageTracker: usageTracker,
		logger:       logger,
	}
}

// ChatCompletionRequest is the wire request for the chat completions endpoint.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatRequest is a high-level request to the oracle.
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  *float64 // Override default temperature
	MaxTokens    *int     // Override default max tokens
	Model        *string  // Override default model
}

// ChatResponse is the oracle's reply.
type ChatResponse struct {
	Content string
	Usage   Usage
}

// Message is a single message in a chat completion.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the wire response from chat completions.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is one completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage is token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CreateChatCompletion sends a single chat completion request to OpenRouter.
// The configured rate limit is enforced here so that every attempt, including
// retries, counts against it.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limit wait")
		}
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	// X-Title identifies the caller on the OpenRouter dashboard
	if c.config.OperationType != "" {
		httpReq.Header.Set("X-Title", fmt.Sprintf("concord/%s", c.config.OperationType))
	} else {
		httpReq.Header.Set("X-Title", "concord")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	return &chatResp, nil
}

// Chat sends a chat completion request with retry logic and usage tracking.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.config.APIKey == "" {
		return nil, errors.New("OpenRouter API key not configured")
	}

	// Dereference config defaults, allow per-request overrides
	temperature := *c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	maxTokens := *c.config.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	model := c.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	c.logger.Debugw("Oracle chat request",
		"model", model,
		"temperature", temperature,
		"max_tokens", maxTokens,
		"system_prompt", req.SystemPrompt,
		"user_prompt", req.UserPrompt,
	)

	messages := []Message{{Role: "user", Content: req.UserPrompt}}
	if req.SystemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	openrouterReq := ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	requestTime := time.Now()

	maxRetries := 3
	var resp *ChatCompletionResponse
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * time.Second
			c.logger.Debugw("Retrying OpenRouter request",
				"attempt", attempt, "max_retries", maxRetries-1, "delay", delay)
			time.Sleep(delay)
		}

		resp, err = c.CreateChatCompletion(ctx, openrouterReq)

		if err == nil {
			if attempt > 0 {
				c.logger.Infow("Request succeeded after retries", "attempts", attempt+1, "model", model)
			}
			break
		}

		c.logger.Warnw("OpenRouter API error",
			"attempt", attempt+1, "max_retries", maxRetries,
			"error", err, "model", model,
			"url", c.baseURL+"/chat/completions")

		if c.isRetryableError(err) {
			c.logger.Debugw("Retryable error detected, will retry", "error", err)
			continue
		}

		c.trackFailedRequest(requestTime, model, temperature, maxTokens, err)
		return nil, errors.Wrap(err, "OpenRouter API error")
	}

	if err != nil {
		c.trackFailedRequest(requestTime, model, temperature, maxTokens, err)
		return nil, errors.Wrapf(err, "OpenRouter API error after %d retries", maxRetries)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response choices from OpenRouter")
	}

	responseText := resp.Choices[0].Message.Content

	c.logger.Debugw("OpenRouter response",
		"content_length", len(responseText),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
	)

	if c.usageTracker != nil {
		responseTime := time.Now()
		tokensUsed := resp.Usage.TotalTokens
		cost := CalculateCost(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		inputLen := len(req.SystemPrompt) + len(req.UserPrompt)
		outputLen := len(responseText)

		usage := &tracker.ModelUsage{
			OperationType:     c.config.OperationType,
			SourceType:        c.config.SourceType,
			TargetType:        c.config.TargetType,
			ModelName:         model,
			ModelProvider:     "openrouter",
			ModelConfig:       tracker.NewModelConfig(&temperature, &maxTokens),
			RequestTimestamp:  requestTime,
			ResponseTimestamp: &responseTime,
			TokensUsed:        &tokensUsed,
			Cost:              &cost,
			Success:           true,
			ErrorMessage:      nil,
			Metadata: tracker.NewUsageMetadata(tracker.UsageMetadata{
				InputLength:  &inputLen,
				OutputLength: &outputLen,
			}),
		}

		if err := c.usageTracker.TrackUsage(usage); err != nil {
			// Always log tracking errors (usage reporting relies on this data)
			c.logger.Warnw("Failed to track usage", "error", err, "model", model, "tokens", tokensUsed)
		}
	}

	return &ChatResponse{
		Content: strings.TrimSpace(responseText),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// isRetryableError checks if an error is worth retrying (network-related)
func (c *Client) isRetryableError(err error) bool {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}

	if syscallErr, ok := err.(*net.OpError); ok {
		if errno, ok := syscallErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
				return true
			}
		}
	}

	errStr := strings.ToLower(err.Error())
	networkErrors := []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"i/o timeout",
	}

	for _, netErr := range networkErrors {
		if strings.Contains(errStr, netErr) {
			return true
		}
	}

	return false
}

// trackFailedRequest records a failed API request
func (c *Client) trackFailedRequest(requestTime time.Time, model string, temperature float64, maxTokens int, err error) {
	if c.usageTracker == nil {
		return
	}

	responseTime := time.Now()
	errMsg := err.Error()

	usage := &tracker.ModelUsage{
		OperationType:     c.config.OperationType,
		SourceType:        c.config.SourceType,
		TargetType:        c.config.TargetType,
		ModelName:         model,
		ModelProvider:     "openrouter",
		ModelConfig:       tracker.NewModelConfig(&temperature, &maxTokens),
		RequestTimestamp:  requestTime,
		ResponseTimestamp: &responseTime,
		TokensUsed:        nil,
		Cost:              nil,
		Success:           false,
		ErrorMessage:      &errMsg,
	}

	if trackErr := c.usageTracker.TrackUsage(usage); trackErr != nil {
		c.logger.Warnw("Failed to track failed request", "error", trackErr, "model", model, "original_error", err.Error())
	}
}

// IsConfigured returns true if the client has a valid API key
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// SetHTTPClient allows overriding the HTTP client for testing
// ⚠️ WARNING: Only use this in tests. Production code should use the default SSRF-safer client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}
