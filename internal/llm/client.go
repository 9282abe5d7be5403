/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package llm is the client for the SQL generation service
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/config"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/logging"
)

const (
	defaultAnthropicURL = "https://api.anthropic.com/v1"
	defaultOpenAIURL    = "https://api.openai.com/v1"
	defaultOllamaURL    = "http://localhost:11434"
	anthropicVersion    = "2023-06-01"
	maxErrorBody        = 512
)

// Request is one prompt for the generation service
type Request struct {
	System string
	Prompt string
}

// Client handles interactions with LLM APIs (Anthropic, OpenAI or Ollama)
type Client struct {
	provider    string
	apiKey      string // not used by Ollama
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewClient creates a new LLM client with the specified provider. An empty
// baseURL selects the provider's public endpoint.
func NewClient(provider, apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		switch provider {
		case "anthropic":
			baseURL = defaultAnthropicURL
		case "openai":
			baseURL = defaultOpenAIURL
		case "ollama":
			baseURL = defaultOllamaURL
		}
	}
	return &Client{
		provider:    provider,
		apiKey:      apiKey,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       model,
		maxTokens:   1024,
		temperature: 0.1,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

// NewFromConfig creates a client from the llm configuration section
func NewFromConfig(cfg config.LLMConfig) *Client {
	var apiKey, baseURL string
	switch cfg.Provider {
	case "anthropic":
		apiKey = cfg.AnthropicAPIKey
	case "openai":
		apiKey = cfg.OpenAIAPIKey
	case "ollama":
		baseURL = cfg.OllamaURL
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	c := NewClient(cfg.Provider, apiKey, baseURL, cfg.Model)
	if cfg.MaxTokens > 0 {
		c.maxTokens = cfg.MaxTokens
	}
	c.temperature = cfg.Temperature
	c.httpClient.Timeout = cfg.TimeoutDuration()
	return c
}

// Provider returns the configured provider name
func (c *Client) Provider() string { return c.provider }

// Model returns the configured model
func (c *Client) Model() string { return c.model }

// IsConfigured returns whether the client is properly configured
func (c *Client) IsConfigured() bool {
	switch c.provider {
	case "anthropic", "openai":
		return c.apiKey != "" && c.model != ""
	case "ollama":
		return c.baseURL != "" && c.model != ""
	default:
		return false
	}
}

// Complete sends req and returns the raw completion text. Cancelling ctx
// aborts the HTTP request.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("LLM client not configured")
	}

	startTime := time.Now()
	var text string
	var err error
	switch c.provider {
	case "anthropic":
		text, err = c.completeAnthropic(ctx, req)
	case "openai":
		text, err = c.completeChat(ctx, c.baseURL+"/chat/completions", req)
	case "ollama":
		text, err = c.completeChat(ctx, c.baseURL+"/v1/chat/completions", req)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.provider)
	}

	if err != nil {
		logging.Warn("llm_completion_failed",
			"provider", c.provider, "model", c.model,
			"duration_ms", time.Since(startTime).Milliseconds(), "error", err)
		return "", err
	}
	logging.Debug("llm_completion",
		"provider", c.provider, "model", c.model,
		"duration_ms", time.Since(startTime).Milliseconds(), "chars", len(text))
	return text, nil
}

func (c *Client) completeAnthropic(ctx context.Context, req Request) (string, error) {
	reqBody := claudeRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      req.System,
		Temperature: c.temperature,
		Messages: []chatMessage{
			{Role: "user", Content: req.Prompt},
		},
	}

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}
	var claudeResp claudeResponse
	if err := c.post(ctx, c.baseURL+"/messages", headers, reqBody, &claudeResp); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range claudeResp.Content {
		if block.Type == "text" || block.Type == "" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return sb.String(), nil
}

// completeChat speaks the OpenAI chat completions protocol, which Ollama
// also serves
func (c *Client) completeChat(ctx context.Context, endpoint string, req Request) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	reqBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Stream:      false,
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	var chatResp chatResponse
	if err := c.post(ctx, endpoint, headers, reqBody, &chatResp); err != nil {
		return "", err
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return chatResp.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, url string, headers map[string]string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// surface cancellation as the context error so callers can tell
		// it apart from a service fault
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("llm_body_close_failed", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody] + "..."
		}
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, msg)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// Internal types for Claude API
type claudeRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type claudeResponse struct {
	ID      string               `json:"id"`
	Type    string               `json:"type"`
	Role    string               `json:"role"`
	Content []claudeContentBlock `json:"content"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Internal types for the OpenAI-compatible API
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}
