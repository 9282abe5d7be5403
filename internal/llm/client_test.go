/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/config"
)

func TestNewClientDefaults(t *testing.T) {
	tests := []struct {
		provider string
		baseURL  string
	}{
		{"anthropic", defaultAnthropicURL},
		{"openai", defaultOpenAIURL},
		{"ollama", defaultOllamaURL},
	}
	for _, tt := range tests {
		c := NewClient(tt.provider, "key", "", "model")
		if c.baseURL != tt.baseURL {
			t.Errorf("%s baseURL = %q, want %q", tt.provider, c.baseURL, tt.baseURL)
		}
	}

	c := NewClient("anthropic", "key", "http://proxy.local/v1/", "model")
	if c.baseURL != "http://proxy.local/v1" {
		t.Errorf("baseURL = %q, trailing slash should be trimmed", c.baseURL)
	}
}

func TestNewFromConfig(t *testing.T) {
	c := NewFromConfig(config.LLMConfig{
		Provider:     "openai",
		Model:        "gpt-4o",
		OpenAIAPIKey: "sk-test",
		MaxTokens:    512,
		Temperature:  0.2,
		Timeout:      "5s",
	})
	if c.apiKey != "sk-test" || c.maxTokens != 512 || c.temperature != 0.2 {
		t.Errorf("client = %+v", c)
	}
	if c.httpClient.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", c.httpClient.Timeout)
	}
	if c.Provider() != "openai" || c.Model() != "gpt-4o" {
		t.Errorf("Provider/Model = %s/%s", c.Provider(), c.Model())
	}
}

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		client   *Client
		expected bool
	}{
		{"anthropic with key", NewClient("anthropic", "sk-ant", "", "claude"), true},
		{"anthropic without key", NewClient("anthropic", "", "", "claude"), false},
		{"openai with key", NewClient("openai", "sk", "", "gpt"), true},
		{"ollama without key", NewClient("ollama", "", "", "llama3"), true},
		{"ollama without model", NewClient("ollama", "", "", ""), false},
		{"unknown provider", NewClient("other", "key", "http://x", "m"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.client.IsConfigured(); got != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCompleteNotConfigured(t *testing.T) {
	_, err := NewClient("anthropic", "", "", "claude").Complete(context.Background(), Request{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("error = %v, want not configured", err)
	}
}

func TestCompleteAnthropic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %s, want /messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}

		var req claudeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System != "be terse" || len(req.Messages) != 1 || req.Messages[0].Content != "count customers" {
			t.Errorf("request = %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(claudeResponse{
			Content: []claudeContentBlock{{Type: "text", Text: "SELECT COUNT(*) FROM customers"}},
		})
	}))
	defer server.Close()

	c := NewClient("anthropic", "test-key", server.URL, "claude")
	got, err := c.Complete(context.Background(), Request{System: "be terse", Prompt: "count customers"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "SELECT COUNT(*) FROM customers" {
		t.Errorf("Complete() = %q", got)
	}
}

func TestCompleteOpenAIAndOllama(t *testing.T) {
	for _, provider := range []string{"openai", "ollama"} {
		t.Run(provider, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				wantPath := "/chat/completions"
				if provider == "ollama" {
					wantPath = "/v1/chat/completions"
				}
				if r.URL.Path != wantPath {
					t.Errorf("path = %s, want %s", r.URL.Path, wantPath)
				}
				if provider == "openai" && r.Header.Get("Authorization") != "Bearer sk" {
					t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
				}

				var req chatRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Fatalf("decode request: %v", err)
				}
				if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
					t.Errorf("messages = %+v", req.Messages)
				}

				_ = json.NewEncoder(w).Encode(chatResponse{
					Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: "SELECT 1"}}},
				})
			}))
			defer server.Close()

			key := ""
			if provider == "openai" {
				key = "sk"
			}
			c := NewClient(provider, key, server.URL, "model")
			got, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "p"})
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			if got != "SELECT 1" {
				t.Errorf("Complete() = %q", got)
			}
		})
	}
}

func TestCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	_, err := NewClient("anthropic", "k", server.URL, "m").Complete(context.Background(), Request{Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v, want status 429", err)
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	_, err := NewClient("anthropic", "k", server.URL, "m").Complete(context.Background(), Request{Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "no content") {
		t.Errorf("error = %v, want no content", err)
	}
}

func TestCompleteCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewClient("ollama", "", server.URL, "m").Complete(ctx, Request{Prompt: "p"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
