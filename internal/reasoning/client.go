// Package reasoning wraps the external reasoning service: provider
// clients, retry with exponential backoff, and recovery of structured
// JSON from free-form model text.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"plannerd/internal/logging"
)

// Client is the minimal interface capability integrations use to call
// the reasoning service.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// HTTPClient implements Client against an OpenAI-compatible
// chat-completions endpoint.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	rateGap     time.Duration
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// HTTPConfig holds configuration for the HTTP client.
type HTTPConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	RateGap   time.Duration
}

// DefaultHTTPConfig returns sensible defaults.
func DefaultHTTPConfig(apiKey string) HTTPConfig {
	return HTTPConfig{
		APIKey:    apiKey,
		BaseURL:   "https://api.openai.com/v1",
		Model:     "gpt-4o-mini",
		MaxTokens: 8192,
		Timeout:   2 * time.Minute,
		RateGap:   600 * time.Millisecond,
	}
}

// NewHTTPClient creates a client with custom config.
func NewHTTPClient(config HTTPConfig) *HTTPClient {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 8192
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}
	return &HTTPClient{
		apiKey:    config.APIKey,
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		model:     config.Model,
		maxTokens: config.MaxTokens,
		rateGap:   config.RateGap,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a prompt and returns the completion.
func (c *HTTPClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message. A single
// network attempt; retries belong to the Do wrapper so the
// orchestrator sees calls that either eventually succeed or fail
// terminally.
func (c *HTTPClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("reasoning API key not configured")
	}

	c.throttle()

	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	reqBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: 0.1, // low temperature for structured output
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Transient(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Transient(fmt.Errorf("failed to read response: %w", err))
	}

	logging.API("chat completion: status=%d elapsed=%v bytes=%d", resp.StatusCode, time.Since(start), len(body))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", Transient(fmt.Errorf("rate limit exceeded (429)"))
	case resp.StatusCode >= 500:
		return "", Transient(fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(string(body), 200)))
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", Transient(fmt.Errorf("failed to parse response: %w", err))
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", Transient(fmt.Errorf("empty response from API"))
	}

	return parsed.Choices[0].Message.Content, nil
}

// throttle enforces a minimum gap between consecutive requests.
func (c *HTTPClient) throttle() {
	if c.rateGap <= 0 {
		return
	}
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.rateGap {
		time.Sleep(c.rateGap - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
