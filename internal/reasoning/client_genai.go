package reasoning

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAIClient implements Client using Google's Gemini API via the
// official SDK.
type GenAIClient struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

// GenAIConfig holds configuration for the Gemini client.
type GenAIConfig struct {
	APIKey    string
	Model     string
	MaxTokens int32
}

// NewGenAIClient creates a Gemini-backed reasoning client.
func NewGenAIClient(ctx context.Context, cfg GenAIConfig) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 16384
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Complete sends a prompt and returns the completion.
func (c *GenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction. Network
// and SDK failures are transient; retries are handled by Do.
func (c *GenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.1),
		MaxOutputTokens: c.maxTokens,
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), config)
	if err != nil {
		return "", Transient(fmt.Errorf("GenAI call failed: %w", err))
	}

	text := resp.Text()
	if text == "" {
		return "", Transient(fmt.Errorf("empty completion from GenAI"))
	}
	return text, nil
}
