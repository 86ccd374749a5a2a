package agents

import (
	"context"
	"time"

	"plannerd/internal/config"
)

// mockClient scripts reasoning responses per call.
type mockClient struct {
	completeFn   func(ctx context.Context, prompt string) (string, error)
	withSystemFn func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

func (m *mockClient) Complete(ctx context.Context, prompt string) (string, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, prompt)
	}
	return m.CompleteWithSystem(ctx, "", prompt)
}

func (m *mockClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if m.withSystemFn != nil {
		return m.withSystemFn(ctx, systemPrompt, userPrompt)
	}
	return "{}", nil
}

// respond returns a client that always answers with the given JSON.
func respond(json string) *mockClient {
	return &mockClient{
		withSystemFn: func(ctx context.Context, _, _ string) (string, error) {
			return json, nil
		},
	}
}

// testTimeouts keeps retries fast in tests.
func testTimeouts() config.ReasoningTimeouts {
	return config.ReasoningTimeouts{
		PerCallTimeout:        time.Second,
		PlanGenerationTimeout: time.Second,
		RetryBackoffBase:      time.Millisecond,
		RetryBackoffMax:       2 * time.Millisecond,
		MaxRetries:            2,
	}
}
