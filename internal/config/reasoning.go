package config

import "time"

// ReasoningConfig selects and configures the reasoning provider.
type ReasoningConfig struct {
	Provider string `yaml:"provider"` // gemini, openai
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`

	Timeouts ReasoningTimeouts `yaml:"timeouts"`
}

// ReasoningTimeouts centralizes timeout and retry configuration for
// reasoning calls. The SHORTEST timeout in the chain wins: a generous
// HTTP client timeout still loses to a tight per-call context.
type ReasoningTimeouts struct {
	// PerCallTimeout bounds one simple structured call (dialogue,
	// execution categorization, selection, assignment).
	PerCallTimeout time.Duration `yaml:"per_call_timeout"`

	// PlanGenerationTimeout bounds the long-form final plan document
	// call, which carries a much larger token budget.
	PlanGenerationTimeout time.Duration `yaml:"plan_generation_timeout"`

	// RetryBackoffBase is the base duration for exponential backoff.
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base"`

	// RetryBackoffMax caps the backoff delay.
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max"`

	// MaxRetries is the attempt budget for transient failures.
	MaxRetries int `yaml:"max_retries"`

	// RateLimitDelay is the minimum gap between consecutive calls.
	RateLimitDelay time.Duration `yaml:"rate_limit_delay"`
}

// DefaultReasoningConfig returns provider defaults.
func DefaultReasoningConfig() ReasoningConfig {
	return ReasoningConfig{
		Provider: "gemini",
		Model:    "gemini-2.5-flash",
		Timeouts: DefaultReasoningTimeouts(),
	}
}

// DefaultReasoningTimeouts matches the documented budgets: 25s for
// simple calls, 5 minutes for plan generation, 3 attempts with 1s
// base backoff capped at 10s.
func DefaultReasoningTimeouts() ReasoningTimeouts {
	return ReasoningTimeouts{
		PerCallTimeout:        25 * time.Second,
		PlanGenerationTimeout: 5 * time.Minute,
		RetryBackoffBase:      time.Second,
		RetryBackoffMax:       10 * time.Second,
		MaxRetries:            3,
		RateLimitDelay:        600 * time.Millisecond,
	}
}
