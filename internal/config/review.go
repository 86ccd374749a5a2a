package config

import "time"

// ReviewConfig holds session and checkpoint knobs.
type ReviewConfig struct {
	// SessionTimeout is how long an idle planning session survives.
	SessionTimeout time.Duration `yaml:"session_timeout"`

	// SweepInterval is how often idle sessions are evicted.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultReviewConfig returns the documented defaults.
func DefaultReviewConfig() ReviewConfig {
	return ReviewConfig{
		SessionTimeout: 30 * time.Minute,
		SweepInterval:  time.Minute,
	}
}
