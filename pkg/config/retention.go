package config

import "time"

// RetentionConfig controls data retention and cleanup behavior.
type RetentionConfig struct {
	// RunRetentionDays is how many days to keep terminal justify_runs rows
	// (completed, failed, timed_out, cancelled) before purging them.
	RunRetentionDays int `yaml:"run_retention_days"`

	// StaleClarificationTTL is the maximum time a justification may sit
	// with clarification_pending=true and unanswered before the cleanup
	// loop auto-clears the flag, so an abandoned clarification request
	// doesn't block get_pending_clarifications forever.
	StaleClarificationTTL time.Duration `yaml:"stale_clarification_ttl"`

	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		RunRetentionDays:      365,
		StaleClarificationTTL: 30 * 24 * time.Hour,
		CleanupInterval:       12 * time.Hour,
	}
}
