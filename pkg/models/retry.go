package models

// RetryDecision is the Retry Manager's verdict for one failed attempt.
// It is pure function output; the caller applies it to session state.
type RetryDecision struct {
	// ShouldRetry is true when the same agent should be tried again.
	ShouldRetry bool `json:"should_retry"`
	// RetryCount is the attempt number the decision was made for.
	RetryCount int `json:"retry_count"`
	// MaxRetries is the bound the decision was made against.
	MaxRetries int `json:"max_retries"`
	// DelayMs is the recommended backoff delay, set iff ShouldRetry.
	DelayMs int `json:"delay_ms,omitempty"`
	// Reason explains the decision in human-readable form.
	Reason string `json:"reason"`
	// AlternativeAgent is the suggested substitute, when one exists.
	AlternativeAgent string `json:"alternative_agent,omitempty"`
}
