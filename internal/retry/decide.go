package retry

import (
	"fmt"
	"strings"

	"github.com/usherhq/usher/pkg/models"
)

// nonRetryableMarkers classify errors that repeating the same dispatch
// cannot fix. Matched case-insensitively as substrings.
var nonRetryableMarkers = []string{
	"permission denied",
	"access denied",
	"not found",
	"no such file",
	"does not exist",
	"invalid credentials",
	"invalid token",
	"invalid api key",
	"unauthorized",
	"authentication failed",
	"auth failure",
	"forbidden",
	"quota exceeded",
	"rate limit",
	"too many requests",
}

// alternativeMarkers signal that the agent itself judged the task
// outside its specialization.
var alternativeMarkers = []string{
	"not my specialization",
	"outside my scope",
	"outside my expertise",
	"better suited",
	"specialized agent required",
	"wrong agent",
}

// FallbackSource resolves the ordered fallback-agent list for an
// agent. *classifier.Index satisfies it.
type FallbackSource interface {
	Fallbacks(agent string) []string
}

// Manager turns a failed attempt into a RetryDecision. It holds no
// mutable state and performs no I/O; the caller applies the decision
// to session state and owns the actual scheduling of any retry.
type Manager struct {
	fallbacks   FallbackSource
	baseDelayMs int
}

// NewManager creates a Manager. fallbacks may be nil, in which case no
// alternative agents are ever suggested.
func NewManager(fallbacks FallbackSource, baseDelayMs int) *Manager {
	if baseDelayMs <= 0 {
		baseDelayMs = DefaultBaseDelayMs
	}
	return &Manager{fallbacks: fallbacks, baseDelayMs: baseDelayMs}
}

// Decide evaluates one failed attempt. Checks run in fixed order:
// non-retryable error classes first, then scope-mismatch markers, then
// retry-budget exhaustion; only an attempt that clears all three is
// retried, with a backoff delay.
func (m *Manager) Decide(agent string, attemptNumber int, errorText string, alreadyTried []string, maxRetries int) models.RetryDecision {
	d := models.RetryDecision{
		RetryCount: attemptNumber,
		MaxRetries: maxRetries,
	}

	if marker := matchMarker(errorText, nonRetryableMarkers); marker != "" {
		d.Reason = fmt.Sprintf("Non-retryable error: %s", marker)
		d.AlternativeAgent = m.alternative(agent, alreadyTried)
		return d
	}

	if matchMarker(errorText, alternativeMarkers) != "" {
		alt := m.alternative(agent, alreadyTried)
		if alt != "" {
			d.Reason = fmt.Sprintf("Agent reports task outside its specialization, rerouting to %s", alt)
		} else {
			d.Reason = "Agent reports task outside its specialization, no untried alternative available"
		}
		d.AlternativeAgent = alt
		return d
	}

	if attemptNumber >= maxRetries {
		d.Reason = fmt.Sprintf("Max retries exceeded (attempt %d/%d)", attemptNumber, maxRetries)
		d.AlternativeAgent = m.alternative(agent, alreadyTried)
		return d
	}

	d.ShouldRetry = true
	d.DelayMs = BackoffDelay(attemptNumber, m.baseDelayMs)
	d.Reason = fmt.Sprintf("Retrying after %dms backoff (attempt %d/%d)", d.DelayMs, attemptNumber+1, maxRetries)
	return d
}

// alternative returns the first configured fallback for agent that has
// not been tried yet, or "".
func (m *Manager) alternative(agent string, alreadyTried []string) string {
	if m.fallbacks == nil {
		return ""
	}
	tried := make(map[string]struct{}, len(alreadyTried)+1)
	tried[agent] = struct{}{}
	for _, a := range alreadyTried {
		tried[a] = struct{}{}
	}
	for _, fb := range m.fallbacks.Fallbacks(agent) {
		if _, ok := tried[fb]; !ok {
			return fb
		}
	}
	return ""
}

func matchMarker(errorText string, markers []string) string {
	if errorText == "" {
		return ""
	}
	lowered := strings.ToLower(errorText)
	for _, marker := range markers {
		if strings.Contains(lowered, marker) {
			return marker
		}
	}
	return ""
}
