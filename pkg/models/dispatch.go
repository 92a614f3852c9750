package models

import "time"

// AgentStatus represents the current state of a dispatched agent.
type AgentStatus string

const (
	// AgentInProgress indicates the agent is working.
	AgentInProgress AgentStatus = "in_progress"
	// AgentRetrying indicates the agent is between retry attempts.
	AgentRetrying AgentStatus = "retrying"
	// AgentCompleted indicates the agent finished successfully.
	AgentCompleted AgentStatus = "completed"
	// AgentFailed indicates the agent failed permanently.
	AgentFailed AgentStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentInProgress, AgentRetrying, AgentCompleted, AgentFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true when no further transitions are expected.
func (s AgentStatus) Terminal() bool {
	return s == AgentCompleted || s == AgentFailed
}

// DispatchedAgent is one active or historical dispatch within a session.
// Entries are updated in place and only removed by a session clear.
type DispatchedAgent struct {
	// Agent is the dispatched agent name.
	Agent string `json:"agent"`
	// TaskID links the dispatch to the task registry, if known.
	TaskID string `json:"task_id,omitempty"`
	// Confidence is the classifier confidence at dispatch time.
	Confidence int `json:"confidence"`
	// DispatchedAt is when the dispatch was tracked.
	DispatchedAt time.Time `json:"dispatched_at"`
	// Status is the current dispatch state.
	Status AgentStatus `json:"status"`
	// RetryCount is the number of retrying transitions so far.
	RetryCount int `json:"retry_count"`
	// MaxRetries bounds the retry attempts for this dispatch.
	MaxRetries int `json:"max_retries"`
}

// ExecutionAttempt is one try at running an agent. Created at dispatch
// time and completed exactly once.
type ExecutionAttempt struct {
	// Agent is the agent that ran.
	Agent string `json:"agent"`
	// AttemptNumber is 1-based.
	AttemptNumber int `json:"attempt_number"`
	// TaskID links the attempt to the task registry, if known.
	TaskID string `json:"task_id,omitempty"`
	// StartedAt is when the attempt began.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when the attempt finished, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// DurationMs is derived from CompletedAt - StartedAt.
	DurationMs *int64 `json:"duration_ms,omitempty"`
	// Outcome is the recorded result, once completed.
	Outcome AttemptOutcome `json:"outcome,omitempty"`
	// Error is the failure text, if any.
	Error string `json:"error,omitempty"`
}
