package models

import "time"

// PipelineStatus represents the state of a pipeline execution.
type PipelineStatus string

const (
	// PipelineRunning indicates the task chain is in flight.
	PipelineRunning PipelineStatus = "running"
	// PipelineCompleted indicates every task finished.
	PipelineCompleted PipelineStatus = "completed"
	// PipelineAborted indicates the chain was stopped early.
	PipelineAborted PipelineStatus = "aborted"
)

// Valid returns true if the status is a known value.
func (s PipelineStatus) Valid() bool {
	switch s {
	case PipelineRunning, PipelineCompleted, PipelineAborted:
		return true
	default:
		return false
	}
}

// PipelineTaskStatus represents the state of one task in a chain.
type PipelineTaskStatus string

const (
	// PipelineTaskPending indicates the task has not completed.
	PipelineTaskPending PipelineTaskStatus = "pending"
	// PipelineTaskDone indicates the task completed.
	PipelineTaskDone PipelineTaskStatus = "done"
)

// PipelineStep is one templated step of a pipeline definition.
type PipelineStep struct {
	// Agent is the target agent for the step.
	Agent string `json:"agent" yaml:"agent"`
	// Template is the task description with a {prompt} placeholder.
	Template string `json:"template" yaml:"template"`
}

// PipelineDefinition is a static trigger-to-template mapping. Definitions
// are matched in order; the first trigger hit wins.
type PipelineDefinition struct {
	// Type names the pipeline, e.g. "full-stack-feature".
	Type string `json:"type" yaml:"type"`
	// Triggers are lowercase substrings that activate the pipeline.
	Triggers []string `json:"triggers" yaml:"triggers"`
	// Steps is the ordered agent chain.
	Steps []PipelineStep `json:"steps" yaml:"steps"`
}

// PipelineTask is one materialized task in an execution.
type PipelineTask struct {
	// TaskID is the fresh identifier assigned at materialization.
	TaskID string `json:"task_id"`
	// Agent is the target agent.
	Agent string `json:"agent"`
	// Description is the template with the prompt substituted in.
	Description string `json:"description"`
	// BlockedBy is the previous task's ID; empty for the first task.
	BlockedBy string `json:"blocked_by,omitempty"`
	// Status is pending until the task completes.
	Status PipelineTaskStatus `json:"status"`
	// CompletedAt is when the task completed, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PipelineExecution is one instantiated pipeline run. Tasks form a linear
// dependency chain; there is no fan-out.
type PipelineExecution struct {
	// PipelineID is the fresh identifier assigned at materialization.
	PipelineID string `json:"pipeline_id"`
	// Type is the definition type this execution was built from.
	Type string `json:"type"`
	// Status is running until completed or aborted.
	Status PipelineStatus `json:"status"`
	// TaskIDs is the ordered list of task identifiers.
	TaskIDs []string `json:"task_ids"`
	// Tasks holds the materialized tasks, parallel to TaskIDs.
	Tasks []PipelineTask `json:"tasks"`
	// StartedAt is when the execution was created.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when the execution reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Active returns true while the execution blocks new pipeline detection.
func (e *PipelineExecution) Active() bool {
	return e != nil && e.Status == PipelineRunning
}

// TaskByID returns the task with the given ID, or nil.
func (e *PipelineExecution) TaskByID(taskID string) *PipelineTask {
	if e == nil {
		return nil
	}
	for i := range e.Tasks {
		if e.Tasks[i].TaskID == taskID {
			return &e.Tasks[i]
		}
	}
	return nil
}

// PendingTaskFor returns the first pending task assigned to the agent,
// or nil. Only running executions are consulted.
func (e *PipelineExecution) PendingTaskFor(agent string) *PipelineTask {
	if !e.Active() {
		return nil
	}
	for i := range e.Tasks {
		if e.Tasks[i].Agent == agent && e.Tasks[i].Status == PipelineTaskPending {
			return &e.Tasks[i]
		}
	}
	return nil
}
