package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/usherhq/usher/pkg/models"
)

// Coordinator matches prompts against pipeline triggers and builds
// executions from the matched definition.
type Coordinator struct {
	definitions []models.PipelineDefinition
}

// New creates a coordinator over the built-in catalog merged with the
// given definitions: a definition whose type matches a built-in replaces
// it, new types are appended after the built-ins.
func New(definitions []models.PipelineDefinition) *Coordinator {
	merged := DefaultDefinitions()
	for _, def := range definitions {
		if def.Type == "" {
			continue
		}
		replaced := false
		for i := range merged {
			if merged[i].Type == def.Type {
				merged[i] = def
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, def)
		}
	}
	return &Coordinator{definitions: merged}
}

// Definitions returns the coordinator's catalog in match order.
func (c *Coordinator) Definitions() []models.PipelineDefinition {
	return c.definitions
}

// Detect returns the first definition whose trigger appears in the
// prompt, or nil. Matching is case-insensitive; definition order
// decides ties.
func (c *Coordinator) Detect(prompt string) *models.PipelineDefinition {
	lowered := strings.ToLower(prompt)
	if strings.TrimSpace(lowered) == "" {
		return nil
	}
	for i := range c.definitions {
		for _, trigger := range c.definitions[i].Triggers {
			if strings.Contains(lowered, strings.ToLower(trigger)) {
				return &c.definitions[i]
			}
		}
	}
	return nil
}

// CreateExecution materializes a definition into a running execution:
// one task per step with a fresh ID, the prompt substituted into each
// template, and task i blocked by task i-1.
func (c *Coordinator) CreateExecution(def *models.PipelineDefinition, prompt string) (*models.PipelineExecution, error) {
	if def == nil || len(def.Steps) == 0 {
		return nil, fmt.Errorf("create execution: empty pipeline definition")
	}

	exec := &models.PipelineExecution{
		PipelineID: "pl-" + uuid.New().String()[:8],
		Type:       def.Type,
		Status:     models.PipelineRunning,
		StartedAt:  time.Now().UTC(),
	}

	prevID := ""
	for _, step := range def.Steps {
		task := models.PipelineTask{
			TaskID:      "task-" + uuid.New().String()[:8],
			Agent:       step.Agent,
			Description: strings.ReplaceAll(step.Template, "{prompt}", prompt),
			BlockedBy:   prevID,
			Status:      models.PipelineTaskPending,
		}
		exec.Tasks = append(exec.Tasks, task)
		exec.TaskIDs = append(exec.TaskIDs, task.TaskID)
		prevID = task.TaskID
	}
	return exec, nil
}

// CompleteTask marks one task done. When the last pending task
// completes, the execution itself completes.
func (c *Coordinator) CompleteTask(exec *models.PipelineExecution, taskID string) error {
	if !exec.Active() {
		return fmt.Errorf("complete task: pipeline is not running")
	}

	task := exec.TaskByID(taskID)
	if task == nil {
		return fmt.Errorf("complete task: unknown task %q", taskID)
	}
	if task.Status == models.PipelineTaskDone {
		return nil
	}

	now := time.Now().UTC()
	task.Status = models.PipelineTaskDone
	task.CompletedAt = &now

	for i := range exec.Tasks {
		if exec.Tasks[i].Status != models.PipelineTaskDone {
			return nil
		}
	}
	exec.Status = models.PipelineCompleted
	exec.CompletedAt = &now
	return nil
}

// Abort stops a running execution, leaving unfinished tasks pending.
func (c *Coordinator) Abort(exec *models.PipelineExecution) error {
	if !exec.Active() {
		return fmt.Errorf("abort: pipeline is not running")
	}
	now := time.Now().UTC()
	exec.Status = models.PipelineAborted
	exec.CompletedAt = &now
	return nil
}

// NextTask returns the first pending task whose blocker (if any) is
// done, or nil when nothing is dispatchable.
func (c *Coordinator) NextTask(exec *models.PipelineExecution) *models.PipelineTask {
	if !exec.Active() {
		return nil
	}
	for i := range exec.Tasks {
		task := &exec.Tasks[i]
		if task.Status != models.PipelineTaskPending {
			continue
		}
		if task.BlockedBy == "" {
			return task
		}
		if blocker := exec.TaskByID(task.BlockedBy); blocker != nil && blocker.Status == models.PipelineTaskDone {
			return task
		}
		return nil
	}
	return nil
}
