package registry

import (
	"database/sql"
	"fmt"
	"time"
)

// TaskRecord is one registered task.
type TaskRecord struct {
	TaskID     string `json:"task_id"`
	Agent      string `json:"agent"`
	Confidence int    `json:"confidence"`
	// PipelineID is set when the task belongs to a pipeline execution.
	PipelineID string `json:"pipeline_id,omitempty"`
	// StepIndex is the task's position in its pipeline, -1 otherwise.
	StepIndex    int       `json:"step_index"`
	RegisteredAt time.Time `json:"registered_at"`
}

// RegisterTask records a task. Re-registering the same task ID
// replaces the previous record. stepIndex is ignored unless pipelineID
// is set.
func (db *DB) RegisterTask(taskID, agent string, confidence int, pipelineID string, stepIndex int) error {
	if taskID == "" || agent == "" {
		return fmt.Errorf("register task: task id and agent are required")
	}

	var step any
	if pipelineID != "" && stepIndex >= 0 {
		step = stepIndex
	}

	_, err := db.Exec(`
		INSERT OR REPLACE INTO tasks (task_id, agent, confidence, pipeline_id, step_index, registered_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, taskID, agent, confidence, nullString(pipelineID), step, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("register task: %w", err)
	}
	return nil
}

// Task retrieves a task by ID.
func (db *DB) Task(taskID string) (*TaskRecord, error) {
	row := db.QueryRow(`
		SELECT task_id, agent, confidence, pipeline_id, step_index, registered_at
		FROM tasks WHERE task_id = ?
	`, taskID)
	return scanTask(row)
}

// TaskByAgent returns the most recently registered task for an agent.
func (db *DB) TaskByAgent(agent string) (*TaskRecord, error) {
	row := db.QueryRow(`
		SELECT task_id, agent, confidence, pipeline_id, step_index, registered_at
		FROM tasks WHERE agent = ?
		ORDER BY registered_at DESC, rowid DESC LIMIT 1
	`, agent)
	return scanTask(row)
}

// TasksByPipeline lists a pipeline's tasks in step order.
func (db *DB) TasksByPipeline(pipelineID string) ([]TaskRecord, error) {
	rows, err := db.Query(`
		SELECT task_id, agent, confidence, pipeline_id, step_index, registered_at
		FROM tasks WHERE pipeline_id = ? ORDER BY step_index
	`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list pipeline tasks: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

// PurgeOldTasks deletes tasks registered before the cutoff.
// Returns the number of tasks deleted.
func (db *DB) PurgeOldTasks(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.Exec("DELETE FROM tasks WHERE registered_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old tasks: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row *sql.Row) (*TaskRecord, error) {
	t, err := scanTaskFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func scanTaskRow(rows *sql.Rows) (*TaskRecord, error) {
	t, err := scanTaskFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return t, nil
}

func scanTaskFrom(s rowScanner) (*TaskRecord, error) {
	var t TaskRecord
	var pipelineID sql.NullString
	var stepIndex sql.NullInt64
	var registeredAt string
	if err := s.Scan(&t.TaskID, &t.Agent, &t.Confidence, &pipelineID, &stepIndex, &registeredAt); err != nil {
		return nil, err
	}

	if pipelineID.Valid {
		t.PipelineID = pipelineID.String
	}
	t.StepIndex = -1
	if stepIndex.Valid {
		t.StepIndex = int(stepIndex.Int64)
	}
	t.RegisteredAt, _ = parseTime(registeredAt)
	return &t, nil
}
