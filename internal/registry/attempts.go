package registry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/usherhq/usher/pkg/models"
)

// StartAttempt records the beginning of one execution attempt and
// returns its row ID for later completion.
func (db *DB) StartAttempt(agent string, attemptNumber int, taskID string) (int64, error) {
	if agent == "" {
		return 0, fmt.Errorf("start attempt: agent is required")
	}
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	result, err := db.Exec(`
		INSERT INTO attempts (agent, attempt_number, task_id, started_at)
		VALUES (?, ?, ?, ?)
	`, agent, attemptNumber, nullString(taskID), formatTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("start attempt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get attempt id: %w", err)
	}
	return id, nil
}

// CompleteAttempt finishes an attempt, deriving its duration from the
// stored start time. Completing an already-completed attempt is
// rejected.
func (db *DB) CompleteAttempt(id int64, outcome models.AttemptOutcome, errorText string) error {
	if !outcome.Valid() {
		return fmt.Errorf("complete attempt: unknown outcome %q", outcome)
	}

	row := db.QueryRow("SELECT started_at, completed_at FROM attempts WHERE id = ?", id)
	var startedAt string
	var completedAt sql.NullString
	if err := row.Scan(&startedAt, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("complete attempt: unknown attempt %d", id)
		}
		return fmt.Errorf("complete attempt: %w", err)
	}
	if completedAt.Valid {
		return fmt.Errorf("complete attempt: attempt %d already completed", id)
	}

	now := time.Now().UTC()
	started, err := parseTime(startedAt)
	if err != nil {
		started = now
	}
	durationMs := now.Sub(started).Milliseconds()

	_, err = db.Exec(`
		UPDATE attempts SET completed_at = ?, duration_ms = ?, outcome = ?, error = ?
		WHERE id = ?
	`, formatTime(now), durationMs, string(outcome), nullString(errorText), id)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	return nil
}

// OpenAttempt returns the row ID and record of the agent's most recent
// uncompleted attempt, or (0, nil, nil) when every attempt is closed.
func (db *DB) OpenAttempt(agent string) (int64, *models.ExecutionAttempt, error) {
	row := db.QueryRow(`
		SELECT id, agent, attempt_number, task_id, started_at, completed_at, duration_ms, outcome, error
		FROM attempts WHERE agent = ? AND completed_at IS NULL
		ORDER BY id DESC LIMIT 1
	`, agent)

	id, attempt, err := scanAttemptFrom(row)
	if err == sql.ErrNoRows {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("get open attempt: %w", err)
	}
	return id, attempt, nil
}

// AttemptCount returns how many attempts the agent has started.
func (db *DB) AttemptCount(agent string) (int, error) {
	row := db.QueryRow("SELECT COUNT(*) FROM attempts WHERE agent = ?", agent)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

// RecentAttempts lists the newest attempts first, up to limit.
func (db *DB) RecentAttempts(limit int) ([]models.ExecutionAttempt, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(`
		SELECT id, agent, attempt_number, task_id, started_at, completed_at, duration_ms, outcome, error
		FROM attempts ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.ExecutionAttempt
	for rows.Next() {
		_, a, err := scanAttemptFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, *a)
	}
	return attempts, nil
}

func scanAttemptFrom(s rowScanner) (int64, *models.ExecutionAttempt, error) {
	var id int64
	var a models.ExecutionAttempt
	var taskID, completedAt, outcome, errorText sql.NullString
	var durationMs sql.NullInt64
	var startedAt string
	if err := s.Scan(&id, &a.Agent, &a.AttemptNumber, &taskID, &startedAt, &completedAt, &durationMs, &outcome, &errorText); err != nil {
		return 0, nil, err
	}

	if taskID.Valid {
		a.TaskID = taskID.String
	}
	a.StartedAt, _ = parseTime(startedAt)
	a.CompletedAt = parseNullableTime(completedAt)
	if durationMs.Valid {
		d := durationMs.Int64
		a.DurationMs = &d
	}
	if outcome.Valid {
		a.Outcome = models.AttemptOutcome(outcome.String)
	}
	if errorText.Valid {
		a.Error = errorText.String
	}
	return id, &a, nil
}
