package registry

import (
	"testing"
	"time"
)

func TestRegisterTask_AndLookup(t *testing.T) {
	db := setupTestDB(t)

	if err := db.RegisterTask("task-11111111", "backend-system-architect", 92, "", -1); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	task, err := db.Task("task-11111111")
	if err != nil {
		t.Fatalf("Task failed: %v", err)
	}
	if task == nil {
		t.Fatal("expected a task record")
	}
	if task.Agent != "backend-system-architect" || task.Confidence != 92 {
		t.Errorf("task = %+v, want registered fields", task)
	}
	if task.PipelineID != "" || task.StepIndex != -1 {
		t.Errorf("standalone task has pipeline fields set: %+v", task)
	}
	if task.RegisteredAt.IsZero() {
		t.Error("RegisteredAt should be stamped")
	}
}

func TestRegisterTask_MissingFields(t *testing.T) {
	db := setupTestDB(t)

	if err := db.RegisterTask("", "agent", 50, "", -1); err == nil {
		t.Error("expected error for empty task id")
	}
	if err := db.RegisterTask("task-1", "", 50, "", -1); err == nil {
		t.Error("expected error for empty agent")
	}
}

func TestRegisterTask_ReplacesSameID(t *testing.T) {
	db := setupTestDB(t)

	if err := db.RegisterTask("task-22222222", "test-generator", 70, "", -1); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}
	if err := db.RegisterTask("task-22222222", "code-reviewer", 55, "", -1); err != nil {
		t.Fatalf("re-register failed: %v", err)
	}

	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM tasks WHERE task_id = ?", "task-22222222")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1 after replace", count)
	}

	task, err := db.Task("task-22222222")
	if err != nil {
		t.Fatalf("Task failed: %v", err)
	}
	if task.Agent != "code-reviewer" {
		t.Errorf("agent = %q, want the replacing code-reviewer", task.Agent)
	}
}

func TestTaskByAgent_ReturnsMostRecent(t *testing.T) {
	db := setupTestDB(t)

	if err := db.RegisterTask("task-aaaa0001", "devops-engineer", 60, "", -1); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}
	if err := db.RegisterTask("task-aaaa0002", "devops-engineer", 75, "", -1); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	task, err := db.TaskByAgent("devops-engineer")
	if err != nil {
		t.Fatalf("TaskByAgent failed: %v", err)
	}
	if task == nil {
		t.Fatal("expected a task record")
	}
	if task.TaskID != "task-aaaa0002" {
		t.Errorf("task id = %q, want the later task-aaaa0002", task.TaskID)
	}
}

func TestTaskByAgent_AbsentIsNilNil(t *testing.T) {
	db := setupTestDB(t)

	task, err := db.TaskByAgent("never-dispatched")
	if err != nil {
		t.Fatalf("TaskByAgent failed: %v", err)
	}
	if task != nil {
		t.Errorf("task = %+v, want nil for unknown agent", task)
	}
}

func TestTasksByPipeline_StepOrder(t *testing.T) {
	db := setupTestDB(t)

	// Registered out of step order on purpose.
	steps := []struct {
		taskID string
		agent  string
		step   int
	}{
		{"task-p0000003", "test-generator", 2},
		{"task-p0000001", "backend-system-architect", 0},
		{"task-p0000002", "frontend-ui-developer", 1},
	}
	for _, s := range steps {
		if err := db.RegisterTask(s.taskID, s.agent, 80, "pl-feature1", s.step); err != nil {
			t.Fatalf("RegisterTask failed: %v", err)
		}
	}

	tasks, err := db.TasksByPipeline("pl-feature1")
	if err != nil {
		t.Fatalf("TasksByPipeline failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	for i, task := range tasks {
		if task.StepIndex != i {
			t.Errorf("task %d has step index %d", i, task.StepIndex)
		}
	}
	if tasks[0].Agent != "backend-system-architect" {
		t.Errorf("first step agent = %q, want backend-system-architect", tasks[0].Agent)
	}
}

func TestPurgeOldTasks(t *testing.T) {
	db := setupTestDB(t)

	old := formatTime(time.Now().Add(-48 * time.Hour))
	if _, err := db.Exec(`
		INSERT INTO tasks (task_id, agent, confidence, registered_at) VALUES (?, ?, ?, ?)
	`, "task-old00001", "docs-writer", 40, old); err != nil {
		t.Fatalf("seed old task: %v", err)
	}
	if err := db.RegisterTask("task-new00001", "docs-writer", 45, "", -1); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	purged, err := db.PurgeOldTasks(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldTasks failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	task, err := db.Task("task-new00001")
	if err != nil {
		t.Fatalf("Task failed: %v", err)
	}
	if task == nil {
		t.Error("recent task should survive the purge")
	}
}
