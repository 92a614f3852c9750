package orchestrator

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/usherhq/usher/internal/calibration"
	"github.com/usherhq/usher/internal/logging"
	"github.com/usherhq/usher/internal/registry"
	"github.com/usherhq/usher/internal/session"
	"github.com/usherhq/usher/pkg/models"
)

type registeredTask struct {
	taskID     string
	agent      string
	confidence int
	pipelineID string
	stepIndex  int
}

type stubAttempt struct {
	id            int64
	agent         string
	attemptNumber int
	taskID        string
	outcome       models.AttemptOutcome
	errorText     string
	completed     bool
}

// stubRegistry records registry calls in memory.
type stubRegistry struct {
	tasks    []registeredTask
	attempts []*stubAttempt
	nextID   int64
}

func (r *stubRegistry) RegisterTask(taskID, agent string, confidence int, pipelineID string, stepIndex int) error {
	r.tasks = append(r.tasks, registeredTask{taskID, agent, confidence, pipelineID, stepIndex})
	return nil
}

func (r *stubRegistry) TaskByAgent(agent string) (*registry.TaskRecord, error) {
	for i := len(r.tasks) - 1; i >= 0; i-- {
		if r.tasks[i].agent == agent {
			return &registry.TaskRecord{
				TaskID:     r.tasks[i].taskID,
				Agent:      r.tasks[i].agent,
				Confidence: r.tasks[i].confidence,
				PipelineID: r.tasks[i].pipelineID,
				StepIndex:  r.tasks[i].stepIndex,
			}, nil
		}
	}
	return nil, nil
}

func (r *stubRegistry) StartAttempt(agent string, attemptNumber int, taskID string) (int64, error) {
	r.nextID++
	r.attempts = append(r.attempts, &stubAttempt{
		id:            r.nextID,
		agent:         agent,
		attemptNumber: attemptNumber,
		taskID:        taskID,
	})
	return r.nextID, nil
}

func (r *stubRegistry) CompleteAttempt(id int64, outcome models.AttemptOutcome, errorText string) error {
	for _, a := range r.attempts {
		if a.id == id {
			if a.completed {
				return fmt.Errorf("attempt %d already completed", id)
			}
			a.outcome = outcome
			a.errorText = errorText
			a.completed = true
			return nil
		}
	}
	return fmt.Errorf("unknown attempt %d", id)
}

func (r *stubRegistry) OpenAttempt(agent string) (int64, *models.ExecutionAttempt, error) {
	for i := len(r.attempts) - 1; i >= 0; i-- {
		a := r.attempts[i]
		if a.agent == agent && !a.completed {
			return a.id, &models.ExecutionAttempt{
				Agent:         a.agent,
				AttemptNumber: a.attemptNumber,
				TaskID:        a.taskID,
			}, nil
		}
	}
	return 0, nil, nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *stubRegistry, *calibration.Log) {
	t.Helper()
	dir := t.TempDir()
	store := session.NewStore(filepath.Join(dir, "sessions"), logging.NopLogger())
	calLog := calibration.NewLog(filepath.Join(dir, "calibration.jsonl"))
	reg := &stubRegistry{}

	o := New(Config{
		SessionID:   "sess-test",
		Sessions:    store,
		Calibration: calibration.NewEngine(calLog),
		Registry:    reg,
	})
	return o, reg, calLog
}

func TestHandlePrompt_ClassifiesAndPersists(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	decision, err := o.HandlePrompt("Write unit tests for the login handler")
	if err != nil {
		t.Fatalf("HandlePrompt failed: %v", err)
	}

	if decision.Pipeline != nil {
		t.Error("expected no pipeline for a plain prompt")
	}
	if decision.Classification == nil {
		t.Fatal("expected a classification")
	}
	top := decision.Classification.TopAgent()
	if top == nil || top.Name != "test-generator" {
		t.Fatalf("top agent = %+v, want test-generator", top)
	}

	st := o.State()
	if st.LastClassification == nil {
		t.Error("classification was not cached in session state")
	}
	if len(st.PromptHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(st.PromptHistory))
	}
}

func TestHandlePrompt_DetectsPipelineAndRegistersTasks(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t)

	decision, err := o.HandlePrompt("Build a full-stack feature for comments system")
	if err != nil {
		t.Fatalf("HandlePrompt failed: %v", err)
	}

	if decision.Pipeline == nil {
		t.Fatal("expected a pipeline execution")
	}
	if decision.Classification != nil {
		t.Error("pipeline match should skip classification")
	}
	if decision.Pipeline.Type != "full-stack-feature" {
		t.Errorf("pipeline type = %q, want full-stack-feature", decision.Pipeline.Type)
	}

	st := o.State()
	if st.ActivePipeline == nil || !st.ActivePipeline.Active() {
		t.Fatal("active pipeline was not persisted")
	}

	if len(reg.tasks) != len(decision.Pipeline.Tasks) {
		t.Fatalf("registered %d tasks, want %d", len(reg.tasks), len(decision.Pipeline.Tasks))
	}
	for i, task := range reg.tasks {
		if task.pipelineID != decision.Pipeline.PipelineID {
			t.Errorf("task %d pipeline = %q, want %q", i, task.pipelineID, decision.Pipeline.PipelineID)
		}
		if task.stepIndex != i {
			t.Errorf("task %d step index = %d, want %d", i, task.stepIndex, i)
		}
	}
}

func TestHandlePrompt_ActivePipelineSuppressesDetection(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t)

	if _, err := o.HandlePrompt("Build a full-stack feature for comments system"); err != nil {
		t.Fatalf("HandlePrompt failed: %v", err)
	}
	registered := len(reg.tasks)

	decision, err := o.HandlePrompt("Also build the end-to-end feature for replies")
	if err != nil {
		t.Fatalf("second HandlePrompt failed: %v", err)
	}

	if decision.Pipeline != nil {
		t.Error("running pipeline should suppress new detection")
	}
	if decision.Classification == nil {
		t.Error("suppressed detection should fall through to classification")
	}
	if len(reg.tasks) != registered {
		t.Errorf("registered tasks grew from %d to %d", registered, len(reg.tasks))
	}
}

func TestHandlePrompt_CompletedPipelineAllowsNewDetection(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	first, err := o.HandlePrompt("Build a full-stack feature for comments system")
	if err != nil {
		t.Fatalf("HandlePrompt failed: %v", err)
	}
	for _, taskID := range first.Pipeline.TaskIDs {
		if _, err := o.CompletePipelineTask(taskID); err != nil {
			t.Fatalf("CompletePipelineTask(%s) failed: %v", taskID, err)
		}
	}

	second, err := o.HandlePrompt("Build a full-stack feature for notifications")
	if err != nil {
		t.Fatalf("HandlePrompt failed: %v", err)
	}
	if second.Pipeline == nil {
		t.Fatal("completed pipeline should not block new detection")
	}
	if second.Pipeline.PipelineID == first.Pipeline.PipelineID {
		t.Error("new detection should create a fresh execution")
	}
}

func TestHandlePrompt_NoisePrompt(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	decision, err := o.HandlePrompt("thanks!")
	if err != nil {
		t.Fatalf("HandlePrompt failed: %v", err)
	}
	if decision.Classification == nil {
		t.Fatal("expected an empty classification, not nil")
	}
	if len(decision.Classification.Agents) != 0 {
		t.Errorf("noise produced %d agent candidates", len(decision.Classification.Agents))
	}
}

func TestTrackDispatch_GeneratesTaskID(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t)

	taskID, err := o.TrackDispatch("test-generator", 90, "")
	if err != nil {
		t.Fatalf("TrackDispatch failed: %v", err)
	}
	if !strings.HasPrefix(taskID, "task-") {
		t.Errorf("task ID = %q, want task- prefix", taskID)
	}

	entry := o.State().FindAgent("test-generator")
	if entry == nil {
		t.Fatal("dispatch was not tracked in session state")
	}
	if entry.TaskID != taskID {
		t.Errorf("tracked task = %q, want %q", entry.TaskID, taskID)
	}

	if len(reg.tasks) != 1 {
		t.Fatalf("registered %d tasks, want 1", len(reg.tasks))
	}
	if reg.tasks[0].pipelineID != "" || reg.tasks[0].stepIndex != -1 {
		t.Errorf("standalone task registered as %+v", reg.tasks[0])
	}
	if len(reg.attempts) != 1 {
		t.Fatalf("started %d attempts, want 1", len(reg.attempts))
	}
	if reg.attempts[0].attemptNumber != 1 {
		t.Errorf("attempt number = %d, want 1", reg.attempts[0].attemptNumber)
	}
}

func TestTrackDispatch_PipelineTaskNotReRegistered(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t)

	decision, err := o.HandlePrompt("Build a full-stack feature for comments system")
	if err != nil {
		t.Fatalf("HandlePrompt failed: %v", err)
	}
	registered := len(reg.tasks)

	first := decision.Pipeline.Tasks[0]
	if _, err := o.TrackDispatch(first.Agent, 0, first.TaskID); err != nil {
		t.Fatalf("TrackDispatch failed: %v", err)
	}

	if len(reg.tasks) != registered {
		t.Errorf("pipeline task was re-registered: %d -> %d", registered, len(reg.tasks))
	}
	if len(reg.attempts) != 1 {
		t.Errorf("started %d attempts, want 1", len(reg.attempts))
	}
}

func TestTrackDispatch_ResolvesPipelineTask(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t)

	decision, err := o.HandlePrompt("Build a full-stack feature for comments system")
	if err != nil {
		t.Fatalf("HandlePrompt failed: %v", err)
	}
	first := decision.Pipeline.Tasks[0]
	registered := len(reg.tasks)

	taskID, err := o.TrackDispatch(first.Agent, 80, "")
	if err != nil {
		t.Fatalf("TrackDispatch failed: %v", err)
	}

	if taskID != first.TaskID {
		t.Errorf("resolved task = %q, want pipeline task %q", taskID, first.TaskID)
	}
	if len(reg.tasks) != registered {
		t.Errorf("resolved task was re-registered: %d -> %d", registered, len(reg.tasks))
	}
}

func TestTrackDispatch_ReusesRegisteredTask(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t)

	reg.tasks = append(reg.tasks, registeredTask{
		taskID: "task-preexist", agent: "docs-writer", confidence: 60, stepIndex: -1,
	})

	taskID, err := o.TrackDispatch("docs-writer", 60, "")
	if err != nil {
		t.Fatalf("TrackDispatch failed: %v", err)
	}

	if taskID != "task-preexist" {
		t.Errorf("task ID = %q, want task-preexist", taskID)
	}
	if len(reg.tasks) != 1 {
		t.Errorf("registered %d tasks, want 1", len(reg.tasks))
	}
	if len(reg.attempts) != 1 || reg.attempts[0].taskID != "task-preexist" {
		t.Fatalf("attempt not opened against the registered task: %+v", reg.attempts)
	}
}

func TestHandleOutcome_SuccessFlow(t *testing.T) {
	o, reg, calLog := newTestOrchestrator(t)

	if _, err := o.HandlePrompt("Write unit tests for the login handler"); err != nil {
		t.Fatalf("HandlePrompt failed: %v", err)
	}
	if _, err := o.TrackDispatch("test-generator", 70, ""); err != nil {
		t.Fatalf("TrackDispatch failed: %v", err)
	}

	durationMs := int64(1500)
	if err := o.HandleOutcome("test-generator", models.OutcomeSuccess, "", &durationMs); err != nil {
		t.Fatalf("HandleOutcome failed: %v", err)
	}

	entry := o.State().FindAgent("test-generator")
	if entry == nil || entry.Status != models.AgentCompleted {
		t.Errorf("agent entry = %+v, want completed", entry)
	}

	if !reg.attempts[0].completed {
		t.Error("open attempt was not completed")
	}
	if reg.attempts[0].outcome != models.OutcomeSuccess {
		t.Errorf("attempt outcome = %q, want success", reg.attempts[0].outcome)
	}

	records, err := calLog.Records()
	if err != nil {
		t.Fatalf("reading calibration log: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d calibration records, want 1", len(records))
	}
	rec := records[0]
	if rec.Agent != "test-generator" || rec.Outcome != models.OutcomeSuccess {
		t.Errorf("record = %+v, want test-generator success", rec)
	}
	if rec.Confidence != 70 {
		t.Errorf("record confidence = %d, want the dispatch confidence 70", rec.Confidence)
	}
	found := false
	for _, kw := range rec.Keywords {
		if kw == "tests" {
			found = true
		}
	}
	if !found {
		t.Errorf("record keywords = %v, want the matched keyword \"tests\"", rec.Keywords)
	}
}

func TestHandleOutcome_FailureMarksFailed(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t)

	if _, err := o.TrackDispatch("debug-specialist", 60, ""); err != nil {
		t.Fatalf("TrackDispatch failed: %v", err)
	}
	if err := o.HandleOutcome("debug-specialist", models.OutcomeFailure, "exit status 1", nil); err != nil {
		t.Fatalf("HandleOutcome failed: %v", err)
	}

	entry := o.State().FindAgent("debug-specialist")
	if entry == nil || entry.Status != models.AgentFailed {
		t.Errorf("agent entry = %+v, want failed", entry)
	}
	if reg.attempts[0].errorText != "exit status 1" {
		t.Errorf("attempt error = %q, want the failure text", reg.attempts[0].errorText)
	}
}

func TestHandleOutcome_RejectsInvalidInput(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if err := o.HandleOutcome("", models.OutcomeSuccess, "", nil); err == nil {
		t.Error("expected error for missing agent")
	}
	if err := o.HandleOutcome("test-generator", models.AttemptOutcome("shrug"), "", nil); err == nil {
		t.Error("expected error for unknown outcome")
	}
}

func TestDecideRetry_BackoffProgressionAndExhaustion(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if _, err := o.TrackDispatch("test-generator", 90, ""); err != nil {
		t.Fatalf("TrackDispatch failed: %v", err)
	}

	first, err := o.DecideRetry("test-generator", "network timeout", 0)
	if err != nil {
		t.Fatalf("DecideRetry failed: %v", err)
	}
	if !first.ShouldRetry {
		t.Fatalf("first decision should retry, got %+v", first)
	}
	if first.RetryCount != 1 {
		t.Errorf("first attempt number = %d, want 1", first.RetryCount)
	}
	if first.DelayMs < 1000 || first.DelayMs > 1100 {
		t.Errorf("first delay = %dms, want [1000, 1100]", first.DelayMs)
	}
	if entry := o.State().FindAgent("test-generator"); entry.Status != models.AgentRetrying || entry.RetryCount != 1 {
		t.Errorf("entry after first decision = %+v, want retrying with count 1", entry)
	}

	second, err := o.DecideRetry("test-generator", "network timeout", 0)
	if err != nil {
		t.Fatalf("DecideRetry failed: %v", err)
	}
	if !second.ShouldRetry || second.RetryCount != 2 {
		t.Fatalf("second decision = %+v, want retry at attempt 2", second)
	}
	if second.DelayMs < 2000 || second.DelayMs > 2200 {
		t.Errorf("second delay = %dms, want [2000, 2200]", second.DelayMs)
	}

	third, err := o.DecideRetry("test-generator", "network timeout", 0)
	if err != nil {
		t.Fatalf("DecideRetry failed: %v", err)
	}
	if third.ShouldRetry {
		t.Fatalf("third decision = %+v, want exhaustion", third)
	}
	if third.Reason != "Max retries exceeded (attempt 3/3)" {
		t.Errorf("reason = %q, want max retries exceeded", third.Reason)
	}
	if entry := o.State().FindAgent("test-generator"); entry.Status != models.AgentFailed {
		t.Errorf("entry after exhaustion = %+v, want failed", entry)
	}
}

func TestDecideRetry_NullErrorStillRetries(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if _, err := o.TrackDispatch("docs-writer", 50, ""); err != nil {
		t.Fatalf("TrackDispatch failed: %v", err)
	}
	decision, err := o.DecideRetry("docs-writer", "null", 0)
	if err != nil {
		t.Fatalf("DecideRetry failed: %v", err)
	}
	if !decision.ShouldRetry {
		t.Errorf("decision = %+v, serialized null should not match error markers", decision)
	}
}

func TestDecideRetry_NonRetryableRoutesToFallback(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if _, err := o.TrackDispatch("test-generator", 90, ""); err != nil {
		t.Fatalf("TrackDispatch failed: %v", err)
	}
	decision, err := o.DecideRetry("test-generator", "permission denied: /etc/shadow", 0)
	if err != nil {
		t.Fatalf("DecideRetry failed: %v", err)
	}

	if decision.ShouldRetry {
		t.Errorf("decision = %+v, want no retry", decision)
	}
	if decision.AlternativeAgent != "code-reviewer" {
		t.Errorf("alternative = %q, want the first untried fallback code-reviewer", decision.AlternativeAgent)
	}
	if entry := o.State().FindAgent("test-generator"); entry.Status != models.AgentFailed {
		t.Errorf("entry = %+v, want failed", entry)
	}
}

func TestCompletePipelineTask_CompletesExecution(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	decision, err := o.HandlePrompt("Build a full-stack feature for comments system")
	if err != nil {
		t.Fatalf("HandlePrompt failed: %v", err)
	}

	var exec *models.PipelineExecution
	for _, taskID := range decision.Pipeline.TaskIDs {
		exec, err = o.CompletePipelineTask(taskID)
		if err != nil {
			t.Fatalf("CompletePipelineTask(%s) failed: %v", taskID, err)
		}
	}
	if exec.Status != models.PipelineCompleted {
		t.Errorf("status = %q, want completed", exec.Status)
	}

	st := o.State()
	if st.ActivePipeline.Status != models.PipelineCompleted {
		t.Errorf("persisted status = %q, want completed", st.ActivePipeline.Status)
	}
}

func TestCompletePipelineTask_NoActivePipeline(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if _, err := o.CompletePipelineTask("task-nope"); err == nil {
		t.Error("expected error without an active pipeline")
	}
}

func TestAbortPipeline(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if _, err := o.HandlePrompt("Build a full-stack feature for comments system"); err != nil {
		t.Fatalf("HandlePrompt failed: %v", err)
	}

	exec, err := o.AbortPipeline()
	if err != nil {
		t.Fatalf("AbortPipeline failed: %v", err)
	}
	if exec.Status != models.PipelineAborted {
		t.Errorf("status = %q, want aborted", exec.Status)
	}

	if _, err := o.AbortPipeline(); err == nil {
		t.Error("expected error aborting an already-aborted pipeline")
	}
}

func TestClearSession(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if _, err := o.HandlePrompt("Write unit tests for the login handler"); err != nil {
		t.Fatalf("HandlePrompt failed: %v", err)
	}
	if _, err := o.TrackDispatch("test-generator", 80, ""); err != nil {
		t.Fatalf("TrackDispatch failed: %v", err)
	}

	if err := o.ClearSession(); err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}

	st := o.State()
	if st.SessionID != "sess-test" {
		t.Errorf("session ID = %q, want sess-test", st.SessionID)
	}
	if len(st.ActiveAgents) != 0 || len(st.PromptHistory) != 0 || st.LastClassification != nil {
		t.Errorf("state not cleared: %+v", st)
	}
}
