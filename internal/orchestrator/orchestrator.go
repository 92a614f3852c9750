// Package orchestrator wires the decision components together behind the
// hook entry points. Each method corresponds to one hook invocation:
// classify a prompt, track a dispatch, record an outcome, decide a retry.
// The orchestrator holds no state of its own; everything lives in the
// session aggregate, the calibration log, and the task registry.
package orchestrator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/usherhq/usher/internal/calibration"
	"github.com/usherhq/usher/internal/classifier"
	"github.com/usherhq/usher/internal/logging"
	"github.com/usherhq/usher/internal/pipeline"
	"github.com/usherhq/usher/internal/registry"
	"github.com/usherhq/usher/internal/retry"
	"github.com/usherhq/usher/internal/session"
	"github.com/usherhq/usher/pkg/models"
)

// TaskRegistry persists dispatched tasks and execution attempts across
// sessions. *registry.DB satisfies it. Registry writes are an audit
// trail, not decision state: failures are logged and never block a
// decision, and a nil registry disables persistence entirely.
type TaskRegistry interface {
	RegisterTask(taskID, agent string, confidence int, pipelineID string, stepIndex int) error
	TaskByAgent(agent string) (*registry.TaskRecord, error)
	StartAttempt(agent string, attemptNumber int, taskID string) (int64, error)
	CompleteAttempt(id int64, outcome models.AttemptOutcome, errorText string) error
	OpenAttempt(agent string) (int64, *models.ExecutionAttempt, error)
}

// Config contains the dependencies for an Orchestrator.
type Config struct {
	// SessionID identifies the session all operations mutate.
	SessionID string
	// Catalog supplies the signal index and pipeline definitions.
	// If nil, the built-in catalog is used.
	Catalog *classifier.Catalog
	// Sessions is the session state store.
	Sessions *session.Store
	// Calibration is the cross-session calibration engine.
	Calibration *calibration.Engine
	// Registry persists tasks and attempts. If nil, persistence is disabled.
	Registry TaskRegistry
	// Logger receives debug output. If nil, logging is disabled.
	Logger *logging.DebugLogger
	// MaxRetries bounds retry attempts per dispatch. If 0, the default is used.
	MaxRetries int
	// BaseDelayMs is the first backoff delay. If 0, the default is used.
	BaseDelayMs int
}

// Orchestrator coordinates one session's decision flow:
// classifier -> session state -> retry manager -> registry.
type Orchestrator struct {
	classifier  *classifier.Classifier
	pipelines   *pipeline.Coordinator
	session     *session.Manager
	calibration *calibration.Engine
	retries     *retry.Manager
	registry    TaskRegistry
	logger      *logging.DebugLogger
	maxRetries  int
}

// New creates an Orchestrator from the given configuration.
func New(cfg Config) *Orchestrator {
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = classifier.DefaultCatalog()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = retry.DefaultMaxRetries
	}

	return &Orchestrator{
		classifier:  classifier.New(catalog.Index),
		pipelines:   pipeline.New(catalog.Pipelines),
		session:     session.NewManager(cfg.Sessions, cfg.SessionID, maxRetries),
		calibration: cfg.Calibration,
		retries:     retry.NewManager(catalog.Index, cfg.BaseDelayMs),
		registry:    cfg.Registry,
		logger:      logger,
		maxRetries:  maxRetries,
	}
}

// SessionID returns the session this orchestrator operates on.
func (o *Orchestrator) SessionID() string {
	return o.session.SessionID()
}

// Session returns the session manager, for callers that render state.
func (o *Orchestrator) Session() *session.Manager {
	return o.session
}

// Calibration returns the calibration engine, for callers that render stats.
func (o *Orchestrator) Calibration() *calibration.Engine {
	return o.calibration
}

// Pipelines returns the pipeline coordinator.
func (o *Orchestrator) Pipelines() *pipeline.Coordinator {
	return o.pipelines
}

// PromptDecision is the verdict for one incoming prompt: either a
// pipeline execution was created, or the prompt was classified.
type PromptDecision struct {
	// SessionID is the session the decision belongs to.
	SessionID string `json:"session_id"`
	// Pipeline is set when a pipeline trigger matched.
	Pipeline *models.PipelineExecution `json:"pipeline,omitempty"`
	// Classification is set when the prompt went through classification.
	Classification *models.ClassificationResult `json:"classification,omitempty"`
}

// HandlePrompt runs the full prompt flow. Pipeline detection runs first;
// a match creates the execution, registers its tasks, and skips
// classification. An already-running pipeline suppresses detection so a
// session never carries two executions. Either way the prompt lands in
// history and the decision is persisted before returning.
func (o *Orchestrator) HandlePrompt(prompt string) (*PromptDecision, error) {
	decision := &PromptDecision{SessionID: o.session.SessionID()}
	st := o.session.State()

	if !st.ActivePipeline.Active() {
		if def := o.pipelines.Detect(prompt); def != nil {
			exec, err := o.pipelines.CreateExecution(def, prompt)
			if err != nil {
				return nil, fmt.Errorf("handle prompt: %w", err)
			}
			if err := o.session.Mutate(func(st *models.OrchestrationState) {
				st.ActivePipeline = exec
				st.AppendPrompt(prompt)
			}); err != nil {
				return nil, fmt.Errorf("handle prompt: %w", err)
			}
			o.registerPipelineTasks(exec)
			o.logger.Log("pipeline %s detected for session %s (%d tasks)",
				exec.Type, o.session.SessionID(), len(exec.Tasks))
			decision.Pipeline = exec
			return decision, nil
		}
	}

	history := st.RecentPrompts(models.ContextWindow)
	adjustments, err := o.calibration.Adjustments()
	if err != nil {
		o.logger.Log("calibration adjustments unavailable: %v", err)
		adjustments = nil
	}

	result := o.classifier.Classify(prompt, history, adjustments)
	if err := o.session.Mutate(func(st *models.OrchestrationState) {
		st.LastClassification = &result
		st.AppendPrompt(prompt)
	}); err != nil {
		return nil, fmt.Errorf("handle prompt: %w", err)
	}

	decision.Classification = &result
	return decision, nil
}

// registerPipelineTasks records a fresh execution's tasks in the registry
// with their step order, so cross-session tooling can see the chain.
func (o *Orchestrator) registerPipelineTasks(exec *models.PipelineExecution) {
	if o.registry == nil {
		return
	}
	for i, task := range exec.Tasks {
		if err := o.registry.RegisterTask(task.TaskID, task.Agent, 0, exec.PipelineID, i); err != nil {
			o.logger.Log("register pipeline task %s: %v", task.TaskID, err)
		}
	}
}

// TrackDispatch records an agent dispatch in session state and the
// registry, and opens an execution attempt. A missing task ID resolves
// against the active pipeline's pending task for the agent, then the
// registry, before a fresh one is generated; the effective ID is
// returned. Tasks already known to the registry are not re-registered.
func (o *Orchestrator) TrackDispatch(agent string, confidence int, taskID string) (string, error) {
	known := false
	if taskID == "" {
		st := o.session.State()
		if task := st.ActivePipeline.PendingTaskFor(agent); task != nil {
			taskID = task.TaskID
			known = true
		} else if rec := o.registeredTask(agent); rec != nil {
			taskID = rec.TaskID
			known = true
		} else {
			taskID = "task-" + uuid.New().String()[:8]
		}
	}

	if err := o.session.TrackDispatchedAgent(agent, confidence, taskID); err != nil {
		return "", err
	}

	st := o.session.State()
	attemptNumber := 1
	if entry := st.FindAgent(agent); entry != nil {
		attemptNumber = entry.RetryCount + 1
	}

	if o.registry != nil {
		fromPipeline := st.ActivePipeline.TaskByID(taskID) != nil
		if !known && !fromPipeline {
			if err := o.registry.RegisterTask(taskID, agent, models.ClampConfidence(confidence), "", -1); err != nil {
				o.logger.Log("register task %s: %v", taskID, err)
			}
		}
		if _, err := o.registry.StartAttempt(agent, attemptNumber, taskID); err != nil {
			o.logger.Log("start attempt for %s: %v", agent, err)
		}
	}

	o.logger.Log("dispatch tracked: %s confidence=%d task=%s attempt=%d",
		agent, models.ClampConfidence(confidence), taskID, attemptNumber)
	return taskID, nil
}

// registeredTask looks up the agent's registered task, the external
// collaborator's agent-to-task mapping. Lookup failures degrade to a
// fresh task ID.
func (o *Orchestrator) registeredTask(agent string) *registry.TaskRecord {
	if o.registry == nil {
		return nil
	}
	rec, err := o.registry.TaskByAgent(agent)
	if err != nil {
		o.logger.Log("task lookup for %s: %v", agent, err)
		return nil
	}
	return rec
}

// InjectSkill records a skill injection. Idempotent per session.
func (o *Orchestrator) InjectSkill(skill string) error {
	return o.session.TrackInjectedSkill(skill)
}

// HandleOutcome records how an attempt ended: the open attempt is
// completed, the session entry transitions to completed or failed, and
// the outcome feeds the calibration log with the keywords that routed
// the dispatch.
func (o *Orchestrator) HandleOutcome(agent string, outcome models.AttemptOutcome, errorText string, durationMs *int64) error {
	if agent == "" {
		return fmt.Errorf("handle outcome: missing agent")
	}
	if !outcome.Valid() {
		return fmt.Errorf("handle outcome: unknown outcome %q", outcome)
	}
	errorText = NormalizeError(errorText)

	st := o.session.State()

	status := models.AgentCompleted
	if outcome.Failed() {
		status = models.AgentFailed
	}
	if err := o.session.UpdateAgentStatus(agent, status, ""); err != nil {
		return err
	}

	if o.registry != nil {
		if id, open, err := o.registry.OpenAttempt(agent); err != nil {
			o.logger.Log("open attempt lookup for %s: %v", agent, err)
		} else if open != nil {
			if err := o.registry.CompleteAttempt(id, outcome, errorText); err != nil {
				o.logger.Log("complete attempt %d: %v", id, err)
			}
		}
	}

	prompt := ""
	if n := len(st.PromptHistory); n > 0 {
		prompt = st.PromptHistory[n-1]
	}
	confidence := 0
	if entry := st.FindAgent(agent); entry != nil {
		confidence = entry.Confidence
	}
	var keywords []string
	if st.LastClassification != nil {
		keywords = st.LastClassification.MatchedKeywordsFor(agent)
	}

	o.logger.Log("outcome for %s: %s", agent, outcome)
	return o.calibration.RecordOutcome(prompt, agent, keywords, confidence, outcome, durationMs)
}

// DecideRetry evaluates a failed attempt and applies the verdict to
// session state: a retry transitions the agent to retrying (which
// advances its attempt counter), anything else marks it failed. The
// attempt number and already-tried alternatives derive from the session
// aggregate, so callers only supply the agent and the error text.
// maxRetriesOverride, when positive, wins over the per-dispatch bound.
func (o *Orchestrator) DecideRetry(agent, errorText string, maxRetriesOverride int) (models.RetryDecision, error) {
	if agent == "" {
		return models.RetryDecision{}, fmt.Errorf("decide retry: missing agent")
	}
	errorText = NormalizeError(errorText)

	st := o.session.State()
	attemptNumber := 1
	maxRetries := o.maxRetries
	if entry := st.FindAgent(agent); entry != nil {
		attemptNumber = entry.RetryCount + 1
		if entry.MaxRetries > 0 {
			maxRetries = entry.MaxRetries
		}
	}
	if maxRetriesOverride > 0 {
		maxRetries = maxRetriesOverride
	}

	decision := o.retries.Decide(agent, attemptNumber, errorText, st.TriedAgents(), maxRetries)

	status := models.AgentFailed
	if decision.ShouldRetry {
		status = models.AgentRetrying
	}
	if err := o.session.UpdateAgentStatus(agent, status, ""); err != nil {
		return decision, err
	}

	o.logger.Log("retry decision for %s: retry=%t alternative=%q reason=%q",
		agent, decision.ShouldRetry, decision.AlternativeAgent, decision.Reason)
	return decision, nil
}

// CompletePipelineTask marks one task of the active pipeline done and
// persists the updated execution. Completing the final task completes
// the pipeline.
func (o *Orchestrator) CompletePipelineTask(taskID string) (*models.PipelineExecution, error) {
	var exec *models.PipelineExecution
	var opErr error
	err := o.session.Mutate(func(st *models.OrchestrationState) {
		if st.ActivePipeline == nil {
			opErr = fmt.Errorf("complete pipeline task: no active pipeline")
			return
		}
		opErr = o.pipelines.CompleteTask(st.ActivePipeline, taskID)
		exec = st.ActivePipeline
	})
	if opErr != nil {
		return nil, opErr
	}
	if err != nil {
		return nil, err
	}
	return exec, nil
}

// AbortPipeline aborts the active pipeline execution, if one is running.
func (o *Orchestrator) AbortPipeline() (*models.PipelineExecution, error) {
	var exec *models.PipelineExecution
	var opErr error
	err := o.session.Mutate(func(st *models.OrchestrationState) {
		if st.ActivePipeline == nil {
			opErr = fmt.Errorf("abort pipeline: no active pipeline")
			return
		}
		opErr = o.pipelines.Abort(st.ActivePipeline)
		exec = st.ActivePipeline
	})
	if opErr != nil {
		return nil, opErr
	}
	if err != nil {
		return nil, err
	}
	return exec, nil
}

// State returns the current session aggregate.
func (o *Orchestrator) State() *models.OrchestrationState {
	return o.session.State()
}

// ClearSession resets the session aggregate. The calibration log and the
// task registry deliberately survive; they are cross-session.
func (o *Orchestrator) ClearSession() error {
	o.logger.Log("clearing session %s", o.session.SessionID())
	return o.session.Clear()
}
