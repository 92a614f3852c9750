package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/usherhq/usher/pkg/models"
)

const defaultMaxRetries = 3

// Manager applies session mutations with read-merge-write discipline:
// each operation loads the latest aggregate, applies one change, and
// persists the whole aggregate back. Hook invocations within a session
// are causally ordered by the host, so operations do not lock across
// processes; last writer wins.
type Manager struct {
	store      *Store
	sessionID  string
	maxRetries int
}

// NewManager creates a manager for one session. maxRetries bounds the
// retry budget stamped onto new dispatches.
func NewManager(store *Store, sessionID string, maxRetries int) *Manager {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Manager{store: store, sessionID: sessionID, maxRetries: maxRetries}
}

// SessionID returns the session this manager mutates.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// State returns the current aggregate.
func (m *Manager) State() *models.OrchestrationState {
	return m.store.Load(m.sessionID)
}

// TrackDispatchedAgent records a dispatch. Re-dispatching an agent
// already tracked this session updates the entry in place instead of
// appending a duplicate.
func (m *Manager) TrackDispatchedAgent(agent string, confidence int, taskID string) error {
	if agent == "" {
		return fmt.Errorf("track dispatch: missing agent")
	}

	st := m.store.Load(m.sessionID)
	now := time.Now().UTC()
	if existing := st.FindAgent(agent); existing != nil {
		existing.Confidence = models.ClampConfidence(confidence)
		existing.Status = models.AgentInProgress
		existing.DispatchedAt = now
		if taskID != "" {
			existing.TaskID = taskID
		}
	} else {
		st.ActiveAgents = append(st.ActiveAgents, models.DispatchedAgent{
			Agent:        agent,
			TaskID:       taskID,
			Confidence:   models.ClampConfidence(confidence),
			DispatchedAt: now,
			Status:       models.AgentInProgress,
			MaxRetries:   m.maxRetries,
		})
	}
	return m.store.Save(st)
}

// UpdateAgentStatus transitions a tracked dispatch. A transition to
// retrying increments the retry count. Status updates for agents the
// session never tracked create the entry so the transition is not
// lost.
func (m *Manager) UpdateAgentStatus(agent string, status models.AgentStatus, taskID string) error {
	if !status.Valid() {
		return fmt.Errorf("update agent status: unknown status %q", status)
	}

	st := m.store.Load(m.sessionID)
	entry := st.FindAgent(agent)
	if entry == nil {
		st.ActiveAgents = append(st.ActiveAgents, models.DispatchedAgent{
			Agent:        agent,
			DispatchedAt: time.Now().UTC(),
			MaxRetries:   m.maxRetries,
		})
		entry = &st.ActiveAgents[len(st.ActiveAgents)-1]
	}

	if status == models.AgentRetrying {
		entry.RetryCount++
	}
	entry.Status = status
	if taskID != "" {
		entry.TaskID = taskID
	}
	return m.store.Save(st)
}

// TrackInjectedSkill records a skill injection once per session.
// Re-injecting an already-injected skill is a no-op.
func (m *Manager) TrackInjectedSkill(skill string) error {
	if skill == "" {
		return fmt.Errorf("track skill: missing skill")
	}

	st := m.store.Load(m.sessionID)
	if st.HasSkill(skill) {
		return nil
	}
	st.InjectedSkills = append(st.InjectedSkills, skill)
	return m.store.Save(st)
}

// AddToPromptHistory appends a prompt, keeping the most recent
// HistoryRetention entries.
func (m *Manager) AddToPromptHistory(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return nil
	}

	st := m.store.Load(m.sessionID)
	st.AppendPrompt(prompt)
	return m.store.Save(st)
}

// CacheClassification stores the most recent classification result so
// later hook stages for the same prompt skip re-classification.
func (m *Manager) CacheClassification(result *models.ClassificationResult) error {
	st := m.store.Load(m.sessionID)
	st.LastClassification = result
	return m.store.Save(st)
}

// LastClassification returns the cached classification, or nil.
func (m *Manager) LastClassification() *models.ClassificationResult {
	return m.store.Load(m.sessionID).LastClassification
}

// SetActivePipeline registers (or clears, with nil) the session's
// pipeline execution.
func (m *Manager) SetActivePipeline(exec *models.PipelineExecution) error {
	st := m.store.Load(m.sessionID)
	st.ActivePipeline = exec
	return m.store.Save(st)
}

// Mutate runs fn against the freshly loaded aggregate and persists the
// result. Multi-field updates go through here so they land in a single
// write.
func (m *Manager) Mutate(fn func(*models.OrchestrationState)) error {
	st := m.store.Load(m.sessionID)
	fn(st)
	return m.store.Save(st)
}

// Clear resets the session to an empty aggregate. Used at session
// boundaries, not mid-session.
func (m *Manager) Clear() error {
	return m.store.Save(models.NewOrchestrationState(m.sessionID))
}
