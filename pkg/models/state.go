package models

import (
	"strings"
	"time"
)

// HistoryRetention caps the prompts retained in a session aggregate.
// The classifier only reads the most recent ContextWindow of them.
const HistoryRetention = 20

// ContextWindow is how many recent prompts feed context scoring.
const ContextWindow = 3

// OrchestrationState is the session-scoped aggregate every component reads
// and mutates. It is persisted whole after each mutation.
type OrchestrationState struct {
	// SessionID identifies the session the aggregate belongs to.
	SessionID string `json:"session_id"`
	// ActiveAgents holds every dispatch tracked this session.
	ActiveAgents []DispatchedAgent `json:"active_agents"`
	// InjectedSkills holds each injected skill exactly once.
	InjectedSkills []string `json:"injected_skills"`
	// PromptHistory holds recent prompts, newest last.
	PromptHistory []string `json:"prompt_history"`
	// LastClassification caches the most recent classification.
	LastClassification *ClassificationResult `json:"last_classification,omitempty"`
	// ActivePipeline is the session's pipeline execution, if any.
	ActivePipeline *PipelineExecution `json:"active_pipeline,omitempty"`
	// UpdatedAt is when the aggregate was last persisted.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrchestrationState returns an empty aggregate for a session.
func NewOrchestrationState(sessionID string) *OrchestrationState {
	return &OrchestrationState{SessionID: sessionID}
}

// FindAgent returns the tracked dispatch for the named agent, or nil.
func (s *OrchestrationState) FindAgent(agent string) *DispatchedAgent {
	for i := range s.ActiveAgents {
		if s.ActiveAgents[i].Agent == agent {
			return &s.ActiveAgents[i]
		}
	}
	return nil
}

// HasSkill returns true if the skill was already injected this session.
func (s *OrchestrationState) HasSkill(skill string) bool {
	for _, sk := range s.InjectedSkills {
		if sk == skill {
			return true
		}
	}
	return false
}

// AppendPrompt adds a prompt to the history, dropping the oldest entries
// beyond HistoryRetention. Blank prompts are ignored.
func (s *OrchestrationState) AppendPrompt(prompt string) {
	if strings.TrimSpace(prompt) == "" {
		return
	}
	s.PromptHistory = append(s.PromptHistory, prompt)
	if len(s.PromptHistory) > HistoryRetention {
		s.PromptHistory = s.PromptHistory[len(s.PromptHistory)-HistoryRetention:]
	}
}

// RecentPrompts returns up to n prompts, oldest first, from the end of
// the history.
func (s *OrchestrationState) RecentPrompts(n int) []string {
	if n <= 0 || len(s.PromptHistory) == 0 {
		return nil
	}
	if len(s.PromptHistory) <= n {
		return s.PromptHistory
	}
	return s.PromptHistory[len(s.PromptHistory)-n:]
}

// TriedAgents returns the names of every agent dispatched this session.
// The retry flow treats them as already-tried alternatives.
func (s *OrchestrationState) TriedAgents() []string {
	names := make([]string, 0, len(s.ActiveAgents))
	for _, a := range s.ActiveAgents {
		names = append(names, a.Agent)
	}
	return names
}
