package models

// Confidence thresholds used when assembling a ClassificationResult.
const (
	// MinimumConfidence drops candidates that score below it.
	MinimumConfidence = 20
	// SkillInjectThreshold gates automatic skill injection.
	SkillInjectThreshold = 80
	// AutoDispatchThreshold gates automatic agent dispatch.
	AutoDispatchThreshold = 85
	// MaxAgents caps the agent candidates returned per classification.
	MaxAgents = 3
	// MaxSkills caps the skill candidates returned per classification.
	MaxSkills = 5
)

// IntentGeneral is the intent label when no agent category applies.
const IntentGeneral = "general"

// ClampConfidence bounds a raw score to the valid [0, 100] range.
func ClampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// CandidateScore is one scored agent or skill candidate.
// Produced fresh per classification call and never mutated after creation.
type CandidateScore struct {
	// Name is the agent or skill name from the signal index.
	Name string `json:"name"`
	// Confidence is the clamped total score in [0, 100].
	Confidence int `json:"confidence"`
	// MatchedKeywords lists each matched keyword at most once.
	MatchedKeywords []string `json:"matched_keywords"`
	// Signals is the ordered evidence that produced the score.
	Signals []Signal `json:"signals"`
}

// ClassificationResult is the classifier's ranked verdict for one prompt.
type ClassificationResult struct {
	// Agents holds up to MaxAgents candidates, confidence-descending.
	Agents []CandidateScore `json:"agents"`
	// Skills holds up to MaxSkills candidates, confidence-descending.
	Skills []CandidateScore `json:"skills"`
	// Intent is the category of the top agent, or "general".
	Intent string `json:"intent"`
	// ShouldAutoDispatch is true when the top agent clears AutoDispatchThreshold.
	ShouldAutoDispatch bool `json:"should_auto_dispatch"`
	// ShouldInjectSkills is true when the top skill clears SkillInjectThreshold.
	ShouldInjectSkills bool `json:"should_inject_skills"`
	// Signals is the union of all candidate signals, kept for audit.
	Signals []Signal `json:"signals,omitempty"`
}

// EmptyClassification returns the result used for noise and non-findings.
func EmptyClassification() ClassificationResult {
	return ClassificationResult{Intent: IntentGeneral}
}

// TopAgent returns the highest-confidence agent candidate, or nil.
func (r *ClassificationResult) TopAgent() *CandidateScore {
	if len(r.Agents) == 0 {
		return nil
	}
	return &r.Agents[0]
}

// MatchedKeywordsFor returns the matched keywords recorded for the named
// agent candidate, or nil if the agent is not present in the result.
func (r *ClassificationResult) MatchedKeywordsFor(agent string) []string {
	for i := range r.Agents {
		if r.Agents[i].Name == agent {
			return r.Agents[i].MatchedKeywords
		}
	}
	return nil
}
