package models

import "time"

// AttemptOutcome is the recorded result of one execution attempt.
type AttemptOutcome string

const (
	// OutcomeSuccess indicates the agent completed the task.
	OutcomeSuccess AttemptOutcome = "success"
	// OutcomeFailure indicates the agent failed outright.
	OutcomeFailure AttemptOutcome = "failure"
	// OutcomePartial indicates incomplete work was produced.
	OutcomePartial AttemptOutcome = "partial"
	// OutcomeRejected indicates the agent declined the task.
	OutcomeRejected AttemptOutcome = "rejected"
)

// Valid returns true if the outcome is a known value.
func (o AttemptOutcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure, OutcomePartial, OutcomeRejected:
		return true
	default:
		return false
	}
}

// Failed reports whether the outcome counts as a failure for calibration.
// Partial and rejected outcomes are calibration failures.
func (o AttemptOutcome) Failed() bool {
	return o != OutcomeSuccess
}

// CalibrationRecord is one appended dispatch outcome. Records are
// append-only; the adjustment table is always recomputed from them.
type CalibrationRecord struct {
	// Prompt is the user prompt that led to the dispatch.
	Prompt string `json:"prompt"`
	// Agent is the dispatched agent.
	Agent string `json:"agent"`
	// Keywords are the matched keywords at dispatch time.
	Keywords []string `json:"keywords"`
	// Confidence is the classifier confidence at dispatch time.
	Confidence int `json:"confidence"`
	// Outcome is the binary calibration outcome, success or failure.
	Outcome AttemptOutcome `json:"outcome"`
	// DurationMs is the attempt duration, when known.
	DurationMs *int64 `json:"duration_ms,omitempty"`
	// RecordedAt is when the record was appended.
	RecordedAt time.Time `json:"recorded_at"`
}

// AdjustmentCap bounds a single calibration adjustment, and independently
// bounds the summed calibration contribution per candidate.
const AdjustmentCap = 15

// CalibrationMinSamples is the evidence floor below which a (keyword, agent)
// pair emits no adjustment.
const CalibrationMinSamples = 3

// CalibrationAdjustment is a derived confidence adjustment for one
// (keyword, agent) pair. Superseded whenever new records arrive for the pair.
type CalibrationAdjustment struct {
	// Keyword is the matched keyword the adjustment applies to.
	Keyword string `json:"keyword"`
	// Agent is the agent the adjustment applies to.
	Agent string `json:"agent"`
	// Adjustment is the signed confidence delta, capped to ±AdjustmentCap.
	Adjustment int `json:"adjustment"`
	// SampleCount is the number of records behind the adjustment.
	SampleCount int `json:"sample_count"`
	// LastUpdated is the newest record timestamp for the pair.
	LastUpdated time.Time `json:"last_updated"`
}
