package models

// SignalType identifies the kind of evidence a Signal carries.
type SignalType string

const (
	// SignalKeyword is a word-boundary keyword match in the prompt.
	SignalKeyword SignalType = "keyword"
	// SignalPhrase is a multi-word phrase match in the prompt.
	SignalPhrase SignalType = "phrase"
	// SignalContext is a continuity boost from recent prompt history.
	SignalContext SignalType = "context"
	// SignalNegation is a penalty for a negated keyword match.
	SignalNegation SignalType = "negation"
	// SignalCalibration is an outcome-derived confidence adjustment.
	SignalCalibration SignalType = "calibration"
)

// Valid returns true if the signal type is a known value.
func (t SignalType) Valid() bool {
	switch t {
	case SignalKeyword, SignalPhrase, SignalContext, SignalNegation, SignalCalibration:
		return true
	default:
		return false
	}
}

// Signal is one scored piece of classification evidence.
// Signals are immutable once created.
type Signal struct {
	// Type is the kind of evidence.
	Type SignalType `json:"type"`
	// Source describes where the signal came from, e.g. the matched
	// keyword or "continuation-keyword".
	Source string `json:"source"`
	// Weight is the signed contribution to the candidate's confidence.
	Weight int `json:"weight"`
	// Matched is the text or phrase that produced the signal.
	Matched string `json:"matched"`
}
