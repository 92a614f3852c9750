package calibration

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/usherhq/usher/pkg/models"
)

// adjustmentScale maps a success-rate delta from 0.5 onto the ±15 range:
// a pair that always fails lands at -15, a pair that always succeeds at +15.
const adjustmentScale = 2 * models.AdjustmentCap

// Engine derives confidence adjustments from the outcome log.
type Engine struct {
	log *Log
}

// NewEngine returns an engine over the given log.
func NewEngine(log *Log) *Engine {
	return &Engine{log: log}
}

// RecordOutcome appends one dispatch outcome. This is the engine's only
// write path. Outcomes are binary for calibration purposes: partial and
// rejected count as failure.
func (e *Engine) RecordOutcome(prompt, agent string, keywords []string, confidence int, outcome models.AttemptOutcome, durationMs *int64) error {
	if agent == "" {
		return fmt.Errorf("record outcome: agent required")
	}
	if !outcome.Valid() {
		return fmt.Errorf("record outcome: unknown outcome %q", outcome)
	}

	binary := models.OutcomeSuccess
	if outcome.Failed() {
		binary = models.OutcomeFailure
	}

	return e.log.Append(models.CalibrationRecord{
		Prompt:     prompt,
		Agent:      agent,
		Keywords:   keywords,
		Confidence: confidence,
		Outcome:    binary,
		DurationMs: durationMs,
		RecordedAt: time.Now().UTC(),
	})
}

type pairStats struct {
	samples   int
	successes int
	latest    time.Time
}

// Adjustments recomputes the adjustment table from the full record log.
// Pairs with fewer than CalibrationMinSamples records emit nothing;
// insufficient evidence must not move confidence. Output is sorted by
// agent then keyword for determinism.
func (e *Engine) Adjustments() ([]models.CalibrationAdjustment, error) {
	records, err := e.log.Records()
	if err != nil {
		return nil, err
	}

	type pairKey struct{ keyword, agent string }
	pairs := make(map[pairKey]*pairStats)
	for _, rec := range records {
		for _, kw := range rec.Keywords {
			if kw == "" {
				continue
			}
			key := pairKey{keyword: kw, agent: rec.Agent}
			ps := pairs[key]
			if ps == nil {
				ps = &pairStats{}
				pairs[key] = ps
			}
			ps.samples++
			if rec.Outcome == models.OutcomeSuccess {
				ps.successes++
			}
			if rec.RecordedAt.After(ps.latest) {
				ps.latest = rec.RecordedAt
			}
		}
	}

	var out []models.CalibrationAdjustment
	for key, ps := range pairs {
		if ps.samples < models.CalibrationMinSamples {
			continue
		}
		rate := float64(ps.successes) / float64(ps.samples)
		adj := int(math.Round((rate - 0.5) * adjustmentScale))
		if adj > models.AdjustmentCap {
			adj = models.AdjustmentCap
		}
		if adj < -models.AdjustmentCap {
			adj = -models.AdjustmentCap
		}
		out = append(out, models.CalibrationAdjustment{
			Keyword:     key.keyword,
			Agent:       key.agent,
			Adjustment:  adj,
			SampleCount: ps.samples,
			LastUpdated: ps.latest,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Agent != out[j].Agent {
			return out[i].Agent < out[j].Agent
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out, nil
}

// Stats summarizes the outcome log.
type Stats struct {
	// TotalDispatches is the number of recorded outcomes.
	TotalDispatches int `json:"total_dispatches"`
	// Successes counts success outcomes.
	Successes int `json:"successes"`
	// Failures counts failure outcomes.
	Failures int `json:"failures"`
	// SuccessRate is Successes over TotalDispatches, 0 when empty.
	SuccessRate float64 `json:"success_rate"`
}

// Stats computes rolling totals over the whole log.
func (e *Engine) Stats() (Stats, error) {
	records, err := e.log.Records()
	if err != nil {
		return Stats{}, err
	}
	s := Stats{TotalDispatches: len(records)}
	for _, rec := range records {
		if rec.Outcome == models.OutcomeSuccess {
			s.Successes++
		} else {
			s.Failures++
		}
	}
	if s.TotalDispatches > 0 {
		s.SuccessRate = float64(s.Successes) / float64(s.TotalDispatches)
	}
	return s, nil
}
