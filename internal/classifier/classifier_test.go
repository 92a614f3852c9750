package classifier

import (
	"reflect"
	"strings"
	"testing"

	"github.com/usherhq/usher/pkg/models"
)

func newTestClassifier() *Classifier {
	return New(DefaultIndex())
}

func TestClassify_BackendScenario(t *testing.T) {
	c := newTestClassifier()
	prompt := "Design a RESTful API with database schema for user management backend"

	result := c.Classify(prompt, nil, nil)

	if len(result.Agents) == 0 {
		t.Fatal("expected at least one agent candidate")
	}
	top := result.Agents[0]
	if top.Name != "backend-system-architect" {
		t.Errorf("top agent = %q, want backend-system-architect", top.Name)
	}
	if len(top.MatchedKeywords) <= 1 {
		t.Errorf("matched keywords = %v, want more than one", top.MatchedKeywords)
	}
	if result.Intent != "backend" {
		t.Errorf("intent = %q, want backend", result.Intent)
	}
	if result.ShouldAutoDispatch != (top.Confidence >= models.AutoDispatchThreshold) {
		t.Errorf("ShouldAutoDispatch = %v inconsistent with confidence %d", result.ShouldAutoDispatch, top.Confidence)
	}
	if !result.ShouldAutoDispatch {
		t.Errorf("confidence %d for a five-keyword match should clear the auto-dispatch threshold", top.Confidence)
	}
}

func TestClassify_WordBoundary(t *testing.T) {
	c := newTestClassifier()

	// "testimony" must not match the keyword "test".
	result := c.Classify("testimony about the project", nil, nil)

	for _, a := range result.Agents {
		t.Errorf("unexpected agent candidate %q from boundary leak", a.Name)
	}
	for _, s := range result.Skills {
		t.Errorf("unexpected skill candidate %q from boundary leak", s.Name)
	}
	if result.Intent != models.IntentGeneral {
		t.Errorf("intent = %q, want general", result.Intent)
	}
}

func TestClassify_Idempotence(t *testing.T) {
	c := newTestClassifier()
	prompt := "debug the database tests, review the deployment documentation"
	history := []string{"earlier we talked about the api", "also the schema"}
	adjustments := []models.CalibrationAdjustment{
		{Keyword: "database", Agent: "backend-system-architect", Adjustment: 7, SampleCount: 4},
	}

	first := c.Classify(prompt, history, adjustments)
	second := c.Classify(prompt, history, adjustments)

	if !reflect.DeepEqual(first, second) {
		t.Error("classifying the same inputs twice produced different results")
	}
}

func TestClassify_Boundedness(t *testing.T) {
	c := newTestClassifier()
	prompts := []string{
		"",
		"ok",
		"debug the database tests, review the deployment documentation",
		strings.Repeat("database schema api backend test deploy review docs ", 200),
		"データベースのスキーマを設計して database",
		"!!!???###",
		"\x00\x01 database \x02",
	}

	for _, prompt := range prompts {
		result := c.Classify(prompt, nil, nil)
		if len(result.Agents) > models.MaxAgents {
			t.Errorf("prompt %.30q: %d agents exceeds cap", prompt, len(result.Agents))
		}
		if len(result.Skills) > models.MaxSkills {
			t.Errorf("prompt %.30q: %d skills exceeds cap", prompt, len(result.Skills))
		}
		for _, cand := range append(result.Agents, result.Skills...) {
			if cand.Confidence < 0 || cand.Confidence > 100 {
				t.Errorf("prompt %.30q: candidate %q confidence %d out of range", prompt, cand.Name, cand.Confidence)
			}
		}
	}
}

func TestClassify_SortInvariant(t *testing.T) {
	c := newTestClassifier()
	result := c.Classify("debug the database tests, review the deployment documentation", nil, nil)

	if len(result.Agents) < 2 {
		t.Fatalf("expected several agent candidates, got %d", len(result.Agents))
	}
	for i := 0; i+1 < len(result.Agents); i++ {
		if result.Agents[i].Confidence < result.Agents[i+1].Confidence {
			t.Errorf("agents[%d].Confidence=%d < agents[%d].Confidence=%d", i, result.Agents[i].Confidence, i+1, result.Agents[i+1].Confidence)
		}
	}
	for i := 0; i+1 < len(result.Skills); i++ {
		if result.Skills[i].Confidence < result.Skills[i+1].Confidence {
			t.Errorf("skills[%d].Confidence=%d < skills[%d].Confidence=%d", i, result.Skills[i].Confidence, i+1, result.Skills[i+1].Confidence)
		}
	}
}

func TestClassify_TieBreakAlphabetical(t *testing.T) {
	c := newTestClassifier()

	// "debug" and "tests" carry equal weight (both score 20 with one
	// matched keyword), so the tie falls to name order.
	result := c.Classify("debug the tests", nil, nil)

	if len(result.Agents) < 2 {
		t.Fatalf("expected two candidates, got %v", result.Agents)
	}
	if result.Agents[0].Confidence != result.Agents[1].Confidence {
		t.Fatalf("expected a confidence tie, got %d vs %d", result.Agents[0].Confidence, result.Agents[1].Confidence)
	}
	if result.Agents[0].Name != "debug-specialist" || result.Agents[1].Name != "test-generator" {
		t.Errorf("tie order = %q, %q; want debug-specialist before test-generator", result.Agents[0].Name, result.Agents[1].Name)
	}
}

func TestClassify_NegationRemovesWeakCandidate(t *testing.T) {
	c := newTestClassifier()
	base := "deploy the backend api service"

	baseline := c.Classify(base, nil, nil)
	negated := c.Classify("Do not "+base, nil, nil)

	var baseConf int
	for _, a := range baseline.Agents {
		if a.Name == "backend-system-architect" {
			baseConf = a.Confidence
		}
	}
	if baseConf == 0 {
		t.Fatal("baseline should surface backend-system-architect")
	}

	for _, a := range negated.Agents {
		if a.Name == "backend-system-architect" && a.Confidence > baseConf-25 {
			t.Errorf("negated confidence %d, want <= %d or absence", a.Confidence, baseConf-25)
		}
		if a.Name == "devops-engineer" {
			t.Errorf("negated deploy should not keep devops-engineer at %d", a.Confidence)
		}
	}
}

func TestClassify_NegationMonotonicity(t *testing.T) {
	c := newTestClassifier()
	base := "design the database schema and backend api for the billing service"

	baseline := c.Classify(base, nil, nil)
	negated := c.Classify("Do not "+base, nil, nil)

	var baseConf, negConf int
	var present bool
	for _, a := range baseline.Agents {
		if a.Name == "backend-system-architect" {
			baseConf = a.Confidence
		}
	}
	for _, a := range negated.Agents {
		if a.Name == "backend-system-architect" {
			negConf = a.Confidence
			present = true
		}
	}

	if baseConf == 0 {
		t.Fatal("baseline should surface backend-system-architect")
	}
	if present && negConf > baseConf-25 {
		t.Errorf("negated confidence %d, want <= %d", negConf, baseConf-25)
	}

	// A saturated positive score must not absorb the penalty.
	if baseConf == 100 && present && negConf > 75 {
		t.Errorf("negation failed to move a saturated score: %d", negConf)
	}
}

func TestClassify_NegationSignalRecorded(t *testing.T) {
	c := newTestClassifier()

	// "don't" negates "database" but the remaining keywords keep the
	// candidate alive, so its signals surface in the result union.
	result := c.Classify("don't use the database directly, design the backend schema with proper api endpoints", nil, nil)

	var backend *models.CandidateScore
	for i := range result.Agents {
		if result.Agents[i].Name == "backend-system-architect" {
			backend = &result.Agents[i]
		}
	}
	if backend == nil {
		t.Fatal("expected backend-system-architect to survive the negation")
	}

	found := false
	for _, s := range backend.Signals {
		if s.Type == models.SignalNegation {
			found = true
			if s.Weight != -25 {
				t.Errorf("negation weight = %d, want -25", s.Weight)
			}
			if s.Matched != "don't" {
				t.Errorf("negation marker = %q, want don't", s.Matched)
			}
		}
	}
	if !found {
		t.Error("expected a negation signal on the surviving candidate")
	}
}

func TestClassify_ContextBoostFromHistory(t *testing.T) {
	c := newTestClassifier()
	prompt := "add the login endpoint"

	without := c.Classify(prompt, nil, nil)
	with := c.Classify(prompt, []string{"design the database schema for users"}, nil)

	confOf := func(r models.ClassificationResult) int {
		for _, a := range r.Agents {
			if a.Name == "backend-system-architect" {
				return a.Confidence
			}
		}
		return 0
	}

	if confOf(without) == 0 {
		t.Fatal("prompt should surface backend-system-architect on its own")
	}
	if confOf(with) <= confOf(without) {
		t.Errorf("history context should boost confidence: %d <= %d", confOf(with), confOf(without))
	}
}

func TestClassify_ContinuationMarkers(t *testing.T) {
	c := newTestClassifier()
	prompt := "add the login endpoint"
	history := []string{"also, let's continue with the backend work"}

	result := c.Classify(prompt, history, nil)

	markers := map[string]bool{}
	for _, s := range result.Signals {
		if s.Type == models.SignalContext && s.Source == "continuation-keyword" {
			markers[s.Matched] = true
		}
	}
	if !markers["also"] || !markers["continue"] {
		t.Errorf("continuation markers found = %v, want also and continue", markers)
	}
}

func TestClassify_HistoryWindowIsThree(t *testing.T) {
	c := newTestClassifier()
	prompt := "add the login endpoint"

	// The database mention sits outside the 3-entry window.
	history := []string{
		"design the database schema",
		"unrelated chatter",
		"more unrelated chatter",
		"even more chatter",
	}

	windowed := c.Classify(prompt, history, nil)
	bare := c.Classify(prompt, nil, nil)

	confOf := func(r models.ClassificationResult) int {
		for _, a := range r.Agents {
			if a.Name == "backend-system-architect" {
				return a.Confidence
			}
		}
		return 0
	}
	if confOf(windowed) != confOf(bare) {
		t.Errorf("history beyond the window changed confidence: %d != %d", confOf(windowed), confOf(bare))
	}
}

func TestClassify_CalibrationCap(t *testing.T) {
	c := newTestClassifier()
	prompt := "update the api endpoint"

	baseline := c.Classify(prompt, nil, nil)
	var baseConf int
	for _, a := range baseline.Agents {
		if a.Name == "backend-system-architect" {
			baseConf = a.Confidence
		}
	}
	if baseConf == 0 {
		t.Fatal("prompt should surface backend-system-architect")
	}

	boost := []models.CalibrationAdjustment{
		{Keyword: "api", Agent: "backend-system-architect", Adjustment: 15, SampleCount: 5},
		{Keyword: "endpoint", Agent: "backend-system-architect", Adjustment: 15, SampleCount: 5},
	}
	drag := []models.CalibrationAdjustment{
		{Keyword: "api", Agent: "backend-system-architect", Adjustment: -15, SampleCount: 5},
		{Keyword: "endpoint", Agent: "backend-system-architect", Adjustment: -15, SampleCount: 5},
	}

	confOf := func(r models.ClassificationResult) int {
		for _, a := range r.Agents {
			if a.Name == "backend-system-architect" {
				return a.Confidence
			}
		}
		return 0
	}

	boosted := confOf(c.Classify(prompt, nil, boost))
	if boosted != baseConf+models.AdjustmentCap {
		t.Errorf("boosted confidence = %d, want %d (cap applied to +30 sum)", boosted, baseConf+models.AdjustmentCap)
	}
	dragged := confOf(c.Classify(prompt, nil, drag))
	if dragged != baseConf-models.AdjustmentCap {
		t.Errorf("dragged confidence = %d, want %d (cap applied to -30 sum)", dragged, baseConf-models.AdjustmentCap)
	}
}

func TestClassify_CalibrationRequiresMatchedKeyword(t *testing.T) {
	c := newTestClassifier()
	prompt := "update the api endpoint"

	// The adjustment keys on a keyword the prompt did not match.
	adjustments := []models.CalibrationAdjustment{
		{Keyword: "database", Agent: "backend-system-architect", Adjustment: 15, SampleCount: 5},
	}

	with := c.Classify(prompt, nil, adjustments)
	without := c.Classify(prompt, nil, nil)

	if !reflect.DeepEqual(with, without) {
		t.Error("adjustment for an unmatched keyword must not change the result")
	}
}

func TestClassify_NoiseFastPath(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name   string
		prompt string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t  "},
		{"ok", "ok"},
		{"thanks", "thanks"},
		{"thanks long", "thanks so much!"},
		{"stop", "stop"},
		{"meta agents", "what agents are available?"},
		{"meta skills", "which skills do you support?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.prompt, nil, nil)
			if len(result.Agents) != 0 || len(result.Skills) != 0 {
				t.Errorf("noise prompt %q produced candidates", tt.prompt)
			}
			if result.Intent != models.IntentGeneral {
				t.Errorf("noise prompt %q intent = %q, want general", tt.prompt, result.Intent)
			}
			if result.ShouldAutoDispatch || result.ShouldInjectSkills {
				t.Errorf("noise prompt %q set dispatch flags", tt.prompt)
			}
		})
	}
}

func TestClassify_PhraseWeight(t *testing.T) {
	c := newTestClassifier()
	result := c.Classify("run the unit test suite please", nil, nil)

	var cand *models.CandidateScore
	for i := range result.Agents {
		if result.Agents[i].Name == "test-generator" {
			cand = &result.Agents[i]
		}
	}
	if cand == nil {
		t.Fatal("expected test-generator candidate")
	}

	var phraseWeight int
	for _, s := range cand.Signals {
		if s.Type == models.SignalPhrase && s.Matched == "unit test" {
			phraseWeight = s.Weight
		}
	}
	if phraseWeight != 2*phraseWordWeight {
		t.Errorf("phrase weight = %d, want %d", phraseWeight, 2*phraseWordWeight)
	}
}

func TestClassify_SkillInjection(t *testing.T) {
	c := newTestClassifier()
	prompt := "Check for sql injection and xss vulnerability, sanitize the input validation paths"

	result := c.Classify(prompt, nil, nil)

	if len(result.Skills) == 0 {
		t.Fatal("expected skill candidates")
	}
	if result.Skills[0].Name != "secure-coding" {
		t.Errorf("top skill = %q, want secure-coding", result.Skills[0].Name)
	}
	if !result.ShouldInjectSkills {
		t.Errorf("top skill confidence %d should clear the injection threshold", result.Skills[0].Confidence)
	}
	// No agent clears the minimum here, so intent stays general even
	// though a skill is strong.
	if result.Intent != models.IntentGeneral {
		t.Errorf("intent = %q, want general", result.Intent)
	}
}

func TestClassify_MinimumDropsWeakMatches(t *testing.T) {
	c := newTestClassifier()

	// "api" alone scores 16, below the minimum of 20.
	result := c.Classify("take a look at the api sometime", nil, nil)

	for _, a := range result.Agents {
		if a.Name == "backend-system-architect" {
			t.Errorf("single short keyword should not clear the minimum, got confidence %d", a.Confidence)
		}
	}
}

func TestClassify_NilClassifier(t *testing.T) {
	var c *Classifier
	result := c.Classify("design the database schema", nil, nil)
	if len(result.Agents) != 0 || result.Intent != models.IntentGeneral {
		t.Error("nil classifier should return the empty result")
	}
}
