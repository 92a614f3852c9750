package classifier

import (
	"regexp"
	"sort"
	"strings"

	"github.com/usherhq/usher/pkg/models"
)

// Scoring weights. Keyword weight grows with keyword length so specific
// terms outrank short generic ones; phrases scale with word count.
const (
	keywordBaseWeight   = 10
	keywordLengthFactor = 2
	keywordWeightCap    = 40
	phraseWordWeight    = 12
	historyKeywordBoost = 8
	continuationBoost   = 6
	negationPenalty     = -25
	// negationWindow is how many tokens before a keyword a negation
	// marker still applies to it.
	negationWindow = 5
	// minPromptLength short-circuits conversational noise.
	minPromptLength = 10
)

var continuationMarkers = []string{
	"also", "continue", "additionally", "then", "next", "follow up", "after that",
}

var (
	negationSingles = []string{
		"not", "don't", "won't", "can't", "shouldn't", "avoid", "without",
		"except", "unlike",
	}
	negationBigrams = []string{"instead of"}
)

var continuationPatterns = func() []*regexp.Regexp {
	ps := make([]*regexp.Regexp, len(continuationMarkers))
	for i, m := range continuationMarkers {
		ps[i] = phrasePattern(m)
	}
	return ps
}()

// noisePattern matches pure conversational acknowledgements that carry
// no dispatchable intent.
var noisePattern = regexp.MustCompile(`^(?:ok(?:ay)?|thanks(?:\s+(?:a lot|so much))?|thank you(?:\s+(?:very|so)\s+much)?|got it|sounds good|will do|never\s?mind|looks good(?:\s+to me)?|lgtm|perfect|great|nice|stop|cancel|yes|no)[\s!.,]*$`)

// metaMarkers match questions about the catalog itself rather than work
// to be routed.
var metaMarkers = []string{
	"what agents", "which agents", "list agents", "available agents",
	"what skills", "which skills", "list skills", "available skills",
	"what can you do", "how do you work",
}

var tokenPattern = regexp.MustCompile(`[a-z0-9']+`)

// Classifier scores prompts against a signal index. It is pure with
// respect to its inputs and the process-lifetime index; it performs no I/O
// and never panics on malformed input.
type Classifier struct {
	index *Index
}

// New returns a classifier over the given index.
func New(index *Index) *Classifier {
	return &Classifier{index: index}
}

// Index returns the signal index the classifier scores against.
func (c *Classifier) Index() *Index {
	return c.index
}

// Classify scores prompt against every index entry, folding in context
// from the most recent history entries and any calibration adjustments,
// and returns ranked agent and skill candidates.
func (c *Classifier) Classify(prompt string, history []string, adjustments []models.CalibrationAdjustment) models.ClassificationResult {
	if c == nil || c.index == nil {
		return models.EmptyClassification()
	}
	trimmed := strings.TrimSpace(prompt)
	if isNoise(trimmed) {
		return models.EmptyClassification()
	}

	window := history
	if len(window) > models.ContextWindow {
		window = window[len(window)-models.ContextWindow:]
	}
	historyText := strings.ToLower(strings.Join(window, "\n"))
	tokens := tokenPattern.FindAllString(strings.ToLower(trimmed), -1)

	var agents, skills []models.CandidateScore
	for _, e := range c.index.Entries(KindAgent) {
		if cs := scoreEntry(e, trimmed, tokens, historyText, adjustments); cs != nil && cs.Confidence >= models.MinimumConfidence {
			agents = append(agents, *cs)
		}
	}
	for _, e := range c.index.Entries(KindSkill) {
		if cs := scoreEntry(e, trimmed, tokens, historyText, adjustments); cs != nil && cs.Confidence >= models.MinimumConfidence {
			skills = append(skills, *cs)
		}
	}

	sortCandidates(agents)
	sortCandidates(skills)
	if len(agents) > models.MaxAgents {
		agents = agents[:models.MaxAgents]
	}
	if len(skills) > models.MaxSkills {
		skills = skills[:models.MaxSkills]
	}

	result := models.ClassificationResult{
		Agents: agents,
		Skills: skills,
		Intent: models.IntentGeneral,
	}
	if len(agents) > 0 {
		if e := c.index.Lookup(agents[0].Name); e != nil && e.Category != "" {
			result.Intent = e.Category
		}
		result.ShouldAutoDispatch = agents[0].Confidence >= models.AutoDispatchThreshold
	}
	if len(skills) > 0 {
		result.ShouldInjectSkills = skills[0].Confidence >= models.SkillInjectThreshold
	}
	for _, a := range agents {
		result.Signals = append(result.Signals, a.Signals...)
	}
	for _, s := range skills {
		result.Signals = append(result.Signals, s.Signals...)
	}
	return result
}

// scoreEntry accumulates signals for one entry. Returns nil when the
// current prompt holds no evidence for it; context and calibration only
// ever amplify prompt evidence, they never create a candidate alone.
func scoreEntry(e *Entry, prompt string, tokens []string, historyText string, adjustments []models.CalibrationAdjustment) *models.CandidateScore {
	var signals []models.Signal
	var matched []string
	matchedSet := make(map[string]bool)

	for j, kw := range e.Keywords {
		if !e.keywordPatterns[j].MatchString(prompt) {
			continue
		}
		lkw := strings.ToLower(kw)
		if matchedSet[lkw] {
			continue
		}
		matchedSet[lkw] = true
		matched = append(matched, lkw)
		signals = append(signals, models.Signal{
			Type:    models.SignalKeyword,
			Source:  lkw,
			Weight:  keywordWeight(lkw),
			Matched: lkw,
		})
		signals = append(signals, negationSignals(tokens, lkw)...)
	}

	for j, p := range e.Phrases {
		if !e.phrasePatterns[j].MatchString(prompt) {
			continue
		}
		lp := strings.ToLower(p)
		signals = append(signals, models.Signal{
			Type:    models.SignalPhrase,
			Source:  lp,
			Weight:  phraseWordWeight * len(strings.Fields(p)),
			Matched: lp,
		})
	}

	if len(signals) == 0 {
		return nil
	}

	if historyText != "" {
		seen := make(map[string]bool)
		for j, kw := range e.Keywords {
			lkw := strings.ToLower(kw)
			if seen[lkw] || !e.keywordPatterns[j].MatchString(historyText) {
				continue
			}
			seen[lkw] = true
			signals = append(signals, models.Signal{
				Type:    models.SignalContext,
				Source:  "history-keyword",
				Weight:  historyKeywordBoost,
				Matched: lkw,
			})
		}
		for i, m := range continuationMarkers {
			if continuationPatterns[i].MatchString(historyText) {
				signals = append(signals, models.Signal{
					Type:    models.SignalContext,
					Source:  "continuation-keyword",
					Weight:  continuationBoost,
					Matched: m,
				})
			}
		}
	}

	calTotal := 0
	var calKeys []string
	for _, adj := range adjustments {
		if adj.Agent != e.Name || !matchedSet[strings.ToLower(adj.Keyword)] {
			continue
		}
		calTotal += adj.Adjustment
		calKeys = append(calKeys, adj.Keyword)
	}
	if calTotal > models.AdjustmentCap {
		calTotal = models.AdjustmentCap
	}
	if calTotal < -models.AdjustmentCap {
		calTotal = -models.AdjustmentCap
	}
	if calTotal != 0 {
		signals = append(signals, models.Signal{
			Type:    models.SignalCalibration,
			Source:  "calibration:" + strings.Join(calKeys, ","),
			Weight:  calTotal,
			Matched: e.Name,
		})
	}

	// Negative signals apply after the positive clamp so a saturated
	// score cannot absorb a negation penalty.
	pos, neg := 0, 0
	for _, s := range signals {
		if s.Weight >= 0 {
			pos += s.Weight
		} else {
			neg += s.Weight
		}
	}
	if pos > 100 {
		pos = 100
	}

	return &models.CandidateScore{
		Name:            e.Name,
		Confidence:      models.ClampConfidence(pos + neg),
		MatchedKeywords: matched,
		Signals:         signals,
	}
}

// negationSignals finds negation markers in the tokens preceding the
// keyword's first occurrence. Each marker is a flat penalty.
func negationSignals(tokens []string, keyword string) []models.Signal {
	kwTokens := tokenPattern.FindAllString(keyword, -1)
	k := tokenIndex(tokens, kwTokens)
	if k < 0 {
		return nil
	}
	start := k - negationWindow
	if start < 0 {
		start = 0
	}
	var out []models.Signal
	for m := start; m < k; m++ {
		marker, n := markerAt(tokens, m)
		if n == 0 || m+n > k {
			continue
		}
		out = append(out, models.Signal{
			Type:    models.SignalNegation,
			Source:  "negation near \"" + keyword + "\"",
			Weight:  negationPenalty,
			Matched: marker,
		})
	}
	return out
}

// markerAt reports the negation marker starting at token i, if any, and
// how many tokens it spans.
func markerAt(tokens []string, i int) (string, int) {
	if i+1 < len(tokens) {
		bigram := tokens[i] + " " + tokens[i+1]
		for _, m := range negationBigrams {
			if bigram == m {
				return m, 2
			}
		}
	}
	for _, m := range negationSingles {
		if tokens[i] == m {
			return m, 1
		}
	}
	return "", 0
}

// tokenIndex returns the first index where sub occurs as a contiguous
// token run, or -1.
func tokenIndex(tokens, sub []string) int {
	if len(sub) == 0 || len(sub) > len(tokens) {
		return -1
	}
	for i := 0; i+len(sub) <= len(tokens); i++ {
		ok := true
		for j := range sub {
			if tokens[i+j] != sub[j] {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

func keywordWeight(kw string) int {
	w := keywordBaseWeight + keywordLengthFactor*len(kw)
	if w > keywordWeightCap {
		return keywordWeightCap
	}
	return w
}

func sortCandidates(cs []models.CandidateScore) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Confidence != cs[j].Confidence {
			return cs[i].Confidence > cs[j].Confidence
		}
		if len(cs[i].MatchedKeywords) != len(cs[j].MatchedKeywords) {
			return len(cs[i].MatchedKeywords) > len(cs[j].MatchedKeywords)
		}
		return cs[i].Name < cs[j].Name
	})
}

// isNoise reports whether a prompt should skip classification entirely:
// too short, a bare acknowledgement, or a question about the catalog.
func isNoise(trimmed string) bool {
	if len(trimmed) < minPromptLength {
		return true
	}
	lower := strings.ToLower(trimmed)
	if noisePattern.MatchString(lower) {
		return true
	}
	for _, m := range metaMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
