// Package classifier scores user prompts against the signal index and
// produces ranked, confidence-scored agent and skill candidates.
package classifier

import (
	"regexp"
	"sort"
	"strings"
)

// Kind distinguishes agent entries from skill entries in the index.
type Kind string

const (
	// KindAgent marks a dispatchable agent.
	KindAgent Kind = "agent"
	// KindSkill marks an injectable skill.
	KindSkill Kind = "skill"
)

// Entry is one agent or skill in the signal index, with its matchers
// precompiled once at index build time.
type Entry struct {
	// Name is the agent or skill identifier.
	Name string
	// Kind is agent or skill.
	Kind Kind
	// Category labels the entry's domain, e.g. "backend".
	Category string
	// Keywords are single-token signals matched at word boundaries.
	Keywords []string
	// Phrases are multi-word signals weighted by word count.
	Phrases []string
	// Fallbacks is the ordered alternative-agent list (agents only).
	Fallbacks []string

	keywordPatterns []*regexp.Regexp
	phrasePatterns  []*regexp.Regexp
}

// Index is the read-only signal table the classifier scores against.
// Built once per process and never mutated afterwards.
type Index struct {
	entries []Entry
	byName  map[string]*Entry
}

// NewIndex builds an index from entries and compiles their matchers.
func NewIndex(entries []Entry) *Index {
	ix := &Index{
		entries: make([]Entry, len(entries)),
		byName:  make(map[string]*Entry, len(entries)),
	}
	copy(ix.entries, entries)
	for i := range ix.entries {
		e := &ix.entries[i]
		e.keywordPatterns = make([]*regexp.Regexp, len(e.Keywords))
		for j, kw := range e.Keywords {
			e.keywordPatterns[j] = keywordPattern(kw)
		}
		e.phrasePatterns = make([]*regexp.Regexp, len(e.Phrases))
		for j, p := range e.Phrases {
			e.phrasePatterns[j] = phrasePattern(p)
		}
		ix.byName[e.Name] = e
	}
	return ix
}

// keywordPattern compiles a case-insensitive word-boundary matcher.
// Boundaries are required on both sides so "test" never matches inside
// "testimony".
func keywordPattern(kw string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(strings.TrimSpace(kw)) + `\b`)
}

// phrasePattern compiles a phrase matcher tolerant of arbitrary
// whitespace between the words.
func phrasePattern(phrase string) *regexp.Regexp {
	words := strings.Fields(phrase)
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b` + strings.Join(quoted, `\s+`) + `\b`)
}

// Entries returns all index entries of the given kind, in table order.
func (ix *Index) Entries(kind Kind) []*Entry {
	var out []*Entry
	for i := range ix.entries {
		if ix.entries[i].Kind == kind {
			out = append(out, &ix.entries[i])
		}
	}
	return out
}

// Lookup returns the entry with the given name, or nil.
func (ix *Index) Lookup(name string) *Entry {
	return ix.byName[name]
}

// Fallbacks returns the ordered fallback list for an agent, or nil when
// the agent is unknown or has none configured.
func (ix *Index) Fallbacks(agent string) []string {
	e := ix.byName[agent]
	if e == nil {
		return nil
	}
	return e.Fallbacks
}

// AgentNames returns every agent name in the index, sorted.
func (ix *Index) AgentNames() []string {
	var names []string
	for i := range ix.entries {
		if ix.entries[i].Kind == KindAgent {
			names = append(names, ix.entries[i].Name)
		}
	}
	sort.Strings(names)
	return names
}

// DefaultIndex returns the built-in catalog. A YAML catalog file may
// replace or extend these entries at startup.
func DefaultIndex() *Index {
	return NewIndex(defaultEntries())
}

func defaultEntries() []Entry {
	return []Entry{
		{
			Name:     "backend-system-architect",
			Kind:     KindAgent,
			Category: "backend",
			Keywords: []string{
				"api", "backend", "database", "schema", "migration", "server",
				"endpoint", "restful", "graphql", "microservice", "architecture",
				"sql", "postgres", "cache", "queue", "scalability",
			},
			Phrases: []string{
				"database schema", "rest api", "api design", "data model",
				"backend service", "system design",
			},
			Fallbacks: []string{"general-purpose"},
		},
		{
			Name:     "frontend-ui-developer",
			Kind:     KindAgent,
			Category: "frontend",
			Keywords: []string{
				"frontend", "react", "component", "css", "layout", "responsive",
				"accessibility", "styling", "browser", "dom", "form", "animation",
			},
			Phrases: []string{
				"user interface", "ui component", "front end", "design system",
			},
			Fallbacks: []string{"general-purpose"},
		},
		{
			Name:     "test-generator",
			Kind:     KindAgent,
			Category: "testing",
			Keywords: []string{
				"test", "tests", "testing", "coverage", "assertion", "regression",
				"mock", "fixture", "flaky",
			},
			Phrases: []string{
				"unit test", "unit tests", "test coverage", "write tests",
				"integration test", "end to end test",
			},
			Fallbacks: []string{"code-reviewer", "general-purpose"},
		},
		{
			Name:     "code-reviewer",
			Kind:     KindAgent,
			Category: "quality",
			Keywords: []string{
				"review", "refactor", "lint", "readability", "cleanup",
				"maintainability", "style",
			},
			Phrases: []string{
				"code review", "pull request", "code quality", "tech debt",
			},
			Fallbacks: []string{"general-purpose"},
		},
		{
			Name:     "debug-specialist",
			Kind:     KindAgent,
			Category: "debugging",
			Keywords: []string{
				"debug", "bug", "crash", "traceback", "reproduce", "regression",
				"hang", "leak", "segfault",
			},
			Phrases: []string{
				"root cause", "stack trace", "race condition", "memory leak",
				"not working",
			},
			Fallbacks: []string{"backend-system-architect", "general-purpose"},
		},
		{
			Name:     "devops-engineer",
			Kind:     KindAgent,
			Category: "infrastructure",
			Keywords: []string{
				"deploy", "deployment", "docker", "kubernetes", "terraform",
				"infrastructure", "monitoring", "rollback", "helm",
			},
			Phrases: []string{
				"ci pipeline", "github actions", "blue green", "zero downtime",
			},
			Fallbacks: []string{"backend-system-architect", "general-purpose"},
		},
		{
			Name:     "product-strategist",
			Kind:     KindAgent,
			Category: "product",
			Keywords: []string{
				"product", "roadmap", "mvp", "market", "prioritize",
				"stakeholder", "metric",
			},
			Phrases: []string{
				"business value", "success criteria", "product market fit",
			},
			Fallbacks: []string{"general-purpose"},
		},
		{
			Name:     "ux-researcher",
			Kind:     KindAgent,
			Category: "product",
			Keywords: []string{
				"usability", "persona", "wireframe", "prototype", "onboarding",
			},
			Phrases: []string{
				"user research", "user journey", "user flow",
			},
			Fallbacks: []string{"frontend-ui-developer", "general-purpose"},
		},
		{
			Name:     "docs-writer",
			Kind:     KindAgent,
			Category: "documentation",
			Keywords: []string{
				"documentation", "readme", "changelog", "docs", "tutorial",
				"guide",
			},
			Phrases: []string{
				"api docs", "api documentation", "getting started",
			},
			Fallbacks: []string{"general-purpose"},
		},
		{
			// Fallback target only; no signals of its own.
			Name:     "general-purpose",
			Kind:     KindAgent,
			Category: "general",
		},
		{
			Name:     "sql-optimization",
			Kind:     KindSkill,
			Category: "backend",
			Keywords: []string{"sql", "query", "index", "explain"},
			Phrases:  []string{"slow query", "query plan", "n+1 query"},
		},
		{
			Name:     "api-contract-design",
			Kind:     KindSkill,
			Category: "backend",
			Keywords: []string{"openapi", "swagger", "contract", "versioning"},
			Phrases:  []string{"api contract", "api versioning", "breaking change"},
		},
		{
			Name:     "react-patterns",
			Kind:     KindSkill,
			Category: "frontend",
			Keywords: []string{"react", "hooks", "jsx", "redux"},
			Phrases:  []string{"react component", "state management"},
		},
		{
			Name:     "test-strategy",
			Kind:     KindSkill,
			Category: "testing",
			Keywords: []string{"coverage", "mocking", "fixtures", "flaky"},
			Phrases:  []string{"test pyramid", "test strategy", "unit test"},
		},
		{
			Name:     "secure-coding",
			Kind:     KindSkill,
			Category: "security",
			Keywords: []string{"security", "vulnerability", "injection", "xss", "csrf", "sanitize"},
			Phrases:  []string{"sql injection", "input validation", "threat model"},
		},
		{
			Name:     "performance-profiling",
			Kind:     KindSkill,
			Category: "performance",
			Keywords: []string{"performance", "profiling", "benchmark", "latency", "throughput"},
			Phrases:  []string{"memory leak", "cpu profile", "hot path"},
		},
		{
			Name:     "containerization",
			Kind:     KindSkill,
			Category: "infrastructure",
			Keywords: []string{"docker", "dockerfile", "container", "compose"},
			Phrases:  []string{"docker compose", "multi stage build"},
		},
	}
}
