// Package patternmanager implements PatternManager: CRUD over the
// Pattern aggregate, trigger-keyword matching against a free-form
// situation, outcome recording, and rule-based auto-discovery of new
// patterns from high-importance memories. The matching and
// outcome-recording paths are thin wrappers over behavior the Pattern
// aggregate already owns (MatchScore, RecordOutcome); discovery reuses
// the same sentence-level heuristics as internal/service/dehydration,
// applied here to infer a kind and a trigger/problem/solution triple.
package patternmanager

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/memory"
	"hippos/internal/domain/pattern"
	"hippos/internal/ports"
)

// Config bounds PatternManager's matching and discovery behavior.
type Config struct {
	// MatchThreshold is the minimum MatchScore a pattern needs to be
	// returned by Match. 0 returns every candidate sharing a keyword.
	MatchThreshold float64

	// DedupTagOverlap is the minimum fraction of shared tags between a
	// freshly discovered pattern and an existing one before they're
	// treated as the same pattern (reinforced rather than duplicated).
	DedupTagOverlap float64
}

// DefaultConfig returns the engine's documented defaults.
func DefaultConfig() Config {
	return Config{MatchThreshold: 0, DedupTagOverlap: 0.5}
}

// Manager is the default, rule-based PatternManager.
type Manager struct {
	patterns  ports.PatternRepository
	generator ports.PatternGenerator
	cfg       Config
}

// New creates a Manager. generator may be nil: discovery falls back to a
// templated description built from trigger/solution alone.
func New(patterns ports.PatternRepository, generator ports.PatternGenerator, cfg Config) *Manager {
	return &Manager{patterns: patterns, generator: generator, cfg: cfg}
}

// Create persists a new, explicitly authored Pattern.
func (m *Manager) Create(ctx context.Context, tenantID ids.TenantID, userID string, kind pattern.Kind, name, description, trigger, solution string, tags []string) (*pattern.Pattern, error) {
	p, err := pattern.New(tenantID, userID, kind, name, description, trigger, solution)
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		p.AddTag(t)
	}
	if err := m.patterns.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a pattern by id.
func (m *Manager) Get(ctx context.Context, tenantID ids.TenantID, id ids.PatternID) (*pattern.Pattern, error) {
	return m.patterns.Get(ctx, tenantID, id)
}

// Delete removes a pattern.
func (m *Manager) Delete(ctx context.Context, tenantID ids.TenantID, id ids.PatternID) error {
	return m.patterns.Delete(ctx, tenantID, id)
}

// RecordOutcome records a success/failure observation against an
// existing pattern, recomputing its running average outcome and
// confidence, and persists the result.
func (m *Manager) RecordOutcome(ctx context.Context, tenantID ids.TenantID, id ids.PatternID, success bool, outcome float64) error {
	p, err := m.patterns.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	p.RecordOutcome(success, outcome)
	return m.patterns.Update(ctx, p)
}

// Scored pairs a candidate pattern with its MatchScore against a query.
type Scored struct {
	Pattern *pattern.Pattern
	Score   float64
}

// Match finds patterns relevant to a free-form situation described by
// situationContext: each candidate's trigger must share at least one
// stop-word-filtered keyword with it, scored via the pattern's own
// MatchScore (keyword overlap weighted by the success/failure log
// ratio), filtered to MatchThreshold and sorted descending. Every
// returned pattern has its usage_count bumped, since being selected as
// a match is itself a use of the pattern.
func (m *Manager) Match(ctx context.Context, tenantID ids.TenantID, userID, situationContext string, limit int) ([]Scored, error) {
	if strings.TrimSpace(situationContext) == "" {
		return nil, nil
	}
	candidates, err := m.patterns.List(ctx, tenantID, userID, ports.ListOptions{})
	if err != nil {
		return nil, err
	}

	scored := make([]Scored, 0, len(candidates))
	for _, p := range candidates {
		score := p.MatchScore(situationContext)
		if score <= 0 || score < m.cfg.MatchThreshold {
			continue
		}
		scored = append(scored, Scored{Pattern: p, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	for _, s := range scored {
		s.Pattern.IncrementUsage()
		if err := m.patterns.Update(ctx, s.Pattern); err != nil {
			return nil, err
		}
	}
	return scored, nil
}

// sentenceSplit separates content on sentence-ending punctuation.
var sentenceSplit = regexp.MustCompile(`[.!?]+\s*`)

var problemMarkers = []string{"error", "issue", "problem", "bug", "failed", "failure", "broke", "broken"}
var solutionMarkers = []string{"fix", "fixed", "solved", "solution", "resolved", "resolve", "workaround"}

var commonErrorMarkers = []string{"error", "fail", "bug"}
var workflowMarkers = []string{"step", "workflow"}
var bestPracticeMarkers = []string{"best", "should", "recommend"}
var skillMarkers = []string{"how to", "tutorial"}

// DiscoverFromMemory runs rule-based pattern discovery against a single
// memory: infers a Kind from keyword markers, splits the content into
// sentences to find a trigger/problem (problem-describing) and solution
// (solution-describing) pair, and tags the pattern from the memory's own
// tags/keywords. A pattern whose name or tags substantially overlap an
// existing one is reinforced instead of duplicated. Returns nil, nil
// when the memory carries no usable signal (empty content).
func (m *Manager) DiscoverFromMemory(ctx context.Context, mem *memory.Memory) (*pattern.Pattern, error) {
	content := strings.TrimSpace(mem.Content())
	if content == "" {
		return nil, nil
	}

	kind := inferKind(content)
	trigger, solution := splitTriggerAction(content, mem.Gist())
	tags := mergeTags(mem.Tags(), mem.Keywords())
	if len(tags) == 0 {
		// Content hasn't been dehydrated into keywords/tags yet (or never
		// will be, for memories created outside that pipeline), so fall
		// back to significant words from the inferred trigger/solution so
		// dedup still has something to match candidates against.
		tags = extractSignificantWords(trigger + " " + solution)
	}
	name := patternName(kind, trigger)

	existing, err := m.findDuplicate(ctx, mem.TenantID(), mem.UserID(), name, tags)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.AttributeSource(mem.ID().String())
		existing.AddExample(content)
		for _, t := range tags {
			existing.AddTag(t)
		}
		if err := m.patterns.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	description := m.describe(ctx, trigger, solution, []string{content})

	p, err := pattern.New(mem.TenantID(), mem.UserID(), kind, name, description, trigger, solution)
	if err != nil {
		return nil, err
	}
	p.SetProblem(trigger)
	if mem.Gist() != "" {
		p.SetContext(mem.Gist())
	} else {
		p.SetContext(content)
	}
	p.AddExample(content)
	for _, t := range tags {
		p.AddTag(t)
	}
	p.AttributeSource(mem.ID().String())

	if err := m.patterns.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// describe asks the optional PatternGenerator for a natural-language
// description; on a nil generator or a failure, falls back to a
// templated one so discovery never depends on an LLM being configured.
func (m *Manager) describe(ctx context.Context, trigger, solution string, examples []string) string {
	if m.generator == nil {
		return templatedDescription(trigger, solution)
	}
	description, err := m.generator.Describe(ctx, trigger, solution, examples)
	if err != nil || description == "" {
		return templatedDescription(trigger, solution)
	}
	return description
}

func templatedDescription(trigger, solution string) string {
	if trigger == "" {
		return solution
	}
	if solution == "" {
		return trigger
	}
	return "When " + strings.ToLower(trigger) + ", " + strings.ToLower(solution) + "."
}

// findDuplicate looks for an existing pattern whose name matches exactly
// or whose tags overlap the candidate's by at least DedupTagOverlap.
func (m *Manager) findDuplicate(ctx context.Context, tenantID ids.TenantID, userID, name string, tags []string) (*pattern.Pattern, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	candidates, err := m.patterns.FindByTags(ctx, tenantID, userID, tags)
	if err != nil {
		return nil, err
	}
	overlapFloor := m.cfg.DedupTagOverlap
	if overlapFloor <= 0 {
		overlapFloor = DefaultConfig().DedupTagOverlap
	}

	wanted := make(map[string]bool, len(tags))
	for _, t := range tags {
		wanted[t] = true
	}

	for _, p := range candidates {
		if strings.EqualFold(p.Name(), name) {
			return p, nil
		}
		existingTags := p.Tags()
		if len(existingTags) == 0 {
			continue
		}
		var hits int
		for _, t := range existingTags {
			if wanted[t] {
				hits++
			}
		}
		if float64(hits)/float64(len(existingTags)) >= overlapFloor {
			return p, nil
		}
	}
	return nil, nil
}

// inferKind infers a Kind from keyword presence in content, checked in
// order: error/fail/bug language names a CommonError, step/workflow
// language a Workflow, best/should/recommend language a BestPractice,
// how-to/tutorial language a Skill; anything else is a ProblemSolution.
func inferKind(content string) pattern.Kind {
	lower := strings.ToLower(content)
	switch {
	case containsAny(lower, commonErrorMarkers):
		return pattern.KindCommonError
	case containsAny(lower, workflowMarkers):
		return pattern.KindWorkflow
	case containsAny(lower, bestPracticeMarkers):
		return pattern.KindBestPractice
	case containsAny(lower, skillMarkers):
		return pattern.KindSkill
	default:
		return pattern.KindProblemSolution
	}
}

func splitTriggerAction(content, gist string) (trigger, solution string) {
	sentences := sentenceSplit.Split(content, -1)
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		lower := strings.ToLower(s)
		if trigger == "" && containsAny(lower, problemMarkers) {
			trigger = s
		}
		if solution == "" && containsAny(lower, solutionMarkers) {
			solution = s
		}
	}
	if trigger == "" {
		if gist != "" {
			trigger = gist
		} else if len(sentences) > 0 {
			trigger = strings.TrimSpace(sentences[0])
		}
	}
	if solution == "" {
		solution = strings.TrimSpace(content)
	}
	return trigger, solution
}

func patternName(kind pattern.Kind, trigger string) string {
	words := strings.Fields(trigger)
	if len(words) > 8 {
		words = words[:8]
	}
	if len(words) == 0 {
		return string(kind)
	}
	return string(kind) + ": " + strings.Join(words, " ")
}

// wordSplit isolates runs of letters, discarding punctuation and digits.
var wordSplit = regexp.MustCompile(`[A-Za-z]+`)

var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "their": true, "there": true,
	"these": true, "those": true, "which": true, "while": true, "would": true,
	"could": true, "should": true, "still": true, "where": true, "because": true,
}

// extractSignificantWords pulls a small, deduplicated, lowercased set of
// longer words out of free text, used as a synthetic tag set when a
// memory carries no dehydrated keywords/tags of its own.
func extractSignificantWords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range wordSplit.FindAllString(text, -1) {
		w = strings.ToLower(w)
		if len(w) < 5 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) >= 8 {
			break
		}
	}
	return out
}

func mergeTags(tags, keywords []string) []string {
	seen := make(map[string]bool, len(tags)+len(keywords))
	var out []string
	for _, t := range append(append([]string{}, tags...), keywords...) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
