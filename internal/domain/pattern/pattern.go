// Package pattern defines the Pattern aggregate: a reusable
// solution/approach distilled from repeated successful memories.
package pattern

import (
	"math"
	"regexp"
	"strings"
	"time"

	"hippos/internal/domain/ids"
	pkgerrors "hippos/pkg/errors"
)

// Kind classifies what a Pattern captures.
type Kind string

const (
	KindProblemSolution Kind = "ProblemSolution"
	KindWorkflow        Kind = "Workflow"
	KindBestPractice    Kind = "BestPractice"
	KindCommonError     Kind = "CommonError"
	KindSkill           Kind = "Skill"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindProblemSolution, KindWorkflow, KindBestPractice, KindCommonError, KindSkill:
		return true
	default:
		return false
	}
}

// Pattern is a durable, reusable approach reinforced by outcomes.
type Pattern struct {
	id       ids.PatternID
	tenantID ids.TenantID
	userID   string // created_by

	kind        Kind
	name        string
	description string
	trigger     string // keyword-matching string
	context     string
	problem     string
	solution    string
	examples    []string
	tags        []string

	successCount   int
	failureCount   int
	averageOutcome float64
	usageCount     int

	sourceMemoryIDs []string
	confidence      float64

	createdAt time.Time
	updatedAt time.Time
	version   int
}

// New creates a Pattern. averageOutcome starts at 0 until the first
// RecordOutcome call establishes a running mean. Problem, context, and
// examples are optional and set afterward via mutators.
func New(tenantID ids.TenantID, userID string, kind Kind, name, description, trigger, solution string) (*Pattern, error) {
	if tenantID.IsZero() {
		return nil, pkgerrors.NewValidation("tenant ID cannot be empty")
	}
	if userID == "" {
		return nil, pkgerrors.NewValidation("user ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.NewValidation("unknown pattern kind")
	}
	if name == "" {
		return nil, pkgerrors.NewValidation("pattern name cannot be empty")
	}

	now := time.Now()
	return &Pattern{
		id:          ids.NewPatternID(),
		tenantID:    tenantID,
		userID:      userID,
		kind:        kind,
		name:        name,
		description: description,
		trigger:     trigger,
		solution:    solution,
		createdAt:   now,
		updatedAt:   now,
		version:     1,
	}, nil
}

// Reconstruct rebuilds a Pattern from stored data.
func Reconstruct(
	id ids.PatternID, tenantID ids.TenantID, userID string,
	kind Kind, name, description, trigger, context, problem, solution string,
	examples, tags []string,
	successCount, failureCount int, averageOutcome float64, usageCount int,
	sourceMemoryIDs []string, confidence float64,
	createdAt, updatedAt time.Time, version int,
) *Pattern {
	return &Pattern{
		id: id, tenantID: tenantID, userID: userID, kind: kind, name: name,
		description: description, trigger: trigger, context: context,
		problem: problem, solution: solution, examples: examples, tags: tags,
		successCount: successCount, failureCount: failureCount, averageOutcome: averageOutcome,
		usageCount: usageCount, sourceMemoryIDs: sourceMemoryIDs, confidence: confidence,
		createdAt: createdAt, updatedAt: updatedAt, version: version,
	}
}

// Accessors

func (p *Pattern) ID() ids.PatternID       { return p.id }
func (p *Pattern) TenantID() ids.TenantID  { return p.tenantID }
func (p *Pattern) UserID() string          { return p.userID }
func (p *Pattern) CreatedBy() string       { return p.userID }
func (p *Pattern) Kind() Kind              { return p.kind }
func (p *Pattern) Name() string            { return p.name }
func (p *Pattern) Description() string     { return p.description }
func (p *Pattern) Trigger() string         { return p.trigger }
func (p *Pattern) Context() string         { return p.context }
func (p *Pattern) Problem() string         { return p.problem }
func (p *Pattern) Solution() string        { return p.solution }
func (p *Pattern) SuccessCount() int       { return p.successCount }
func (p *Pattern) FailureCount() int       { return p.failureCount }
func (p *Pattern) AverageOutcome() float64 { return p.averageOutcome }
func (p *Pattern) UsageCount() int         { return p.usageCount }
func (p *Pattern) Confidence() float64     { return p.confidence }
func (p *Pattern) CreatedAt() time.Time    { return p.createdAt }
func (p *Pattern) UpdatedAt() time.Time    { return p.updatedAt }
func (p *Pattern) Version() int            { return p.version }

func (p *Pattern) Examples() []string        { return append([]string{}, p.examples...) }
func (p *Pattern) Tags() []string            { return append([]string{}, p.tags...) }
func (p *Pattern) SourceMemoryIDs() []string { return append([]string{}, p.sourceMemoryIDs...) }

// TotalObservations is the number of recorded outcomes.
func (p *Pattern) TotalObservations() int { return p.successCount + p.failureCount }

// SuccessRate is successCount / TotalObservations, or 0 with no observations.
func (p *Pattern) SuccessRate() float64 {
	total := p.TotalObservations()
	if total == 0 {
		return 0
	}
	return float64(p.successCount) / float64(total)
}

// keywordSplit isolates runs of letters for trigger/context keyword
// extraction, discarding punctuation and digits.
var keywordSplit = regexp.MustCompile(`[A-Za-z]+`)

var matchStopWords = map[string]bool{
	"about": true, "after": true, "again": true, "their": true, "there": true,
	"these": true, "those": true, "which": true, "while": true, "would": true,
	"could": true, "should": true, "still": true, "where": true, "because": true,
}

// keywords lowercases, splits, and stop-word-filters text into a
// deduplicated keyword set.
func keywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range keywordSplit.FindAllString(strings.ToLower(text), -1) {
		if matchStopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// MatchScore scores this pattern against a free-form context string: the
// fraction of the pattern's own trigger keywords also present in the
// context (case-insensitive, stop-word-filtered), weighted by how much
// more often the pattern has succeeded than failed. Returns 0 if the
// trigger and context share no keyword.
func (p *Pattern) MatchScore(context string) float64 {
	triggerKeywords := keywords(p.trigger)
	if len(triggerKeywords) == 0 {
		return 0
	}

	present := make(map[string]bool)
	for _, w := range keywords(context) {
		present[w] = true
	}

	var matched int
	for _, w := range triggerKeywords {
		if present[w] {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	overlap := float64(matched) / float64(len(triggerKeywords))
	weight := (1 + math.Log(1+float64(p.successCount))) / (1 + math.Log(1+float64(p.failureCount)))
	return overlap * weight
}

// Mutators

func (p *Pattern) AddTag(tag string) {
	if tag == "" {
		return
	}
	for _, t := range p.tags {
		if t == tag {
			return
		}
	}
	p.tags = append(p.tags, tag)
	p.touch()
}

func (p *Pattern) AddExample(example string) {
	if example == "" {
		return
	}
	for _, e := range p.examples {
		if e == example {
			return
		}
	}
	p.examples = append(p.examples, example)
	p.touch()
}

func (p *Pattern) SetContext(context string) {
	p.context = context
	p.touch()
}

func (p *Pattern) SetProblem(problem string) {
	p.problem = problem
	p.touch()
}

func (p *Pattern) AttributeSource(memoryID string) {
	for _, id := range p.sourceMemoryIDs {
		if id == memoryID {
			return
		}
	}
	p.sourceMemoryIDs = append(p.sourceMemoryIDs, memoryID)
	p.touch()
}

// IncrementUsage records that this pattern was selected as a match for a
// situation. usage_count is independently monotone: it only ever grows,
// regardless of whether an outcome is later recorded against it.
func (p *Pattern) IncrementUsage() {
	p.usageCount++
	p.touch()
}

// RecordOutcome records a success or failure observation, updating the
// running mean outcome (outcome in [0,1], 1 = fully successful) and
// recomputing confidence from the observed success rate.
func (p *Pattern) RecordOutcome(success bool, outcome float64) {
	outcome = clamp01(outcome)
	total := p.TotalObservations()
	p.averageOutcome = (p.averageOutcome*float64(total) + outcome) / float64(total+1)

	if success {
		p.successCount++
	} else {
		p.failureCount++
	}
	p.confidence = p.SuccessRate()
	p.touch()
}

// UpdateDescription replaces the pattern's narrative fields.
func (p *Pattern) UpdateDescription(description, trigger, solution string) {
	p.description, p.trigger, p.solution = description, trigger, solution
	p.touch()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (p *Pattern) touch() {
	p.updatedAt = time.Now()
	p.version++
}
