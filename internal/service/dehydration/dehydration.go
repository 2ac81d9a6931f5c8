// Package dehydration produces a compact representation of incoming memory
// text: a gist, a bounded set of topics and tags, and a keyword bag. The
// default implementation is rule-based (stop-word-filtered term frequency
// plus sentence truncation), grounded on the same tokenize/stop-word idiom
// memorybuilder's sibling packages use elsewhere in this engine.
package dehydration

import (
	"regexp"
	"sort"
	"strings"
)

// Dehydrated is the compact representation MemoryBuilder attaches to every
// ingested memory.
type Dehydrated struct {
	Gist        string
	Topics      []string
	Tags        []string
	Keywords    []string
	FullSummary string
}

// Config bounds the shape of a Dehydrated record.
type Config struct {
	GistWordLimit int
	MaxTopics     int
	MaxTags       int
	MaxKeywords   int
}

// DefaultConfig matches the engine's documented defaults.
func DefaultConfig() Config {
	return Config{
		GistWordLimit: 100,
		MaxTopics:     5,
		MaxTags:       10,
		MaxKeywords:   25,
	}
}

// Dehydrator is the pluggable interface MemoryBuilder depends on. The
// rule-based Engine below is the default implementation; an LLM-backed
// implementation may satisfy the same interface.
type Dehydrator interface {
	Dehydrate(content string) Dehydrated
}

// Engine is the rule-based default Dehydrator.
type Engine struct {
	cfg Config
}

// New creates a rule-based dehydration engine. Zero-valued fields in cfg
// fall back to DefaultConfig.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.GistWordLimit <= 0 {
		cfg.GistWordLimit = def.GistWordLimit
	}
	if cfg.MaxTopics <= 0 {
		cfg.MaxTopics = def.MaxTopics
	}
	if cfg.MaxTags <= 0 {
		cfg.MaxTags = def.MaxTags
	}
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = def.MaxKeywords
	}
	return &Engine{cfg: cfg}
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// titleCasePhrase matches runs of two or fewer consecutive capitalized
// words, used as a cheap proper-noun-ish signal for topic candidates.
var titleCasePhrase = regexp.MustCompile(`\b[A-Z][\p{L}]*(?:\s+[A-Z][\p{L}]*){0,1}\b`)

// stopWords mirrors the function-word list used elsewhere in this engine's
// text processing; dehydration filters the same words before scoring
// frequency.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true,
	"and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "up": true, "about": true,
	"into": true, "through": true, "during": true, "before": true, "after": true,
	"above": true, "below": true, "between": true, "under": true,
	"again": true, "further": true, "then": true, "once": true,
	"is": true, "am": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "should": true, "could": true, "ought": true,
	"i": true, "me": true, "my": true, "myself": true,
	"we": true, "our": true, "ours": true, "ourselves": true,
	"you": true, "your": true, "yours": true, "yourself": true, "yourselves": true,
	"he": true, "him": true, "his": true, "himself": true,
	"she": true, "her": true, "hers": true, "herself": true,
	"it": true, "its": true, "itself": true,
	"they": true, "them": true, "their": true, "theirs": true, "themselves": true,
	"what": true, "which": true, "who": true, "whom": true,
	"this": true, "that": true, "these": true, "those": true,
	"as": true, "if": true, "each": true, "how": true, "than": true,
	"too": true, "very": true, "can": true, "just": true, "also": true,
}

type termCount struct {
	term  string
	count int
}

// Dehydrate implements Dehydrator. It never panics on empty or degenerate
// input: a blank or whitespace-only content yields a zero-valued-but-valid
// Dehydrated record with non-nil empty slices.
func (e *Engine) Dehydrate(content string) Dehydrated {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Dehydrated{Topics: []string{}, Tags: []string{}, Keywords: []string{}}
	}

	gist := truncateWords(trimmed, e.cfg.GistWordLimit)
	keywords := e.rankedKeywords(trimmed)
	tags := capStrings(keywords, e.cfg.MaxTags)
	topics := e.topics(trimmed, tags)

	full := ""
	if gist != trimmed {
		full = normalizeWhitespace(trimmed)
	}

	return Dehydrated{
		Gist:        gist,
		Topics:      topics,
		Tags:        tags,
		Keywords:    capStrings(keywords, e.cfg.MaxKeywords),
		FullSummary: full,
	}
}

// rankedKeywords tokenizes content, strips stop words and short tokens, and
// returns unique lowercase terms ordered by descending frequency (ties
// broken alphabetically for determinism).
func (e *Engine) rankedKeywords(content string) []string {
	words := wordPattern.FindAllString(strings.ToLower(content), -1)
	counts := make(map[string]int, len(words))
	for _, w := range words {
		if stopWords[w] || len(w) <= 2 {
			continue
		}
		counts[w]++
	}

	ranked := make([]termCount, 0, len(counts))
	for term, count := range counts {
		ranked = append(ranked, termCount{term, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].term < ranked[j].term
	})

	out := make([]string, len(ranked))
	for i, tc := range ranked {
		out[i] = tc.term
	}
	return out
}

// topics prefers title-case phrase candidates (a cheap proper-noun signal)
// not already surfaced as a tag, falling back to the next-ranked keywords
// when too few phrases are found. Output is lowercased per contract.
func (e *Engine) topics(content string, tags []string) []string {
	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}

	seen := make(map[string]bool)
	topics := make([]string, 0, e.cfg.MaxTopics)

	for _, phrase := range titleCasePhrase.FindAllString(content, -1) {
		lower := strings.ToLower(phrase)
		if tagSet[lower] || seen[lower] || stopWords[lower] {
			continue
		}
		seen[lower] = true
		topics = append(topics, lower)
		if len(topics) >= e.cfg.MaxTopics {
			return topics
		}
	}

	if len(topics) < e.cfg.MaxTopics {
		for _, kw := range e.rankedKeywords(content) {
			if tagSet[kw] || seen[kw] {
				continue
			}
			seen[kw] = true
			topics = append(topics, kw)
			if len(topics) >= e.cfg.MaxTopics {
				break
			}
		}
	}
	return topics
}

func capStrings(s []string, max int) []string {
	if max <= 0 || len(s) <= max {
		out := make([]string, len(s))
		copy(out, s)
		return out
	}
	out := make([]string, max)
	copy(out, s[:max])
	return out
}

// truncateWords returns the first limit whitespace-delimited words of s,
// unchanged if s already fits.
func truncateWords(s string, limit int) string {
	fields := strings.Fields(s)
	if len(fields) <= limit {
		return normalizeWhitespace(s)
	}
	return strings.Join(fields[:limit], " ")
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
