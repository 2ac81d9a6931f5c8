// Package lexicalindex is a per-tenant inverted-index keyword search
// implementing ports.LexicalIndex, scored by TF/IDF with a recency
// tie-break rather than a plain substring scan.
package lexicalindex

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"hippos/internal/domain/ids"
	"hippos/internal/ports"
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

type posting struct {
	memoryID  ids.MemoryID
	termFreq  map[string]int
	docLength int
	indexedAt time.Time
}

type tenantIndex struct {
	docs      map[string]*posting // memoryID -> posting
	postings  map[string]map[string]bool // term -> set of memoryIDs
}

func newTenantIndex() *tenantIndex {
	return &tenantIndex{
		docs:     make(map[string]*posting),
		postings: make(map[string]map[string]bool),
	}
}

// Index is the in-memory, mutex-guarded LexicalIndex implementation.
type Index struct {
	mu      sync.RWMutex
	tenants map[ids.TenantID]*tenantIndex
}

// New creates an empty Index.
func New() *Index {
	return &Index{tenants: make(map[ids.TenantID]*tenantIndex)}
}

func (idx *Index) Index(_ context.Context, tenantID ids.TenantID, memoryID ids.MemoryID, text string, at time.Time) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	t, ok := idx.tenants[tenantID]
	if !ok {
		t = newTenantIndex()
		idx.tenants[tenantID] = t
	}

	idKey := memoryID.String()
	if existing, ok := t.docs[idKey]; ok {
		for term := range existing.termFreq {
			delete(t.postings[term], idKey)
		}
	}

	tokens := tokenize(text)
	termFreq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		termFreq[tok]++
	}

	t.docs[idKey] = &posting{
		memoryID:  memoryID,
		termFreq:  termFreq,
		docLength: len(tokens),
		indexedAt: at,
	}
	for term := range termFreq {
		if t.postings[term] == nil {
			t.postings[term] = make(map[string]bool)
		}
		t.postings[term][idKey] = true
	}
	return nil
}

func (idx *Index) Remove(_ context.Context, tenantID ids.TenantID, memoryID ids.MemoryID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	t, ok := idx.tenants[tenantID]
	if !ok {
		return nil
	}
	idKey := memoryID.String()
	if existing, ok := t.docs[idKey]; ok {
		for term := range existing.termFreq {
			delete(t.postings[term], idKey)
		}
		delete(t.docs, idKey)
	}
	return nil
}

// Search scores candidate documents (those sharing at least one query
// token) by summed TF/IDF across query terms, breaking ties toward the
// more recently indexed document.
func (idx *Index) Search(_ context.Context, tenantID ids.TenantID, query string, topK int) ([]ports.ScoredID, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	t, ok := idx.tenants[tenantID]
	if !ok || topK <= 0 {
		return nil, nil
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	numDocs := len(t.docs)
	if numDocs == 0 {
		return nil, nil
	}

	scores := make(map[string]float64)
	for _, term := range queryTerms {
		docIDs, ok := t.postings[term]
		if !ok || len(docIDs) == 0 {
			continue
		}
		idf := math.Log(1 + float64(numDocs)/float64(len(docIDs)))
		for idKey := range docIDs {
			doc := t.docs[idKey]
			tf := float64(doc.termFreq[term]) / float64(doc.docLength)
			scores[idKey] += tf * idf
		}
	}

	type candidate struct {
		scored    ports.ScoredID
		indexedAt time.Time
	}
	candidates := make([]candidate, 0, len(scores))
	for idKey, score := range scores {
		doc := t.docs[idKey]
		candidates = append(candidates, candidate{
			scored:    ports.ScoredID{MemoryID: doc.memoryID, Score: score},
			indexedAt: doc.indexedAt,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].scored.Score != candidates[j].scored.Score {
			return candidates[i].scored.Score > candidates[j].scored.Score
		}
		return candidates[i].indexedAt.After(candidates[j].indexedAt)
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]ports.ScoredID, len(candidates))
	for i, c := range candidates {
		out[i] = c.scored
	}
	return out, nil
}
