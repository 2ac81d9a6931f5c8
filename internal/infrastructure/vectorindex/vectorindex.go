// Package vectorindex is a brute-force, per-tenant cosine-similarity
// VectorIndex. It holds every embedding resident in memory and scans
// linearly on Search; the reference document store is explicitly scoped
// to small-to-moderate per-tenant corpora (see spec Non-goals), so a
// linear scan over a sharded-by-tenant map is the right complexity
// trade for correctness and simplicity over an ANN structure.
package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/vector"
	"hippos/internal/ports"
)

type entry struct {
	memoryID  ids.MemoryID
	embedding vector.Embedding
	indexedAt time.Time
}

// Index is the in-memory VectorIndex implementation.
type Index struct {
	mu      sync.RWMutex
	entries map[ids.TenantID]map[string]entry
}

// New creates an empty Index.
func New() *Index {
	return &Index{entries: make(map[ids.TenantID]map[string]entry)}
}

func (idx *Index) Upsert(_ context.Context, tenantID ids.TenantID, memoryID ids.MemoryID, embedding vector.Embedding, at time.Time) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tenantEntries, ok := idx.entries[tenantID]
	if !ok {
		tenantEntries = make(map[string]entry)
		idx.entries[tenantID] = tenantEntries
	}
	tenantEntries[memoryID.String()] = entry{
		memoryID:  memoryID,
		embedding: append(vector.Embedding{}, embedding...),
		indexedAt: at,
	}
	return nil
}

func (idx *Index) Remove(_ context.Context, tenantID ids.TenantID, memoryID ids.MemoryID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if tenantEntries, ok := idx.entries[tenantID]; ok {
		delete(tenantEntries, memoryID.String())
	}
	return nil
}

// Search returns up to topK hits ordered by descending cosine similarity.
// Entries whose similarity to query is NaN (mismatched dimension, or a
// zero-magnitude vector on either side) are excluded rather than ranked;
// ties break toward the more recently indexed memory.
func (idx *Index) Search(_ context.Context, tenantID ids.TenantID, query vector.Embedding, topK int) ([]ports.ScoredID, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tenantEntries := idx.entries[tenantID]
	if len(tenantEntries) == 0 || topK <= 0 {
		return nil, nil
	}

	type candidate struct {
		scored    ports.ScoredID
		indexedAt time.Time
	}
	candidates := make([]candidate, 0, len(tenantEntries))
	for _, e := range tenantEntries {
		sim := vector.Cosine(query, e.embedding)
		if math.IsNaN(sim) {
			continue
		}
		candidates = append(candidates, candidate{
			scored:    ports.ScoredID{MemoryID: e.memoryID, Score: sim},
			indexedAt: e.indexedAt,
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
