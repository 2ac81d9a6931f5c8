// Package embedding provides EmbeddingProvider implementations: a
// deterministic, dependency-free default and an OpenAI-backed
// alternative. The default never makes a network call, so ingestion and
// recall work end-to-end with zero external configuration.
package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"hippos/internal/domain/vector"
)

// HashEmbedder is a deterministic, hash-based EmbeddingProvider. It is
// not a semantically meaningful embedding model -- it exists so the
// engine has a correct, zero-dependency default that is idempotent and
// safe for concurrent use, per the embedding provider's required
// contract. Each dimension is fed by a distinct FNV-1a seed over the
// token stream so that similar texts (sharing tokens) land closer in
// cosine distance than unrelated texts.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a HashEmbedder producing vectors of the given
// dimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &HashEmbedder{dimension: dimension}
}

func (h *HashEmbedder) Dimension() int { return h.dimension }

// Embed is pure and stateless: the same text always yields the same
// vector, and concurrent calls never share mutable state.
func (h *HashEmbedder) Embed(_ context.Context, text string) (vector.Embedding, error) {
	tokens := tokenize(text)
	out := make(vector.Embedding, h.dimension)
	if len(tokens) == 0 {
		return out, nil
	}

	for _, tok := range tokens {
		for d := 0; d < h.dimension; d++ {
			hasher := fnv.New32a()
			hasher.Write([]byte(tok))
			hasher.Write([]byte{byte(d), byte(d >> 8)})
			sum := hasher.Sum32()
			// Map the hash to a signed unit contribution so unrelated
			// tokens partially cancel rather than only ever accumulating.
			if sum%2 == 0 {
				out[d] += float32(sum%1000) / 1000.0
			} else {
				out[d] -= float32(sum%1000) / 1000.0
			}
		}
	}

	normalize(out)
	return out, nil
}

func normalize(v vector.Embedding) {
	var mag float64
	for _, f := range v {
		mag += float64(f) * float64(f)
	}
	if mag == 0 {
		return
	}
	scale := float32(1.0 / math.Sqrt(mag))
	for i := range v {
		v[i] *= scale
	}
}

func tokenize(text string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = nil
		}
	}
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			cur = append(cur, r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
