// Package ports defines the hexagonal boundary between the domain/service
// layer and its infrastructure adapters: repositories, indices, and
// pluggable generation providers. The domain never imports an
// infrastructure package directly, only these interfaces.
package ports

import (
	"context"
	"time"

	"hippos/internal/domain/entity"
	"hippos/internal/domain/events"
	"hippos/internal/domain/ids"
	"hippos/internal/domain/memory"
	"hippos/internal/domain/pattern"
	"hippos/internal/domain/profile"
	"hippos/internal/domain/vector"
)

// ListOptions bounds and orders a repository List call. Pagination is
// always capped at a configured maximum, clamped rather than rejected.
type ListOptions struct {
	Limit     int
	Offset    int
	OrderBy   string
	OrderDesc bool
}

// MemoryRepository persists Memory aggregates, scoped to a tenant on
// every query. Update is optimistic-concurrency checked: it must fail
// with a Conflict error if the stored version does not equal the
// in-memory aggregate's version minus one.
type MemoryRepository interface {
	Create(ctx context.Context, m *memory.Memory) error
	Get(ctx context.Context, tenantID ids.TenantID, id ids.MemoryID) (*memory.Memory, error)
	Update(ctx context.Context, m *memory.Memory) error
	Delete(ctx context.Context, tenantID ids.TenantID, id ids.MemoryID) error
	List(ctx context.Context, tenantID ids.TenantID, userID string, opts ListOptions) ([]*memory.Memory, error)
	Count(ctx context.Context, tenantID ids.TenantID) (int, error)

	// FindBySourceID supports idempotent ingestion: a second ingest call
	// carrying the same (userID, sourceID) pair must resolve to the
	// existing Memory rather than create a duplicate.
	FindBySourceID(ctx context.Context, tenantID ids.TenantID, userID, sourceID string) (*memory.Memory, error)

	// FindActive lists every Active memory for a user, for maintenance
	// sweeps (decay, redundancy merge) that must consider the whole set.
	FindActive(ctx context.Context, tenantID ids.TenantID, userID string) ([]*memory.Memory, error)

	// FindPendingReindex lists memories flagged for an index-write retry.
	FindPendingReindex(ctx context.Context, tenantID ids.TenantID) ([]*memory.Memory, error)

	// FindExpired lists memories whose expiresAt has passed, for purge.
	FindExpired(ctx context.Context, tenantID ids.TenantID, asOf time.Time) ([]*memory.Memory, error)
}

// ProfileRepository persists Profile aggregates. (tenant_id, user_id) is
// unique; Create must fail with Conflict if one already exists.
type ProfileRepository interface {
	Create(ctx context.Context, p *profile.Profile) error
	Get(ctx context.Context, tenantID ids.TenantID, id ids.ProfileID) (*profile.Profile, error)
	GetByUserID(ctx context.Context, tenantID ids.TenantID, userID string) (*profile.Profile, error)
	Update(ctx context.Context, p *profile.Profile) error
	Delete(ctx context.Context, tenantID ids.TenantID, id ids.ProfileID) error
}

// PatternRepository persists Pattern aggregates.
type PatternRepository interface {
	Create(ctx context.Context, p *pattern.Pattern) error
	Get(ctx context.Context, tenantID ids.TenantID, id ids.PatternID) (*pattern.Pattern, error)
	Update(ctx context.Context, p *pattern.Pattern) error
	Delete(ctx context.Context, tenantID ids.TenantID, id ids.PatternID) error
	List(ctx context.Context, tenantID ids.TenantID, userID string, opts ListOptions) ([]*pattern.Pattern, error)

	// FindByTags lists patterns sharing at least one of the given tags,
	// the candidate set PatternManager's dedup check scores against.
	FindByTags(ctx context.Context, tenantID ids.TenantID, userID string, tags []string) ([]*pattern.Pattern, error)
}

// EntityRepository persists Entity nodes, deduplicated per tenant by
// case-folded (name, kind).
type EntityRepository interface {
	Create(ctx context.Context, e *entity.Entity) error
	Get(ctx context.Context, tenantID ids.TenantID, id ids.EntityID) (*entity.Entity, error)
	Update(ctx context.Context, e *entity.Entity) error
	Delete(ctx context.Context, tenantID ids.TenantID, id ids.EntityID) error
	List(ctx context.Context, tenantID ids.TenantID, opts ListOptions) ([]*entity.Entity, error)

	// FindByDedupKey looks up an existing entity by its case-folded
	// (name, kind) key, used by EntityManager to decide reinforce-vs-create.
	FindByDedupKey(ctx context.Context, tenantID ids.TenantID, key string) (*entity.Entity, error)
}

// RelationshipRepository persists Relationship edges, deduplicated per
// tenant by (source, target, kind).
type RelationshipRepository interface {
	Create(ctx context.Context, r *entity.Relationship) error
	Get(ctx context.Context, tenantID ids.TenantID, id ids.RelationshipID) (*entity.Relationship, error)
	Update(ctx context.Context, r *entity.Relationship) error
	Delete(ctx context.Context, tenantID ids.TenantID, id ids.RelationshipID) error

	// FindByDedupKey looks up an existing relationship by its
	// (tenant, source, target, kind) key.
	FindByDedupKey(ctx context.Context, tenantID ids.TenantID, key string) (*entity.Relationship, error)

	// FindByEntity lists every relationship touching entityID as either
	// source or target, the adjacency list Traverse walks.
	FindByEntity(ctx context.Context, tenantID ids.TenantID, entityID ids.EntityID) ([]*entity.Relationship, error)
}

// GraphStats summarizes a tenant's knowledge graph and memory store for
// diagnostics.
type GraphStats struct {
	ActiveMemoryCount   int
	ArchivedMemoryCount int
	PatternCount        int
	EntityCount         int
	RelationshipCount   int
	AverageImportance   float64
}

// VectorIndex is the semantic-search port: per-tenant approximate or
// brute-force nearest-neighbor search over Memory embeddings.
type VectorIndex interface {
	Upsert(ctx context.Context, tenantID ids.TenantID, memoryID ids.MemoryID, embedding vector.Embedding, at time.Time) error
	Remove(ctx context.Context, tenantID ids.TenantID, memoryID ids.MemoryID) error

	// Search returns up to topK (memoryID, score) pairs ordered by
	// descending cosine similarity. Ties break toward the more recently
	// indexed memory. Never returns NaN scores; vectors with NaN
	// similarity to the query are excluded rather than ranked last.
	Search(ctx context.Context, tenantID ids.TenantID, query vector.Embedding, topK int) ([]ScoredID, error)
}

// LexicalIndex is the keyword-search port: inverted-index TF/IDF scoring
// over Memory text.
type LexicalIndex interface {
	Index(ctx context.Context, tenantID ids.TenantID, memoryID ids.MemoryID, text string, at time.Time) error
	Remove(ctx context.Context, tenantID ids.TenantID, memoryID ids.MemoryID) error
	Search(ctx context.Context, tenantID ids.TenantID, query string, topK int) ([]ScoredID, error)
}

// ScoredID is a ranked search hit shared by VectorIndex and LexicalIndex.
type ScoredID struct {
	MemoryID ids.MemoryID
	Score    float64
}

// EmbeddingProvider computes a fixed-dimension embedding for text. An
// implementation is free to cache, but must be safe for concurrent use
// and idempotent: the same text must always embed to the same vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) (vector.Embedding, error)
	Dimension() int
}

// PatternGenerator optionally enriches a rule-discovered pattern with a
// natural-language description. The rule-based pattern discovery path
// must work correctly with no PatternGenerator configured.
type PatternGenerator interface {
	Describe(ctx context.Context, trigger, solution string, examples []string) (description string, err error)
}

// EventPublisher is the out-of-scope-transport-facing side of the
// domain-event bus: services publish; delivery is a best-effort,
// in-process concern (see internal/infrastructure/eventbus).
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}
