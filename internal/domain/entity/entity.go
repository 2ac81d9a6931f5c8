// Package entity defines the Entity and Relationship aggregates that make
// up the per-tenant knowledge graph EntityManager extracts from memories.
package entity

import (
	"strings"
	"time"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/vector"
	pkgerrors "hippos/pkg/errors"
)

// Kind classifies what an Entity represents.
type Kind string

const (
	KindPerson       Kind = "person"
	KindOrganization Kind = "organization"
	KindProject      Kind = "project"
	KindTool         Kind = "tool"
	KindConcept      Kind = "concept"
	KindLocation     Kind = "location"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindPerson, KindOrganization, KindProject, KindTool, KindConcept, KindLocation:
		return true
	default:
		return false
	}
}

// DedupKey is the case-folded (name, kind) pair entities are deduplicated
// on within a tenant.
func DedupKey(name string, kind Kind) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + string(kind)
}

// Entity is a node in the per-tenant knowledge graph.
type Entity struct {
	id       ids.EntityID
	tenantID ids.TenantID

	name     string
	kind     Kind
	aliases  []string
	metadata map[string]string

	embedding vector.Embedding

	mentionCount  int
	sourceMemoryIDs []string

	firstSeenAt time.Time
	lastSeenAt  time.Time
	version     int
}

// NewEntity creates an Entity first observed in sourceMemoryID.
func NewEntity(tenantID ids.TenantID, name string, kind Kind, sourceMemoryID string) (*Entity, error) {
	if tenantID.IsZero() {
		return nil, pkgerrors.NewValidation("tenant ID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.NewValidation("entity name cannot be empty")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.NewValidation("unknown entity kind")
	}

	now := time.Now()
	e := &Entity{
		id:           ids.NewEntityID(),
		tenantID:     tenantID,
		name:         name,
		kind:         kind,
		metadata:     make(map[string]string),
		mentionCount: 1,
		firstSeenAt:  now,
		lastSeenAt:   now,
		version:      1,
	}
	if sourceMemoryID != "" {
		e.sourceMemoryIDs = append(e.sourceMemoryIDs, sourceMemoryID)
	}
	return e, nil
}

// ReconstructEntity rebuilds an Entity from stored data.
func ReconstructEntity(
	id ids.EntityID, tenantID ids.TenantID, name string, kind Kind,
	aliases []string, metadata map[string]string, embedding vector.Embedding,
	mentionCount int, sourceMemoryIDs []string,
	firstSeenAt, lastSeenAt time.Time, version int,
) *Entity {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &Entity{
		id: id, tenantID: tenantID, name: name, kind: kind, aliases: aliases,
		metadata: metadata, embedding: embedding, mentionCount: mentionCount,
		sourceMemoryIDs: sourceMemoryIDs, firstSeenAt: firstSeenAt, lastSeenAt: lastSeenAt,
		version: version,
	}
}

func (e *Entity) ID() ids.EntityID        { return e.id }
func (e *Entity) TenantID() ids.TenantID  { return e.tenantID }
func (e *Entity) Name() string            { return e.name }
func (e *Entity) Kind() Kind              { return e.kind }
func (e *Entity) MentionCount() int       { return e.mentionCount }
func (e *Entity) FirstSeenAt() time.Time  { return e.firstSeenAt }
func (e *Entity) LastSeenAt() time.Time   { return e.lastSeenAt }
func (e *Entity) Version() int            { return e.version }
func (e *Entity) DedupKey() string        { return DedupKey(e.name, e.kind) }

func (e *Entity) Aliases() []string { return append([]string{}, e.aliases...) }

func (e *Entity) SourceMemoryIDs() []string { return append([]string{}, e.sourceMemoryIDs...) }

func (e *Entity) Metadata() map[string]string {
	out := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		out[k] = v
	}
	return out
}

func (e *Entity) Embedding() vector.Embedding {
	out := make(vector.Embedding, len(e.embedding))
	copy(out, e.embedding)
	return out
}

// Reinforce records a repeated mention of this entity, bumping the mention
// count and last-seen timestamp and attributing the mention's source.
func (e *Entity) Reinforce(sourceMemoryID string) {
	e.mentionCount++
	e.lastSeenAt = time.Now()
	if sourceMemoryID != "" {
		found := false
		for _, id := range e.sourceMemoryIDs {
			if id == sourceMemoryID {
				found = true
				break
			}
		}
		if !found {
			e.sourceMemoryIDs = append(e.sourceMemoryIDs, sourceMemoryID)
		}
	}
	e.touch()
}

func (e *Entity) AddAlias(alias string) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return
	}
	for _, a := range e.aliases {
		if strings.EqualFold(a, alias) {
			return
		}
	}
	e.aliases = append(e.aliases, alias)
	e.touch()
}

func (e *Entity) SetMetadata(key, value string) {
	if key == "" {
		return
	}
	e.metadata[key] = value
	e.touch()
}

func (e *Entity) SetEmbedding(embedding vector.Embedding) {
	e.embedding = append(vector.Embedding{}, embedding...)
	e.touch()
}

func (e *Entity) touch() {
	e.version++
}
