// Package memory defines the Memory aggregate, the atomic unit of recall.
//
// The type follows a rich-aggregate idiom: private fields, a validating
// constructor, a Reconstruct path for repository hydration, explicit
// mutators that bump the optimistic-concurrency version and record
// domain events, and read-only accessors.
package memory

import (
	"time"

	"hippos/internal/domain/events"
	"hippos/internal/domain/ids"
	"hippos/internal/domain/vector"
	pkgerrors "hippos/pkg/errors"
)

// Kind classifies what a Memory represents.
type Kind string

const (
	KindEpisodic   Kind = "episodic"
	KindSemantic   Kind = "semantic"
	KindProcedural Kind = "procedural"
	KindProfile    Kind = "profile"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindEpisodic, KindSemantic, KindProcedural, KindProfile:
		return true
	default:
		return false
	}
}

// Source identifies where a Memory's content originated.
type Source string

const (
	SourceConversation Source = "conversation"
	SourceResearch     Source = "research"
	SourceExecution    Source = "execution"
	SourceUserConfig   Source = "user_config"
)

func (s Source) IsValid() bool {
	switch s {
	case SourceConversation, SourceResearch, SourceExecution, SourceUserConfig:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a Memory. It is monotone within the
// sequence Active -> Archived -> Deleted.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// canTransition reports whether moving from s to next respects the
// monotone Active -> Archived -> Deleted sequence.
func (s Status) canTransition(next Status) bool {
	order := map[Status]int{StatusActive: 0, StatusArchived: 1, StatusDeleted: 2}
	cur, ok1 := order[s]
	nxt, ok2 := order[next]
	return ok1 && ok2 && nxt >= cur
}

// Memory is the atomic unit of recall.
type Memory struct {
	id         ids.MemoryID
	tenantID   ids.TenantID
	userID     string
	kind       Kind
	source     Source
	sourceID   string
	content    string
	gist       string
	fullSummary string
	keywords   []string
	topics     []string
	tags       []string
	embedding  vector.Embedding
	importance float64
	confidence float64
	parentID   string
	relatedIDs []string
	createdAt  time.Time
	updatedAt  time.Time
	accessedAt time.Time
	expiresAt  *time.Time
	status     Status
	version    int

	pendingReindex bool
	patternCandidate bool

	uncommitted []events.DomainEvent
}

// New creates a new Memory with full invariant validation. importance and
// confidence are expected to already be clamped to [0,1] by the caller
// (MemoryBuilder's scoring function); New re-clamps defensively.
func New(tenantID ids.TenantID, userID string, kind Kind, source Source, sourceID, content string, importance, confidence float64) (*Memory, error) {
	if tenantID.IsZero() {
		return nil, pkgerrors.NewValidation("tenant ID cannot be empty")
	}
	if userID == "" {
		return nil, pkgerrors.NewValidation("user ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.NewValidation("unknown memory kind")
	}
	if !source.IsValid() {
		return nil, pkgerrors.NewValidation("unknown memory source")
	}
	if content == "" {
		return nil, pkgerrors.NewValidation("content cannot be empty")
	}

	now := time.Now()
	m := &Memory{
		id:         ids.NewMemoryID(),
		tenantID:   tenantID,
		userID:     userID,
		kind:       kind,
		source:     source,
		sourceID:   sourceID,
		content:    content,
		importance: clamp01(importance),
		confidence: clamp01(confidence),
		relatedIDs: []string{},
		createdAt:  now,
		updatedAt:  now,
		accessedAt: now,
		status:     StatusActive,
		version:    1,
	}

	m.addEvent(events.NewMemoryCreated(string(tenantID), m.id.String(), now))
	return m, nil
}

// Reconstruct rebuilds a Memory from stored data without re-running
// creation-time validation side effects (no event is raised).
func Reconstruct(
	id ids.MemoryID,
	tenantID ids.TenantID,
	userID string,
	kind Kind,
	source Source,
	sourceID, content, gist, fullSummary string,
	keywords, topics, tags []string,
	embedding vector.Embedding,
	importance, confidence float64,
	parentID string,
	relatedIDs []string,
	createdAt, updatedAt, accessedAt time.Time,
	expiresAt *time.Time,
	status Status,
	version int,
	pendingReindex, patternCandidate bool,
) *Memory {
	return &Memory{
		id: id, tenantID: tenantID, userID: userID, kind: kind, source: source,
		sourceID: sourceID, content: content, gist: gist, fullSummary: fullSummary,
		keywords: keywords, topics: topics, tags: tags, embedding: embedding,
		importance: importance, confidence: confidence, parentID: parentID,
		relatedIDs: relatedIDs, createdAt: createdAt, updatedAt: updatedAt,
		accessedAt: accessedAt, expiresAt: expiresAt, status: status, version: version,
		pendingReindex: pendingReindex, patternCandidate: patternCandidate,
	}
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

// Accessors

func (m *Memory) ID() ids.MemoryID           { return m.id }
func (m *Memory) TenantID() ids.TenantID     { return m.tenantID }
func (m *Memory) UserID() string             { return m.userID }
func (m *Memory) Kind() Kind                 { return m.kind }
func (m *Memory) Source() Source             { return m.source }
func (m *Memory) SourceID() string           { return m.sourceID }
func (m *Memory) Content() string            { return m.content }
func (m *Memory) Gist() string               { return m.gist }
func (m *Memory) FullSummary() string        { return m.fullSummary }
func (m *Memory) Importance() float64        { return m.importance }
func (m *Memory) Confidence() float64        { return m.confidence }
func (m *Memory) ParentID() string           { return m.parentID }
func (m *Memory) CreatedAt() time.Time       { return m.createdAt }
func (m *Memory) UpdatedAt() time.Time       { return m.updatedAt }
func (m *Memory) AccessedAt() time.Time      { return m.accessedAt }
func (m *Memory) ExpiresAt() *time.Time      { return m.expiresAt }
func (m *Memory) Status() Status             { return m.status }
func (m *Memory) Version() int               { return m.version }
func (m *Memory) PendingReindex() bool       { return m.pendingReindex }
func (m *Memory) IsPatternCandidate() bool   { return m.patternCandidate }

func (m *Memory) Keywords() []string {
	out := make([]string, len(m.keywords))
	copy(out, m.keywords)
	return out
}

func (m *Memory) Topics() []string {
	out := make([]string, len(m.topics))
	copy(out, m.topics)
	return out
}

func (m *Memory) Tags() []string {
	out := make([]string, len(m.tags))
	copy(out, m.tags)
	return out
}

func (m *Memory) RelatedIDs() []string {
	out := make([]string, len(m.relatedIDs))
	copy(out, m.relatedIDs)
	return out
}

// Embedding returns the memory's embedding, or a zero-length vector if it
// has not been indexed yet.
func (m *Memory) Embedding() vector.Embedding {
	out := make(vector.Embedding, len(m.embedding))
	copy(out, m.embedding)
	return out
}

// IsActive reports whether this memory may appear in a recall result.
func (m *Memory) IsActive() bool { return m.status == StatusActive }

// TextForEmbedding returns the text MemoryBuilder should embed: the gist
// if present, otherwise the raw content.
func (m *Memory) TextForEmbedding() string {
	if m.gist != "" {
		return m.gist
	}
	return m.content
}

// Mutators

// AttachDehydration records the Dehydration component's output. Called
// once during ingestion, before the first persist, so it does not bump
// the version (the Memory has not yet been observed by any reader).
func (m *Memory) AttachDehydration(gist, fullSummary string, keywords, topics, tags []string) {
	m.gist = gist
	m.fullSummary = fullSummary
	m.keywords = append([]string{}, keywords...)
	m.topics = append([]string{}, topics...)
	m.tags = append([]string{}, tags...)
}

// MarkPatternCandidate flags the memory for PatternManager's
// auto-discovery pass when importance crosses the configured threshold.
func (m *Memory) MarkPatternCandidate() {
	m.patternCandidate = true
}

// SetEmbedding validates the embedding's dimension and attaches it,
// bumping the version since this represents a committed update.
func (m *Memory) SetEmbedding(e vector.Embedding, expectedDim int) error {
	if len(e) != expectedDim {
		return pkgerrors.NewValidation("embedding dimension mismatch")
	}
	m.embedding = append(vector.Embedding{}, e...)
	m.pendingReindex = false
	m.touch()
	return nil
}

// FlagPendingReindex marks the memory as needing a retry of index writes,
// without failing the ingestion that discovered the problem.
func (m *Memory) FlagPendingReindex() {
	m.pendingReindex = true
	m.touch()
}

// BumpAccessed records a recall-triggered read. Bumps version because the
// engine treats every committed write, including access bookkeeping, as
// a countable update (see the testable version-count invariant).
func (m *Memory) BumpAccessed(at time.Time) {
	if at.Before(m.createdAt) {
		at = m.createdAt
	}
	m.accessedAt = at
	m.touch()
}

// ApplyImportanceDecay multiplies importance by factor and clamps it,
// returning whether the memory should now be archived.
func (m *Memory) ApplyImportanceDecay(factor, archiveThreshold float64) bool {
	m.importance = clamp01(m.importance * factor)
	m.touch()
	return m.importance < archiveThreshold
}

// UpdateContent replaces content and re-derives nothing automatically;
// callers are expected to re-run Dehydration/embedding afterward.
func (m *Memory) UpdateContent(content string) error {
	if m.status == StatusDeleted {
		return pkgerrors.NewValidation("cannot update a deleted memory")
	}
	if content == "" {
		return pkgerrors.NewValidation("content cannot be empty")
	}
	if content == m.content {
		return nil
	}
	m.content = content
	m.touch()
	return nil
}

// AddRelated appends a related memory id if not already present.
func (m *Memory) AddRelated(id string) {
	for _, r := range m.relatedIDs {
		if r == id {
			return
		}
	}
	m.relatedIDs = append(m.relatedIDs, id)
	m.touch()
}

// Archive transitions the memory to Archived, enforcing the monotone
// lifecycle and raising MemoryArchived.
func (m *Memory) Archive(reason string) error {
	if m.status == StatusArchived {
		return nil
	}
	if !m.status.canTransition(StatusArchived) {
		return pkgerrors.NewValidation("cannot archive a deleted memory")
	}
	m.status = StatusArchived
	m.touch()
	m.addEvent(events.NewMemoryArchived(string(m.tenantID), m.id.String(), reason, m.updatedAt))
	return nil
}

// Delete transitions the memory to Deleted. Only valid from Archived,
// matching the "destroyed only by explicit purge after the archived
// grace period" lifecycle rule.
func (m *Memory) Delete() error {
	if m.status == StatusDeleted {
		return nil
	}
	if m.status != StatusArchived {
		return pkgerrors.NewValidation("only an archived memory may be deleted")
	}
	m.status = StatusDeleted
	m.touch()
	return nil
}

// MergeLosingSibling folds a duplicate memory into this one during
// redundancy merge: distinct related ids are appended and the loser is
// left for the caller to archive.
func (m *Memory) MergeLosingSibling(loser *Memory) {
	m.AddRelated(loser.id.String())
	for _, r := range loser.relatedIDs {
		m.AddRelated(r)
	}
}

func (m *Memory) touch() {
	m.updatedAt = time.Now()
	m.version++
	m.addEvent(events.NewMemoryUpdated(string(m.tenantID), m.id.String(), m.version, m.updatedAt))
}

func (m *Memory) addEvent(e events.DomainEvent) {
	m.uncommitted = append(m.uncommitted, e)
}

// UncommittedEvents returns domain events raised since the last commit.
func (m *Memory) UncommittedEvents() []events.DomainEvent { return m.uncommitted }

// MarkEventsCommitted clears the uncommitted event buffer.
func (m *Memory) MarkEventsCommitted() { m.uncommitted = nil }
