// Package memorybuilder implements MemoryBuilder: turning a raw
// (user_id, kind, content, source) tuple into a persisted, indexed
// Memory. The seven-step ingestion algorithm is ordered so that a later
// step's failure never leaves the Memory invisible, only flagged for
// retry: persist first, then best-effort enrich through the dual-index,
// entity, and pattern pipeline.
package memorybuilder

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/memory"
	"hippos/internal/infrastructure/breaker"
	"hippos/internal/ports"
	"hippos/internal/service/dehydration"
	pkgerrors "hippos/pkg/errors"
)

// Config bounds MemoryBuilder's ingestion behavior.
type Config struct {
	MaxContentLength           int
	EntityExtractionThreshold  int
	PatternCandidateImportance float64
}

// DefaultConfig matches the engine's documented defaults (spec §4.6).
func DefaultConfig() Config {
	return Config{
		MaxContentLength:           100_000,
		EntityExtractionThreshold:  200,
		PatternCandidateImportance: 0.7,
	}
}

// EntityExtractor is the optional step-6 collaborator. A nil extractor
// (or a request with ExtractEntities unset) simply skips the step; the
// rest of ingestion is unaffected.
type EntityExtractor interface {
	ExtractFromMemory(ctx context.Context, tenantID ids.TenantID, userID string, memoryID ids.MemoryID, content string) error
}

// Request is the input to Ingest.
type Request struct {
	TenantID ids.TenantID
	UserID   string
	Kind     memory.Kind
	Source   memory.Source
	SourceID string
	Content  string

	// ImportanceOverride, if non-nil, replaces the computed importance
	// score entirely (still re-clamped to [0,1]).
	ImportanceOverride *float64

	// ExtractEntities enables step 6 for this call. EntityManager work is
	// not free, so callers opt in per ingest rather than it running
	// unconditionally above the length threshold.
	ExtractEntities bool
}

// Builder is the default, rule-based MemoryBuilder.
type Builder struct {
	memories     ports.MemoryRepository
	vectorIndex  ports.VectorIndex
	lexicalIndex ports.LexicalIndex
	embeddings   ports.EmbeddingProvider
	dehydrator   dehydration.Dehydrator
	entities     EntityExtractor
	events       ports.EventPublisher
	indexBreaker *breaker.Breaker
	logger       *zap.Logger
	cfg          Config
}

// New creates a Builder. entities, events, and indexBreaker may be nil:
// entity extraction, event publication, and the circuit breaker around
// index/embedding writes are all optional.
func New(
	memories ports.MemoryRepository,
	vectorIndex ports.VectorIndex,
	lexicalIndex ports.LexicalIndex,
	embeddings ports.EmbeddingProvider,
	dehydrator dehydration.Dehydrator,
	entities EntityExtractor,
	events ports.EventPublisher,
	indexBreaker *breaker.Breaker,
	logger *zap.Logger,
	cfg Config,
) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		memories: memories, vectorIndex: vectorIndex, lexicalIndex: lexicalIndex,
		embeddings: embeddings, dehydrator: dehydrator, entities: entities,
		events: events, indexBreaker: indexBreaker, logger: logger, cfg: cfg,
	}
}

// Ingest runs the full seven-step pipeline, returning the persisted (or,
// for a duplicate source_id, pre-existing) Memory.
func (b *Builder) Ingest(ctx context.Context, req Request) (*memory.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewCancelled("ingest cancelled before starting")
	}

	// Step 1: validate.
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, pkgerrors.NewValidation("content cannot be empty")
	}
	maxLen := b.cfg.MaxContentLength
	if maxLen <= 0 {
		maxLen = DefaultConfig().MaxContentLength
	}
	if len(content) > maxLen {
		return nil, pkgerrors.NewValidation("content exceeds maximum length")
	}
	if req.TenantID.IsZero() {
		return nil, pkgerrors.NewValidation("tenant ID cannot be empty")
	}

	// Idempotence: a second ingest with the same (tenant, user, source_id)
	// resolves to the first Memory rather than creating a duplicate.
	if req.SourceID != "" {
		existing, err := b.memories.FindBySourceID(ctx, req.TenantID, req.UserID, req.SourceID)
		if err == nil && existing != nil {
			return existing, nil
		}
		if err != nil && !pkgerrors.IsNotFound(err) {
			return nil, err
		}
	}

	// Step 2: compute importance.
	importance := computeImportance(content, req.Kind, req.ImportanceOverride)

	// Construction clamps importance again defensively; confidence starts
	// at 1.0 for a directly ingested memory (not yet corroborated or
	// contradicted by anything else).
	m, err := memory.New(req.TenantID, req.UserID, req.Kind, req.Source, req.SourceID, content, importance, 1.0)
	if err != nil {
		return nil, err
	}

	// Step 3: dehydrate.
	if b.dehydrator != nil {
		d := b.dehydrator.Dehydrate(content)
		m.AttachDehydration(d.Gist, d.FullSummary, d.Keywords, d.Topics, d.Tags)
	}

	// Step 4: persist Active/version=1. Abort and propagate on failure;
	// nothing downstream may run against an uncommitted Memory.
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewCancelled("ingest cancelled before persist")
	}
	if err := b.memories.Create(ctx, m); err != nil {
		return nil, err
	}
	b.publish(ctx, m)

	// Step 5: embed + dual-index, independently. A failure in either path
	// flags the memory pending-reindex rather than failing ingestion;
	// the memory is already durable and retrievable via the other path.
	b.indexMemory(ctx, m)

	// Step 6: optional entity extraction above the length threshold.
	threshold := b.cfg.EntityExtractionThreshold
	if threshold <= 0 {
		threshold = DefaultConfig().EntityExtractionThreshold
	}
	if req.ExtractEntities && b.entities != nil && len(content) > threshold {
		if err := b.entities.ExtractFromMemory(ctx, req.TenantID, req.UserID, m.ID(), content); err != nil {
			b.logger.Warn("entity extraction failed during ingest",
				zap.String("memory_id", m.ID().String()), zap.Error(err))
		}
	}

	// Step 7: flag pattern candidates.
	candidateThreshold := b.cfg.PatternCandidateImportance
	if candidateThreshold <= 0 {
		candidateThreshold = DefaultConfig().PatternCandidateImportance
	}
	if m.Importance() >= candidateThreshold {
		m.MarkPatternCandidate()
		if err := b.memories.Update(ctx, m); err != nil {
			b.logger.Warn("failed to persist pattern-candidate flag",
				zap.String("memory_id", m.ID().String()), zap.Error(err))
		}
		b.publish(ctx, m)
	}

	return m, nil
}

// indexMemory embeds the memory's gist (or content) and writes both
// indices, wrapped in the optional circuit breaker. Either failure sets
// pendingReindex rather than aborting ingestion.
func (b *Builder) indexMemory(ctx context.Context, m *memory.Memory) {
	text := m.TextForEmbedding()
	var embedding []float32
	embedErr := b.call(ctx, func(ctx context.Context) error {
		v, err := b.embeddings.Embed(ctx, text)
		if err != nil {
			return err
		}
		embedding = v
		return nil
	})

	failed := false
	if embedErr != nil {
		b.logger.Warn("embedding failed during ingest",
			zap.String("memory_id", m.ID().String()), zap.Error(embedErr))
		failed = true
	} else {
		if err := m.SetEmbedding(embedding, b.embeddings.Dimension()); err != nil {
			b.logger.Warn("embedding dimension mismatch during ingest",
				zap.String("memory_id", m.ID().String()), zap.Error(err))
			failed = true
		} else if err := b.call(ctx, func(ctx context.Context) error {
			return b.vectorIndex.Upsert(ctx, m.TenantID(), m.ID(), m.Embedding(), m.UpdatedAt())
		}); err != nil {
			b.logger.Warn("vector index upsert failed during ingest",
				zap.String("memory_id", m.ID().String()), zap.Error(err))
			failed = true
		}
	}

	if err := b.call(ctx, func(ctx context.Context) error {
		return b.lexicalIndex.Index(ctx, m.TenantID(), m.ID(), text, m.UpdatedAt())
	}); err != nil {
		b.logger.Warn("lexical index write failed during ingest",
			zap.String("memory_id", m.ID().String()), zap.Error(err))
		failed = true
	}

	if failed {
		m.FlagPendingReindex()
	}
	if err := b.memories.Update(ctx, m); err != nil {
		b.logger.Warn("failed to persist post-index memory state",
			zap.String("memory_id", m.ID().String()), zap.Error(err))
		return
	}
	b.publish(ctx, m)
}

func (b *Builder) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if b.indexBreaker == nil {
		return fn(ctx)
	}
	return b.indexBreaker.Call(ctx, fn)
}

func (b *Builder) publish(ctx context.Context, m *memory.Memory) {
	if b.events == nil {
		return
	}
	for _, evt := range m.UncommittedEvents() {
		if err := b.events.Publish(ctx, evt); err != nil {
			b.logger.Warn("event publish failed", zap.Error(err))
		}
	}
	m.MarkEventsCommitted()
}

// importanceMarkers are explicit signals a memory's content asks to be
// weighted highly, regardless of its length or kind.
var importanceMarkers = []string{"remember", "important", "critical", "always", "never forget"}

// kindBaseImportance gives Semantic and Procedural memories a higher
// starting point than Episodic, per spec §4.6.
var kindBaseImportance = map[memory.Kind]float64{
	memory.KindEpisodic:   0.3,
	memory.KindSemantic:   0.5,
	memory.KindProcedural: 0.5,
	memory.KindProfile:    0.45,
}

// lengthNormalizer is the content length (chars) at which the logarithmic
// length bonus saturates.
const lengthNormalizer = 2000.0

// computeImportance scores a memory on [0,1] from content length
// (logarithmic, so additional length past a point contributes little),
// explicit markers, and memory kind. An override bypasses scoring
// entirely (still clamped).
func computeImportance(content string, kind memory.Kind, override *float64) float64 {
	if override != nil {
		return clamp01(*override)
	}

	base, ok := kindBaseImportance[kind]
	if !ok {
		base = 0.3
	}

	lengthBonus := math.Log1p(float64(len(content))) / math.Log1p(lengthNormalizer)
	if lengthBonus > 1 {
		lengthBonus = 1
	}

	lower := strings.ToLower(content)
	markerBonus := 0.0
	for _, marker := range importanceMarkers {
		if strings.Contains(lower, marker) {
			markerBonus = 0.2
			break
		}
	}

	return clamp01(base*0.6 + lengthBonus*0.2 + markerBonus)
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
