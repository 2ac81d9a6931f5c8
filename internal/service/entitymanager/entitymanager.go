// Package entitymanager implements EntityManager: rule-based extraction
// of entities and relationships from memory text into a per-tenant
// knowledge graph, plus the bounded graph traversal and name lookup
// that sit alongside it. The entity-name regex and relationship
// templates are compiled once at package init and reused on every call,
// the same "compile once, share the compiled form" discipline the
// dehydration engine applies to its own term/topic regexes.
package entitymanager

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"hippos/internal/domain/entity"
	"hippos/internal/domain/ids"
	"hippos/internal/ports"
	pkgerrors "hippos/pkg/errors"
)

// Config bounds EntityManager's extraction and traversal behavior.
type Config struct {
	// MaxTraverseDepth bounds Traverse when a caller doesn't specify a
	// smaller one, so a misconfigured caller can't walk the whole graph.
	MaxTraverseDepth int
}

// DefaultConfig matches the engine's documented defaults.
func DefaultConfig() Config {
	return Config{MaxTraverseDepth: 3}
}

// Manager is the default, rule-based EntityManager. It satisfies
// memorybuilder.EntityExtractor.
type Manager struct {
	entities      ports.EntityRepository
	relationships ports.RelationshipRepository
	embeddings    ports.EmbeddingProvider
	logger        *zap.Logger
	cfg           Config
}

// New creates a Manager. embeddings may be nil: entities are extracted
// and persisted without a vector representation when no provider is
// configured.
func New(entities ports.EntityRepository, relationships ports.RelationshipRepository, embeddings ports.EmbeddingProvider, logger *zap.Logger, cfg Config) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTraverseDepth <= 0 {
		cfg.MaxTraverseDepth = DefaultConfig().MaxTraverseDepth
	}
	return &Manager{entities: entities, relationships: relationships, embeddings: embeddings, logger: logger, cfg: cfg}
}

// properNoun matches runs of up to three consecutive capitalized words, a
// cheap proper-noun-ish signal. Compiled once and reused on every call.
var properNoun = regexp.MustCompile(`\b[A-Z][\p{L}]*(?:\s+[A-Z][\p{L}]*){0,2}\b`)

var sentenceBoundary = regexp.MustCompile(`[.!?]+\s*`)

// leadingCommonWords are capitalized words a sentence often starts with
// that aren't themselves proper nouns; candidates consisting solely of
// one of these are discarded.
var leadingCommonWords = map[string]bool{
	"the": true, "this": true, "that": true, "these": true, "those": true,
	"i": true, "we": true, "he": true, "she": true, "they": true, "it": true,
	"a": true, "an": true, "and": true, "but": true, "so": true, "if": true,
	"when": true, "while": true, "after": true, "before": true, "our": true,
	"my": true, "your": true, "there": true, "here": true, "today": true,
	"yesterday": true, "tomorrow": true,
}

var organizationSuffixes = []string{"inc", "inc.", "corp", "corp.", "llc", "ltd", "ltd.", "co", "co.", "company", "corporation"}
var locationSuffixes = []string{"street", "st.", "avenue", "ave.", "city", "county", "province", "state"}
var toolNames = map[string]bool{
	"go": true, "python": true, "rust": true, "javascript": true, "typescript": true,
	"docker": true, "kubernetes": true, "postgres": true, "postgresql": true, "redis": true,
	"react": true, "vue": true, "github": true, "gitlab": true, "slack": true, "aws": true,
	"terraform": true, "jenkins": true, "kafka": true, "grpc": true, "graphql": true,
}

// worksOnMarkers / usesMarkers / etc. are the connector phrases a
// relationship template looks for between two co-occurring entity
// mentions in the same sentence.
var (
	worksWithMarkers  = []string{"works with", "working with", "collaborates with"}
	worksOnMarkers    = []string{"works on", "working on", "works at", "works for"}
	memberOfMarkers   = []string{"member of", "part of", "belongs to"}
	usesMarkers       = []string{"uses", "using", "relies on", "built with", "built on"}
	locatedInMarkers  = []string{"located in", "based in", "headquartered in"}
)

// ExtractFromMemory implements memorybuilder.EntityExtractor: it finds
// proper-noun candidates in content, classifies and reinforces-or-creates
// each as an Entity, and for every sentence mentioning two or more
// entities, matches a relationship template between the first pair found
// (falling back to RelationRelatesTo for bare co-occurrence).
func (m *Manager) ExtractFromMemory(ctx context.Context, tenantID ids.TenantID, userID string, memoryID ids.MemoryID, content string) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewCancelled("entity extraction cancelled")
	}
	if tenantID.IsZero() {
		return pkgerrors.NewValidation("tenant ID cannot be empty")
	}

	sourceMemoryID := memoryID.String()

	for _, sentence := range sentenceBoundary.Split(content, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return pkgerrors.NewCancelled("entity extraction cancelled")
		}

		names := candidateNames(sentence)
		if len(names) == 0 {
			continue
		}

		resolved := make([]*entity.Entity, 0, len(names))
		for _, name := range names {
			e, err := m.resolveEntity(ctx, tenantID, name, classifyKind(name, sentence), sourceMemoryID)
			if err != nil {
				return err
			}
			resolved = append(resolved, e)
		}

		if len(resolved) >= 2 {
			if err := m.resolveRelationship(ctx, tenantID, resolved[0], resolved[1], sentence, sourceMemoryID); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveEntity reinforces an existing entity matching (name, kind) or
// creates a new one, persisting either way.
func (m *Manager) resolveEntity(ctx context.Context, tenantID ids.TenantID, name string, kind entity.Kind, sourceMemoryID string) (*entity.Entity, error) {
	key := entity.DedupKey(name, kind)
	existing, err := m.entities.FindByDedupKey(ctx, tenantID, key)
	if err == nil {
		existing.Reinforce(sourceMemoryID)
		if err := m.entities.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	e, err := entity.NewEntity(tenantID, name, kind, sourceMemoryID)
	if err != nil {
		return nil, err
	}
	if m.embeddings != nil {
		if emb, embErr := m.embeddings.Embed(ctx, name); embErr == nil {
			e.SetEmbedding(emb)
		}
	}
	if err := m.entities.Create(ctx, e); err != nil {
		if pkgerrors.IsConflict(err) {
			return m.entities.FindByDedupKey(ctx, tenantID, key)
		}
		return nil, err
	}
	return e, nil
}

// resolveRelationship reinforces an existing edge between src and dst, in
// the direction and kind the sentence's connector phrase implies, or
// creates a new one.
func (m *Manager) resolveRelationship(ctx context.Context, tenantID ids.TenantID, src, dst *entity.Entity, sentence, sourceMemoryID string) error {
	if src.ID().Equals(dst.ID()) {
		return nil
	}
	kind := classifyRelation(sentence)

	key := entity.RelationshipDedupKey(tenantID, src.ID(), dst.ID(), kind)
	existing, err := m.relationships.FindByDedupKey(ctx, tenantID, key)
	if err == nil {
		existing.Strengthen(sourceMemoryID)
		return m.relationships.Update(ctx, existing)
	}
	if !pkgerrors.IsNotFound(err) {
		return err
	}

	r, err := entity.NewRelationship(tenantID, src.ID(), dst.ID(), kind, sourceMemoryID)
	if err != nil {
		return err
	}
	if err := m.relationships.Create(ctx, r); err != nil {
		if pkgerrors.IsConflict(err) {
			return nil
		}
		return err
	}
	return nil
}

// candidateNames extracts deduplicated proper-noun-ish phrases from a
// sentence, discarding single common leading words.
func candidateNames(sentence string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, match := range properNoun.FindAllString(sentence, -1) {
		name := strings.TrimSpace(match)
		if name == "" {
			continue
		}
		if !strings.Contains(name, " ") && leadingCommonWords[strings.ToLower(name)] {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// classifyKind assigns an entity.Kind to name using suffix/vocabulary
// heuristics over the name itself and the sentence it appeared in.
func classifyKind(name, sentence string) entity.Kind {
	lowerName := strings.ToLower(name)
	if toolNames[lowerName] {
		return entity.KindTool
	}
	if hasSuffixWord(lowerName, organizationSuffixes) {
		return entity.KindOrganization
	}
	if hasSuffixWord(lowerName, locationSuffixes) {
		return entity.KindLocation
	}
	words := strings.Fields(name)
	if len(words) == 2 && allTitleCase(words) {
		return entity.KindPerson
	}
	if strings.Contains(strings.ToLower(sentence), "project") {
		return entity.KindProject
	}
	return entity.KindConcept
}

func hasSuffixWord(lowerName string, suffixes []string) bool {
	words := strings.Fields(lowerName)
	if len(words) == 0 {
		return false
	}
	last := words[len(words)-1]
	for _, s := range suffixes {
		if last == s {
			return true
		}
	}
	return false
}

func allTitleCase(words []string) bool {
	for _, w := range words {
		if w == "" || !strings.HasPrefix(w, strings.ToUpper(w[:1])) {
			return false
		}
	}
	return true
}

// classifyRelation picks a RelationKind from the connector phrase found
// between two entity mentions in sentence, defaulting to RelationRelatesTo
// for bare co-occurrence.
func classifyRelation(sentence string) entity.RelationKind {
	lower := strings.ToLower(sentence)
	switch {
	case containsAny(lower, worksWithMarkers):
		return entity.RelationWorksWith
	case containsAny(lower, memberOfMarkers):
		return entity.RelationMemberOf
	case containsAny(lower, usesMarkers):
		return entity.RelationUses
	case containsAny(lower, worksOnMarkers):
		return entity.RelationWorksOn
	case containsAny(lower, locatedInMarkers):
		return entity.RelationLocatedIn
	default:
		return entity.RelationRelatesTo
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Get, Delete, and List are thin passthroughs over the Entity repository
// for callers that need direct graph access outside extraction.
func (m *Manager) Get(ctx context.Context, tenantID ids.TenantID, id ids.EntityID) (*entity.Entity, error) {
	return m.entities.Get(ctx, tenantID, id)
}

func (m *Manager) Delete(ctx context.Context, tenantID ids.TenantID, id ids.EntityID) error {
	return m.entities.Delete(ctx, tenantID, id)
}

func (m *Manager) List(ctx context.Context, tenantID ids.TenantID, opts ports.ListOptions) ([]*entity.Entity, error) {
	return m.entities.List(ctx, tenantID, opts)
}

// findByNamePageSize mirrors the repository layer's own pagination cap:
// a short page always means the scan has reached the end, regardless of
// what limit the caller asked for.
const findByNamePageSize = 100

// FindByName looks up an entity by case-insensitive name, falling back to
// a case-insensitive alias match when the dedup-key lookup misses (an
// alias is, by definition, not part of the dedup key).
func (m *Manager) FindByName(ctx context.Context, tenantID ids.TenantID, name string, kind entity.Kind) (*entity.Entity, error) {
	e, err := m.entities.FindByDedupKey(ctx, tenantID, entity.DedupKey(name, kind))
	if err == nil {
		return e, nil
	}
	if !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	opts := ports.ListOptions{Limit: findByNamePageSize}
	for {
		page, listErr := m.entities.List(ctx, tenantID, opts)
		if listErr != nil {
			return nil, listErr
		}
		for _, candidate := range page {
			if strings.EqualFold(candidate.Name(), name) {
				return candidate, nil
			}
			for _, alias := range candidate.Aliases() {
				if strings.EqualFold(alias, name) {
					return candidate, nil
				}
			}
		}
		if len(page) < findByNamePageSize {
			break
		}
		opts.Offset += len(page)
	}
	return nil, pkgerrors.NewNotFound("entity not found")
}

// TraverseResult pairs a discovered entity with its graph distance from
// the traversal root.
type TraverseResult struct {
	Entity *entity.Entity
	Depth  int
}

// Traverse performs a bounded breadth-first walk of the knowledge graph
// starting at rootID, following relationship edges in either direction,
// up to maxDepth hops. maxDepth <= 0 falls back to the manager's
// configured MaxTraverseDepth. The root itself is not included.
func (m *Manager) Traverse(ctx context.Context, tenantID ids.TenantID, rootID ids.EntityID, maxDepth int) ([]TraverseResult, error) {
	if maxDepth <= 0 || maxDepth > m.cfg.MaxTraverseDepth {
		maxDepth = m.cfg.MaxTraverseDepth
	}

	visited := map[ids.EntityID]bool{rootID: true}
	frontier := []ids.EntityID{rootID}
	var results []TraverseResult

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.NewCancelled("traversal cancelled")
		}

		var next []ids.EntityID
		for _, id := range frontier {
			edges, err := m.relationships.FindByEntity(ctx, tenantID, id)
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				neighbor := edge.TargetEntityID()
				if neighbor.Equals(id) {
					neighbor = edge.SourceEntityID()
				}
				if visited[neighbor] {
					continue
				}
				visited[neighbor] = true

				e, err := m.entities.Get(ctx, tenantID, neighbor)
				if err != nil {
					if pkgerrors.IsNotFound(err) {
						continue
					}
					return nil, err
				}
				results = append(results, TraverseResult{Entity: e, Depth: depth})
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return results, nil
}
