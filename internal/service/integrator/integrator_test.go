package integrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/entity"
	"hippos/internal/domain/ids"
	"hippos/internal/domain/memory"
	"hippos/internal/domain/vector"
	"hippos/internal/infrastructure/lexicalindex"
	"hippos/internal/infrastructure/memstore"
	"hippos/internal/infrastructure/vectorindex"
	"hippos/internal/service/integrator"
)

func newIntegrator(cfg integrator.Config) (*integrator.Integrator, *memstore.MemoryRepository, *memstore.EntityRepository, *memstore.RelationshipRepository, *vectorindex.Index, *lexicalindex.Index) {
	memories := memstore.NewMemoryRepository()
	entities := memstore.NewEntityRepository()
	relationships := memstore.NewRelationshipRepository()
	vi := vectorindex.New()
	li := lexicalindex.New()
	in := integrator.New(memories, entities, relationships, vi, li, nil, cfg)
	return in, memories, entities, relationships, vi, li
}

func backdatedMemory(t *testing.T, tenant ids.TenantID, userID, content string, importance float64, age time.Duration, emb vector.Embedding) *memory.Memory {
	t.Helper()
	past := time.Now().Add(-age)
	m := memory.Reconstruct(
		ids.NewMemoryID(), tenant, userID, memory.KindSemantic, memory.SourceConversation,
		"", content, "", "", nil, nil, nil, emb,
		importance, 1.0, "", nil,
		past, past, past, nil, memory.StatusActive, 1, false, false,
	)
	return m
}

func TestSweep_DecaysStaleActiveMemory(t *testing.T) {
	cfg := integrator.DefaultConfig()
	cfg.DecayWindow = time.Hour
	cfg.DecayFactor = 0.5
	cfg.ArchiveThreshold = 0.05

	in, memories, _, _, _, _ := newIntegrator(cfg)
	tenant := ids.TenantID("tenant-1")
	m := backdatedMemory(t, tenant, "user-1", "a stale memory", 0.5, 48*time.Hour, nil)
	require.NoError(t, memories.Create(context.Background(), m))

	require.NoError(t, in.Sweep(context.Background(), tenant))

	stored, err := memories.Get(context.Background(), tenant, m.ID())
	require.NoError(t, err)
	assert.InDelta(t, 0.25, stored.Importance(), 0.001)
}

func TestSweep_ArchivesMemoryBelowThreshold(t *testing.T) {
	cfg := integrator.DefaultConfig()
	cfg.DecayWindow = time.Hour
	cfg.DecayFactor = 0.1
	cfg.ArchiveThreshold = 0.1

	in, memories, _, _, _, _ := newIntegrator(cfg)
	tenant := ids.TenantID("tenant-1")
	m := backdatedMemory(t, tenant, "user-1", "a memory destined to be archived", 0.5, 48*time.Hour, nil)
	require.NoError(t, memories.Create(context.Background(), m))

	require.NoError(t, in.Sweep(context.Background(), tenant))

	stored, err := memories.Get(context.Background(), tenant, m.ID())
	require.NoError(t, err)
	assert.Equal(t, memory.StatusArchived, stored.Status())
}

func TestSweep_MergesNearDuplicateMemories(t *testing.T) {
	cfg := integrator.DefaultConfig()
	cfg.DecayWindow = 365 * 24 * time.Hour // keep decay from interfering
	cfg.MergeThreshold = 0.99

	in, memories, _, _, vi, li := newIntegrator(cfg)
	tenant := ids.TenantID("tenant-1")

	sharedEmbedding := vector.Embedding{1, 0, 0, 0}
	older := backdatedMemory(t, tenant, "user-1", "the original memory", 0.5, 10*time.Minute, sharedEmbedding)
	newer := backdatedMemory(t, tenant, "user-1", "a near-duplicate memory", 0.5, time.Minute, sharedEmbedding)
	require.NoError(t, memories.Create(context.Background(), older))
	require.NoError(t, memories.Create(context.Background(), newer))
	require.NoError(t, vi.Upsert(context.Background(), tenant, older.ID(), sharedEmbedding, time.Now()))
	require.NoError(t, vi.Upsert(context.Background(), tenant, newer.ID(), sharedEmbedding, time.Now()))
	require.NoError(t, li.Index(context.Background(), tenant, older.ID(), older.Content(), time.Now()))
	require.NoError(t, li.Index(context.Background(), tenant, newer.ID(), newer.Content(), time.Now()))

	require.NoError(t, in.Sweep(context.Background(), tenant))

	survivor, err := memories.Get(context.Background(), tenant, older.ID())
	require.NoError(t, err)
	assert.True(t, survivor.IsActive())
	assert.Contains(t, survivor.RelatedIDs(), newer.ID().String())

	duplicate, err := memories.Get(context.Background(), tenant, newer.ID())
	require.NoError(t, err)
	assert.Equal(t, memory.StatusArchived, duplicate.Status())
}

func TestSweep_PurgesArchivedMemoryPastWindow(t *testing.T) {
	cfg := integrator.DefaultConfig()
	cfg.DecayWindow = 365 * 24 * time.Hour
	cfg.PurgeWindow = 24 * time.Hour

	in, memories, _, _, _, _ := newIntegrator(cfg)
	tenant := ids.TenantID("tenant-1")

	past := time.Now().Add(-240 * time.Hour)
	m := memory.Reconstruct(
		ids.NewMemoryID(), tenant, "user-1", memory.KindSemantic, memory.SourceConversation,
		"", "a long-archived memory", "", "", nil, nil, nil, nil,
		0.2, 1.0, "", nil,
		past, past, past, nil, memory.StatusArchived, 2, false, false,
	)
	require.NoError(t, memories.Create(context.Background(), m))

	require.NoError(t, in.Sweep(context.Background(), tenant))

	stored, err := memories.Get(context.Background(), tenant, m.ID())
	require.NoError(t, err)
	assert.Equal(t, memory.StatusDeleted, stored.Status())
}

func TestSweep_PrunesWeakRelationship(t *testing.T) {
	cfg := integrator.DefaultConfig()
	cfg.DecayWindow = time.Hour
	cfg.DecayFactor = 0.1
	cfg.StrengthPrune = 0.1

	in, _, entities, relationships, _, _ := newIntegrator(cfg)
	tenant := ids.TenantID("tenant-1")

	src, err := entity.NewEntity(tenant, "Alice", entity.KindPerson, "")
	require.NoError(t, err)
	dst, err := entity.NewEntity(tenant, "Acme Corp", entity.KindOrganization, "")
	require.NoError(t, err)
	require.NoError(t, entities.Create(context.Background(), src))
	require.NoError(t, entities.Create(context.Background(), dst))

	past := time.Now().Add(-2 * time.Hour)
	rel := entity.ReconstructRelationship(
		ids.NewRelationshipID(), tenant, src.ID(), dst.ID(), entity.RelationWorksOn,
		0.2, 1, nil, past, past, 1,
	)
	require.NoError(t, relationships.Create(context.Background(), rel))

	require.NoError(t, in.Sweep(context.Background(), tenant))

	_, err = relationships.Get(context.Background(), tenant, rel.ID())
	require.Error(t, err)
}

func TestSweep_IsIdempotent(t *testing.T) {
	cfg := integrator.DefaultConfig()
	cfg.DecayWindow = time.Hour
	cfg.DecayFactor = 0.9
	cfg.ArchiveThreshold = 0.01

	in, memories, _, _, _, _ := newIntegrator(cfg)
	tenant := ids.TenantID("tenant-1")
	m := backdatedMemory(t, tenant, "user-1", "a memory swept twice", 0.5, 48*time.Hour, nil)
	require.NoError(t, memories.Create(context.Background(), m))

	require.NoError(t, in.Sweep(context.Background(), tenant))
	first, err := memories.Get(context.Background(), tenant, m.ID())
	require.NoError(t, err)

	require.NoError(t, in.Sweep(context.Background(), tenant))
	second, err := memories.Get(context.Background(), tenant, m.ID())
	require.NoError(t, err)

	assert.Equal(t, first.Importance(), second.Importance())
}

func TestSweep_RespectsCancelledContext(t *testing.T) {
	in, memories, _, _, _, _ := newIntegrator(integrator.DefaultConfig())
	tenant := ids.TenantID("tenant-1")
	m := backdatedMemory(t, tenant, "user-1", "should not be touched", 0.5, 48*time.Hour, nil)
	require.NoError(t, memories.Create(context.Background(), m))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := in.Sweep(ctx, tenant)
	require.Error(t, err)
}
