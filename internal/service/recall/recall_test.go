package recall_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/memory"
	"hippos/internal/infrastructure/embedding"
	"hippos/internal/infrastructure/lexicalindex"
	"hippos/internal/infrastructure/memstore"
	"hippos/internal/infrastructure/vectorindex"
	"hippos/internal/service/recall"
	pkgerrors "hippos/pkg/errors"
)

func newEngine() (*recall.Engine, *memstore.MemoryRepository, *vectorindex.Index, *lexicalindex.Index, *embedding.HashEmbedder) {
	repo := memstore.NewMemoryRepository()
	vi := vectorindex.New()
	li := lexicalindex.New()
	emb := embedding.NewHashEmbedder(32)
	e := recall.New(repo, vi, li, emb, recall.DefaultConfig())
	return e, repo, vi, li, emb
}

func seedMemory(t *testing.T, repo *memstore.MemoryRepository, vi *vectorindex.Index, li *lexicalindex.Index, emb *embedding.HashEmbedder, tenant ids.TenantID, user, content string) *memory.Memory {
	t.Helper()
	m, err := memory.New(tenant, user, memory.KindSemantic, memory.SourceConversation, "", content, 0.5, 1.0)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), m))

	v, err := emb.Embed(context.Background(), content)
	require.NoError(t, err)
	require.NoError(t, m.SetEmbedding(v, emb.Dimension()))
	require.NoError(t, repo.Update(context.Background(), m))
	require.NoError(t, vi.Upsert(context.Background(), tenant, m.ID(), m.Embedding(), m.UpdatedAt()))
	require.NoError(t, li.Index(context.Background(), tenant, m.ID(), content, m.UpdatedAt()))
	return m
}

func TestRecall_LexicalFindsMatchingMemory(t *testing.T) {
	e, repo, vi, li, emb := newEngine()
	tenant := ids.TenantID("tenant-1")

	seedMemory(t, repo, vi, li, emb, tenant, "user-1", "the rocket launch was delayed due to weather")
	seedMemory(t, repo, vi, li, emb, tenant, "user-1", "the quarterly budget review finished early")

	results, err := e.Recall(context.Background(), recall.Request{
		Query:    "rocket launch weather",
		TenantID: tenant,
		Mode:     recall.ModeLexical,
		Limit:    5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Memory.Content(), "rocket")
}

func TestRecall_TenantIsolation(t *testing.T) {
	e, repo, vi, li, emb := newEngine()
	tenantA := ids.TenantID("tenant-a")
	tenantB := ids.TenantID("tenant-b")

	seedMemory(t, repo, vi, li, emb, tenantA, "user-1", "alpha tenant secret project plan")
	seedMemory(t, repo, vi, li, emb, tenantB, "user-1", "beta tenant secret project plan")

	results, err := e.Recall(context.Background(), recall.Request{
		Query:    "secret project plan",
		TenantID: tenantA,
		Mode:     recall.ModeLexical,
		Limit:    10,
	})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, tenantA, r.Memory.TenantID())
	}
}

func TestRecall_HybridFusesChannels(t *testing.T) {
	e, repo, vi, li, emb := newEngine()
	tenant := ids.TenantID("tenant-1")

	seedMemory(t, repo, vi, li, emb, tenant, "user-1", "deploying microservices with kubernetes and docker")
	seedMemory(t, repo, vi, li, emb, tenant, "user-1", "baking sourdough bread requires patience")

	results, err := e.Recall(context.Background(), recall.Request{
		Query:    "kubernetes docker deployment",
		TenantID: tenant,
		Mode:     recall.ModeHybrid,
		Limit:    5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Memory.Content(), "kubernetes")
}

func TestRecall_BumpsAccessedAt(t *testing.T) {
	e, repo, vi, li, emb := newEngine()
	tenant := ids.TenantID("tenant-1")
	m := seedMemory(t, repo, vi, li, emb, tenant, "user-1", "remember the onboarding checklist")
	before := m.AccessedAt()

	_, err := e.Recall(context.Background(), recall.Request{
		Query:    "onboarding checklist",
		TenantID: tenant,
		Mode:     recall.ModeLexical,
		Limit:    5,
	})
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), tenant, m.ID())
	require.NoError(t, err)
	assert.True(t, stored.AccessedAt().After(before) || stored.AccessedAt().Equal(before))
}

func TestRecall_RespectsAlreadyCancelledContext(t *testing.T) {
	e, repo, vi, li, emb := newEngine()
	tenant := ids.TenantID("tenant-1")
	m := seedMemory(t, repo, vi, li, emb, tenant, "user-1", "a memory that must not be touched")
	before := m.AccessedAt()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Recall(ctx, recall.Request{
		Query:    "memory",
		TenantID: tenant,
		Mode:     recall.ModeLexical,
		Limit:    5,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCancelled(err))

	stored, err := repo.Get(context.Background(), tenant, m.ID())
	require.NoError(t, err)
	assert.Equal(t, before, stored.AccessedAt())
}

func TestRecall_RejectsZeroTenant(t *testing.T) {
	e, _, _, _, _ := newEngine()
	_, err := e.Recall(context.Background(), recall.Request{
		Query: "anything",
		Mode:  recall.ModeLexical,
		Limit: 5,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestRecall_TemporalModeReturnsMostRecentFirst(t *testing.T) {
	e, repo, vi, li, emb := newEngine()
	tenant := ids.TenantID("tenant-1")

	first := seedMemory(t, repo, vi, li, emb, tenant, "user-1", "older memory about vacation planning")
	time.Sleep(2 * time.Millisecond)
	second := seedMemory(t, repo, vi, li, emb, tenant, "user-1", "newer memory about tax filing")

	results, err := e.Recall(context.Background(), recall.Request{
		Query:    "",
		TenantID: tenant,
		Mode:     recall.ModeTemporal,
		Limit:    2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Memory.ID().Equals(second.ID()))
	assert.True(t, results[1].Memory.ID().Equals(first.ID()))
}

func TestRecall_ThresholdDropsLowScoringResults(t *testing.T) {
	e, repo, vi, li, emb := newEngine()
	tenant := ids.TenantID("tenant-1")
	seedMemory(t, repo, vi, li, emb, tenant, "user-1", "completely unrelated content about gardening")

	impossible := 1000.0
	results, err := e.Recall(context.Background(), recall.Request{
		Query:     "gardening",
		TenantID:  tenant,
		Mode:      recall.ModeLexical,
		Limit:     5,
		Threshold: &impossible,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecall_FilterByKindExcludesOtherKinds(t *testing.T) {
	e, repo, vi, li, emb := newEngine()
	tenant := ids.TenantID("tenant-1")
	seedMemory(t, repo, vi, li, emb, tenant, "user-1", "a semantic memory about ocean currents")

	other := memory.KindEpisodic
	results, err := e.Recall(context.Background(), recall.Request{
		Query:    "ocean currents",
		TenantID: tenant,
		Mode:     recall.ModeLexical,
		Limit:    5,
		Filter:   recall.Filter{Kind: &other},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecall_UnspecifiedLimitUsesDefault(t *testing.T) {
	e, repo, vi, li, emb := newEngine()
	tenant := ids.TenantID("tenant-1")
	seedMemory(t, repo, vi, li, emb, tenant, "user-1", "a memory about nothing in particular important")

	results, err := e.Recall(context.Background(), recall.Request{
		Query:    "important",
		TenantID: tenant,
		Mode:     recall.ModeLexical,
		Limit:    -1,
	})
	require.NoError(t, err)
	assert.NotNil(t, results)
}

func TestRecall_ExplicitZeroLimitReturnsEmptyWithoutTouchingAccess(t *testing.T) {
	e, repo, vi, li, emb := newEngine()
	tenant := ids.TenantID("tenant-1")
	mem := seedMemory(t, repo, vi, li, emb, tenant, "user-1", "a memory about nothing in particular important")
	before := mem.UpdatedAt()

	results, err := e.Recall(context.Background(), recall.Request{
		Query:    "important",
		TenantID: tenant,
		Mode:     recall.ModeLexical,
		Limit:    0,
	})
	require.NoError(t, err)
	assert.Empty(t, results)

	stored, err := repo.Get(context.Background(), tenant, mem.ID())
	require.NoError(t, err)
	assert.Equal(t, before, stored.UpdatedAt())
}
