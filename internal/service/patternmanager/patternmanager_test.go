package patternmanager_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/memory"
	"hippos/internal/domain/pattern"
	"hippos/internal/infrastructure/memstore"
	"hippos/internal/ports"
	"hippos/internal/service/patternmanager"
)

func newManager() (*patternmanager.Manager, *memstore.PatternRepository) {
	repo := memstore.NewPatternRepository()
	return patternmanager.New(repo, nil, patternmanager.DefaultConfig()), repo
}

func TestCreate_PersistsPattern(t *testing.T) {
	m, repo := newManager()
	tenant := ids.TenantID("tenant-1")

	p, err := m.Create(context.Background(), tenant, "user-1", pattern.KindProblemSolution,
		"retry on timeout", "retry with backoff", "request times out", "retry with exponential backoff",
		[]string{"networking", "timeout"})
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), tenant, p.ID())
	require.NoError(t, err)
	assert.Equal(t, "retry on timeout", stored.Name())
}

func TestRecordOutcome_UpdatesRunningAverageAndConfidence(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	p, err := m.Create(context.Background(), tenant, "user-1", pattern.KindProblemSolution,
		"name", "desc", "trigger", "solution", nil)
	require.NoError(t, err)

	require.NoError(t, m.RecordOutcome(context.Background(), tenant, p.ID(), true, 1.0))
	require.NoError(t, m.RecordOutcome(context.Background(), tenant, p.ID(), false, 0.0))

	updated, err := m.Get(context.Background(), tenant, p.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, updated.TotalObservations())
	assert.InDelta(t, 0.5, updated.AverageOutcome(), 0.0001)
	assert.InDelta(t, 0.5, updated.Confidence(), 0.0001)
}

func TestMatch_ScoresByTriggerOverlapAndOutcomeRatioAndBumpsUsage(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	strong, err := m.Create(context.Background(), tenant, "user-1", pattern.KindProblemSolution,
		"strong", "desc", "goroutine deadlock during shutdown", "solution text", []string{"go", "concurrency"})
	require.NoError(t, err)
	require.NoError(t, m.RecordOutcome(context.Background(), tenant, strong.ID(), true, 1.0))

	weak, err := m.Create(context.Background(), tenant, "user-1", pattern.KindProblemSolution,
		"weak", "desc", "goroutine deadlock during shutdown", "solution text", []string{"go"})
	require.NoError(t, err)
	require.NoError(t, m.RecordOutcome(context.Background(), tenant, weak.ID(), false, 0.0))

	results, err := m.Match(context.Background(), tenant, "user-1", "investigating a goroutine deadlock during shutdown", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "strong", results[0].Pattern.Name())
	assert.Greater(t, results[0].Score, results[1].Score)

	for _, r := range results {
		assert.Equal(t, 1, r.Pattern.UsageCount(), "being selected as a match is a use, independent of outcome tracking")
	}
}

func TestMatch_NoSharedTriggerKeywordExcludesCandidate(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	_, err := m.Create(context.Background(), tenant, "user-1", pattern.KindProblemSolution,
		"unrelated", "desc", "database migration rollback", "solution text", nil)
	require.NoError(t, err)

	results, err := m.Match(context.Background(), tenant, "user-1", "goroutine deadlock during shutdown", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatch_EmptyContextReturnsNothing(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	results, err := m.Match(context.Background(), tenant, "user-1", "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func seedMemory(t *testing.T, tenant ids.TenantID, content string) *memory.Memory {
	t.Helper()
	mem, err := memory.New(tenant, "user-1", memory.KindSemantic, memory.SourceConversation, "", content, 0.6, 1.0)
	require.NoError(t, err)
	return mem
}

func TestDiscoverFromMemory_InfersCommonErrorPatternFromProblemFixSentences(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	mem := seedMemory(t, tenant, "The build failed with a dependency error. Fixed it by pinning the package version.")

	p, err := m.DiscoverFromMemory(context.Background(), mem)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, pattern.KindCommonError, p.Kind())
	assert.Contains(t, p.Trigger(), "dependency error")
	assert.Contains(t, p.Problem(), "dependency error")
	assert.Contains(t, p.Solution(), "pinning")
	assert.Contains(t, p.Examples(), mem.Content())
	assert.Contains(t, p.SourceMemoryIDs(), mem.ID().String())
}

func TestDiscoverFromMemory_InfersWorkflowKind(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	mem := seedMemory(t, tenant, "Our release workflow has three steps: build, test, then deploy to staging.")

	p, err := m.DiscoverFromMemory(context.Background(), mem)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, pattern.KindWorkflow, p.Kind())
}

func TestDiscoverFromMemory_InfersBestPracticeKind(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	mem := seedMemory(t, tenant, "You should always validate user input before writing it to the database.")

	p, err := m.DiscoverFromMemory(context.Background(), mem)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, pattern.KindBestPractice, p.Kind())
}

func TestDiscoverFromMemory_InfersSkillKind(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	mem := seedMemory(t, tenant, "This is a tutorial on how to configure the staging environment.")

	p, err := m.DiscoverFromMemory(context.Background(), mem)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, pattern.KindSkill, p.Kind())
}

func TestDiscoverFromMemory_DefaultsToProblemSolutionKind(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	mem := seedMemory(t, tenant, "Switched the cache eviction policy from LRU to LFU for the session store.")

	p, err := m.DiscoverFromMemory(context.Background(), mem)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, pattern.KindProblemSolution, p.Kind())
}

func TestDiscoverFromMemory_ReinforcesExistingPatternInsteadOfDuplicating(t *testing.T) {
	m, repo := newManager()
	tenant := ids.TenantID("tenant-1")

	first := seedMemory(t, tenant, "The API call failed with a timeout error. Fixed by retrying with backoff.")
	second := seedMemory(t, tenant, "Another API call failed with a timeout error. Fixed by retrying with backoff and jitter.")

	p1, err := m.DiscoverFromMemory(context.Background(), first)
	require.NoError(t, err)
	require.NotNil(t, p1)

	p2, err := m.DiscoverFromMemory(context.Background(), second)
	require.NoError(t, err)
	require.NotNil(t, p2)
	assert.True(t, p1.ID().Equals(p2.ID()))

	stored, err := repo.Get(context.Background(), tenant, p1.ID())
	require.NoError(t, err)
	assert.Contains(t, stored.SourceMemoryIDs(), second.ID().String())
	assert.Contains(t, stored.Examples(), second.Content())

	all, err := repo.List(context.Background(), tenant, "user-1", ports.ListOptions{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDiscoverFromMemory_EmptyContentReturnsNil(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")
	mem := seedMemory(t, tenant, "   ")

	p, err := m.DiscoverFromMemory(context.Background(), mem)
	require.NoError(t, err)
	assert.Nil(t, p)
}
