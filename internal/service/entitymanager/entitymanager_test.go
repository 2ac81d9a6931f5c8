package entitymanager_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/entity"
	"hippos/internal/domain/ids"
	"hippos/internal/infrastructure/memstore"
	"hippos/internal/service/entitymanager"
)

func newManager() (*entitymanager.Manager, *memstore.EntityRepository, *memstore.RelationshipRepository) {
	entities := memstore.NewEntityRepository()
	relationships := memstore.NewRelationshipRepository()
	mgr := entitymanager.New(entities, relationships, nil, nil, entitymanager.DefaultConfig())
	return mgr, entities, relationships
}

func TestExtractFromMemory_CreatesPersonEntities(t *testing.T) {
	m, entities, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	err := m.ExtractFromMemory(context.Background(), tenant, "user-1", ids.NewMemoryID(),
		"Jane Doe works with John Smith on the new onboarding project.")
	require.NoError(t, err)

	jane, err := m.FindByName(context.Background(), tenant, "Jane Doe", entity.KindPerson)
	require.NoError(t, err)
	assert.Equal(t, 1, jane.MentionCount())

	_, err = entities.FindByDedupKey(context.Background(), tenant, entity.DedupKey("John Smith", entity.KindPerson))
	require.NoError(t, err)
}

func TestExtractFromMemory_CreatesRelationshipBetweenCoOccurringEntities(t *testing.T) {
	m, _, relationships := newManager()
	tenant := ids.TenantID("tenant-1")

	err := m.ExtractFromMemory(context.Background(), tenant, "user-1", ids.NewMemoryID(),
		"Jane Doe works with John Smith on the new onboarding project.")
	require.NoError(t, err)

	jane, err := m.FindByName(context.Background(), tenant, "Jane Doe", entity.KindPerson)
	require.NoError(t, err)
	john, err := m.FindByName(context.Background(), tenant, "John Smith", entity.KindPerson)
	require.NoError(t, err)

	key := entity.RelationshipDedupKey(tenant, jane.ID(), john.ID(), entity.RelationWorksWith)
	rel, err := relationships.FindByDedupKey(context.Background(), tenant, key)
	require.NoError(t, err)
	assert.Equal(t, jane.ID(), rel.SourceEntityID())
	assert.Equal(t, john.ID(), rel.TargetEntityID())
}

func TestExtractFromMemory_RedetectionReinforcesInsteadOfDuplicating(t *testing.T) {
	m, entities, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	require.NoError(t, m.ExtractFromMemory(context.Background(), tenant, "user-1", ids.NewMemoryID(),
		"Jane Doe reviewed the deployment."))
	require.NoError(t, m.ExtractFromMemory(context.Background(), tenant, "user-1", ids.NewMemoryID(),
		"Jane Doe approved the deployment."))

	jane, err := entities.FindByDedupKey(context.Background(), tenant, entity.DedupKey("Jane Doe", entity.KindPerson))
	require.NoError(t, err)
	assert.Equal(t, 2, jane.MentionCount())
	assert.Len(t, jane.SourceMemoryIDs(), 2)
}

func TestExtractFromMemory_ClassifiesToolEntity(t *testing.T) {
	m, entities, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	err := m.ExtractFromMemory(context.Background(), tenant, "user-1", ids.NewMemoryID(),
		"We migrated the service to use Kubernetes for orchestration.")
	require.NoError(t, err)

	_, err = entities.FindByDedupKey(context.Background(), tenant, entity.DedupKey("Kubernetes", entity.KindTool))
	require.NoError(t, err)
}

func TestExtractFromMemory_ClassifiesOrganizationBySuffix(t *testing.T) {
	m, entities, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	err := m.ExtractFromMemory(context.Background(), tenant, "user-1", ids.NewMemoryID(),
		"We signed a contract with Acme Corp last week.")
	require.NoError(t, err)

	_, err = entities.FindByDedupKey(context.Background(), tenant, entity.DedupKey("Acme Corp", entity.KindOrganization))
	require.NoError(t, err)
}

func TestExtractFromMemory_RespectsCancelledContext(t *testing.T) {
	m, _, _ := newManager()
	tenant := ids.TenantID("tenant-1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.ExtractFromMemory(ctx, tenant, "user-1", ids.NewMemoryID(), "Jane Doe works with John Smith.")
	require.Error(t, err)
}

func TestExtractFromMemory_RejectsZeroTenant(t *testing.T) {
	m, _, _ := newManager()
	err := m.ExtractFromMemory(context.Background(), ids.TenantID(""), "user-1", ids.NewMemoryID(), "Jane Doe works with John Smith.")
	require.Error(t, err)
}

func TestTraverse_FindsConnectedEntitiesUpToDepth(t *testing.T) {
	m, entities, relationships := newManager()
	tenant := ids.TenantID("tenant-1")

	alice, err := entity.NewEntity(tenant, "Alice", entity.KindPerson, "")
	require.NoError(t, err)
	bob, err := entity.NewEntity(tenant, "Bob", entity.KindPerson, "")
	require.NoError(t, err)
	acme, err := entity.NewEntity(tenant, "Acme Corp", entity.KindOrganization, "")
	require.NoError(t, err)
	require.NoError(t, entities.Create(context.Background(), alice))
	require.NoError(t, entities.Create(context.Background(), bob))
	require.NoError(t, entities.Create(context.Background(), acme))

	r1, err := entity.NewRelationship(tenant, alice.ID(), bob.ID(), entity.RelationWorksWith, "")
	require.NoError(t, err)
	r2, err := entity.NewRelationship(tenant, bob.ID(), acme.ID(), entity.RelationMemberOf, "")
	require.NoError(t, err)
	require.NoError(t, relationships.Create(context.Background(), r1))
	require.NoError(t, relationships.Create(context.Background(), r2))

	oneHop, err := m.Traverse(context.Background(), tenant, alice.ID(), 1)
	require.NoError(t, err)
	require.Len(t, oneHop, 1)
	assert.Equal(t, "Bob", oneHop[0].Entity.Name())

	twoHop, err := m.Traverse(context.Background(), tenant, alice.ID(), 2)
	require.NoError(t, err)
	require.Len(t, twoHop, 2)
}

func TestTraverse_ZeroDepthUsesConfiguredDefault(t *testing.T) {
	m, entities, relationships := newManager()
	tenant := ids.TenantID("tenant-1")

	alice, err := entity.NewEntity(tenant, "Alice", entity.KindPerson, "")
	require.NoError(t, err)
	bob, err := entity.NewEntity(tenant, "Bob", entity.KindPerson, "")
	require.NoError(t, err)
	require.NoError(t, entities.Create(context.Background(), alice))
	require.NoError(t, entities.Create(context.Background(), bob))

	r1, err := entity.NewRelationship(tenant, alice.ID(), bob.ID(), entity.RelationWorksWith, "")
	require.NoError(t, err)
	require.NoError(t, relationships.Create(context.Background(), r1))

	results, err := m.Traverse(context.Background(), tenant, alice.ID(), 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
