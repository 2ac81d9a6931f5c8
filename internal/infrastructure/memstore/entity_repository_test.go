package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/entity"
	"hippos/internal/domain/ids"
	pkgerrors "hippos/pkg/errors"
)

func TestEntityRepositoryDedupByKey(t *testing.T) {
	ctx := context.Background()
	repo := NewEntityRepository()

	e1, err := entity.NewEntity(ids.TenantID("t1"), "Ada Lovelace", entity.KindPerson, "")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, e1))

	found, err := repo.FindByDedupKey(ctx, "t1", e1.DedupKey())
	require.NoError(t, err)
	assert.Equal(t, e1.ID(), found.ID())

	e2, err := entity.NewEntity(ids.TenantID("t1"), "ada lovelace", entity.KindPerson, "")
	require.NoError(t, err)
	err = repo.Create(ctx, e2)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestRelationshipRepositoryFindByEntity(t *testing.T) {
	ctx := context.Background()
	entities := NewEntityRepository()
	rels := NewRelationshipRepository()

	a, err := entity.NewEntity(ids.TenantID("t1"), "Ada", entity.KindPerson, "")
	require.NoError(t, err)
	b, err := entity.NewEntity(ids.TenantID("t1"), "Babbage", entity.KindPerson, "")
	require.NoError(t, err)
	require.NoError(t, entities.Create(ctx, a))
	require.NoError(t, entities.Create(ctx, b))

	rel, err := entity.NewRelationship(ids.TenantID("t1"), a.ID(), b.ID(), entity.RelationWorksWith, "mem-1")
	require.NoError(t, err)
	require.NoError(t, rels.Create(ctx, rel))

	found, err := rels.FindByEntity(ctx, "t1", a.ID())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, rel.ID(), found[0].ID())

	found, err = rels.FindByEntity(ctx, "t1", b.ID())
	require.NoError(t, err)
	require.Len(t, found, 1)
}
