package vectorindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/vector"
)

func TestSearchOrdersByDescendingSimilarity(t *testing.T) {
	ctx := context.Background()
	idx := New()

	close := ids.NewMemoryID()
	far := ids.NewMemoryID()
	require.NoError(t, idx.Upsert(ctx, "t1", close, vector.Embedding{1, 0, 0}, time.Now()))
	require.NoError(t, idx.Upsert(ctx, "t1", far, vector.Embedding{0, 1, 0}, time.Now()))

	hits, err := idx.Search(ctx, "t1", vector.Embedding{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, close, hits[0].MemoryID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestSearchExcludesNaNSimilarity(t *testing.T) {
	ctx := context.Background()
	idx := New()

	zeroVec := ids.NewMemoryID()
	wrongDim := ids.NewMemoryID()
	valid := ids.NewMemoryID()

	require.NoError(t, idx.Upsert(ctx, "t1", zeroVec, vector.Embedding{0, 0, 0}, time.Now()))
	require.NoError(t, idx.Upsert(ctx, "t1", wrongDim, vector.Embedding{1, 0}, time.Now()))
	require.NoError(t, idx.Upsert(ctx, "t1", valid, vector.Embedding{1, 0, 0}, time.Now()))

	hits, err := idx.Search(ctx, "t1", vector.Embedding{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, valid, hits[0].MemoryID)
}

func TestSearchScopesToTenant(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Upsert(ctx, "t1", ids.NewMemoryID(), vector.Embedding{1, 0, 0}, time.Now()))

	hits, err := idx.Search(ctx, "t2", vector.Embedding{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRemoveDropsFromFutureSearches(t *testing.T) {
	ctx := context.Background()
	idx := New()
	id := ids.NewMemoryID()
	require.NoError(t, idx.Upsert(ctx, "t1", id, vector.Embedding{1, 0, 0}, time.Now()))
	require.NoError(t, idx.Remove(ctx, "t1", id))

	hits, err := idx.Search(ctx, "t1", vector.Embedding{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
