package lexicalindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/ids"
)

func TestSearchRanksByTFIDF(t *testing.T) {
	ctx := context.Background()
	idx := New()

	onTopic := ids.NewMemoryID()
	offTopic := ids.NewMemoryID()
	require.NoError(t, idx.Index(ctx, "t1", onTopic, "go concurrency patterns with channels and goroutines", time.Now()))
	require.NoError(t, idx.Index(ctx, "t1", offTopic, "a recipe for bread", time.Now()))

	hits, err := idx.Search(ctx, "t1", "goroutines channels", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, onTopic, hits[0].MemoryID)
}

func TestSearchScopesToTenant(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Index(ctx, "t1", ids.NewMemoryID(), "go channels", time.Now()))

	hits, err := idx.Search(ctx, "t2", "go channels", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestReindexReplacesPreviousTerms(t *testing.T) {
	ctx := context.Background()
	idx := New()
	id := ids.NewMemoryID()
	require.NoError(t, idx.Index(ctx, "t1", id, "alpha", time.Now()))
	require.NoError(t, idx.Index(ctx, "t1", id, "beta", time.Now()))

	hits, err := idx.Search(ctx, "t1", "alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, "t1", "beta", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestRemoveDropsFromSearch(t *testing.T) {
	ctx := context.Background()
	idx := New()
	id := ids.NewMemoryID()
	require.NoError(t, idx.Index(ctx, "t1", id, "golang testing", time.Now()))
	require.NoError(t, idx.Remove(ctx, "t1", id))

	hits, err := idx.Search(ctx, "t1", "golang", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
