package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/vector"
)

func TestEmbedIsDeterministic(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(32)

	a, err := e.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbedRespectsDimension(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(16)
	v, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	assert.Equal(t, 16, v.Dimension())
}

func TestSimilarTextsAreCloserThanUnrelatedText(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(64)

	a, err := e.Embed(ctx, "go concurrency with goroutines and channels")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "go concurrency with goroutines and channels please")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "a recipe for chocolate chip cookies")
	require.NoError(t, err)

	simAB := vector.Cosine(a, b)
	simAC := vector.Cosine(a, c)
	assert.Greater(t, simAB, simAC)
}

func TestEmbedEmptyTextReturnsZeroVector(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(8)
	v, err := e.Embed(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 8, v.Dimension())
	for _, f := range v {
		assert.Zero(t, f)
	}
}
