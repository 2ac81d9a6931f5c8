package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/ids"
)

func TestNewEntity(t *testing.T) {
	e, err := NewEntity(ids.TenantID("t1"), "  Ada Lovelace  ", KindPerson, "mem-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", e.Name())
	assert.Equal(t, 1, e.MentionCount())
	assert.Equal(t, []string{"mem-1"}, e.SourceMemoryIDs())
}

func TestNewEntityValidation(t *testing.T) {
	_, err := NewEntity("", "Ada", KindPerson, "")
	assert.Error(t, err)

	_, err = NewEntity(ids.TenantID("t1"), "", KindPerson, "")
	assert.Error(t, err)

	_, err = NewEntity(ids.TenantID("t1"), "Ada", "bogus", "")
	assert.Error(t, err)
}

func TestDedupKeyIsCaseFolded(t *testing.T) {
	a, err := NewEntity(ids.TenantID("t1"), "Ada Lovelace", KindPerson, "")
	require.NoError(t, err)
	b, err := NewEntity(ids.TenantID("t1"), "ada lovelace", KindPerson, "")
	require.NoError(t, err)
	assert.Equal(t, a.DedupKey(), b.DedupKey())
}

func TestReinforceBumpsMentionCountAndDedupsSource(t *testing.T) {
	e, err := NewEntity(ids.TenantID("t1"), "Ada Lovelace", KindPerson, "mem-1")
	require.NoError(t, err)

	e.Reinforce("mem-2")
	e.Reinforce("mem-2")

	assert.Equal(t, 3, e.MentionCount())
	assert.Equal(t, []string{"mem-1", "mem-2"}, e.SourceMemoryIDs())
}

func TestAddAliasDedupsCaseInsensitively(t *testing.T) {
	e, err := NewEntity(ids.TenantID("t1"), "Ada Lovelace", KindPerson, "")
	require.NoError(t, err)

	e.AddAlias("Ada")
	e.AddAlias("ADA")
	assert.Len(t, e.Aliases(), 1)
}
