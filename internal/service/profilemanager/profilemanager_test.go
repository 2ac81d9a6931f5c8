package profilemanager_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/ids"
	"hippos/internal/infrastructure/memstore"
	"hippos/internal/service/profilemanager"
	pkgerrors "hippos/pkg/errors"
)

func newManager() (*profilemanager.Manager, *memstore.ProfileRepository) {
	repo := memstore.NewProfileRepository()
	return profilemanager.New(repo, profilemanager.DefaultConfig()), repo
}

func TestGetOrCreate_CreatesOnFirstTouch(t *testing.T) {
	m, repo := newManager()
	tenant := ids.TenantID("tenant-1")

	p, err := m.GetOrCreate(context.Background(), tenant, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID())

	again, err := m.GetOrCreate(context.Background(), tenant, "user-1")
	require.NoError(t, err)
	assert.True(t, p.ID().Equals(again.ID()))

	stored, err := repo.GetByUserID(context.Background(), tenant, "user-1")
	require.NoError(t, err)
	assert.True(t, stored.ID().Equals(p.ID()))
}

func TestAddFact_AssignsIDAndUpdatesConfidence(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	factID, err := m.AddFact(context.Background(), tenant, "user-1", "prefers dark mode", "preference", "mem-1", 0.9)
	require.NoError(t, err)
	assert.False(t, factID.IsZero())

	p, err := m.GetOrCreate(context.Background(), tenant, "user-1")
	require.NoError(t, err)
	require.Len(t, p.Facts(), 1)
	assert.InDelta(t, 0.9, p.OverallConfidence(), 0.0001)
}

func TestVerifyFact_RejectsBelowThreshold(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	factID, err := m.AddFact(context.Background(), tenant, "user-1", "might work remotely", "work", "mem-2", 0.3)
	require.NoError(t, err)

	err = m.VerifyFact(context.Background(), tenant, "user-1", factID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestVerifyFact_AcceptsAboveThreshold(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	factID, err := m.AddFact(context.Background(), tenant, "user-1", "works at Acme", "work", "mem-3", 0.95)
	require.NoError(t, err)

	err = m.VerifyFact(context.Background(), tenant, "user-1", factID)
	require.NoError(t, err)

	p, err := m.GetOrCreate(context.Background(), tenant, "user-1")
	require.NoError(t, err)
	facts := p.Facts()
	require.Len(t, facts, 1)
	assert.True(t, facts[0].Verified)
	assert.NotNil(t, p.LastVerified())
}

func TestAddPreference_RejectsEmptyKey(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	_, err := m.AddPreference(context.Background(), tenant, "user-1", "", "value")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestAddInterest_IsDeduplicated(t *testing.T) {
	m, _ := newManager()
	tenant := ids.TenantID("tenant-1")

	_, err := m.AddInterest(context.Background(), tenant, "user-1", "hiking")
	require.NoError(t, err)
	p, err := m.AddInterest(context.Background(), tenant, "user-1", "hiking")
	require.NoError(t, err)

	assert.Equal(t, []string{"hiking"}, p.Interests())
}
