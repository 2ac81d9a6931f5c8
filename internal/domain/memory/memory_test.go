package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/ids"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m, err := New(ids.TenantID("t1"), "u1", KindEpisodic, SourceConversation, "", "hello world", 0.5, 0.5)
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		tenantID   ids.TenantID
		userID     string
		kind       Kind
		source     Source
		content    string
		wantErr    bool
	}{
		{name: "valid", tenantID: "t1", userID: "u1", kind: KindEpisodic, source: SourceConversation, content: "hi", wantErr: false},
		{name: "empty tenant", tenantID: "", userID: "u1", kind: KindEpisodic, source: SourceConversation, content: "hi", wantErr: true},
		{name: "empty user", tenantID: "t1", userID: "", kind: KindEpisodic, source: SourceConversation, content: "hi", wantErr: true},
		{name: "bad kind", tenantID: "t1", userID: "u1", kind: "bogus", source: SourceConversation, content: "hi", wantErr: true},
		{name: "bad source", tenantID: "t1", userID: "u1", kind: KindEpisodic, source: "bogus", content: "hi", wantErr: true},
		{name: "empty content", tenantID: "t1", userID: "u1", kind: KindEpisodic, source: SourceConversation, content: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.tenantID, tt.userID, tt.kind, tt.source, "", tt.content, 0.5, 0.5)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusActive, m.Status())
			assert.Equal(t, 1, m.Version())
			assert.False(t, m.AccessedAt().Before(m.CreatedAt()))
			assert.Len(t, m.UncommittedEvents(), 1)
		})
	}
}

func TestImportanceConfidenceClamped(t *testing.T) {
	m, err := New(ids.TenantID("t1"), "u1", KindEpisodic, SourceConversation, "", "hi", 5.0, -5.0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Importance())
	assert.Equal(t, 0.0, m.Confidence())
}

func TestVersionBumpsOnEveryCommittedUpdate(t *testing.T) {
	m := newTestMemory(t)
	require.NoError(t, m.UpdateContent("updated"))
	assert.Equal(t, 2, m.Version())

	m.BumpAccessed(m.AccessedAt())
	assert.Equal(t, 3, m.Version())

	archived := m.ApplyImportanceDecay(0.5, 0.01)
	assert.Equal(t, 4, m.Version())
	assert.False(t, archived)
}

func TestStatusLifecycleIsMonotone(t *testing.T) {
	m := newTestMemory(t)
	require.NoError(t, m.Archive("decayed below threshold"))
	assert.Equal(t, StatusArchived, m.Status())

	require.NoError(t, m.Delete())
	assert.Equal(t, StatusDeleted, m.Status())

	err := m.Archive("retry")
	assert.Error(t, err) // cannot move backward once Deleted
}

func TestDeleteRequiresArchivedFirst(t *testing.T) {
	m := newTestMemory(t)
	err := m.Delete()
	assert.Error(t, err)
}

func TestAccessedAtNeverPrecedesCreatedAt(t *testing.T) {
	m := newTestMemory(t)
	earlier := m.CreatedAt().Add(-time.Hour)
	m.BumpAccessed(earlier)
	assert.False(t, m.AccessedAt().Before(m.CreatedAt()))
}

func TestSetEmbeddingValidatesDimension(t *testing.T) {
	m := newTestMemory(t)
	err := m.SetEmbedding([]float32{0.1, 0.2, 0.3}, 4)
	assert.Error(t, err)

	err = m.SetEmbedding([]float32{0.1, 0.2, 0.3, 0.4}, 4)
	assert.NoError(t, err)
	assert.Equal(t, 4, m.Embedding().Dimension())
	assert.False(t, m.PendingReindex())
}

func TestIsActive(t *testing.T) {
	m := newTestMemory(t)
	assert.True(t, m.IsActive())
	require.NoError(t, m.Archive("x"))
	assert.False(t, m.IsActive())
}
