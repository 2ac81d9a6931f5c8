package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/ids"
)

func TestNew(t *testing.T) {
	p, err := New(ids.TenantID("t1"), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID())
	assert.NotNil(t, p.Preferences())
	assert.Empty(t, p.Facts())
}

func TestNewRejectsEmptyTenantOrUser(t *testing.T) {
	_, err := New("", "u1")
	assert.Error(t, err)

	_, err = New(ids.TenantID("t1"), "")
	assert.Error(t, err)
}

func TestAddFactClampsConfidence(t *testing.T) {
	p, err := New(ids.TenantID("t1"), "u1")
	require.NoError(t, err)

	id, err := p.AddFact("likes go", "preference", "", 5.0)
	require.NoError(t, err)
	assert.False(t, id.IsZero())

	facts := p.Facts()
	require.Len(t, facts, 1)
	assert.Equal(t, 1.0, facts[0].Confidence)
	assert.Equal(t, 1.0, p.OverallConfidence())
}

func TestVerifyFactEnforcesThreshold(t *testing.T) {
	p, err := New(ids.TenantID("t1"), "u1")
	require.NoError(t, err)

	lowID, err := p.AddFact("maybe uses vim", "tooling", "", 0.3)
	require.NoError(t, err)

	err = p.VerifyFact(lowID, DefaultVerificationThreshold)
	assert.Error(t, err)

	highID, err := p.AddFact("uses emacs", "tooling", "", 0.9)
	require.NoError(t, err)

	require.NoError(t, p.VerifyFact(highID, DefaultVerificationThreshold))
	facts := p.Facts()
	var verified bool
	for _, f := range facts {
		if f.ID.Equals(highID) {
			verified = f.Verified
		}
	}
	assert.True(t, verified)
	assert.NotNil(t, p.LastVerified())
}

func TestVerifyFactUnknownIDReturnsNotFound(t *testing.T) {
	p, err := New(ids.TenantID("t1"), "u1")
	require.NoError(t, err)
	err = p.VerifyFact(ids.NewFactID(), DefaultVerificationThreshold)
	assert.Error(t, err)
}

func TestAddInterestAndToolDedup(t *testing.T) {
	p, err := New(ids.TenantID("t1"), "u1")
	require.NoError(t, err)

	p.AddInterest("golang")
	p.AddInterest("golang")
	assert.Len(t, p.Interests(), 1)

	p.AddToolUsed("vscode")
	p.AddToolUsed("vscode")
	assert.Len(t, p.ToolsUsed(), 1)

	p.AddCommonTask("code review")
	p.AddCommonTask("code review")
	assert.Len(t, p.CommonTasks(), 1)
}

func TestAddPreferenceRejectsEmptyKey(t *testing.T) {
	p, err := New(ids.TenantID("t1"), "u1")
	require.NoError(t, err)
	err = p.AddPreference("", "value")
	assert.Error(t, err)

	require.NoError(t, p.AddPreference("theme", "dark"))
	assert.Equal(t, "dark", p.Preferences()["theme"])
}
