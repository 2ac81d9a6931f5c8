// Package profilemanager implements ProfileManager: CRUD and the
// fact/preference mutators over a user's Profile aggregate. The
// aggregate (internal/domain/profile) already carries every invariant
// (verification threshold, fact confidence clamping, overall-confidence
// recomputation); this layer's job is thin transactional orchestration:
// get-or-create on first touch, optimistic-concurrency-checked
// persistence.
package profilemanager

import (
	"context"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/profile"
	"hippos/internal/ports"
	pkgerrors "hippos/pkg/errors"
)

// Config bounds ProfileManager behavior.
type Config struct {
	// VerificationThreshold is the minimum fact confidence required for
	// VerifyFact to succeed, when a call doesn't specify its own.
	VerificationThreshold float64
}

// DefaultConfig matches profile.DefaultVerificationThreshold.
func DefaultConfig() Config {
	return Config{VerificationThreshold: profile.DefaultVerificationThreshold}
}

// Manager is the default ProfileManager.
type Manager struct {
	profiles ports.ProfileRepository
	cfg      Config
}

// New creates a Manager.
func New(profiles ports.ProfileRepository, cfg Config) *Manager {
	if cfg.VerificationThreshold <= 0 {
		cfg.VerificationThreshold = DefaultConfig().VerificationThreshold
	}
	return &Manager{profiles: profiles, cfg: cfg}
}

// GetOrCreate returns the user's Profile, creating an empty one on first
// touch. (tenant_id, user_id) is unique, so a racing create surfaces as
// Conflict and the manager re-reads rather than propagating it.
func (m *Manager) GetOrCreate(ctx context.Context, tenantID ids.TenantID, userID string) (*profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewCancelled("profile lookup cancelled")
	}

	p, err := m.profiles.GetByUserID(ctx, tenantID, userID)
	if err == nil {
		return p, nil
	}
	if !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	p, err = profile.New(tenantID, userID)
	if err != nil {
		return nil, err
	}
	if err := m.profiles.Create(ctx, p); err != nil {
		if pkgerrors.IsConflict(err) {
			return m.profiles.GetByUserID(ctx, tenantID, userID)
		}
		return nil, err
	}
	return p, nil
}

// SetIdentity updates name/role/organization/location and persists.
func (m *Manager) SetIdentity(ctx context.Context, tenantID ids.TenantID, userID, name, role, organization, location string) (*profile.Profile, error) {
	p, err := m.GetOrCreate(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	p.SetIdentity(name, role, organization, location)
	if err := m.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddPreference sets a single preference key/value and persists.
func (m *Manager) AddPreference(ctx context.Context, tenantID ids.TenantID, userID, key string, value any) (*profile.Profile, error) {
	p, err := m.GetOrCreate(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if err := p.AddPreference(key, value); err != nil {
		return nil, err
	}
	if err := m.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddFact appends a new fact to the profile and returns its assigned id.
func (m *Manager) AddFact(ctx context.Context, tenantID ids.TenantID, userID, text, category, sourceMemoryID string, confidence float64) (ids.FactID, error) {
	p, err := m.GetOrCreate(ctx, tenantID, userID)
	if err != nil {
		return ids.FactID{}, err
	}
	factID, err := p.AddFact(text, category, sourceMemoryID, confidence)
	if err != nil {
		return ids.FactID{}, err
	}
	if err := m.profiles.Update(ctx, p); err != nil {
		return ids.FactID{}, err
	}
	return factID, nil
}

// VerifyFact marks a fact verified against the manager's configured
// threshold, enforcing the verified-implies-confident invariant.
func (m *Manager) VerifyFact(ctx context.Context, tenantID ids.TenantID, userID string, factID ids.FactID) error {
	p, err := m.GetOrCreate(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	if err := p.VerifyFact(factID, m.cfg.VerificationThreshold); err != nil {
		return err
	}
	return m.profiles.Update(ctx, p)
}

// AddInterest, AddCommonTask, AddToolUsed, and SetWorkingHours follow the
// same get-mutate-persist shape as AddPreference.

func (m *Manager) AddInterest(ctx context.Context, tenantID ids.TenantID, userID, interest string) (*profile.Profile, error) {
	p, err := m.GetOrCreate(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	p.AddInterest(interest)
	if err := m.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Manager) AddCommonTask(ctx context.Context, tenantID ids.TenantID, userID, task string) (*profile.Profile, error) {
	p, err := m.GetOrCreate(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	p.AddCommonTask(task)
	if err := m.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Manager) AddToolUsed(ctx context.Context, tenantID ids.TenantID, userID, tool string) (*profile.Profile, error) {
	p, err := m.GetOrCreate(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	p.AddToolUsed(tool)
	if err := m.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Manager) SetWorkingHours(ctx context.Context, tenantID ids.TenantID, userID, hours string) (*profile.Profile, error) {
	p, err := m.GetOrCreate(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	p.SetWorkingHours(hours)
	if err := m.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetCommunicationProfile updates communication style/technical level and
// persists.
func (m *Manager) SetCommunicationProfile(ctx context.Context, tenantID ids.TenantID, userID, style, technicalLevel string) (*profile.Profile, error) {
	p, err := m.GetOrCreate(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	p.SetCommunicationProfile(style, technicalLevel)
	if err := m.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a profile by its tenant-scoped id.
func (m *Manager) Get(ctx context.Context, tenantID ids.TenantID, id ids.ProfileID) (*profile.Profile, error) {
	return m.profiles.Get(ctx, tenantID, id)
}

// Delete removes a profile entirely.
func (m *Manager) Delete(ctx context.Context, tenantID ids.TenantID, id ids.ProfileID) error {
	return m.profiles.Delete(ctx, tenantID, id)
}
