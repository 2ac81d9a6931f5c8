package memstore

import (
	"context"
	"sync"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/profile"
	pkgerrors "hippos/pkg/errors"
)

// ProfileRepository is the in-memory, mutex-guarded ProfileRepository.
type ProfileRepository struct {
	mu       sync.RWMutex
	byID     map[tenantKey]*profile.Profile
	byUserID map[tenantKey]ids.ProfileID
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		byID:     make(map[tenantKey]*profile.Profile),
		byUserID: make(map[tenantKey]ids.ProfileID),
	}
}

func (r *ProfileRepository) Create(_ context.Context, p *profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	userKey := tenantKey{p.TenantID(), p.UserID()}
	if _, exists := r.byUserID[userKey]; exists {
		return pkgerrors.NewConflict("profile already exists for user")
	}

	idKey := tenantKey{p.TenantID(), p.ID().String()}
	r.byID[idKey] = p
	r.byUserID[userKey] = p.ID()
	return nil
}

func (r *ProfileRepository) Get(_ context.Context, tenantID ids.TenantID, id ids.ProfileID) (*profile.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[tenantKey{tenantID, id.String()}]
	if !ok {
		return nil, pkgerrors.NewNotFound("profile not found")
	}
	return p, nil
}

func (r *ProfileRepository) GetByUserID(_ context.Context, tenantID ids.TenantID, userID string) (*profile.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUserID[tenantKey{tenantID, userID}]
	if !ok {
		return nil, pkgerrors.NewNotFound("profile not found")
	}
	p, ok := r.byID[tenantKey{tenantID, id.String()}]
	if !ok {
		return nil, pkgerrors.NewNotFound("profile not found")
	}
	return p, nil
}

func (r *ProfileRepository) Update(_ context.Context, p *profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idKey := tenantKey{p.TenantID(), p.ID().String()}
	if _, ok := r.byID[idKey]; !ok {
		return pkgerrors.NewNotFound("profile not found")
	}
	r.byID[idKey] = p
	return nil
}

func (r *ProfileRepository) Delete(_ context.Context, tenantID ids.TenantID, id ids.ProfileID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idKey := tenantKey{tenantID, id.String()}
	p, ok := r.byID[idKey]
	if !ok {
		return pkgerrors.NewNotFound("profile not found")
	}
	delete(r.byID, idKey)
	delete(r.byUserID, tenantKey{tenantID, p.UserID()})
	return nil
}
