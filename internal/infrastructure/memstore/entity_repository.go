package memstore

import (
	"context"
	"sync"

	"hippos/internal/domain/entity"
	"hippos/internal/domain/ids"
	"hippos/internal/ports"
	pkgerrors "hippos/pkg/errors"
)

// EntityRepository is the in-memory, mutex-guarded EntityRepository.
type EntityRepository struct {
	mu        sync.RWMutex
	byID      map[tenantKey]*entity.Entity
	byDedup   map[tenantKey]ids.EntityID
}

func NewEntityRepository() *EntityRepository {
	return &EntityRepository{
		byID:    make(map[tenantKey]*entity.Entity),
		byDedup: make(map[tenantKey]ids.EntityID),
	}
}

func (r *EntityRepository) Create(_ context.Context, e *entity.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dedupKey := tenantKey{e.TenantID(), e.DedupKey()}
	if _, exists := r.byDedup[dedupKey]; exists {
		return pkgerrors.NewConflict("entity already exists")
	}

	idKey := tenantKey{e.TenantID(), e.ID().String()}
	r.byID[idKey] = e
	r.byDedup[dedupKey] = e.ID()
	return nil
}

func (r *EntityRepository) Get(_ context.Context, tenantID ids.TenantID, id ids.EntityID) (*entity.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[tenantKey{tenantID, id.String()}]
	if !ok {
		return nil, pkgerrors.NewNotFound("entity not found")
	}
	return e, nil
}

func (r *EntityRepository) Update(_ context.Context, e *entity.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idKey := tenantKey{e.TenantID(), e.ID().String()}
	if _, ok := r.byID[idKey]; !ok {
		return pkgerrors.NewNotFound("entity not found")
	}
	r.byID[idKey] = e
	return nil
}

func (r *EntityRepository) Delete(_ context.Context, tenantID ids.TenantID, id ids.EntityID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idKey := tenantKey{tenantID, id.String()}
	e, ok := r.byID[idKey]
	if !ok {
		return pkgerrors.NewNotFound("entity not found")
	}
	delete(r.byID, idKey)
	delete(r.byDedup, tenantKey{tenantID, e.DedupKey()})
	return nil
}

func (r *EntityRepository) List(_ context.Context, tenantID ids.TenantID, opts ports.ListOptions) ([]*entity.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*entity.Entity
	for k, e := range r.byID {
		if k.tenant == tenantID {
			matches = append(matches, e)
		}
	}
	return paginate(matches, opts.Offset, opts.Limit), nil
}

func (r *EntityRepository) FindByDedupKey(_ context.Context, tenantID ids.TenantID, key string) (*entity.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byDedup[tenantKey{tenantID, key}]
	if !ok {
		return nil, pkgerrors.NewNotFound("entity not found")
	}
	e, ok := r.byID[tenantKey{tenantID, id.String()}]
	if !ok {
		return nil, pkgerrors.NewNotFound("entity not found")
	}
	return e, nil
}
