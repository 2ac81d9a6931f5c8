package memstore

import (
	"context"
	"sync"

	"hippos/internal/domain/entity"
	"hippos/internal/domain/ids"
	pkgerrors "hippos/pkg/errors"
)

// RelationshipRepository is the in-memory, mutex-guarded
// RelationshipRepository.
type RelationshipRepository struct {
	mu       sync.RWMutex
	byID     map[tenantKey]*entity.Relationship
	byDedup  map[tenantKey]ids.RelationshipID
	byEntity map[tenantKey][]ids.RelationshipID
}

func NewRelationshipRepository() *RelationshipRepository {
	return &RelationshipRepository{
		byID:     make(map[tenantKey]*entity.Relationship),
		byDedup:  make(map[tenantKey]ids.RelationshipID),
		byEntity: make(map[tenantKey][]ids.RelationshipID),
	}
}

func (r *RelationshipRepository) Create(_ context.Context, rel *entity.Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dedupKey := tenantKey{rel.TenantID(), rel.DedupKey()}
	if _, exists := r.byDedup[dedupKey]; exists {
		return pkgerrors.NewConflict("relationship already exists")
	}

	idKey := tenantKey{rel.TenantID(), rel.ID().String()}
	r.byID[idKey] = rel
	r.byDedup[dedupKey] = rel.ID()
	r.indexByEntity(rel)
	return nil
}

func (r *RelationshipRepository) indexByEntity(rel *entity.Relationship) {
	for _, eid := range []ids.EntityID{rel.SourceEntityID(), rel.TargetEntityID()} {
		k := tenantKey{rel.TenantID(), eid.String()}
		r.byEntity[k] = append(r.byEntity[k], rel.ID())
	}
}

func (r *RelationshipRepository) Get(_ context.Context, tenantID ids.TenantID, id ids.RelationshipID) (*entity.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rel, ok := r.byID[tenantKey{tenantID, id.String()}]
	if !ok {
		return nil, pkgerrors.NewNotFound("relationship not found")
	}
	return rel, nil
}

func (r *RelationshipRepository) Update(_ context.Context, rel *entity.Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idKey := tenantKey{rel.TenantID(), rel.ID().String()}
	if _, ok := r.byID[idKey]; !ok {
		return pkgerrors.NewNotFound("relationship not found")
	}
	r.byID[idKey] = rel
	return nil
}

func (r *RelationshipRepository) Delete(_ context.Context, tenantID ids.TenantID, id ids.RelationshipID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idKey := tenantKey{tenantID, id.String()}
	rel, ok := r.byID[idKey]
	if !ok {
		return pkgerrors.NewNotFound("relationship not found")
	}
	delete(r.byID, idKey)
	delete(r.byDedup, tenantKey{tenantID, rel.DedupKey()})
	return nil
}

func (r *RelationshipRepository) FindByDedupKey(_ context.Context, tenantID ids.TenantID, key string) (*entity.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byDedup[tenantKey{tenantID, key}]
	if !ok {
		return nil, pkgerrors.NewNotFound("relationship not found")
	}
	rel, ok := r.byID[tenantKey{tenantID, id.String()}]
	if !ok {
		return nil, pkgerrors.NewNotFound("relationship not found")
	}
	return rel, nil
}

func (r *RelationshipRepository) FindByEntity(_ context.Context, tenantID ids.TenantID, entityID ids.EntityID) ([]*entity.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.Relationship
	for _, id := range r.byEntity[tenantKey{tenantID, entityID.String()}] {
		if rel, ok := r.byID[tenantKey{tenantID, id.String()}]; ok {
			out = append(out, rel)
		}
	}
	return out, nil
}
