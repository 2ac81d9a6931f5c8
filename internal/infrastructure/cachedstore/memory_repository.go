// Package cachedstore decorates a ports.MemoryRepository with a bounded
// read-through cache, giving StorageConfig.MaxCacheSize somewhere to
// apply regardless of which backend (memstore, boltstore) sits
// underneath. Mirrors the decorator shape of
// internal/infrastructure/observability's TraceMemoryRepository and
// MetricsMemoryRepository: same interface in, same interface out, one
// cross-cutting concern added.
package cachedstore

import (
	"context"
	"time"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/memory"
	"hippos/internal/infrastructure/lrucache"
	"hippos/internal/ports"
)

// MemoryRepository caches Get results by (tenant, id). A successful Create
// or Update replaces the cached entry with the written aggregate and
// Delete evicts it, since a stale cached read of a just-mutated Memory
// would violate the optimistic-concurrency contract callers rely on. List-ish
// queries are never cached: their result sets shift too often (ingestion,
// maintenance sweeps) for a capacity-bounded cache to track usefully.
type MemoryRepository struct {
	inner ports.MemoryRepository
	cache *lrucache.Cache[string, *memory.Memory]
}

// New wraps inner with a read-through cache bounded at capacity entries.
func New(inner ports.MemoryRepository, capacity int) *MemoryRepository {
	return &MemoryRepository{inner: inner, cache: lrucache.New[string, *memory.Memory](capacity)}
}

func cacheKey(tenantID ids.TenantID, id string) string {
	return tenantID.String() + "/" + id
}

func (r *MemoryRepository) Create(ctx context.Context, m *memory.Memory) error {
	if err := r.inner.Create(ctx, m); err != nil {
		return err
	}
	r.cache.Put(cacheKey(m.TenantID(), m.ID().String()), m)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, tenantID ids.TenantID, id ids.MemoryID) (*memory.Memory, error) {
	key := cacheKey(tenantID, id.String())
	if m, ok := r.cache.Get(key); ok {
		return m, nil
	}
	m, err := r.inner.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	r.cache.Put(key, m)
	return m, nil
}

func (r *MemoryRepository) Update(ctx context.Context, m *memory.Memory) error {
	if err := r.inner.Update(ctx, m); err != nil {
		return err
	}
	r.cache.Put(cacheKey(m.TenantID(), m.ID().String()), m)
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, tenantID ids.TenantID, id ids.MemoryID) error {
	if err := r.inner.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	r.cache.Remove(cacheKey(tenantID, id.String()))
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, tenantID ids.TenantID, userID string, opts ports.ListOptions) ([]*memory.Memory, error) {
	return r.inner.List(ctx, tenantID, userID, opts)
}

func (r *MemoryRepository) Count(ctx context.Context, tenantID ids.TenantID) (int, error) {
	return r.inner.Count(ctx, tenantID)
}

func (r *MemoryRepository) FindBySourceID(ctx context.Context, tenantID ids.TenantID, userID, sourceID string) (*memory.Memory, error) {
	return r.inner.FindBySourceID(ctx, tenantID, userID, sourceID)
}

func (r *MemoryRepository) FindActive(ctx context.Context, tenantID ids.TenantID, userID string) ([]*memory.Memory, error) {
	return r.inner.FindActive(ctx, tenantID, userID)
}

func (r *MemoryRepository) FindPendingReindex(ctx context.Context, tenantID ids.TenantID) ([]*memory.Memory, error) {
	return r.inner.FindPendingReindex(ctx, tenantID)
}

func (r *MemoryRepository) FindExpired(ctx context.Context, tenantID ids.TenantID, asOf time.Time) ([]*memory.Memory, error) {
	return r.inner.FindExpired(ctx, tenantID, asOf)
}
