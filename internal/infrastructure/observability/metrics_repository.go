package observability

import (
	"context"
	"time"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/memory"
	"hippos/internal/ports"
	pkgerrors "hippos/pkg/errors"
	pkgobservability "hippos/pkg/observability"
)

// MetricsMemoryRepository decorates a ports.MemoryRepository so every
// call records its duration and outcome on the shared Prometheus
// registry, without the repository implementation itself needing to
// know metrics exist. Mirrors TraceMemoryRepository's decorator shape.
type MetricsMemoryRepository struct {
	inner   ports.MemoryRepository
	metrics *pkgobservability.Metrics
}

func NewMetricsMemoryRepository(inner ports.MemoryRepository, metrics *pkgobservability.Metrics) *MetricsMemoryRepository {
	return &MetricsMemoryRepository{inner: inner, metrics: metrics}
}

func (r *MetricsMemoryRepository) record(operation string, start time.Time, err error) {
	r.metrics.RecordOperation(operation, time.Since(start), err)
	if err != nil {
		r.metrics.RecordError(string(pkgerrors.TypeOf(err)), "memory_repository")
	}
}

func (r *MetricsMemoryRepository) Create(ctx context.Context, m *memory.Memory) error {
	start := time.Now()
	err := r.inner.Create(ctx, m)
	r.record("memory_repository.create", start, err)
	return err
}

func (r *MetricsMemoryRepository) Get(ctx context.Context, tenantID ids.TenantID, id ids.MemoryID) (*memory.Memory, error) {
	start := time.Now()
	m, err := r.inner.Get(ctx, tenantID, id)
	r.record("memory_repository.get", start, err)
	return m, err
}

func (r *MetricsMemoryRepository) Update(ctx context.Context, m *memory.Memory) error {
	start := time.Now()
	err := r.inner.Update(ctx, m)
	r.record("memory_repository.update", start, err)
	return err
}

func (r *MetricsMemoryRepository) Delete(ctx context.Context, tenantID ids.TenantID, id ids.MemoryID) error {
	start := time.Now()
	err := r.inner.Delete(ctx, tenantID, id)
	r.record("memory_repository.delete", start, err)
	return err
}

func (r *MetricsMemoryRepository) List(ctx context.Context, tenantID ids.TenantID, userID string, opts ports.ListOptions) ([]*memory.Memory, error) {
	start := time.Now()
	list, err := r.inner.List(ctx, tenantID, userID, opts)
	r.record("memory_repository.list", start, err)
	return list, err
}

func (r *MetricsMemoryRepository) Count(ctx context.Context, tenantID ids.TenantID) (int, error) {
	start := time.Now()
	n, err := r.inner.Count(ctx, tenantID)
	r.record("memory_repository.count", start, err)
	return n, err
}

func (r *MetricsMemoryRepository) FindBySourceID(ctx context.Context, tenantID ids.TenantID, userID, sourceID string) (*memory.Memory, error) {
	start := time.Now()
	m, err := r.inner.FindBySourceID(ctx, tenantID, userID, sourceID)
	r.record("memory_repository.find_by_source_id", start, err)
	return m, err
}

func (r *MetricsMemoryRepository) FindActive(ctx context.Context, tenantID ids.TenantID, userID string) ([]*memory.Memory, error) {
	start := time.Now()
	list, err := r.inner.FindActive(ctx, tenantID, userID)
	r.record("memory_repository.find_active", start, err)
	return list, err
}

func (r *MetricsMemoryRepository) FindPendingReindex(ctx context.Context, tenantID ids.TenantID) ([]*memory.Memory, error) {
	start := time.Now()
	list, err := r.inner.FindPendingReindex(ctx, tenantID)
	r.record("memory_repository.find_pending_reindex", start, err)
	return list, err
}

func (r *MetricsMemoryRepository) FindExpired(ctx context.Context, tenantID ids.TenantID, asOf time.Time) ([]*memory.Memory, error) {
	start := time.Now()
	list, err := r.inner.FindExpired(ctx, tenantID, asOf)
	r.record("memory_repository.find_expired", start, err)
	return list, err
}
