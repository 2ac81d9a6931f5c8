// Package memstore is the reference in-memory document store: per-tenant,
// mutex-guarded maps implementing every repository port. It is the
// default backend and the one every service is tested against.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/memory"
	"hippos/internal/ports"
	pkgerrors "hippos/pkg/errors"
)

// DefaultPaginationMax bounds every List call's effective limit.
const DefaultPaginationMax = 100

// MemoryRepository is the in-memory, mutex-guarded MemoryRepository.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[tenantKey]*memory.Memory
}

type tenantKey struct {
	tenant ids.TenantID
	id     string
}

// NewMemoryRepository creates an empty in-memory MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[tenantKey]*memory.Memory)}
}

func (r *MemoryRepository) Create(_ context.Context, m *memory.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := tenantKey{m.TenantID(), m.ID().String()}
	if _, exists := r.byID[k]; exists {
		return pkgerrors.NewConflict("memory already exists")
	}
	r.byID[k] = m
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, tenantID ids.TenantID, id ids.MemoryID) (*memory.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[tenantKey{tenantID, id.String()}]
	if !ok {
		return nil, pkgerrors.NewNotFound("memory not found")
	}
	return m, nil
}

// Update enforces optimistic concurrency: the stored version must equal
// the incoming aggregate's version minus one, since the aggregate's own
// mutators have already bumped version in memory before Update is called.
func (r *MemoryRepository) Update(_ context.Context, m *memory.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := tenantKey{m.TenantID(), m.ID().String()}
	existing, ok := r.byID[k]
	if !ok {
		return pkgerrors.NewNotFound("memory not found")
	}
	if existing.Version() != m.Version()-1 {
		return pkgerrors.NewConflict("memory was modified concurrently")
	}
	r.byID[k] = m
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, tenantID ids.TenantID, id ids.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := tenantKey{tenantID, id.String()}
	if _, ok := r.byID[k]; !ok {
		return pkgerrors.NewNotFound("memory not found")
	}
	delete(r.byID, k)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, tenantID ids.TenantID, userID string, opts ports.ListOptions) ([]*memory.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*memory.Memory
	for k, m := range r.byID {
		if k.tenant != tenantID {
			continue
		}
		if userID != "" && m.UserID() != userID {
			continue
		}
		matches = append(matches, m)
	}

	sortMemories(matches, opts.OrderBy, opts.OrderDesc)
	return paginate(matches, opts.Offset, opts.Limit), nil
}

func (r *MemoryRepository) Count(_ context.Context, tenantID ids.TenantID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int
	for k := range r.byID {
		if k.tenant == tenantID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) FindBySourceID(_ context.Context, tenantID ids.TenantID, userID, sourceID string) (*memory.Memory, error) {
	if sourceID == "" {
		return nil, pkgerrors.NewNotFound("memory not found")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for k, m := range r.byID {
		if k.tenant == tenantID && m.UserID() == userID && m.SourceID() == sourceID {
			return m, nil
		}
	}
	return nil, pkgerrors.NewNotFound("memory not found")
}

func (r *MemoryRepository) FindActive(_ context.Context, tenantID ids.TenantID, userID string) ([]*memory.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*memory.Memory
	for k, m := range r.byID {
		if k.tenant != tenantID || !m.IsActive() {
			continue
		}
		if userID != "" && m.UserID() != userID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *MemoryRepository) FindPendingReindex(_ context.Context, tenantID ids.TenantID) ([]*memory.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*memory.Memory
	for k, m := range r.byID {
		if k.tenant == tenantID && m.PendingReindex() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryRepository) FindExpired(_ context.Context, tenantID ids.TenantID, asOf time.Time) ([]*memory.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*memory.Memory
	for k, m := range r.byID {
		if k.tenant != tenantID {
			continue
		}
		if exp := m.ExpiresAt(); exp != nil && !exp.After(asOf) {
			out = append(out, m)
		}
	}
	return out, nil
}

func sortMemories(m []*memory.Memory, orderBy string, desc bool) {
	less := func(i, j int) bool {
		switch orderBy {
		case "importance":
			return m[i].Importance() < m[j].Importance()
		case "accessed_at":
			return m[i].AccessedAt().Before(m[j].AccessedAt())
		default:
			return m[i].CreatedAt().Before(m[j].CreatedAt())
		}
	}
	sort.Slice(m, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
}

func paginate[T any](items []T, offset, limit int) []T {
	if limit <= 0 || limit > DefaultPaginationMax {
		limit = DefaultPaginationMax
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
