package memstore

import (
	"context"
	"sync"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/pattern"
	"hippos/internal/ports"
	pkgerrors "hippos/pkg/errors"
)

// PatternRepository is the in-memory, mutex-guarded PatternRepository.
type PatternRepository struct {
	mu   sync.RWMutex
	byID map[tenantKey]*pattern.Pattern
}

func NewPatternRepository() *PatternRepository {
	return &PatternRepository{byID: make(map[tenantKey]*pattern.Pattern)}
}

func (r *PatternRepository) Create(_ context.Context, p *pattern.Pattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := tenantKey{p.TenantID(), p.ID().String()}
	if _, exists := r.byID[k]; exists {
		return pkgerrors.NewConflict("pattern already exists")
	}
	r.byID[k] = p
	return nil
}

func (r *PatternRepository) Get(_ context.Context, tenantID ids.TenantID, id ids.PatternID) (*pattern.Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[tenantKey{tenantID, id.String()}]
	if !ok {
		return nil, pkgerrors.NewNotFound("pattern not found")
	}
	return p, nil
}

func (r *PatternRepository) Update(_ context.Context, p *pattern.Pattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := tenantKey{p.TenantID(), p.ID().String()}
	if _, ok := r.byID[k]; !ok {
		return pkgerrors.NewNotFound("pattern not found")
	}
	r.byID[k] = p
	return nil
}

func (r *PatternRepository) Delete(_ context.Context, tenantID ids.TenantID, id ids.PatternID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := tenantKey{tenantID, id.String()}
	if _, ok := r.byID[k]; !ok {
		return pkgerrors.NewNotFound("pattern not found")
	}
	delete(r.byID, k)
	return nil
}

func (r *PatternRepository) List(_ context.Context, tenantID ids.TenantID, userID string, opts ports.ListOptions) ([]*pattern.Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*pattern.Pattern
	for k, p := range r.byID {
		if k.tenant != tenantID {
			continue
		}
		if userID != "" && p.UserID() != userID {
			continue
		}
		matches = append(matches, p)
	}
	return paginate(matches, opts.Offset, opts.Limit), nil
}

func (r *PatternRepository) FindByTags(_ context.Context, tenantID ids.TenantID, userID string, tags []string) ([]*pattern.Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]bool, len(tags))
	for _, t := range tags {
		wanted[t] = true
	}

	var out []*pattern.Pattern
	for k, p := range r.byID {
		if k.tenant != tenantID || p.UserID() != userID {
			continue
		}
		for _, t := range p.Tags() {
			if wanted[t] {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}
