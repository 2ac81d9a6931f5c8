// Package integrator implements MemoryIntegrator: the periodic
// maintenance sweep that keeps a tenant's memory store and knowledge
// graph healthy between writes, in four stages: importance decay,
// redundancy merge, relationship strength refresh/prune, and archival
// purge.
package integrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/vector"
	"hippos/internal/ports"
)

// Config bounds a sweep. Zero-valued fields fall back to DefaultConfig's.
type Config struct {
	DecayWindow      time.Duration
	DecayFactor      float64
	ArchiveThreshold float64
	PurgeWindow      time.Duration
	MergeThreshold   float64
	StrengthPrune    float64
	Interval         time.Duration
}

// DefaultConfig matches spec §4.9's documented defaults.
func DefaultConfig() Config {
	return Config{
		DecayWindow:      30 * 24 * time.Hour,
		DecayFactor:      0.95,
		ArchiveThreshold: 0.05,
		PurgeWindow:      180 * 24 * time.Hour,
		MergeThreshold:   0.95,
		StrengthPrune:    0.05,
		Interval:         time.Hour,
	}
}

// TenantLister enumerates the tenants a periodic Run should sweep. The
// engine has no tenant directory of its own; callers (typically the DI
// container) supply one backed by however tenants are tracked.
type TenantLister func(ctx context.Context) ([]ids.TenantID, error)

// Integrator runs the periodic maintenance sweep.
type Integrator struct {
	memories      ports.MemoryRepository
	entities      ports.EntityRepository
	relationships ports.RelationshipRepository
	vectorIndex   ports.VectorIndex
	lexicalIndex  ports.LexicalIndex
	logger        *zap.Logger
	cfg           Config
}

// New creates an Integrator.
func New(
	memories ports.MemoryRepository,
	entities ports.EntityRepository,
	relationships ports.RelationshipRepository,
	vectorIndex ports.VectorIndex,
	lexicalIndex ports.LexicalIndex,
	logger *zap.Logger,
	cfg Config,
) *Integrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Integrator{
		memories: memories, entities: entities, relationships: relationships,
		vectorIndex: vectorIndex, lexicalIndex: lexicalIndex, logger: logger, cfg: cfg,
	}
}

// Run sweeps every tenant lister returns once per Interval until ctx is
// cancelled, checking cancellation between tenants and between items
// within a stage so a shutdown never has to wait out a whole sweep.
func (in *Integrator) Run(ctx context.Context, list TenantLister) {
	interval := in.cfg.Interval
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tenants, err := list(ctx)
			if err != nil {
				in.logger.Warn("tenant listing failed during maintenance sweep", zap.Error(err))
				continue
			}
			for _, tenantID := range tenants {
				if ctx.Err() != nil {
					return
				}
				if err := in.Sweep(ctx, tenantID); err != nil {
					in.logger.Warn("maintenance sweep failed",
						zap.String("tenant_id", tenantID.String()), zap.Error(err))
				}
			}
		}
	}
}

// Sweep runs one full maintenance pass for a single tenant: decay,
// redundancy merge, relationship refresh/prune, then archival purge.
// Every stage is safe to re-run: a memory or relationship not due for
// action this pass is left untouched, so repeated sweeps converge
// rather than compounding.
func (in *Integrator) Sweep(ctx context.Context, tenantID ids.TenantID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := in.decayPass(ctx, tenantID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := in.mergePass(ctx, tenantID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := in.relationshipPass(ctx, tenantID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return in.purgePass(ctx, tenantID)
}

func (in *Integrator) decayWindow() time.Duration {
	if in.cfg.DecayWindow > 0 {
		return in.cfg.DecayWindow
	}
	return DefaultConfig().DecayWindow
}

func (in *Integrator) decayFactor() float64 {
	if in.cfg.DecayFactor > 0 {
		return in.cfg.DecayFactor
	}
	return DefaultConfig().DecayFactor
}

// decayPass applies importance decay to every Active memory whose last
// update predates the decay window, archiving any that cross the
// threshold. A memory recall already decayed on read this window is
// untouched here: its updatedAt was just reset, so time.Since is small.
func (in *Integrator) decayPass(ctx context.Context, tenantID ids.TenantID) error {
	active, err := in.memories.FindActive(ctx, tenantID, "")
	if err != nil {
		return err
	}
	for _, m := range active {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(m.UpdatedAt()) < in.decayWindow() {
			continue
		}
		shouldArchive := m.ApplyImportanceDecay(in.decayFactor(), in.cfg.ArchiveThreshold)
		if shouldArchive {
			_ = m.Archive("importance decayed below archive threshold")
		}
		if err := in.memories.Update(ctx, m); err != nil {
			in.logger.Warn("decay persist failed", zap.String("memory_id", m.ID().String()), zap.Error(err))
		}
	}
	return nil
}

// mergePass folds near-duplicate active memories together by pairwise
// cosine similarity. The memory with the higher importance survives as
// canonical (on a tie, the one with the earlier CreatedAt); its sibling is
// archived with its related-ids transferred into the survivor and its
// index entries removed.
func (in *Integrator) mergePass(ctx context.Context, tenantID ids.TenantID) error {
	threshold := in.cfg.MergeThreshold
	if threshold <= 0 {
		threshold = DefaultConfig().MergeThreshold
	}

	active, err := in.memories.FindActive(ctx, tenantID, "")
	if err != nil {
		return err
	}

	merged := make(map[string]bool, len(active))
	for i := 0; i < len(active); i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a := active[i]
		if merged[a.ID().String()] || a.Embedding().IsZero() {
			continue
		}
		for j := i + 1; j < len(active); j++ {
			b := active[j]
			if merged[b.ID().String()] || b.Embedding().IsZero() {
				continue
			}
			sim := vector.Cosine(a.Embedding(), b.Embedding())
			if sim != sim || sim < threshold { // NaN never satisfies the merge condition
				continue
			}

			winner, loser := a, b
			if b.Importance() > a.Importance() ||
				(b.Importance() == a.Importance() && b.CreatedAt().Before(a.CreatedAt())) {
				winner, loser = b, a
			}
			winner.MergeLosingSibling(loser)
			if err := loser.Archive("merged into duplicate memory"); err != nil {
				in.logger.Warn("merge archive failed", zap.String("memory_id", loser.ID().String()), zap.Error(err))
				continue
			}
			if err := in.memories.Update(ctx, winner); err != nil {
				in.logger.Warn("merge winner persist failed", zap.String("memory_id", winner.ID().String()), zap.Error(err))
				continue
			}
			if err := in.memories.Update(ctx, loser); err != nil {
				in.logger.Warn("merge loser persist failed", zap.String("memory_id", loser.ID().String()), zap.Error(err))
				continue
			}
			_ = in.vectorIndex.Remove(ctx, tenantID, loser.ID())
			_ = in.lexicalIndex.Remove(ctx, tenantID, loser.ID())
			merged[loser.ID().String()] = true

			if winner == b {
				a = winner
				active[i] = winner
			}
		}
	}
	return nil
}

// relationshipPass decays every relationship not reinforced since the
// decay window and prunes any that fall below the strength floor.
// Relationships are enumerated via each tenant's entities, since the
// store offers no direct "all relationships" query; a relationship
// touching two listed entities is visited twice and deduplicated by id.
func (in *Integrator) relationshipPass(ctx context.Context, tenantID ids.TenantID) error {
	seen := make(map[string]bool)
	offset := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		page, err := in.entities.List(ctx, tenantID, ports.ListOptions{Offset: offset, Limit: 100})
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		for _, e := range page {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rels, err := in.relationships.FindByEntity(ctx, tenantID, e.ID())
			if err != nil {
				in.logger.Warn("relationship lookup failed", zap.String("entity_id", e.ID().String()), zap.Error(err))
				continue
			}
			for _, r := range rels {
				key := r.ID().String()
				if seen[key] {
					continue
				}
				seen[key] = true

				if time.Since(r.LastSeenAt()) < in.decayWindow() {
					continue
				}
				strength := r.Decay(in.decayFactor())
				prune := in.cfg.StrengthPrune
				if prune <= 0 {
					prune = DefaultConfig().StrengthPrune
				}
				if strength < prune {
					if err := in.relationships.Delete(ctx, tenantID, r.ID()); err != nil {
						in.logger.Warn("relationship prune failed", zap.String("relationship_id", key), zap.Error(err))
					}
					continue
				}
				if err := in.relationships.Update(ctx, r); err != nil {
					in.logger.Warn("relationship decay persist failed", zap.String("relationship_id", key), zap.Error(err))
				}
			}
		}
		if len(page) < 100 {
			break
		}
		offset += len(page)
	}
	return nil
}

// purgePass transitions Archived memories past the purge window to
// Deleted and removes any surviving index entries.
func (in *Integrator) purgePass(ctx context.Context, tenantID ids.TenantID) error {
	purgeWindow := in.cfg.PurgeWindow
	if purgeWindow <= 0 {
		purgeWindow = DefaultConfig().PurgeWindow
	}

	offset := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		page, err := in.memories.List(ctx, tenantID, "", ports.ListOptions{Offset: offset, Limit: 100})
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if m.Status() != "archived" {
				continue
			}
			if time.Since(m.UpdatedAt()) < purgeWindow {
				continue
			}
			if err := m.Delete(); err != nil {
				in.logger.Warn("purge delete failed", zap.String("memory_id", m.ID().String()), zap.Error(err))
				continue
			}
			if err := in.memories.Update(ctx, m); err != nil {
				in.logger.Warn("purge persist failed", zap.String("memory_id", m.ID().String()), zap.Error(err))
				continue
			}
			_ = in.vectorIndex.Remove(ctx, tenantID, m.ID())
			_ = in.lexicalIndex.Remove(ctx, tenantID, m.ID())
		}
		if len(page) < 100 {
			break
		}
		offset += len(page)
	}
	return nil
}
