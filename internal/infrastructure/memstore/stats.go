package memstore

import (
	"context"

	"hippos/internal/domain/ids"
	"hippos/internal/ports"
)

// Stats computes per-tenant GraphStats by scanning the in-memory stores
// directly. A backend with a real query planner (e.g. boltstore) would
// instead maintain running counters; the reference store recomputes on
// demand since it already holds everything resident.
func Stats(
	_ context.Context,
	tenantID ids.TenantID,
	memories *MemoryRepository,
	patterns *PatternRepository,
	entities *EntityRepository,
	relationships *RelationshipRepository,
) ports.GraphStats {
	memories.mu.RLock()
	var stats ports.GraphStats
	var importanceSum float64
	var importanceCount int
	for k, m := range memories.byID {
		if k.tenant != tenantID {
			continue
		}
		if m.IsActive() {
			stats.ActiveMemoryCount++
			importanceSum += m.Importance()
			importanceCount++
		} else if m.Status() == "archived" {
			stats.ArchivedMemoryCount++
		}
	}
	memories.mu.RUnlock()
	if importanceCount > 0 {
		stats.AverageImportance = importanceSum / float64(importanceCount)
	}

	patterns.mu.RLock()
	for k := range patterns.byID {
		if k.tenant == tenantID {
			stats.PatternCount++
		}
	}
	patterns.mu.RUnlock()

	entities.mu.RLock()
	for k := range entities.byID {
		if k.tenant == tenantID {
			stats.EntityCount++
		}
	}
	entities.mu.RUnlock()

	relationships.mu.RLock()
	for k := range relationships.byID {
		if k.tenant == tenantID {
			stats.RelationshipCount++
		}
	}
	relationships.mu.RUnlock()

	return stats
}
