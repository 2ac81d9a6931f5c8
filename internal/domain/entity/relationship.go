package entity

import (
	"time"

	"hippos/internal/domain/ids"
	pkgerrors "hippos/pkg/errors"
)

// RelationKind classifies the semantic link a Relationship represents.
type RelationKind string

const (
	RelationWorksOn    RelationKind = "works_on"
	RelationWorksWith   RelationKind = "works_with"
	RelationMemberOf    RelationKind = "member_of"
	RelationUses        RelationKind = "uses"
	RelationLocatedIn   RelationKind = "located_in"
	RelationRelatesTo   RelationKind = "relates_to"
)

func (k RelationKind) IsValid() bool {
	switch k {
	case RelationWorksOn, RelationWorksWith, RelationMemberOf, RelationUses, RelationLocatedIn, RelationRelatesTo:
		return true
	default:
		return false
	}
}

// MaxStrength bounds a Relationship's reinforced strength.
const MaxStrength = 1.0

// RelationshipDedupKey is the (tenant, source, target, kind) tuple
// relationships are deduplicated on.
func RelationshipDedupKey(tenantID ids.TenantID, sourceID, targetID ids.EntityID, kind RelationKind) string {
	return string(tenantID) + "|" + sourceID.String() + "|" + targetID.String() + "|" + string(kind)
}

// Relationship is a directed, typed edge between two entities in the same
// tenant's knowledge graph.
type Relationship struct {
	id       ids.RelationshipID
	tenantID ids.TenantID

	sourceEntityID ids.EntityID
	targetEntityID ids.EntityID
	kind           RelationKind

	strength        float64
	observationCount int

	sourceMemoryIDs []string

	firstSeenAt time.Time
	lastSeenAt  time.Time
	version     int
}

// NewRelationship creates a Relationship between two distinct entities in
// the same tenant.
func NewRelationship(tenantID ids.TenantID, sourceEntityID, targetEntityID ids.EntityID, kind RelationKind, sourceMemoryID string) (*Relationship, error) {
	if tenantID.IsZero() {
		return nil, pkgerrors.NewValidation("tenant ID cannot be empty")
	}
	if sourceEntityID.Equals(targetEntityID) {
		return nil, pkgerrors.NewValidation("relationship cannot link an entity to itself")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.NewValidation("unknown relationship kind")
	}

	now := time.Now()
	r := &Relationship{
		id:               ids.NewRelationshipID(),
		tenantID:         tenantID,
		sourceEntityID:   sourceEntityID,
		targetEntityID:   targetEntityID,
		kind:             kind,
		strength:         0.5,
		observationCount: 1,
		firstSeenAt:      now,
		lastSeenAt:       now,
		version:          1,
	}
	if sourceMemoryID != "" {
		r.sourceMemoryIDs = append(r.sourceMemoryIDs, sourceMemoryID)
	}
	return r, nil
}

// ReconstructRelationship rebuilds a Relationship from stored data.
func ReconstructRelationship(
	id ids.RelationshipID, tenantID ids.TenantID,
	sourceEntityID, targetEntityID ids.EntityID, kind RelationKind,
	strength float64, observationCount int, sourceMemoryIDs []string,
	firstSeenAt, lastSeenAt time.Time, version int,
) *Relationship {
	return &Relationship{
		id: id, tenantID: tenantID, sourceEntityID: sourceEntityID, targetEntityID: targetEntityID,
		kind: kind, strength: strength, observationCount: observationCount,
		sourceMemoryIDs: sourceMemoryIDs, firstSeenAt: firstSeenAt, lastSeenAt: lastSeenAt, version: version,
	}
}

func (r *Relationship) ID() ids.RelationshipID   { return r.id }
func (r *Relationship) TenantID() ids.TenantID   { return r.tenantID }
func (r *Relationship) SourceEntityID() ids.EntityID { return r.sourceEntityID }
func (r *Relationship) TargetEntityID() ids.EntityID { return r.targetEntityID }
func (r *Relationship) Kind() RelationKind       { return r.kind }
func (r *Relationship) Strength() float64        { return r.strength }
func (r *Relationship) ObservationCount() int    { return r.observationCount }
func (r *Relationship) FirstSeenAt() time.Time   { return r.firstSeenAt }
func (r *Relationship) LastSeenAt() time.Time    { return r.lastSeenAt }
func (r *Relationship) Version() int             { return r.version }

func (r *Relationship) SourceMemoryIDs() []string { return append([]string{}, r.sourceMemoryIDs...) }

func (r *Relationship) DedupKey() string {
	return RelationshipDedupKey(r.tenantID, r.sourceEntityID, r.targetEntityID, r.kind)
}

// Strengthen reinforces a re-detected relationship: strength grows toward
// MaxStrength by a diminishing increment so repeated confirmation
// saturates rather than overflows.
func (r *Relationship) Strengthen(sourceMemoryID string) {
	r.observationCount++
	increment := (MaxStrength - r.strength) * 0.2
	r.strength += increment
	if r.strength > MaxStrength {
		r.strength = MaxStrength
	}
	r.lastSeenAt = time.Now()
	if sourceMemoryID != "" {
		found := false
		for _, id := range r.sourceMemoryIDs {
			if id == sourceMemoryID {
				found = true
				break
			}
		}
		if !found {
			r.sourceMemoryIDs = append(r.sourceMemoryIDs, sourceMemoryID)
		}
	}
	r.version++
}

// Decay shrinks strength toward zero by factor, for relationships not
// reinforced during a maintenance sweep. Returns the resulting strength
// so the caller can decide whether to prune.
func (r *Relationship) Decay(factor float64) float64 {
	r.strength *= factor
	if r.strength < 0 {
		r.strength = 0
	}
	r.version++
	return r.strength
}
