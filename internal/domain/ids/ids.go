// Package ids defines the opaque identifier value objects used across the
// domain model. Every identifier is engine-assigned and backed by a UUID,
// but kept as a distinct Go type per entity kind so a MemoryID can never be
// passed where a PatternID is expected.
package ids

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "hippos/pkg/errors"
)

// TenantID is the top-level isolation boundary. Every query is scoped by it.
type TenantID string

// IsZero reports whether the tenant ID is unset.
func (t TenantID) IsZero() bool { return t == "" }

// String returns the tenant ID's string form.
func (t TenantID) String() string { return string(t) }

// id is the shared representation behind every opaque identifier type.
type id struct {
	value string
}

func newID() id {
	return id{value: uuid.New().String()}
}

func parseID(kind, s string) (id, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return id{}, pkgerrors.NewValidation(kind + " ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return id{}, pkgerrors.NewValidation(kind + " ID must be a valid UUID")
	}
	return id{value: s}, nil
}

func (i id) String() string   { return i.value }
func (i id) IsZero() bool     { return i.value == "" }
func (i id) equals(o id) bool { return i.value == o.value }

// MemoryID identifies a Memory.
type MemoryID struct{ id }

func NewMemoryID() MemoryID { return MemoryID{newID()} }

func NewMemoryIDFromString(s string) (MemoryID, error) {
	i, err := parseID("memory", s)
	return MemoryID{i}, err
}

func (a MemoryID) Equals(b MemoryID) bool { return a.equals(b.id) }

// ProfileID identifies a Profile.
type ProfileID struct{ id }

func NewProfileID() ProfileID { return ProfileID{newID()} }

func NewProfileIDFromString(s string) (ProfileID, error) {
	i, err := parseID("profile", s)
	return ProfileID{i}, err
}

func (a ProfileID) Equals(b ProfileID) bool { return a.equals(b.id) }

// PatternID identifies a Pattern.
type PatternID struct{ id }

func NewPatternID() PatternID { return PatternID{newID()} }

func NewPatternIDFromString(s string) (PatternID, error) {
	i, err := parseID("pattern", s)
	return PatternID{i}, err
}

func (a PatternID) Equals(b PatternID) bool { return a.equals(b.id) }

// EntityID identifies a knowledge-graph Entity.
type EntityID struct{ id }

func NewEntityID() EntityID { return EntityID{newID()} }

func NewEntityIDFromString(s string) (EntityID, error) {
	i, err := parseID("entity", s)
	return EntityID{i}, err
}

func (a EntityID) Equals(b EntityID) bool { return a.equals(b.id) }

// RelationshipID identifies an Entity-to-Entity Relationship.
type RelationshipID struct{ id }

func NewRelationshipID() RelationshipID { return RelationshipID{newID()} }

func NewRelationshipIDFromString(s string) (RelationshipID, error) {
	i, err := parseID("relationship", s)
	return RelationshipID{i}, err
}

func (a RelationshipID) Equals(b RelationshipID) bool { return a.equals(b.id) }

// FactID identifies a single fact within a Profile.
type FactID struct{ id }

func NewFactID() FactID { return FactID{newID()} }

func NewFactIDFromString(s string) (FactID, error) {
	i, err := parseID("fact", s)
	return FactID{i}, err
}

func (a FactID) Equals(b FactID) bool { return a.equals(b.id) }
