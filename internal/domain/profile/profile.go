// Package profile defines the Profile aggregate: durable, per-user state
// distilled from memories over time.
package profile

import (
	"time"

	"hippos/internal/domain/ids"
	pkgerrors "hippos/pkg/errors"
)

// DefaultVerificationThreshold is the minimum confidence a fact needs
// before it may be marked verified.
const DefaultVerificationThreshold = 0.7

// Fact is a single durable statement about a user.
type Fact struct {
	ID             ids.FactID
	Text           string
	Category       string
	SourceMemoryID string
	Confidence     float64
	Verified       bool
}

// Profile is the per-user durable state aggregate.
type Profile struct {
	id       ids.ProfileID
	tenantID ids.TenantID
	userID   string

	name, role, organization, location string
	preferences                        map[string]any
	communicationStyle                 string
	technicalLevel                     string
	facts                              []Fact
	interests                          []string
	workingHours                       string
	commonTasks                        []string
	toolsUsed                          []string
	overallConfidence                  float64
	lastVerified                       *time.Time

	createdAt time.Time
	updatedAt time.Time
}

// New creates a Profile for (tenantID, userID). (tenant_id, user_id) must
// be unique; the repository enforces that uniqueness.
func New(tenantID ids.TenantID, userID string) (*Profile, error) {
	if tenantID.IsZero() {
		return nil, pkgerrors.NewValidation("tenant ID cannot be empty")
	}
	if userID == "" {
		return nil, pkgerrors.NewValidation("user ID cannot be empty")
	}

	now := time.Now()
	return &Profile{
		id:          ids.NewProfileID(),
		tenantID:    tenantID,
		userID:      userID,
		preferences: make(map[string]any),
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstruct rebuilds a Profile from stored data.
func Reconstruct(
	id ids.ProfileID, tenantID ids.TenantID, userID string,
	name, role, organization, location string,
	preferences map[string]any,
	communicationStyle, technicalLevel string,
	facts []Fact, interests []string, workingHours string,
	commonTasks, toolsUsed []string,
	overallConfidence float64, lastVerified *time.Time,
	createdAt, updatedAt time.Time,
) *Profile {
	if preferences == nil {
		preferences = make(map[string]any)
	}
	return &Profile{
		id: id, tenantID: tenantID, userID: userID, name: name, role: role,
		organization: organization, location: location, preferences: preferences,
		communicationStyle: communicationStyle, technicalLevel: technicalLevel,
		facts: facts, interests: interests, workingHours: workingHours,
		commonTasks: commonTasks, toolsUsed: toolsUsed,
		overallConfidence: overallConfidence, lastVerified: lastVerified,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// Accessors

func (p *Profile) ID() ids.ProfileID         { return p.id }
func (p *Profile) TenantID() ids.TenantID    { return p.tenantID }
func (p *Profile) UserID() string            { return p.userID }
func (p *Profile) Name() string              { return p.name }
func (p *Profile) Role() string              { return p.role }
func (p *Profile) Organization() string      { return p.organization }
func (p *Profile) Location() string          { return p.location }
func (p *Profile) CommunicationStyle() string { return p.communicationStyle }
func (p *Profile) TechnicalLevel() string    { return p.technicalLevel }
func (p *Profile) WorkingHours() string      { return p.workingHours }
func (p *Profile) OverallConfidence() float64 { return p.overallConfidence }
func (p *Profile) LastVerified() *time.Time  { return p.lastVerified }
func (p *Profile) CreatedAt() time.Time      { return p.createdAt }
func (p *Profile) UpdatedAt() time.Time      { return p.updatedAt }

func (p *Profile) Preferences() map[string]any {
	out := make(map[string]any, len(p.preferences))
	for k, v := range p.preferences {
		out[k] = v
	}
	return out
}

func (p *Profile) Facts() []Fact {
	out := make([]Fact, len(p.facts))
	copy(out, p.facts)
	return out
}

func (p *Profile) Interests() []string   { return append([]string{}, p.interests...) }
func (p *Profile) CommonTasks() []string { return append([]string{}, p.commonTasks...) }
func (p *Profile) ToolsUsed() []string   { return append([]string{}, p.toolsUsed...) }

// Mutators

func (p *Profile) SetIdentity(name, role, organization, location string) {
	p.name, p.role, p.organization, p.location = name, role, organization, location
	p.touch()
}

func (p *Profile) SetCommunicationProfile(style, technicalLevel string) {
	p.communicationStyle, p.technicalLevel = style, technicalLevel
	p.touch()
}

func (p *Profile) AddPreference(key string, value any) error {
	if key == "" {
		return pkgerrors.NewValidation("preference key cannot be empty")
	}
	p.preferences[key] = value
	p.touch()
	return nil
}

// AddFact appends a new fact and returns its assigned id.
func (p *Profile) AddFact(text, category, sourceMemoryID string, confidence float64) (ids.FactID, error) {
	if text == "" {
		return ids.FactID{}, pkgerrors.NewValidation("fact text cannot be empty")
	}
	f := Fact{
		ID:             ids.NewFactID(),
		Text:           text,
		Category:       category,
		SourceMemoryID: sourceMemoryID,
		Confidence:     clamp01(confidence),
	}
	p.facts = append(p.facts, f)
	p.recomputeOverallConfidence()
	p.touch()
	return f.ID, nil
}

// VerifyFact marks a fact verified, enforcing the confidence threshold
// invariant: verified=true implies confidence >= threshold.
func (p *Profile) VerifyFact(factID ids.FactID, threshold float64) error {
	for i := range p.facts {
		if p.facts[i].ID.Equals(factID) {
			if p.facts[i].Confidence < threshold {
				return pkgerrors.NewValidation("fact confidence below verification threshold")
			}
			p.facts[i].Verified = true
			p.touch()
			now := time.Now()
			p.lastVerified = &now
			return nil
		}
	}
	return pkgerrors.NewNotFound("fact")
}

func (p *Profile) AddInterest(interest string) {
	if interest == "" {
		return
	}
	for _, i := range p.interests {
		if i == interest {
			return
		}
	}
	p.interests = append(p.interests, interest)
	p.touch()
}

func (p *Profile) AddCommonTask(task string) {
	if task == "" {
		return
	}
	for _, t := range p.commonTasks {
		if t == task {
			return
		}
	}
	p.commonTasks = append(p.commonTasks, task)
	p.touch()
}

func (p *Profile) AddToolUsed(tool string) {
	if tool == "" {
		return
	}
	for _, t := range p.toolsUsed {
		if t == tool {
			return
		}
	}
	p.toolsUsed = append(p.toolsUsed, tool)
	p.touch()
}

func (p *Profile) SetWorkingHours(hours string) {
	p.workingHours = hours
	p.touch()
}

// recomputeOverallConfidence sets overallConfidence to the mean confidence
// across all recorded facts.
func (p *Profile) recomputeOverallConfidence() {
	if len(p.facts) == 0 {
		p.overallConfidence = 0
		return
	}
	var sum float64
	for _, f := range p.facts {
		sum += f.Confidence
	}
	p.overallConfidence = sum / float64(len(p.facts))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (p *Profile) touch() { p.updatedAt = time.Now() }
