// Package slots holds the structured hiring requirements gathered from chat
// turns together with the rules that extract and merge them.
package slots

import (
	"slices"
	"strings"
)

// Key names a single slot. The string values are the wire names used in
// conversation metadata and in stage requirement tables.
type Key string

const (
	KeyRoleTitle      Key = "role_title"
	KeyLocation       Key = "location"
	KeySeniority      Key = "seniority"
	KeyStack          Key = "stack"
	KeyBudget         Key = "budget"
	KeyEmploymentType Key = "employment_type"
	KeyDuration       Key = "duration"
	KeyCandidates     Key = "candidates"
	KeyCandidateID    Key = "candidate_id"
	KeyTimeslot       Key = "timeslot"
)

// Keys lists every recognized slot in display order.
var Keys = []Key{
	KeyRoleTitle,
	KeyLocation,
	KeySeniority,
	KeyStack,
	KeyBudget,
	KeyEmploymentType,
	KeyDuration,
	KeyCandidates,
	KeyCandidateID,
	KeyTimeslot,
}

// Budget is a parsed compensation range.
type Budget struct {
	Currency string   `json:"currency" mapstructure:"currency"`
	Min      *float64 `json:"min" mapstructure:"min"`
	Max      *float64 `json:"max" mapstructure:"max"`
	Unit     string   `json:"unit" mapstructure:"unit"`
	Period   string   `json:"period" mapstructure:"period"`
	Raw      string   `json:"raw,omitempty" mapstructure:"raw"`
}

// IsEmpty reports whether no sub-field of the budget carries a value.
func (b *Budget) IsEmpty() bool {
	if b == nil {
		return true
	}
	return b.Min == nil && b.Max == nil &&
		strings.TrimSpace(b.Currency) == "" &&
		strings.TrimSpace(b.Unit) == "" &&
		strings.TrimSpace(b.Period) == "" &&
		strings.TrimSpace(b.Raw) == ""
}

// Clone returns a deep copy of the budget.
func (b *Budget) Clone() *Budget {
	if b == nil {
		return nil
	}
	out := *b
	if b.Min != nil {
		v := *b.Min
		out.Min = &v
	}
	if b.Max != nil {
		v := *b.Max
		out.Max = &v
	}
	return &out
}

// Equal compares two budgets field by field.
func (b *Budget) Equal(other *Budget) bool {
	if b.IsEmpty() || other.IsEmpty() {
		return b.IsEmpty() == other.IsEmpty()
	}
	return b.Currency == other.Currency &&
		b.Unit == other.Unit &&
		b.Period == other.Period &&
		b.Raw == other.Raw &&
		floatPtrEqual(b.Min, other.Min) &&
		floatPtrEqual(b.Max, other.Max)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Slots is a partial set of hiring requirements. The zero value is a valid,
// empty set; which slots are required is decided by the stage machine.
type Slots struct {
	RoleTitle      string   `json:"role_title,omitempty" mapstructure:"role_title"`
	Location       string   `json:"location,omitempty" mapstructure:"location"`
	Seniority      string   `json:"seniority,omitempty" mapstructure:"seniority"`
	Stack          []string `json:"stack,omitempty" mapstructure:"stack"`
	Budget         *Budget  `json:"budget,omitempty" mapstructure:"budget"`
	EmploymentType string   `json:"employment_type,omitempty" mapstructure:"employment_type"`
	Duration       string   `json:"duration,omitempty" mapstructure:"duration"`
	Candidates     []string `json:"candidates,omitempty" mapstructure:"candidates"`
	CandidateID    string   `json:"candidate_id,omitempty" mapstructure:"candidate_id"`
	Timeslot       string   `json:"timeslot,omitempty" mapstructure:"timeslot"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (s Slots) Clone() Slots {
	out := s
	out.Stack = slices.Clone(s.Stack)
	out.Candidates = slices.Clone(s.Candidates)
	out.Budget = s.Budget.Clone()
	return out
}

// Has reports whether the slot carries a non-empty value.
func (s Slots) Has(k Key) bool {
	switch k {
	case KeyBudget:
		return !s.Budget.IsEmpty()
	case KeyStack:
		return len(s.Stack) > 0
	case KeyCandidates:
		return len(s.Candidates) > 0
	}
	return strings.TrimSpace(s.text(k)) != ""
}

// IsEmpty reports whether no slot is set.
func (s Slots) IsEmpty() bool {
	for _, k := range Keys {
		if s.Has(k) {
			return false
		}
	}
	return true
}

// Present returns the keys that carry a value, in display order.
func (s Slots) Present() []Key {
	keys := make([]Key, 0, len(Keys))
	for _, k := range Keys {
		if s.Has(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Changed returns the keys whose value in s is present and differs from prev.
func (s Slots) Changed(prev Slots) []Key {
	var keys []Key
	for _, k := range Keys {
		if !s.Has(k) {
			continue
		}
		if !prev.Has(k) || !s.equalAt(prev, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Equal compares every slot.
func (s Slots) Equal(other Slots) bool {
	for _, k := range Keys {
		if s.Has(k) != other.Has(k) {
			return false
		}
		if s.Has(k) && !s.equalAt(other, k) {
			return false
		}
	}
	return true
}

func (s Slots) equalAt(other Slots, k Key) bool {
	switch k {
	case KeyBudget:
		return s.Budget.Equal(other.Budget)
	case KeyStack:
		return slices.Equal(s.Stack, other.Stack)
	case KeyCandidates:
		return slices.Equal(s.Candidates, other.Candidates)
	}
	return s.text(k) == other.text(k)
}

func (s Slots) text(k Key) string {
	switch k {
	case KeyRoleTitle:
		return s.RoleTitle
	case KeyLocation:
		return s.Location
	case KeySeniority:
		return s.Seniority
	case KeyEmploymentType:
		return s.EmploymentType
	case KeyDuration:
		return s.Duration
	case KeyCandidateID:
		return s.CandidateID
	case KeyTimeslot:
		return s.Timeslot
	}
	return ""
}

func (s *Slots) setText(k Key, v string) {
	switch k {
	case KeyRoleTitle:
		s.RoleTitle = v
	case KeyLocation:
		s.Location = v
	case KeySeniority:
		s.Seniority = v
	case KeyEmploymentType:
		s.EmploymentType = v
	case KeyDuration:
		s.Duration = v
	case KeyCandidateID:
		s.CandidateID = v
	case KeyTimeslot:
		s.Timeslot = v
	}
}
