package stage

import (
	"slices"
	"strings"

	"github.com/spigell/hire-intake/internal/slots"
)

// Requirements lists the slots needed to leave each stage.
type Requirements map[Stage][]slots.Key

// DefaultRequirements is the static requirement table.
func DefaultRequirements() Requirements {
	return Requirements{
		Collect:  {slots.KeyRoleTitle, slots.KeyLocation, slots.KeyBudget},
		Enrich:   {slots.KeyBudget, slots.KeyLocation, slots.KeySeniority, slots.KeyStack},
		Match:    {slots.KeyCandidates},
		Schedule: {slots.KeyCandidateID, slots.KeyTimeslot},
		Close:    {},
	}
}

// Rule adds requirements that depend on the values of other slots.
type Rule interface {
	Name() string
	Require(st Stage, s slots.Slots) []slots.Key
}

type contractDuration struct{}

// ContractDuration requires a duration while enriching a contract role.
func ContractDuration() Rule { return contractDuration{} }

func (contractDuration) Name() string { return "contract_duration" }

func (contractDuration) Require(st Stage, s slots.Slots) []slots.Key {
	if st == Enrich && strings.EqualFold(strings.TrimSpace(s.EmploymentType), "contract") {
		return []slots.Key{slots.KeyDuration}
	}
	return nil
}

// Machine evaluates stage transitions. It holds no per-conversation state and
// is safe for concurrent use once built.
type Machine struct {
	required Requirements
	rules    []Rule
}

// New builds a machine from a requirement table and dynamic rules. A nil
// table selects DefaultRequirements.
func New(required Requirements, rules ...Rule) *Machine {
	if required == nil {
		required = DefaultRequirements()
	}
	table := make(Requirements, len(required))
	for st, keys := range required {
		table[st] = slices.Clone(keys)
	}
	return &Machine{required: table, rules: slices.Clone(rules)}
}

// Default returns the machine with the static table and the contract rule.
func Default() *Machine {
	return New(nil, ContractDuration())
}

// IsFilled reports whether a slot counts as provided. A budget needs at least
// one of min, max or raw.
func IsFilled(k slots.Key, s slots.Slots) bool {
	if k == slots.KeyBudget {
		b := s.Budget
		return b != nil && (b.Min != nil || b.Max != nil || strings.TrimSpace(b.Raw) != "")
	}
	return s.Has(k)
}

// Required returns the static and dynamic requirements of st, deduplicated in
// declaration order.
func (m *Machine) Required(st Stage, s slots.Slots) []slots.Key {
	st = Parse(string(st))
	keys := slices.Clone(m.required[st])
	for _, rule := range m.rules {
		for _, k := range rule.Require(st, s) {
			if !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Missing returns the requirements of st that s does not fill yet.
func (m *Machine) Missing(st Stage, s slots.Slots) []slots.Key {
	var missing []slots.Key
	for _, k := range m.Required(st, s) {
		if !IsFilled(k, s) {
			missing = append(missing, k)
		}
	}
	return missing
}

// Next returns st while anything is missing, otherwise its successor.
func (m *Machine) Next(st Stage, s slots.Slots) Stage {
	st = Parse(string(st))
	if len(m.Missing(st, s)) > 0 {
		return st
	}
	return st.Successor()
}

// AdvanceUntilStable applies Next until it reaches a fixed point, so one turn
// can move the conversation several stages ahead.
func (m *Machine) AdvanceUntilStable(st Stage, s slots.Slots) Stage {
	current := Parse(string(st))
	seen := map[Stage]bool{current: true}
	for {
		next := m.Next(current, s)
		if next == current || seen[next] {
			return next
		}
		seen[next] = true
		current = next
	}
}

// Plan is the outcome of evaluating one turn against the machine.
type Plan struct {
	// Ask is the single-hop stage whose gaps the reply asks about.
	Ask Stage
	// Stored is the multi-hop stage persisted for the next turn.
	Stored Stage
	// Missing lists the slots still needed for Ask.
	Missing []slots.Key
}

// Plan computes the ask stage, stored stage and missing slots from the same
// slot set.
func (m *Machine) Plan(st Stage, s slots.Slots) Plan {
	ask := m.Next(st, s)
	return Plan{
		Ask:     ask,
		Stored:  m.AdvanceUntilStable(st, s),
		Missing: m.Missing(ask, s),
	}
}

// RuleNames lists the dynamic rules in evaluation order.
func (m *Machine) RuleNames() []string {
	names := make([]string, 0, len(m.rules))
	for _, r := range m.rules {
		names = append(names, r.Name())
	}
	return names
}
