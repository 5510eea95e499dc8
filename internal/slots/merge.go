package slots

import "strings"

// Merge fills the empty slots of existing from incoming. A slot that already
// carries a value is never replaced. Neither argument is modified.
func Merge(existing, incoming Slots) Slots {
	out := existing.Clone()
	for _, k := range Keys {
		if out.Has(k) || !incoming.Has(k) {
			continue
		}
		out.take(incoming, k)
	}
	return out
}

// SmartMerge folds incoming into existing using per-slot conflict policies.
// turn is the raw user text; it decides whether a correction was requested.
func (e *Extractor) SmartMerge(existing, incoming Slots, turn string) Slots {
	out := existing.Clone()
	correction := HasCorrection(turn)

	for _, k := range Keys {
		if !incoming.Has(k) {
			continue
		}
		switch k {
		case KeyBudget:
			out.Budget = fillBudget(out.Budget, incoming.Budget)
		case KeySeniority:
			out.Seniority = incoming.Seniority
		case KeyStack:
			combined := make([]string, 0, len(out.Stack)+len(incoming.Stack))
			combined = append(combined, out.Stack...)
			combined = append(combined, incoming.Stack...)
			out.Stack = e.tech.Normalize(combined)
		case KeyRoleTitle:
			if !out.Has(k) || correction || moreSpecific(incoming.RoleTitle, out.RoleTitle) {
				out.RoleTitle = incoming.RoleTitle
			}
		default:
			if !out.Has(k) || correction {
				out.take(incoming, k)
			}
		}
	}
	return out
}

// SmartMerge folds incoming into existing with the default extractor's
// technology dictionary.
func SmartMerge(existing, incoming Slots, turn string) Slots {
	return defaultExtractor.SmartMerge(existing, incoming, turn)
}

func moreSpecific(incoming, existing string) bool {
	in := strings.ToLower(strings.TrimSpace(incoming))
	ex := strings.ToLower(strings.TrimSpace(existing))
	return len(in) > len(ex) && strings.Contains(in, ex)
}

// fillBudget copies only the sub-fields of existing that are still empty.
func fillBudget(existing, incoming *Budget) *Budget {
	if existing.IsEmpty() {
		return incoming.Clone()
	}
	out := existing.Clone()
	if incoming == nil {
		return out
	}
	if out.Currency == "" {
		out.Currency = incoming.Currency
	}
	if out.Unit == "" {
		out.Unit = incoming.Unit
	}
	if out.Period == "" {
		out.Period = incoming.Period
	}
	if out.Min == nil && incoming.Min != nil {
		v := *incoming.Min
		out.Min = &v
	}
	if out.Max == nil && incoming.Max != nil {
		v := *incoming.Max
		out.Max = &v
	}
	if out.Raw == "" {
		out.Raw = incoming.Raw
	}
	return out
}

func (s *Slots) take(from Slots, k Key) {
	switch k {
	case KeyBudget:
		s.Budget = from.Budget.Clone()
	case KeyStack:
		s.Stack = append([]string(nil), from.Stack...)
	case KeyCandidates:
		s.Candidates = append([]string(nil), from.Candidates...)
	default:
		s.setText(k, from.text(k))
	}
}
