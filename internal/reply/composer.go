// Package reply composes the deterministic assistant message for a turn and
// optionally polishes it through a rewrite collaborator.
package reply

import (
	"slices"
	"strconv"
	"strings"

	"github.com/spigell/hire-intake/internal/slots"
	"github.com/spigell/hire-intake/internal/stage"
)

// maxAsks bounds how many missing slots a single reply asks for.
const maxAsks = 2

// askPriority orders missing slots; keys not listed follow in their given order.
var askPriority = []slots.Key{
	slots.KeyRoleTitle,
	slots.KeyBudget,
	slots.KeyLocation,
	slots.KeySeniority,
	slots.KeyStack,
	slots.KeyDuration,
	slots.KeyEmploymentType,
}

var askPhrases = map[slots.Key]string{
	slots.KeyBudget:    "your budget range",
	slots.KeyLocation:  "preferred location or remote/hybrid",
	slots.KeySeniority: "seniority (e.g., junior/mid/senior)",
	slots.KeyStack:     "tech stack and must-have skills",
}

var askChips = map[slots.Key]string{
	slots.KeyBudget:    "Share budget",
	slots.KeyLocation:  "Share location",
	slots.KeySeniority: "Set seniority",
	slots.KeyStack:     "Share tech stack",
}

type forward struct {
	text  string
	chips []string
}

var forwards = map[stage.Stage]forward{
	stage.Collect: {
		text:  "Next, share the budget range and location/remote preference.",
		chips: []string{"Share budget", "Share location", "Share tech stack"},
	},
	stage.Enrich: {
		text:  "Great. I can draft a JD or start matching. What would you like?",
		chips: []string{"Draft JD", "Start matching", "Add screening questions"},
	},
	stage.Match: {
		text:  "Want me to schedule with a shortlisted candidate?",
		chips: []string{"Schedule interview", "Refine matches"},
	},
}

var fallbackForward = forward{text: "All set."}

// Build returns the reply text and suggestion chips. The acknowledgment only
// mentions slots that turn changed relative to prev; the ask line covers at
// most two missing slots of ask.
func Build(ask stage.Stage, missing []slots.Key, turn, prev slots.Slots) (string, []string) {
	askLine, chips := askFor(ask, missing)
	ack := Acknowledge(turn, prev)
	if ack == "" {
		return askLine, chips
	}
	return ack + "\n\n" + askLine, chips
}

// Acknowledge renders the "Noted: ..." line for changed slots, or "" when
// nothing changed.
func Acknowledge(turn, prev slots.Slots) string {
	var bits []string
	for _, k := range turn.Changed(prev) {
		if bit := describe(k, turn); bit != "" {
			bits = append(bits, bit)
		}
	}
	if len(bits) == 0 {
		return ""
	}
	return "Noted: " + strings.Join(bits, " · ") + "."
}

func describe(k slots.Key, s slots.Slots) string {
	switch k {
	case slots.KeyRoleTitle:
		return "role " + s.RoleTitle
	case slots.KeyLocation:
		return "location " + s.Location
	case slots.KeySeniority:
		return "seniority " + s.Seniority
	case slots.KeyStack:
		return "stack " + slots.DisplayStack(s.Stack)
	case slots.KeyBudget:
		if b := FormatBudget(s.Budget); b != "" {
			return "budget " + b
		}
		return ""
	case slots.KeyEmploymentType:
		return "employment " + s.EmploymentType
	case slots.KeyDuration:
		return "duration " + s.Duration
	case slots.KeyCandidates:
		return strconv.Itoa(len(s.Candidates)) + " candidates"
	case slots.KeyCandidateID:
		return "candidate " + s.CandidateID
	case slots.KeyTimeslot:
		return "timeslot " + s.Timeslot
	}
	return ""
}

// FormatBudget renders a budget as "<currency><min>-<max><UNIT> per <period>",
// leaving out whatever is unknown. The raw match is used when no bound parsed.
func FormatBudget(b *slots.Budget) string {
	if b.IsEmpty() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(b.Currency)
	switch {
	case b.Min != nil && b.Max != nil && *b.Min != *b.Max:
		sb.WriteString(formatAmount(*b.Min) + "-" + formatAmount(*b.Max))
	case b.Min != nil:
		sb.WriteString(formatAmount(*b.Min))
	case b.Max != nil:
		sb.WriteString(formatAmount(*b.Max))
	default:
		if raw := strings.TrimSpace(b.Raw); raw != "" {
			return raw
		}
	}
	sb.WriteString(strings.ToUpper(b.Unit))
	if b.Period != "" {
		sb.WriteString(" per " + b.Period)
	}
	return strings.TrimSpace(sb.String())
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func askFor(st stage.Stage, missing []slots.Key) (string, []string) {
	if len(missing) == 0 {
		f, ok := forwards[st]
		if !ok {
			f = fallbackForward
		}
		return f.text, slices.Clone(f.chips)
	}

	top := prioritize(missing)
	if len(top) > maxAsks {
		top = top[:maxAsks]
	}

	phrases := make([]string, 0, len(top))
	chips := make([]string, 0, len(top))
	for _, k := range top {
		phrases = append(phrases, askPhrase(k))
		chips = append(chips, askChip(k))
	}
	return "Next, please share " + strings.Join(phrases, " and ") + ".", chips
}

func prioritize(missing []slots.Key) []slots.Key {
	out := make([]slots.Key, 0, len(missing))
	for _, k := range askPriority {
		if slices.Contains(missing, k) {
			out = append(out, k)
		}
	}
	for _, k := range missing {
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

func keyWords(k slots.Key) string {
	return strings.ReplaceAll(string(k), "_", " ")
}

func askPhrase(k slots.Key) string {
	if p, ok := askPhrases[k]; ok {
		return p
	}
	return keyWords(k)
}

func askChip(k slots.Key) string {
	if c, ok := askChips[k]; ok {
		return c
	}
	return "Share " + keyWords(k)
}
