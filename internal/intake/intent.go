package intake

import (
	"regexp"
	"strings"
)

// Intent labels select the instruction prompt used for a rewrite.
const (
	IntentHiring     = "hiring"
	IntentAutomation = "automation"
	IntentStaffing   = "staffing"
)

var (
	automationPattern = regexp.MustCompile(`(?i)\b(?:automation|automate|zapier|workflows?|integrate|integration)\b|make\.com`)
	staffingPattern   = regexp.MustCompile(`(?i)\b(?:contractors?|staffing|augment(?:ation)?)\b`)
)

// InferIntent classifies a turn. Keyword matches win over hint; an empty hint
// falls back to hiring.
func InferIntent(text, hint string) string {
	switch {
	case automationPattern.MatchString(text):
		return IntentAutomation
	case staffingPattern.MatchString(text):
		return IntentStaffing
	}
	if hint = strings.ToLower(strings.TrimSpace(hint)); hint != "" {
		return hint
	}
	return IntentHiring
}
