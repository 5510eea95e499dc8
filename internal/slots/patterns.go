package slots

import (
	"regexp"
	"strings"
)

const (
	currencyToken = `₹|\$|€|£|\b(?:rs|inr|usd|eur|gbp)\b\.?`
	// Indian grouping (1,20,000) is tried before western (120,000).
	numberToken   = `\d{1,2}(?:,\d{2})+,\d{3}(?:\.\d+)?|\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`
	unitToken     = `lakhs|lakh|lac|lpa|crore|cr|k|m`
	periodToken   = `months|month|mo|hours|hour|hrs|hr|years|year|yrs|yr|annum|pa|days|day|d`
	budgetTail    = `(?:\s*(?P<unit>` + unitToken + `)\b)?` +
		`\s*(?P<curpost>` + currencyToken + `)?` +
		`(?:\s*(?P<marker>/|\bper\b)?\s*(?P<period>` + periodToken + `)\b)?`
)

var (
	dashes = strings.NewReplacer("‒", "-", "–", "-", "—", "-", "−", "-")

	budgetRangePattern = regexp.MustCompile(`(?i)(?P<curpre>` + currencyToken + `)?\s*` +
		`(?P<min>` + numberToken + `)\s*(?:-|~|\bto\b)\s*(?P<max>` + numberToken + `)` + budgetTail)

	budgetSinglePattern = regexp.MustCompile(`(?i)(?P<curpre>` + currencyToken + `)?\s*` +
		`(?P<min>` + numberToken + `)` + budgetTail)

	// budgetCuePattern licenses a bare number (no currency, unit or period) as a budget.
	budgetCuePattern = regexp.MustCompile(`(?i)\b(?:budget|salary|ctc|pay|compensation|rate|stipend)\b`)

	locationFallbackPattern = regexp.MustCompile(`\b(?i:in|at)\s+([A-Za-z][A-Za-z\-]+(?:\s+[A-Za-z][A-Za-z\-]+){0,3})`)

	roleLeadPattern = regexp.MustCompile(`(?i)\b(?:needs?|looking\s+for|hiring)\s+(?:an?\s+|the\s+)?` +
		`([a-z][a-z0-9\-\s]{2,40}?)(?:\s+(?:in|at|for)\b|[,.;:!?]|$)`)

	roleBeforePlacePattern = regexp.MustCompile(`(?i)\b([a-z][a-z0-9\-\s]{2,40}?)\s+(?:in|at)\s+[a-z][a-z\-]{2,}`)

	roleNoisePattern = regexp.MustCompile(`(?i)\d|₹|\$|€|£|\b(?:lpa|rs|inr|usd|budget|salary|months?|mo|yrs?|years?|hours?|hrs?)\b`)

	correctionPattern = regexp.MustCompile(`(?i)\b(?:change|actually|correction|not|instead|rather|make\s+it|update)\b`)

	employmentPattern = regexp.MustCompile(`(?i)\b(contract(?:or)?|freelance|permanent|full[\s-]?time|part[\s-]?time|internship)\b`)

	durationPattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)[\s-]*(months?|mos?|weeks?|wks?|years?|yrs?)\b(\s+(?:contract|engagement|project))?`)

	durationLeadPattern = regexp.MustCompile(`(?i)\bfor\s+(?:a\s+|about\s+|around\s+)?$`)
)

var currencyAliases = map[string]string{
	"₹": "₹", "rs": "₹", "rs.": "₹", "inr": "₹",
	"$": "$", "usd": "$",
	"€": "€", "eur": "€",
	"£": "£", "gbp": "£",
}

// indianUnits are passed through unscaled and imply rupees.
var indianUnits = map[string]bool{
	"lpa": true, "lac": true, "lakh": true, "lakhs": true, "cr": true, "crore": true,
}

var unitScale = map[string]float64{
	"k": 1_000,
	"m": 1_000_000,
}

var periods = map[string]string{
	"hr": "hour", "hrs": "hour", "hour": "hour", "hours": "hour",
	"mo": "month", "month": "month", "months": "month",
	"yr": "year", "yrs": "year", "year": "year", "years": "year", "annum": "year", "pa": "year",
	"d": "day", "day": "day", "days": "day",
}

type locationHint struct {
	pattern *regexp.Regexp
	value   string
}

var locationHints = []locationHint{
	{regexp.MustCompile(`(?i)\bremote\b`), "Remote"},
	{regexp.MustCompile(`(?i)\bhybrid\b`), "Hybrid"},
	{regexp.MustCompile(`(?i)\bon-?site\b`), "Onsite"},
	{regexp.MustCompile(`(?i)\bwork\s+from\s+home\b`), "Work-from-home"},
	{regexp.MustCompile(`(?i)\bwfh\b`), "Work-from-home"},
}

// knownCities are accepted after "in/at" even when typed in lower case.
var knownCities = map[string]bool{
	"ahmedabad": true, "bangalore": true, "bengaluru": true, "chennai": true,
	"delhi": true, "gurgaon": true, "gurugram": true, "hyderabad": true,
	"kolkata": true, "mumbai": true, "noida": true, "pune": true,
	"london": true, "berlin": true, "dubai": true, "singapore": true,
}

// placeStopWords end a location phrase.
var placeStopWords = map[string]bool{
	"for": true, "with": true, "and": true, "or": true, "at": true, "in": true,
	"on": true, "to": true, "by": true, "from": true, "per": true, "who": true,
	"budget": true, "salary": true, "asap": true, "please": true, "remote": true,
	"hybrid": true, "onsite": true, "on-site": true, "wfh": true, "next": true,
}

// placeRejects cannot start a location phrase.
var placeRejects = map[string]bool{
	"a": true, "an": true, "the": true, "our": true, "my": true, "least": true,
	"house": true, "office": true, "person": true, "total": true, "all": true,
	"experience": true, "first": true, "most": true,
}

// placeSuffixes are dropped from the end of a multi-word location.
var placeSuffixes = map[string]bool{"office": true, "india": true, "uae": true}

// roleKeywords are checked longest-candidate-wins; specific phrases first.
var roleKeywords = []string{
	"data engineer", "data scientist", "data analyst", "product manager", "project manager",
	"backend engineer", "frontend engineer", "full stack developer", "devops engineer",
	"qa engineer", "ml engineer", "software engineer",
	"engineer", "developer", "designer", "manager", "analyst", "architect", "scientist",
	"tester", "recruiter", "consultant", "qa", "sre", "devops", "backend", "frontend",
	"full stack", "full-stack", "dev",
}

// roleStopWords end a role phrase.
var roleStopWords = map[string]bool{
	"remote": true, "hybrid": true, "onsite": true, "on-site": true, "wfh": true,
	"or": true, "with": true, "who": true, "to": true, "and": true, "from": true,
	"budget": true, "asap": true, "urgently": true, "immediately": true, "please": true,
}

// fillerWords are stripped from the front of role candidates.
var fillerWords = map[string]bool{
	"need": true, "needs": true, "looking": true, "for": true, "hiring": true,
	"hire": true, "a": true, "an": true, "the": true, "we": true, "i": true,
	"are": true, "am": true, "is": true, "want": true, "wanted": true, "to": true,
	"actually": true, "change": true, "changed": true, "make": true, "it": true,
	"update": true, "instead": true, "rather": true, "correction": true, "not": true,
	"no": true, "lets": true, "let's": true, "please": true, "our": true, "my": true,
	"us": true, "some": true, "one": true, "two": true, "few": true, "new": true,
	"also": true, "and": true, "another": true, "open": true, "role": true,
	"position": true, "of": true, "hey": true, "hi": true, "hello": true, "so": true,
	"someone": true, "somebody": true, "people": true, "help": true, "good": true,
	"strong": true, "experienced": true, "urgent": true,
}

var seniorityLevels = []string{
	"intern", "junior", "associate", "mid", "mid-level", "senior",
	"lead", "principal", "staff", "director", "vp", "head",
}

var seniorityPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(seniorityLevels))
	for i, level := range seniorityLevels {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(level) + `\b`)
	}
	return out
}()

var roleKeywordPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(roleKeywords))
	for i, kw := range roleKeywords {
		out[i] = regexp.MustCompile(`(?i)\b([a-z][a-z0-9\-\s]{0,30}?` + regexp.QuoteMeta(kw) + `)(?:s)?\b`)
	}
	return out
}()

// HasCorrection reports whether text carries a lexical cue that licenses
// overwriting a previously set slot.
func HasCorrection(text string) bool {
	return correctionPattern.MatchString(text)
}

func normalizeCurrency(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return ""
	}
	if c, ok := currencyAliases[token]; ok {
		return c
	}
	return strings.ToUpper(strings.TrimSuffix(token, "."))
}

func normalizePeriod(token string) string {
	return periods[strings.ToLower(strings.TrimSpace(token))]
}
