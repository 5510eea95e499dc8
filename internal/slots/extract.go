package slots

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Extractor turns a single chat turn into a partial slot set. It keeps no
// state between calls and is safe for concurrent use.
type Extractor struct {
	tech *TechDictionary
}

// NewExtractor returns an extractor backed by the given technology
// dictionary. A nil dictionary selects the built-in one.
func NewExtractor(tech *TechDictionary) *Extractor {
	if tech == nil {
		tech = NewTechDictionary()
	}
	return &Extractor{tech: tech}
}

var defaultExtractor = NewExtractor(nil)

// Extract runs the default extractor over text.
func Extract(text string) Slots {
	return defaultExtractor.Extract(text)
}

// Tech exposes the dictionary used for stack canonicalization.
func (e *Extractor) Tech() *TechDictionary {
	return e.tech
}

// Extract reads every slot it can find in text. A field whose extractor fails
// is left empty; Extract itself never fails.
func (e *Extractor) Extract(text string) Slots {
	var out Slots
	if strings.TrimSpace(text) == "" {
		return out
	}

	guard(func() { out.Budget = extractBudget(text) })
	guard(func() { out.Location = e.extractLocation(text) })
	guard(func() { out.RoleTitle = extractRoleTitle(text) })
	guard(func() { out.Seniority = extractSeniority(text) })
	guard(func() { out.Stack = e.tech.Extract(text) })
	guard(func() { out.EmploymentType = extractEmploymentType(text) })
	guard(func() { out.Duration = extractDuration(text) })

	if len(out.Stack) == 0 {
		out.Stack = nil
	}
	return out
}

func guard(field func()) {
	defer func() {
		_ = recover()
	}()
	field()
}

type budgetCandidate struct {
	budget *Budget
	// bare candidates carry only a number and need a budget cue word.
	bare bool
}

func extractBudget(text string) *Budget {
	text = dashes.Replace(text)

	var bare *Budget
	for _, pattern := range []*regexp.Regexp{budgetRangePattern, budgetSinglePattern} {
		for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
			c, ok := budgetFromMatch(pattern, text, loc)
			if !ok {
				continue
			}
			if !c.bare {
				return c.budget
			}
			if bare == nil {
				bare = c.budget
			}
		}
	}
	if bare != nil && budgetCuePattern.MatchString(text) {
		return bare
	}
	return nil
}

func budgetFromMatch(pattern *regexp.Regexp, text string, loc []int) (budgetCandidate, bool) {
	group := func(name string) string {
		i := pattern.SubexpIndex(name)
		if i < 0 || loc[2*i] < 0 {
			return ""
		}
		return text[loc[2*i]:loc[2*i+1]]
	}
	groupStart := func(name string) int {
		i := pattern.SubexpIndex(name)
		if i < 0 {
			return -1
		}
		return loc[2*i]
	}

	curPre := group("curpre")
	curPost := group("curpost")
	unit := strings.ToLower(group("unit"))
	marker := group("marker")
	period := normalizePeriod(group("period"))

	// "python3" or "k8s" are not amounts.
	if curPre == "" {
		if start := groupStart("min"); start > 0 {
			r, _ := utf8.DecodeLastRuneInString(text[:start])
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return budgetCandidate{}, false
			}
		}
	}

	hasCurrency := curPre != "" || curPost != ""
	if period != "" && !hasCurrency && unit == "" && marker == "" {
		return budgetCandidate{}, false
	}

	minV, ok := parseAmount(group("min"))
	if !ok {
		return budgetCandidate{}, false
	}
	maxV := minV
	if raw := group("max"); raw != "" {
		if maxV, ok = parseAmount(raw); !ok {
			return budgetCandidate{}, false
		}
	}
	if scale, ok := unitScale[unit]; ok {
		minV *= scale
		maxV *= scale
	}

	currency := normalizeCurrency(curPre)
	if currency == "" {
		currency = normalizeCurrency(curPost)
	}
	if currency == "" && indianUnits[unit] {
		currency = "₹"
	}

	b := &Budget{
		Currency: currency,
		Min:      &minV,
		Max:      &maxV,
		Unit:     unit,
		Period:   period,
		Raw:      strings.TrimSpace(text[loc[0]:loc[1]]),
	}
	return budgetCandidate{
		budget: b,
		bare:   !hasCurrency && unit == "" && period == "",
	}, true
}

func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (e *Extractor) extractLocation(text string) string {
	for _, hint := range locationHints {
		if hint.pattern.MatchString(text) {
			return hint.value
		}
	}
	// Scan every "in/at" so "at Google in Bangalore" still sees Bangalore.
	var first string
	for start := 0; start < len(text); {
		loc := locationFallbackPattern.FindStringSubmatchIndex(text[start:])
		if loc == nil {
			break
		}
		if place := e.cleanPlace(text[start+loc[2] : start+loc[3]]); place != "" {
			if isKnownPlace(place) {
				return place
			}
			if first == "" {
				first = place
			}
		}
		start += loc[2]
	}
	return first
}

func isKnownPlace(place string) bool {
	for _, w := range strings.Fields(place) {
		if knownCities[strings.ToLower(w)] {
			return true
		}
	}
	return false
}

func (e *Extractor) cleanPlace(phrase string) string {
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return ""
	}

	first := strings.ToLower(words[0])
	// Fillers only disqualify lower case starts; "New Delhi" is a place.
	filler := fillerWords[first] && !isCapitalized(words[0])
	if placeRejects[first] || placeStopWords[first] || filler || e.tech.IsTerm(first) || isSeniority(first) || isRoleWord(first) {
		return ""
	}
	if !isCapitalized(words[0]) && !knownCities[first] {
		return ""
	}

	kept := []string{words[0]}
	for _, w := range words[1:] {
		lw := strings.ToLower(w)
		if placeStopWords[lw] || !isCapitalized(w) || e.tech.IsTerm(lw) || isRoleWord(lw) {
			break
		}
		kept = append(kept, w)
	}
	if len(kept) > 1 && placeSuffixes[strings.ToLower(kept[len(kept)-1])] {
		kept = kept[:len(kept)-1]
	}
	return titleCase(strings.Join(kept, " "))
}

func extractRoleTitle(text string) string {
	if m := roleLeadPattern.FindStringSubmatch(text); m != nil {
		if role := cutRole(m[1]); role != "" && !startsWithDigit(role) {
			return role
		}
	}

	if m := roleBeforePlacePattern.FindStringSubmatch(text); m != nil {
		if role := trimFillers(m[1]); role != "" && !roleNoisePattern.MatchString(role) {
			return cutRole(role)
		}
	}

	var best string
	for _, pattern := range roleKeywordPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			role := trimFillers(afterLastBreak(m[1]))
			if len(role) > len(best) {
				best = role
			}
		}
	}
	return best
}

// cutRole keeps the leading words of a role phrase up to the first word that
// cannot be part of a title.
func cutRole(phrase string) string {
	words := strings.Fields(trimFillers(phrase))
	for i, w := range words {
		lw := strings.ToLower(w)
		if roleStopWords[lw] || roleNoisePattern.MatchString(lw) {
			words = words[:i]
			break
		}
	}
	return strings.Join(words, " ")
}

// afterLastBreak drops everything up to the last word that cannot belong to a
// title, so "remote with python engineer" yields "python engineer".
func afterLastBreak(phrase string) string {
	words := strings.Fields(phrase)
	start := 0
	for i, w := range words {
		lw := strings.ToLower(w)
		if roleStopWords[lw] || placeStopWords[lw] || roleNoisePattern.MatchString(lw) {
			start = i + 1
		}
	}
	return strings.Join(words[start:], " ")
}

func trimFillers(phrase string) string {
	words := strings.Fields(phrase)
	for len(words) > 0 && fillerWords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

func extractSeniority(text string) string {
	for i, pattern := range seniorityPatterns {
		if pattern.MatchString(text) {
			return seniorityLevels[i]
		}
	}
	return ""
}

func extractEmploymentType(text string) string {
	m := employmentPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	word := strings.ToLower(m[1])
	switch {
	case strings.HasPrefix(word, "contract"), word == "freelance":
		return "contract"
	case word == "permanent", strings.HasPrefix(word, "full"):
		return "permanent"
	case strings.HasPrefix(word, "part"):
		return "part-time"
	case word == "internship":
		return "internship"
	}
	return ""
}

func extractDuration(text string) string {
	for _, loc := range durationPattern.FindAllStringSubmatchIndex(text, -1) {
		followed := loc[6] >= 0
		if !followed && !durationLeadPattern.MatchString(text[:loc[0]]) {
			continue
		}
		amount := text[loc[2]:loc[3]]
		unit := durationUnit(text[loc[4]:loc[5]])
		if amount != "1" {
			unit += "s"
		}
		return amount + " " + unit
	}
	return ""
}

func durationUnit(token string) string {
	switch t := strings.ToLower(token); {
	case strings.HasPrefix(t, "w"):
		return "week"
	case strings.HasPrefix(t, "y"):
		return "year"
	}
	return "month"
}

func isSeniority(word string) bool {
	for _, level := range seniorityLevels {
		if level == word {
			return true
		}
	}
	return false
}

func isRoleWord(word string) bool {
	for _, kw := range roleKeywords {
		if kw == word || kw+"s" == word {
			return true
		}
	}
	return false
}

func isCapitalized(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(r)
}

func startsWithDigit(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsDigit(r)
}

// titleCase upper-cases the first letter of every space or hyphen separated
// part and lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	upper := true
	for _, r := range s {
		switch {
		case r == ' ' || r == '-' || r == '/':
			upper = true
			b.WriteRune(r)
		case upper:
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
