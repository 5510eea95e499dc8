package slots

import (
	"regexp"
	"slices"
	"sort"
	"strings"
)

// MaxStack caps the number of technologies kept for a single role.
const MaxStack = 12

type techTerm struct {
	canonical string
	aliases   []string
	// leadOnly terms are too ambiguous for a full-text scan ("go", "r") and
	// are recognized only inside an explicit stack list.
	leadOnly bool
}

var techTerms = []techTerm{
	{canonical: "javascript", aliases: []string{"javascript", "js", "ecmascript"}},
	{canonical: "typescript", aliases: []string{"typescript", "ts"}},
	{canonical: "nodejs", aliases: []string{"node.js", "nodejs", "node"}},
	{canonical: "react", aliases: []string{"react", "reactjs", "react.js"}},
	{canonical: "react native", aliases: []string{"react native", "react-native"}},
	{canonical: "nextjs", aliases: []string{"next.js", "nextjs"}},
	{canonical: "vue", aliases: []string{"vue", "vuejs", "vue.js"}},
	{canonical: "angular", aliases: []string{"angular", "angularjs"}},
	{canonical: "html", aliases: []string{"html", "html5"}},
	{canonical: "css", aliases: []string{"css", "css3"}},
	{canonical: "tailwind", aliases: []string{"tailwind", "tailwindcss"}},
	{canonical: "python", aliases: []string{"python", "python3", "py"}},
	{canonical: "django", aliases: []string{"django"}},
	{canonical: "flask", aliases: []string{"flask"}},
	{canonical: "fastapi", aliases: []string{"fastapi"}},
	{canonical: "pandas", aliases: []string{"pandas"}},
	{canonical: "pytest", aliases: []string{"pytest"}},
	{canonical: "go", aliases: []string{"golang"}},
	{canonical: "go", aliases: []string{"go"}, leadOnly: true},
	{canonical: "java", aliases: []string{"java"}},
	{canonical: "spring", aliases: []string{"spring", "spring boot", "springboot"}},
	{canonical: "kotlin", aliases: []string{"kotlin"}},
	{canonical: "swift", aliases: []string{"swift"}},
	{canonical: "csharp", aliases: []string{"c#", "csharp", "c sharp"}},
	{canonical: "dotnet", aliases: []string{".net", "dotnet", "asp.net", ".net core"}},
	{canonical: "cpp", aliases: []string{"c++", "cpp"}},
	{canonical: "c", aliases: []string{"c"}, leadOnly: true},
	{canonical: "r", aliases: []string{"r"}, leadOnly: true},
	{canonical: "rust", aliases: []string{"rust"}},
	{canonical: "ruby", aliases: []string{"ruby"}},
	{canonical: "rails", aliases: []string{"rails", "ruby on rails", "ror"}},
	{canonical: "php", aliases: []string{"php"}},
	{canonical: "laravel", aliases: []string{"laravel"}},
	{canonical: "scala", aliases: []string{"scala"}},
	{canonical: "sql", aliases: []string{"sql"}},
	{canonical: "postgresql", aliases: []string{"postgresql", "postgres", "psql"}},
	{canonical: "mysql", aliases: []string{"mysql"}},
	{canonical: "mongodb", aliases: []string{"mongodb", "mongo"}},
	{canonical: "redis", aliases: []string{"redis"}},
	{canonical: "elasticsearch", aliases: []string{"elasticsearch", "elastic search"}},
	{canonical: "kafka", aliases: []string{"kafka"}},
	{canonical: "rabbitmq", aliases: []string{"rabbitmq"}},
	{canonical: "graphql", aliases: []string{"graphql"}},
	{canonical: "rest", aliases: []string{"rest", "restful", "rest api"}, leadOnly: true},
	{canonical: "airflow", aliases: []string{"airflow", "apache airflow"}},
	{canonical: "spark", aliases: []string{"spark", "pyspark", "apache spark"}},
	{canonical: "dbt", aliases: []string{"dbt"}},
	{canonical: "snowflake", aliases: []string{"snowflake"}},
	{canonical: "tensorflow", aliases: []string{"tensorflow"}},
	{canonical: "pytorch", aliases: []string{"pytorch", "torch"}},
	{canonical: "aws", aliases: []string{"aws", "amazon web services"}},
	{canonical: "gcp", aliases: []string{"gcp", "google cloud"}},
	{canonical: "azure", aliases: []string{"azure"}},
	{canonical: "docker", aliases: []string{"docker"}},
	{canonical: "kubernetes", aliases: []string{"kubernetes", "k8s"}},
	{canonical: "terraform", aliases: []string{"terraform"}},
	{canonical: "linux", aliases: []string{"linux"}},
	{canonical: "git", aliases: []string{"git"}},
	{canonical: "ci/cd", aliases: []string{"ci/cd", "cicd"}},
	{canonical: "selenium", aliases: []string{"selenium"}},
	{canonical: "cypress", aliases: []string{"cypress"}},
	{canonical: "figma", aliases: []string{"figma"}},
	{canonical: "flutter", aliases: []string{"flutter"}},
	{canonical: "android", aliases: []string{"android"}},
	{canonical: "ios", aliases: []string{"ios"}},
	{canonical: "salesforce", aliases: []string{"salesforce"}},
}

// displayNames override the default capitalization of canonical tokens.
var displayNames = map[string]string{
	"javascript":    "JavaScript",
	"typescript":    "TypeScript",
	"nodejs":        "Node.js",
	"nextjs":        "Next.js",
	"react native":  "React Native",
	"csharp":        "C#",
	"dotnet":        ".NET",
	"cpp":           "C++",
	"postgresql":    "PostgreSQL",
	"mysql":         "MySQL",
	"mongodb":       "MongoDB",
	"graphql":       "GraphQL",
	"fastapi":       "FastAPI",
	"pytorch":       "PyTorch",
	"tensorflow":    "TensorFlow",
	"rabbitmq":      "RabbitMQ",
	"elasticsearch": "Elasticsearch",
	"ios":           "iOS",
	"ci/cd":         "CI/CD",
	"go":            "Go",
}

var acronyms = map[string]bool{
	"aws": true, "gcp": true, "sql": true, "css": true, "html": true, "php": true,
	"dbt": true, "rest": true, "qa": true, "api": true, "ml": true, "ai": true,
	"r": true, "c": true, "sre": true, "ui": true, "ux": true,
}

var (
	stackLeadPattern = regexp.MustCompile(`(?i)(?:\btech\s+stack\b|\bstack\s*(?::|-|\bis\b)|\bmust[\s-]?haves?\b|\bexperience\s+(?:with|in)\b|\bskills?\s*(?::|-|\bin\b)|\bskilled\s+in\b|\bproficient\s+in\b|\bknowledge\s+of\b|\bexpertise\s+in\b|\busing\b|\bworks?\s+with\b)\s*(?:is\b|are\b|includes?\b|:|-)?\s*((?:[^.;\n!?]|\.\S)+)`)

	stackSplitPattern = regexp.MustCompile(`(?i)\s*(?:,|/|&|\||\band\b|\bor\b|\bplus\b)\s*`)

	stackTokenPattern = regexp.MustCompile(`^[a-z][a-z0-9+#.\- ]{0,29}$`)
)

// TechDictionary maps spellings of technologies to canonical tokens.
// Build it once and share it; it is never mutated after construction.
type TechDictionary struct {
	aliases  map[string]string
	scanners []techScanner
}

type techScanner struct {
	canonical string
	pattern   *regexp.Regexp
}

// NewTechDictionary builds the canonical technology dictionary.
func NewTechDictionary() *TechDictionary {
	d := &TechDictionary{aliases: make(map[string]string)}
	for _, term := range techTerms {
		for _, alias := range term.aliases {
			d.aliases[alias] = term.canonical
			if term.leadOnly {
				continue
			}
			d.scanners = append(d.scanners, techScanner{
				canonical: term.canonical,
				pattern:   regexp.MustCompile(`(?i)(?:^|[^a-z0-9+#.])(` + regexp.QuoteMeta(alias) + `)(?:$|[^a-z0-9+#])`),
			})
		}
	}
	return d
}

// Canonical returns the canonical token for a technology spelling and reports
// whether the spelling is known.
func (d *TechDictionary) Canonical(token string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(token))
	c, ok := d.aliases[key]
	if ok {
		return c, true
	}
	return key, false
}

// Normalize canonicalizes, deduplicates and caps a stack list, keeping the
// first-seen order.
func (d *TechDictionary) Normalize(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		c, _ := d.Canonical(token)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if len(out) == MaxStack {
			break
		}
	}
	return out
}

// Extract finds technologies in free text: explicit lead-phrase lists first,
// then any known term anywhere in the text.
func (d *TechDictionary) Extract(text string) []string {
	var found []string

	for _, m := range stackLeadPattern.FindAllStringSubmatch(text, -1) {
		for _, part := range stackSplitPattern.Split(m[1], -1) {
			part = leadToken(part)
			if part == "" {
				continue
			}
			if c, ok := d.Canonical(part); ok {
				found = append(found, c)
				continue
			}
			if plausibleTech(part) {
				found = append(found, part)
			}
		}
	}

	type hit struct {
		start, end int
		canonical  string
	}
	var hits []hit
	for _, s := range d.scanners {
		loc := s.pattern.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		hits = append(hits, hit{start: loc[2], end: loc[3], canonical: s.canonical})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].start != hits[j].start {
			return hits[i].start < hits[j].start
		}
		return hits[i].end > hits[j].end
	})
	covered := -1
	for _, h := range hits {
		// "react" inside "react native" is the same mention.
		if h.start < covered {
			continue
		}
		covered = h.end
		found = append(found, h.canonical)
	}

	return d.Normalize(found)
}

// leadToken cleans one entry of an explicit stack list and cuts it at the
// first word that ends the list ("node in pune" -> "node").
func leadToken(part string) string {
	part = strings.ToLower(strings.Trim(part, " \t\"'()[]"))
	words := strings.Fields(part)
	for i, w := range words {
		if placeStopWords[w] || roleStopWords[w] {
			words = words[:i]
			break
		}
	}
	return strings.Join(words, " ")
}

func plausibleTech(part string) bool {
	if !stackTokenPattern.MatchString(part) || knownCities[part] {
		return false
	}
	words := strings.Fields(part)
	if len(words) > 3 {
		return false
	}
	for _, w := range words {
		if fillerWords[w] || slices.Contains(seniorityLevels, w) || roleNoisePattern.MatchString(w) {
			return false
		}
	}
	return true
}

// IsTerm reports whether word is a known technology spelling.
func (d *TechDictionary) IsTerm(word string) bool {
	_, ok := d.aliases[strings.ToLower(strings.TrimSpace(word))]
	return ok
}

// DisplayToken formats a canonical token for humans.
func DisplayToken(token string) string {
	if name, ok := displayNames[token]; ok {
		return name
	}
	if acronyms[token] {
		return strings.ToUpper(token)
	}
	return titleCase(token)
}

// DisplayStack renders a stack list as a comma-separated string.
func DisplayStack(tokens []string) string {
	names := make([]string, 0, len(tokens))
	for _, t := range tokens {
		names = append(names, DisplayToken(t))
	}
	return strings.Join(names, ", ")
}
