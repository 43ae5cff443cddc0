// Package skills extracts canonical skill names from free text using a keyword taxonomy.
package skills

import (
	"sort"
	"strings"
	"unicode"
)

// defaultTaxonomy maps a canonical skill to the aliases that identify it in text.
// The canonical name itself always matches.
var defaultTaxonomy = map[string][]string{
	// languages
	"go":         {"golang"},
	"python":     {"py"},
	"java":       {},
	"javascript": {"js", "ecmascript"},
	"typescript": {"ts"},
	"c++":        {"cpp"},
	"c#":         {"csharp", ".net", "dotnet"},
	"rust":       {},
	"ruby":       {"rails", "ruby on rails"},
	"php":        {},
	"kotlin":     {},
	"swift":      {},
	"scala":      {},

	// data stores
	"sql":           {},
	"postgresql":    {"postgres", "psql"},
	"mysql":         {},
	"mongodb":       {"mongo"},
	"redis":         {},
	"elasticsearch": {"elastic search", "opensearch"},
	"kafka":         {"apache kafka"},

	// infrastructure
	"docker":     {},
	"kubernetes": {"k8s"},
	"terraform":  {},
	"aws":        {"amazon web services"},
	"gcp":        {"google cloud", "google cloud platform"},
	"azure":      {},
	"linux":      {},
	"git":        {"github", "gitlab"},
	"ci/cd":      {"continuous integration", "continuous delivery", "jenkins", "github actions"},

	// web
	"react":         {"react.js", "reactjs"},
	"angular":       {},
	"vue":           {"vue.js", "vuejs"},
	"node.js":       {"nodejs", "node"},
	"graphql":       {},
	"rest":          {"restful", "rest api"},
	"grpc":          {},
	"microservices": {"micro-services"},

	// data science
	"machine learning": {"ml"},
	"deep learning":    {},
	"nlp":              {"natural language processing"},
	"pytorch":          {},
	"tensorflow":       {},
	"pandas":           {},
	"spark":            {"apache spark", "pyspark"},
	"data analysis":    {"data analytics"},
	"statistics":       {"statistical analysis"},
	"excel":            {"spreadsheets"},
	"tableau":          {},
	"power bi":         {"powerbi"},

	// practices
	"agile":              {"scrum", "kanban"},
	"project management": {"pmp"},
	"leadership":         {"team lead", "people management"},
	"communication":      {"communication skills"},
}

// Extractor holds an alias index built from a taxonomy
type Extractor struct {
	tokens  map[string]string // single-token alias -> canonical
	phrases map[string]string // multi-word alias -> canonical
}

// NewExtractor builds an extractor from the default taxonomy merged with extra entries.
// Extra aliases for an existing canonical skill are appended to it.
func NewExtractor(extra map[string][]string) *Extractor {
	e := &Extractor{
		tokens:  make(map[string]string),
		phrases: make(map[string]string),
	}
	for canonical, aliases := range defaultTaxonomy {
		e.add(canonical, aliases)
	}
	for canonical, aliases := range extra {
		e.add(canonical, aliases)
	}
	return e
}

func (e *Extractor) add(canonical string, aliases []string) {
	canonical = strings.ToLower(strings.TrimSpace(canonical))
	if canonical == "" {
		return
	}
	for _, a := range append([]string{canonical}, aliases...) {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if strings.ContainsRune(a, ' ') {
			e.phrases[a] = canonical
		} else {
			e.tokens[a] = canonical
		}
	}
}

var defaultExtractor = NewExtractor(nil)

// Extract returns the canonical skills mentioned in text using the default taxonomy
func Extract(text string) []string {
	return defaultExtractor.Extract(text)
}

// Normalize maps an alias to its canonical name using the default taxonomy
func Normalize(skill string) string {
	return defaultExtractor.Normalize(skill)
}

// Extract returns sorted, de-duplicated canonical skills found in text
func (e *Extractor) Extract(text string) []string {
	lower := strings.ToLower(text)
	found := make(map[string]struct{})

	for _, tok := range tokenize(lower) {
		if canonical, ok := e.tokens[tok]; ok {
			found[canonical] = struct{}{}
			continue
		}
		// compound tokens such as "go/python" or "docker-based"
		for _, part := range strings.FieldsFunc(tok, func(r rune) bool { return r == '/' || r == '-' }) {
			if canonical, ok := e.tokens[part]; ok {
				found[canonical] = struct{}{}
			}
		}
	}

	// phrases are matched against the space-normalized text on word boundaries
	padded := " " + strings.Join(tokenize(lower), " ") + " "
	for phrase, canonical := range e.phrases {
		if strings.Contains(padded, " "+phrase+" ") {
			found[canonical] = struct{}{}
		}
	}

	return sortedKeys(found)
}

// Normalize returns the canonical name for a known alias, otherwise the trimmed lower-case input
func (e *Extractor) Normalize(skill string) string {
	s := strings.ToLower(strings.TrimSpace(skill))
	if canonical, ok := e.tokens[s]; ok {
		return canonical
	}
	if canonical, ok := e.phrases[s]; ok {
		return canonical
	}
	return s
}

// NormalizeAll canonicalizes and de-duplicates a skill list, dropping blanks
func (e *Extractor) NormalizeAll(list []string) []string {
	set := make(map[string]struct{}, len(list))
	for _, s := range list {
		if n := e.Normalize(s); n != "" {
			set[n] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Match compares candidate skills against a job's required and preferred lists
func (e *Extractor) Match(candidate, required, preferred []string) Result {
	have := make(map[string]struct{}, len(candidate))
	for _, s := range e.NormalizeAll(candidate) {
		have[s] = struct{}{}
	}

	res := Result{Required: e.NormalizeAll(required)}
	isRequired := make(map[string]struct{}, len(res.Required))
	for _, s := range res.Required {
		isRequired[s] = struct{}{}
	}
	// a skill that is both required and preferred counts once, as required
	for _, s := range e.NormalizeAll(preferred) {
		if _, ok := isRequired[s]; !ok {
			res.Preferred = append(res.Preferred, s)
		}
	}

	for _, s := range res.Required {
		if _, ok := have[s]; ok {
			res.MatchedRequired = append(res.MatchedRequired, s)
		} else {
			res.Missing = append(res.Missing, s)
		}
	}
	for _, s := range res.Preferred {
		if _, ok := have[s]; ok {
			res.MatchedPreferred = append(res.MatchedPreferred, s)
		}
	}
	return res
}

// Result is the outcome of matching a candidate's skills against a job
type Result struct {
	Required         []string
	Preferred        []string
	MatchedRequired  []string
	MatchedPreferred []string
	Missing          []string // required skills the candidate lacks
}

// Matched returns every matched skill, required first
func (r Result) Matched() []string {
	out := make([]string, 0, len(r.MatchedRequired)+len(r.MatchedPreferred))
	out = append(out, r.MatchedRequired...)
	return append(out, r.MatchedPreferred...)
}

// tokenize splits text into words, keeping + # . / so c++, c#, node.js and ci/cd survive
func tokenize(text string) []string {
	words := strings.FieldsFunc(text, isSeparator)
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimRight(w, ".,/")
		w = strings.TrimLeft(w, "/")
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func isSeparator(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' || r == '/' || r == '-')
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
