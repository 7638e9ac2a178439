package masking

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

//go:embed lexicon/*.txt
var lexiconFS embed.FS

// LexiconConfig extends the embedded lexicons of the LexiconRecognizer.
type LexiconConfig struct {
	FirstNames    []string `mapstructure:"first-names"`
	Places        []string `mapstructure:"places"`
	Organizations []string `mapstructure:"organizations"`
}

const monthExpr = `(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)`

var (
	wordRe        = regexp.MustCompile(`\p{Lu}\.|\p{L}[\p{L}'’-]*`)
	honorificRe   = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof)\.?[ \t]+\p{Lu}\p{Ll}+(?:[ \t]+\p{Lu}\p{Ll}+){0,2}`)
	institutionRe = regexp.MustCompile(`\b(?:University|Institute|College|School|Academy)[ \t]+of[ \t]+\p{Lu}\p{L}+(?:[ \t]+\p{Lu}\p{L}+){0,3}`)

	dateRes = []*regexp.Regexp{
		// 12th March 2021
		regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)?[ \t]+` + monthExpr + `\.?,?[ \t]+\d{4}\b`),
		// March 12, 2021
		regexp.MustCompile(`\b` + monthExpr + `\.?[ \t]+\d{1,2}(?:st|nd|rd|th)?,?[ \t]+\d{4}\b`),
		// March 2021, Sept. 2020
		regexp.MustCompile(`\b` + monthExpr + `\.?,?[ \t]+\d{4}\b`),
		// Mar '21
		regexp.MustCompile(`\b` + monthExpr + `\.?[ \t]+['’]\d{2}\b`),
		// 2021-03-12
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		// 12/03/2021, 12.03.21
		regexp.MustCompile(`\b\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}\b`),
		// 03/2021
		regexp.MustCompile(`\b\d{1,2}/\d{4}\b`),
		// 1950-2099 standalone years
		regexp.MustCompile(`\b(?:19[5-9]\d|20\d{2})\b`),
	}

	abbreviatedSuffixes = map[string]struct{}{"co": {}, "corp": {}, "inc": {}, "ltd": {}, "pvt": {}}
)

// LexiconRecognizer is a deterministic recognizer built from embedded word
// lists and date expressions. It trades recall for predictability: a person
// needs a known first name followed by a capitalized surname, places and
// organizations need a gazetteer hit or an organization suffix.
type LexiconRecognizer struct {
	firstNames    map[string]struct{}
	nonNames      map[string]struct{}
	orgSuffixes   map[string]struct{}
	places        *regexp.Regexp
	organizations *regexp.Regexp
}

// NewLexiconRecognizer loads the embedded lexicons and merges extra entries.
func NewLexiconRecognizer(extra LexiconConfig) (*LexiconRecognizer, error) {
	firstNames, err := readLexicon("first_names.txt")
	if err != nil {
		return nil, err
	}
	nonNames, err := readLexicon("non_names.txt")
	if err != nil {
		return nil, err
	}
	suffixes, err := readLexicon("org_suffixes.txt")
	if err != nil {
		return nil, err
	}
	places, err := readLexicon("places.txt")
	if err != nil {
		return nil, err
	}
	orgs, err := readLexicon("organizations.txt")
	if err != nil {
		return nil, err
	}

	placesRe, err := gazetteerRegex(append(places, extra.Places...))
	if err != nil {
		return nil, fmt.Errorf("compile places: %w", err)
	}
	orgsRe, err := gazetteerRegex(append(orgs, extra.Organizations...))
	if err != nil {
		return nil, fmt.Errorf("compile organizations: %w", err)
	}

	return &LexiconRecognizer{
		firstNames:    lowerSet(append(firstNames, extra.FirstNames...)),
		nonNames:      lowerSet(nonNames),
		orgSuffixes:   lowerSet(suffixes),
		places:        placesRe,
		organizations: orgsRe,
	}, nil
}

// FindEntities implements Recognizer. Spans may overlap; EntityMasker settles them.
func (r *LexiconRecognizer) FindEntities(text string) ([]Span, error) {
	var spans []Span
	for _, re := range dateRes {
		spans = appendMatches(spans, re, text, CategoryDate)
	}
	spans = appendMatches(spans, r.places, text, CategoryPlace)
	spans = appendMatches(spans, r.organizations, text, CategoryOrg)
	spans = appendMatches(spans, institutionRe, text, CategoryOrg)
	spans = appendMatches(spans, honorificRe, text, CategoryPerson)

	words := tokenize(text)
	spans = append(spans, r.orgSuffixSpans(text, words)...)
	spans = append(spans, r.personSpans(text, words)...)

	return spans, nil
}

type word struct {
	start int
	end   int
	text  string
}

func tokenize(text string) []word {
	idx := wordRe.FindAllStringIndex(text, -1)
	words := make([]word, 0, len(idx))
	for _, loc := range idx {
		words = append(words, word{start: loc[0], end: loc[1], text: text[loc[0]:loc[1]]})
	}
	return words
}

// personSpans tags a known first name followed by one or two capitalized
// surnames, optionally separated by initials ("John A. Smith").
func (r *LexiconRecognizer) personSpans(text string, words []word) []Span {
	var spans []Span
	for i := 0; i < len(words); i++ {
		first := words[i]
		if !isTitleWord(first.text) || !r.has(r.firstNames, first.text) {
			continue
		}

		end, surnames, prev := first.end, 0, first
		j := i + 1
		for ; j < len(words) && surnames < 2; j++ {
			next := words[j]
			if !joinedBySpace(text, prev, next) {
				break
			}
			if isInitial(next.text) {
				prev = next
				continue
			}
			if !r.isSurname(next.text) {
				break
			}
			surnames++
			end = next.end
			prev = next
		}

		if surnames == 0 {
			continue
		}
		spans = append(spans, Span{Start: first.start, End: end, Category: CategoryPerson})
		i = j - 1
	}
	return spans
}

// orgSuffixSpans tags up to four capitalized words ending in an organization
// suffix ("Acme Technologies", "Globex Pvt. Ltd.").
func (r *LexiconRecognizer) orgSuffixSpans(text string, words []word) []Span {
	var spans []Span
	for i, w := range words {
		if !isCapitalized(w.text) || !r.has(r.orgSuffixes, w.text) {
			continue
		}

		start, prev := -1, w
		for k := i - 1; k >= 0 && i-k <= 4; k-- {
			cand := words[k]
			if !joinedByConnector(text, cand, prev) || !isCapitalized(cand.text) || r.has(r.nonNames, cand.text) {
				break
			}
			start = cand.start
			prev = cand
		}
		if start < 0 {
			continue
		}

		end := w.end
		if _, ok := abbreviatedSuffixes[strings.ToLower(w.text)]; ok && end < len(text) && text[end] == '.' {
			end++
		}
		spans = append(spans, Span{Start: start, End: end, Category: CategoryOrg})
	}
	return spans
}

func (r *LexiconRecognizer) isSurname(w string) bool {
	return isTitleWord(w) && !r.has(r.nonNames, w) && !r.has(r.orgSuffixes, w)
}

func (r *LexiconRecognizer) has(set map[string]struct{}, w string) bool {
	_, ok := set[strings.ToLower(w)]
	return ok
}

func appendMatches(spans []Span, re *regexp.Regexp, text string, category Category) []Span {
	if re == nil {
		return spans
	}
	for _, loc := range re.FindAllStringIndex(text, -1) {
		spans = append(spans, Span{Start: loc[0], End: loc[1], Category: category})
	}
	return spans
}

// isTitleWord reports an uppercase letter followed by a lowercase one.
func isTitleWord(w string) bool {
	first, size := utf8.DecodeRuneInString(w)
	if !unicode.IsUpper(first) || size >= len(w) {
		return false
	}
	second, _ := utf8.DecodeRuneInString(w[size:])
	return unicode.IsLower(second)
}

func isCapitalized(w string) bool {
	first, _ := utf8.DecodeRuneInString(w)
	return unicode.IsUpper(first)
}

func isInitial(w string) bool {
	return strings.HasSuffix(w, ".") && utf8.RuneCountInString(w) == 2
}

// joinedBySpace reports whether only spaces or tabs separate a and b.
func joinedBySpace(text string, a, b word) bool {
	gap := text[a.end:b.start]
	return gap != "" && strings.Trim(gap, " \t") == ""
}

// joinedByConnector is joinedBySpace that also accepts "&" and the period of
// an abbreviated suffix ("Pvt. Ltd.").
func joinedByConnector(text string, a, b word) bool {
	if joinedBySpace(text, a, b) {
		return true
	}
	gap := text[a.end:b.start]
	if strings.ContainsAny(gap, "\r\n") {
		return false
	}
	if strings.Trim(gap, " \t") == "&" {
		return true
	}
	if _, ok := abbreviatedSuffixes[strings.ToLower(a.text)]; ok && len(gap) > 1 && gap[0] == '.' {
		return strings.Trim(gap[1:], " \t") == ""
	}
	return false
}

func readLexicon(name string) ([]string, error) {
	data, err := lexiconFS.ReadFile("lexicon/" + name)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", name, err)
	}

	var entries []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	return entries, nil
}

func lowerSet(entries []string) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			set[strings.ToLower(e)] = struct{}{}
		}
	}
	return set
}

// gazetteerRegex builds a whole-word alternation, longest entries first so
// "New Delhi" wins over "Delhi" at the same position.
func gazetteerRegex(entries []string) (*regexp.Regexp, error) {
	seen := make(map[string]struct{}, len(entries))
	unique := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		unique = append(unique, e)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	sort.SliceStable(unique, func(i, j int) bool { return len(unique[i]) > len(unique[j]) })
	quoted := make([]string, 0, len(unique))
	for _, e := range unique {
		quoted = append(quoted, regexp.QuoteMeta(e))
	}
	return regexp.Compile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}
