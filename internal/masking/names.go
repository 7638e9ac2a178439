package masking

import (
	"regexp"
	"strings"
)

// firstLineNameRe matches one to three title-case words, e.g. "John Paul Smith".
// It assumes Latin-script, Western-order names.
var firstLineNameRe = regexp.MustCompile(`^[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2}$`)

// tokenRe matches any bracketed replacement token.
var tokenRe = regexp.MustCompile(`\[[A-Z_]+\]`)

// NameHint tells the NameResolver what it knows about the candidate's name.
// It is either KnownName or NoHint.
type NameHint interface {
	nameHint()
}

// KnownName is a caller-supplied candidate name, replaced literally.
type KnownName string

// NoHint selects the recognizer and first-line heuristics.
type NoHint struct{}

func (KnownName) nameHint() {}
func (NoHint) nameHint()    {}

// HintFor returns KnownName for a non-blank name and NoHint otherwise.
func HintFor(name string) NameHint {
	name = strings.TrimSpace(name)
	if name == "" {
		return NoHint{}
	}
	return KnownName(name)
}

// NameResolver masks the candidate's own name with [NAME].
type NameResolver struct {
	recognizer Recognizer
}

// NewNameResolver returns a resolver whose NoHint path consults recognizer
// for person names. A nil recognizer leaves only the first-line heuristic.
func NewNameResolver(recognizer Recognizer) *NameResolver {
	return &NameResolver{recognizer: recognizer}
}

// MaskName never fails; when nothing matches the text is returned unchanged.
func (n *NameResolver) MaskName(text string, hint NameHint) string {
	switch h := hint.(type) {
	case KnownName:
		return maskKnownName(text, string(h))
	default:
		return maskFirstLineName(n.maskPersonNames(text))
	}
}

func maskKnownName(text, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return text
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(name))

	// Matches inside tokens placed by earlier stages are left alone, so a
	// name like "Email" cannot rewrite [EMAIL].
	tokens := tokenRe.FindAllStringIndex(text, -1)
	var spans []Span
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if insideAny(loc, tokens) {
			continue
		}
		spans = append(spans, Span{Start: loc[0], End: loc[1], Category: CategoryPerson})
	}

	return replaceSpans(text, spans, func(Span) string { return string(TokenName) })
}

func insideAny(loc []int, ranges [][]int) bool {
	for _, r := range ranges {
		if loc[0] < r[1] && r[0] < loc[1] {
			return true
		}
	}
	return false
}

// maskPersonNames replaces recognizer PERSON spans. A recognizer failure
// skips this pass.
func (n *NameResolver) maskPersonNames(text string) string {
	if n.recognizer == nil || text == "" {
		return text
	}

	found, err := n.recognizer.FindEntities(text)
	if err != nil {
		return text
	}

	people := make([]Span, 0, len(found))
	for _, s := range found {
		if s.Category == CategoryPerson {
			people = append(people, s)
		}
	}

	return replaceSpans(text, resolveSpans(text, people), func(Span) string {
		return string(TokenName)
	})
}

// maskFirstLineName replaces a bare name sitting alone on the first line.
func maskFirstLineName(text string) string {
	lineEnd := strings.IndexByte(text, '\n')
	if lineEnd < 0 {
		lineEnd = len(text)
	}
	line := text[:lineEnd]

	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !firstLineNameRe.MatchString(trimmed) {
		return text
	}

	start := strings.Index(line, trimmed)
	return text[:start] + string(TokenName) + text[start+len(trimmed):]
}
