package masking

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Category tags a detected entity span.
type Category string

const (
	CategoryPerson Category = "PERSON"
	CategoryPlace  Category = "PLACE"
	CategoryOrg    Category = "ORG"
	CategoryDate   Category = "DATE"
)

// Token returns the replacement token for the category.
func (c Category) Token() Token {
	switch c {
	case CategoryPerson:
		return TokenPerson
	case CategoryPlace:
		return TokenPlace
	case CategoryOrg:
		return TokenOrg
	case CategoryDate:
		return TokenDate
	default:
		return ""
	}
}

// rank orders categories for overlap resolution; lower wins.
func (c Category) rank() int {
	switch c {
	case CategoryPerson:
		return 0
	case CategoryOrg:
		return 1
	case CategoryPlace:
		return 2
	case CategoryDate:
		return 3
	default:
		return 4
	}
}

// Span is a detected entity as a half-open byte range [Start, End) of the
// text handed to the recognizer.
type Span struct {
	Start    int
	End      int
	Category Category
}

func (s Span) len() int { return s.End - s.Start }

// Recognizer finds named entities in text.
type Recognizer interface {
	FindEntities(text string) ([]Span, error)
}

// RecognizerFunc adapts a plain function to the Recognizer interface.
type RecognizerFunc func(text string) ([]Span, error)

func (f RecognizerFunc) FindEntities(text string) ([]Span, error) { return f(text) }

// EntityMasker replaces recognizer hits with their category tokens.
type EntityMasker struct {
	recognizer Recognizer
}

// NewEntityMasker returns a masker backed by the given recognizer.
func NewEntityMasker(recognizer Recognizer) *EntityMasker {
	return &EntityMasker{recognizer: recognizer}
}

// MaskEntities replaces every detected PERSON, PLACE, ORG and DATE span.
// A recognizer error is returned wrapped and no text is produced.
func (m *EntityMasker) MaskEntities(text string) (string, error) {
	if m.recognizer == nil || text == "" {
		return text, nil
	}

	spans, err := m.recognizer.FindEntities(text)
	if err != nil {
		return "", fmt.Errorf("find entities: %w", err)
	}

	return replaceSpans(text, resolveSpans(text, spans), func(s Span) string {
		return string(s.Category.Token())
	}), nil
}

// resolveSpans drops invalid spans and settles overlaps: the longer span wins,
// ties go to PERSON > ORG > PLACE > DATE. The result is sorted by Start.
func resolveSpans(text string, spans []Span) []Span {
	candidates := make([]Span, 0, len(spans))
	for _, s := range spans {
		if !validSpan(text, s) {
			continue
		}
		candidates = append(candidates, s)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.len() != b.len() {
			return a.len() > b.len()
		}
		if a.Category.rank() != b.Category.rank() {
			return a.Category.rank() < b.Category.rank()
		}
		return a.Start < b.Start
	})

	accepted := make([]Span, 0, len(candidates))
	for _, c := range candidates {
		overlaps := false
		for _, a := range accepted {
			if c.Start < a.End && a.Start < c.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, c)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Start < accepted[j].Start })
	return accepted
}

func validSpan(text string, s Span) bool {
	if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
		return false
	}
	if s.Category.Token() == "" {
		return false
	}
	if s.Start < len(text) && !utf8.RuneStart(text[s.Start]) {
		return false
	}
	if s.End < len(text) && !utf8.RuneStart(text[s.End]) {
		return false
	}
	return true
}

// replaceSpans builds a new string with each sorted, non-overlapping span
// substituted by replacement(span).
func replaceSpans(text string, spans []Span, replacement func(Span) string) string {
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, s := range spans {
		b.WriteString(text[last:s.Start])
		b.WriteString(replacement(s))
		last = s.End
	}
	b.WriteString(text[last:])
	return b.String()
}
