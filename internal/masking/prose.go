package masking

import (
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

// proseLabels maps prose NER labels to masking categories. prose only emits
// PERSON and GPE.
var proseLabels = map[string]Category{
	"PERSON": CategoryPerson,
	"GPE":    CategoryPlace,
}

// ProseRecognizer runs the statistical named-entity model shipped with
// github.com/jdkato/prose. It is slower than the lexicon recognizer and
// does not tag organizations or dates on its own; pair it with
// LexiconRecognizer through MultiRecognizer.
type ProseRecognizer struct{}

// NewProseRecognizer returns a recognizer backed by the prose model.
func NewProseRecognizer() *ProseRecognizer {
	return &ProseRecognizer{}
}

// FindEntities implements Recognizer.
func (p *ProseRecognizer) FindEntities(text string) ([]Span, error) {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithTagging(true),
		prose.WithExtraction(true),
	)
	if err != nil {
		return nil, fmt.Errorf("prose: %w", err)
	}

	var spans []Span
	for _, ent := range doc.Entities() {
		category, ok := proseLabels[ent.Label]
		if !ok {
			continue
		}
		spans = append(spans, locateAll(text, ent.Text, category)...)
	}
	return spans, nil
}

// locateAll finds every whole-word occurrence of needle. prose reports
// entity text without offsets, so spans are recovered by search.
func locateAll(text, needle string, category Category) []Span {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return nil
	}

	var spans []Span
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], needle)
		if idx < 0 {
			break
		}
		start := offset + idx
		end := start + len(needle)
		if isBoundary(text, start-1) && isBoundary(text, end) {
			spans = append(spans, Span{Start: start, End: end, Category: category})
		}
		offset = end
	}
	return spans
}

func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c >= 0x80)
}

// MultiRecognizer merges the spans of several recognizers. The first error
// aborts the lookup.
type MultiRecognizer []Recognizer

// FindEntities implements Recognizer.
func (m MultiRecognizer) FindEntities(text string) ([]Span, error) {
	var spans []Span
	for _, r := range m {
		found, err := r.FindEntities(text)
		if err != nil {
			return nil, err
		}
		spans = append(spans, found...)
	}
	return spans, nil
}
