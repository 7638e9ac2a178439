package masking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHintFor(t *testing.T) {
	assert.Equal(t, NoHint{}, HintFor(""))
	assert.Equal(t, NoHint{}, HintFor("   "))
	assert.Equal(t, KnownName("Jane Doe"), HintFor("  Jane Doe "))
}

func TestMaskName_KnownName(t *testing.T) {
	r := NewNameResolver(nil)

	tests := []struct {
		name  string
		input string
		known string
		want  string
	}{
		{
			name:  "replaces every occurrence case-insensitively",
			input: "Contact Jane Doe at [EMAIL]. JANE DOE, jane doe.",
			known: "Jane Doe",
			want:  "Contact [NAME] at [EMAIL]. [NAME], [NAME].",
		},
		{
			name:  "regex metacharacters are literal",
			input: "Ref: J. R. (Bob) Smith and JxR",
			known: "J. R. (Bob)",
			want:  "Ref: [NAME] Smith and JxR",
		},
		{
			name:  "existing tokens are not rewritten",
			input: "[EMAIL] Email",
			known: "email",
			want:  "[EMAIL] [NAME]",
		},
		{
			name:  "absent name leaves text unchanged",
			input: "John Smith\nBackend engineer",
			known: "Jane Doe",
			want:  "John Smith\nBackend engineer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.MaskName(tt.input, KnownName(tt.known)))
		})
	}
}

func TestMaskName_FirstLine(t *testing.T) {
	r := NewNameResolver(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "two words",
			input: "John Smith\nBackend engineer",
			want:  "[NAME]\nBackend engineer",
		},
		{
			name:  "three words with padding",
			input: "  John Paul Smith \nBackend engineer",
			want:  "  [NAME] \nBackend engineer",
		},
		{
			name:  "single line document",
			input: "John Smith",
			want:  "[NAME]",
		},
		{
			name:  "uppercase heading",
			input: "SENIOR ENGINEER\nJohn Smith",
			want:  "SENIOR ENGINEER\nJohn Smith",
		},
		{
			name:  "four words",
			input: "John Paul Jones Smith\nx",
			want:  "John Paul Jones Smith\nx",
		},
		{
			name:  "lowercase word",
			input: "John smith\nx",
			want:  "John smith\nx",
		},
		{
			name:  "non latin script is out of scope",
			input: "Иван Петров\nx",
			want:  "Иван Петров\nx",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.MaskName(tt.input, NoHint{}))
		})
	}
}

func TestMaskName_RecognizerPersons(t *testing.T) {
	text := "SUMMARY\nMentored by Jane Doe in Pune"
	r := NewNameResolver(staticRecognizer(
		Span{Start: 20, End: 28, Category: CategoryPerson},
		Span{Start: 32, End: 36, Category: CategoryPlace},
	))

	assert.Equal(t, "SUMMARY\nMentored by [NAME] in Pune", r.MaskName(text, NoHint{}))
}

func TestMaskName_RecognizerErrorFallsBack(t *testing.T) {
	r := NewNameResolver(RecognizerFunc(func(string) ([]Span, error) {
		return nil, errors.New("boom")
	}))

	assert.Equal(t, "[NAME]\nBackend engineer", r.MaskName("John Smith\nBackend engineer", NoHint{}))
}

func TestMaskName_NilHint(t *testing.T) {
	r := NewNameResolver(nil)
	assert.Equal(t, "[NAME]\nx", r.MaskName("John Smith\nx", nil))
}
