package masking

import "regexp"

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement Token
	Description string
}

// patternSpecs is applied top to bottom. The order is load-bearing: phones
// before pincodes so a 10-digit run is never split, social links before
// generic URLs so profiles keep their specific tag.
var patternSpecs = []struct {
	name        string
	expr        string
	replacement Token
	description string
}{
	{
		name:        "email",
		expr:        `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
		replacement: TokenEmail,
		description: "email addresses",
	},
	{
		name:        "phone",
		expr:        `\b\d{10}\b`,
		replacement: TokenPhone,
		description: "exactly 10 digit numbers",
	},
	{
		name:        "pincode",
		expr:        `\b\d{5,6}\b`,
		replacement: TokenPincode,
		description: "5-6 digit postal codes",
	},
	{
		name:        "social_link",
		expr:        `(?i)\b(?:https?://)?(?:www\.)?(?:linkedin|github|gitlab|bitbucket|twitter|facebook)\.com/[^\s)]+`,
		replacement: TokenSocialLink,
		description: "social and code hosting profile links",
	},
	{
		name:        "url",
		expr:        `(?i)https?://[^\s)]+`,
		replacement: TokenURL,
		description: "any remaining http(s) URL",
	},
}

// PatternMasker replaces structured PII using a fixed, ordered list of
// regular expressions. It is immutable and safe for concurrent use.
type PatternMasker struct {
	patterns []*CompiledPattern
}

// NewPatternMasker compiles the built-in patterns.
func NewPatternMasker() *PatternMasker {
	m := &PatternMasker{patterns: make([]*CompiledPattern, 0, len(patternSpecs))}
	for _, spec := range patternSpecs {
		m.patterns = append(m.patterns, &CompiledPattern{
			Name:        spec.name,
			Regex:       regexp.MustCompile(spec.expr),
			Replacement: spec.replacement,
			Description: spec.description,
		})
	}
	return m
}

// MaskPatterns applies every pattern globally, in order.
func (m *PatternMasker) MaskPatterns(text string) string {
	masked := text
	for _, p := range m.patterns {
		masked = p.Regex.ReplaceAllLiteralString(masked, string(p.Replacement))
	}
	return masked
}

// Patterns returns the compiled patterns in application order.
func (m *PatternMasker) Patterns() []*CompiledPattern {
	out := make([]*CompiledPattern, len(m.patterns))
	copy(out, m.patterns)
	return out
}
