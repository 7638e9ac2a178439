package review

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	_ "embed"

	"github.com/mitchellh/mapstructure"
)

const (
	// DefaultJobDescription is sent when the caller provides none.
	DefaultJobDescription = "No job description provided."
	// NoFeedback replaces an empty model answer.
	NoFeedback = "No feedback generated."
)

//go:embed prompt.md
var promptTemplate string

var (
	scoreRe  = regexp.MustCompile(`(?i)\bATS\s*score\s*[:\-]?\s*\**\s*(\d{1,3})(?:\s*/\s*100)?`)
	bulletRe = regexp.MustCompile(`^\s*(?:[-*•]|\d{1,2}[.)])\s+(.+)$`)
)

// Request is one review of an already masked résumé.
type Request struct {
	Resume         string
	JobDescription string
}

// Feedback is the parsed model answer.
type Feedback struct {
	// ATSScore is within [0, 100]; meaningful only when Scored is set.
	ATSScore int
	Scored   bool
	Bullets  []string
	Raw      string
}

// Generator sends a prompt to a language model and returns its text answer.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Reviewer produces feedback for a masked résumé.
type Reviewer interface {
	Review(ctx context.Context, req Request) (*Feedback, error)
}

// BuildPrompt fills the embedded reviewer prompt.
func BuildPrompt(resume, jobDescription string) string {
	jobDescription = strings.TrimSpace(jobDescription)
	if jobDescription == "" {
		jobDescription = DefaultJobDescription
	}

	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Resume:\n{{RESUME}}\n\nJob Description:\n{{JOB_DESCRIPTION}}\n\nATS Score: XX/100"
	}
	prompt := strings.ReplaceAll(template, "{{JOB_DESCRIPTION}}", jobDescription)
	prompt = strings.ReplaceAll(prompt, "{{RESUME}}", strings.TrimSpace(resume))
	return strings.TrimSpace(prompt)
}

// jsonFeedback is the structured answer some models return despite the
// bullet-only instructions.
type jsonFeedback struct {
	ATSScore *int     `mapstructure:"ats_score"`
	Score    *int     `mapstructure:"score"`
	Feedback []string `mapstructure:"feedback"`
	Bullets  []string `mapstructure:"bullets"`
	Recs     []string `mapstructure:"recommendations"`
}

// ParseFeedback extracts the ATS score and bullet list from a model answer.
// JSON answers are decoded weakly so "82" and 82 are both accepted.
func ParseFeedback(raw string) *Feedback {
	fb := &Feedback{Raw: strings.TrimSpace(raw)}
	if fb.Raw == "" {
		fb.Raw = NoFeedback
		return fb
	}

	if parsed, ok := parseJSONFeedback(fb.Raw); ok {
		parsed.Raw = fb.Raw
		return parsed
	}

	if m := scoreRe.FindStringSubmatch(fb.Raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			fb.ATSScore, fb.Scored = clampScore(n), true
		}
	}

	for _, line := range strings.Split(fb.Raw, "\n") {
		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		bullet := strings.TrimSpace(m[1])
		if bullet == "" || scoreRe.MatchString(bullet) {
			continue
		}
		fb.Bullets = append(fb.Bullets, bullet)
	}

	return fb
}

func parseJSONFeedback(raw string) (*Feedback, bool) {
	cleaned := extractJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, false
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, false
	}

	var decoded jsonFeedback
	if err := mapstructure.WeakDecode(data, &decoded); err != nil {
		return nil, false
	}

	fb := &Feedback{}
	switch {
	case decoded.ATSScore != nil:
		fb.ATSScore, fb.Scored = clampScore(*decoded.ATSScore), true
	case decoded.Score != nil:
		fb.ATSScore, fb.Scored = clampScore(*decoded.Score), true
	}

	for _, list := range [][]string{decoded.Feedback, decoded.Bullets, decoded.Recs} {
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				fb.Bullets = append(fb.Bullets, item)
			}
		}
	}

	if !fb.Scored && len(fb.Bullets) == 0 {
		return nil, false
	}
	return fb, true
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func clampScore(n int) int {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	default:
		return n
	}
}

// ErrEmptyResume is returned when there is nothing to review.
var ErrEmptyResume = errors.New("resume text is empty")
