package review

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("  [NAME]\nGo developer  ", "")

	assert.True(t, strings.HasPrefix(prompt, "You are a professional resume reviewer."))
	assert.Contains(t, prompt, "Resume:\n[NAME]\nGo developer\n")
	assert.Contains(t, prompt, "Job Description:\n"+DefaultJobDescription)
	assert.Contains(t, prompt, "ATS Score: XX/100")
	assert.True(t, strings.HasSuffix(prompt, "End of response."))
}

func TestBuildPrompt_PlaceholdersInResumeAreNotExpanded(t *testing.T) {
	prompt := BuildPrompt("{{JOB_DESCRIPTION}}", "Backend role")

	assert.Contains(t, prompt, "Resume:\n{{JOB_DESCRIPTION}}")
	assert.Equal(t, 1, strings.Count(prompt, "Backend role"))
}

func TestParseFeedback(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		score   int
		scored  bool
		bullets []string
	}{
		{
			name:    "plain bullets",
			raw:     "ATS Score: 72/100\n- Add metrics to achievements.\n* Tighten the summary.\n• Mention Kubernetes.",
			score:   72,
			scored:  true,
			bullets: []string{"Add metrics to achievements.", "Tighten the summary.", "Mention Kubernetes."},
		},
		{
			name:    "score inside a bullet",
			raw:     "- **ATS Score: 65/100**\n- Use consistent tense.",
			score:   65,
			scored:  true,
			bullets: []string{"Use consistent tense."},
		},
		{
			name:    "numbered list and clamp",
			raw:     "ats score - 140\n1. Reorder sections.\n2) Remove photos.",
			score:   100,
			scored:  true,
			bullets: []string{"Reorder sections.", "Remove photos."},
		},
		{
			name:    "json answer with string score",
			raw:     "```json\n{\"ats_score\": \"81\", \"recommendations\": [\"Add Go projects\", \" \"]}\n```",
			score:   81,
			scored:  true,
			bullets: []string{"Add Go projects"},
		},
		{
			name:    "json answer with single feedback string",
			raw:     `{"score": 55, "feedback": "Quantify impact."}`,
			score:   55,
			scored:  true,
			bullets: []string{"Quantify impact."},
		},
		{
			name:   "no score",
			raw:    "Looks fine overall.",
			scored: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := ParseFeedback(tt.raw)
			assert.Equal(t, tt.scored, fb.Scored)
			assert.Equal(t, tt.score, fb.ATSScore)
			assert.Equal(t, tt.bullets, fb.Bullets)
			assert.Equal(t, strings.TrimSpace(tt.raw), fb.Raw)
		})
	}
}

func TestParseFeedback_Empty(t *testing.T) {
	fb := ParseFeedback("  \n")
	assert.Equal(t, NoFeedback, fb.Raw)
	assert.False(t, fb.Scored)
}

func TestNewService_RequiresGenerator(t *testing.T) {
	_, err := NewService(nil, Options{})
	assert.Error(t, err)
}

func TestServiceReview(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	stub := &stubGenerator{response: "ATS Score: 88/100\n- Strong backend focus."}

	svc, err := NewService(stub, Options{Provider: "openrouter", Logger: zap.New(core)})
	require.NoError(t, err)

	fb, err := svc.Review(context.Background(), Request{Resume: "[NAME]\nGo developer", JobDescription: "Go role"})
	require.NoError(t, err)
	assert.Equal(t, 88, fb.ATSScore)
	assert.Equal(t, []string{"Strong backend focus."}, fb.Bullets)

	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "Go role")

	entries := observed.FilterMessage("review completed").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "openrouter", ctx["reviewer_provider"])
	assert.Equal(t, "stub-model", ctx["reviewer_model"])
}

func TestServiceReview_Errors(t *testing.T) {
	boom := errors.New("upstream down")
	svc, err := NewService(&stubGenerator{err: boom}, Options{Provider: "gemini"})
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), Request{Resume: "[NAME]"})
	require.ErrorIs(t, err, boom)
	assert.True(t, strings.HasPrefix(err.Error(), "gemini: "))

	_, err = svc.Review(context.Background(), Request{Resume: "   "})
	assert.ErrorIs(t, err, ErrEmptyResume)
}

func TestServiceReview_RateLimited(t *testing.T) {
	stub := &stubGenerator{response: "ATS Score: 50/100"}
	svc, err := NewService(stub, Options{RatePerMinute: 1})
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), Request{Resume: "first"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = svc.Review(ctx, Request{Resume: "second"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Len(t, stub.prompts, 1)
}
