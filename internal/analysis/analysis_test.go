package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/resume-guard/internal/extract"
	"github.com/spigell/resume-guard/internal/masking"
	"github.com/spigell/resume-guard/internal/review"
)

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) ExtractFile(_ context.Context, _, _ string) (string, error) {
	return s.text, s.err
}

type recordingReviewer struct {
	got []review.Request
	fb  *review.Feedback
	err error
}

func (r *recordingReviewer) Review(_ context.Context, req review.Request) (*review.Feedback, error) {
	r.got = append(r.got, req)
	return r.fb, r.err
}

const resumeText = "Jane Doe\njane.doe@example.com | 9876543210\nhttps://github.com/janedoe\nBackend engineer, Go and Kafka."

func TestAnalyzeSendsOnlyMaskedText(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	reviewer := &recordingReviewer{fb: &review.Feedback{ATSScore: 72, Scored: true, Raw: "ATS Score: 72/100"}}

	a := New(stubExtractor{text: resumeText}, masking.New(masking.Options{}), reviewer, zap.New(core))

	res, err := a.Analyze(context.Background(), Request{
		Document:       Document{Path: "resume.txt"},
		JobDescription: "Go developer",
	})
	require.NoError(t, err)

	require.Len(t, reviewer.got, 1)
	sent := reviewer.got[0]
	assert.Equal(t, "Go developer", sent.JobDescription)
	assert.Equal(t, "[NAME]\n[EMAIL] | [PHONE]\n[SOCIAL_LINK]\nBackend engineer, Go and Kafka.", sent.Resume)
	for _, secret := range []string{"Jane", "jane.doe@example.com", "9876543210", "github.com/janedoe"} {
		assert.NotContains(t, sent.Resume, secret)
	}

	assert.Equal(t, sent.Resume, res.Masked)
	assert.Equal(t, 72, res.Feedback.ATSScore)
	assert.Equal(t, 1, res.Report.Tokens()[masking.TokenEmail])

	entries := logs.FilterMessage("resume processed and masked").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 1, fields["masked_email"])
	assert.EqualValues(t, 1, fields["masked_name"])
	for _, v := range fields {
		if s, ok := v.(string); ok {
			assert.NotContains(t, s, "jane")
		}
	}
}

func TestPrepareWithKnownName(t *testing.T) {
	a := New(stubExtractor{text: "Curriculum Vitae\nJane Doe, Go developer"}, masking.New(masking.Options{}), nil, nil)

	prepared, err := a.Prepare(context.Background(), Document{Path: "resume.txt"}, "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "Curriculum Vitae\n[NAME], Go developer", prepared.Masked)
}

func TestAnalyzeStageErrors(t *testing.T) {
	masker := masking.New(masking.Options{})

	t.Run("extract", func(t *testing.T) {
		reviewer := &recordingReviewer{}
		a := New(stubExtractor{err: extract.ErrUnsupportedFormat}, masker, reviewer, nil)

		_, err := a.Analyze(context.Background(), Request{})
		assert.ErrorIs(t, err, extract.ErrUnsupportedFormat)
		assert.Equal(t, StageExtract, StageOf(err))
		assert.Empty(t, reviewer.got)
	})

	t.Run("blank document", func(t *testing.T) {
		reviewer := &recordingReviewer{}
		a := New(stubExtractor{text: " \n\t "}, masker, reviewer, nil)

		_, err := a.Analyze(context.Background(), Request{})
		assert.ErrorIs(t, err, ErrNoText)
		assert.Equal(t, StageExtract, StageOf(err))
		assert.Empty(t, reviewer.got)
	})

	t.Run("mask", func(t *testing.T) {
		reviewer := &recordingReviewer{}
		a := New(stubExtractor{text: "bad\x00text"}, masker, reviewer, nil)

		_, err := a.Analyze(context.Background(), Request{})
		assert.ErrorIs(t, err, masking.ErrInvalidInput)
		assert.Equal(t, StageMask, StageOf(err))
		assert.Empty(t, reviewer.got)
	})

	t.Run("review", func(t *testing.T) {
		boom := errors.New("boom")
		a := New(stubExtractor{text: resumeText}, masker, &recordingReviewer{err: boom}, nil)

		_, err := a.Analyze(context.Background(), Request{})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, StageReview, StageOf(err))
	})

	t.Run("no reviewer", func(t *testing.T) {
		a := New(stubExtractor{text: resumeText}, masker, nil, nil)

		assert.False(t, a.HasReviewer())
		_, err := a.Analyze(context.Background(), Request{})
		assert.ErrorIs(t, err, ErrReviewerNotConfigured)
		assert.Equal(t, StageReview, StageOf(err))
	})

	assert.Empty(t, StageOf(errors.New("plain")))
}
