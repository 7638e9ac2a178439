package masking

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

const sampleResume = `Rahul Sharma
rahul.sharma@example.com | 9876543210 | Pune 411001
https://www.linkedin.com/in/rahul-sharma | https://rahul.dev

Experience
Backend Engineer at Infosys, March 2019 - 2021
Built billing services at Globex Technologies Pvt. Ltd.`

var patternTokens = []Token{TokenEmail, TokenPhone, TokenPincode, TokenSocialLink, TokenURL}

func newLexiconPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	r, err := NewLexiconRecognizer(LexiconConfig{})
	require.NoError(t, err)
	opts.Recognizer = r
	return New(opts)
}

func TestPipeline_KnownNameOverride(t *testing.T) {
	p := New(Options{})

	got, err := p.Sanitize("Contact Jane Doe at jane@x.com", NewContext("jane doe"))
	require.NoError(t, err)
	assert.Equal(t, "Contact [NAME] at [EMAIL]", got)
}

func TestPipeline_FirstLineFallback(t *testing.T) {
	p := New(Options{Recognizer: staticRecognizer()})

	got, err := p.Sanitize("John Smith\nBackend engineer", NewContext(""))
	require.NoError(t, err)
	assert.Equal(t, "[NAME]\nBackend engineer", got)

	got, err = p.Sanitize("SENIOR ENGINEER\nBackend engineer", NewContext(""))
	require.NoError(t, err)
	assert.Equal(t, "SENIOR ENGINEER\nBackend engineer", got)
}

func TestPipeline_OrderSensitivity(t *testing.T) {
	got, err := New(Options{}).Sanitize("Reach me: 9876543210 560001", Context{})
	require.NoError(t, err)
	assert.Equal(t, "Reach me: [PHONE] [PINCODE]", got)
}

func TestPipeline_SocialLinkPrecedence(t *testing.T) {
	got, err := New(Options{}).Sanitize("https://github.com/janedoe", Context{})
	require.NoError(t, err)
	assert.Equal(t, "[SOCIAL_LINK]", got)
}

func TestPipeline_Lexicon(t *testing.T) {
	p := newLexiconPipeline(t, Options{})

	got, err := p.Sanitize(sampleResume, NewContext(""))
	require.NoError(t, err)

	for _, leaked := range []string{"Rahul", "Sharma", "rahul.sharma@example.com", "9876543210", "411001", "linkedin", "rahul.dev", "Infosys", "Globex", "Pune", "2019"} {
		assert.NotContains(t, got, leaked)
	}
	assert.True(t, strings.HasPrefix(got, "[PERSON]\n[EMAIL] | [PHONE] | [PLACE] [PINCODE]\n[SOCIAL_LINK] | [URL]"), got)
	assert.Contains(t, got, "Backend Engineer at [ORG], [DATE] - [DATE]")
}

func TestPipeline_IdempotentOnPatternTokens(t *testing.T) {
	t.Run("patterns only", func(t *testing.T) {
		p := New(Options{})
		once, err := p.Sanitize(sampleResume, Context{})
		require.NoError(t, err)
		twice, err := p.Sanitize(once, Context{})
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	})

	t.Run("with recognizer", func(t *testing.T) {
		p := newLexiconPipeline(t, Options{})
		once, err := p.Sanitize(sampleResume, Context{})
		require.NoError(t, err)
		twice, err := p.Sanitize(once, Context{})
		require.NoError(t, err)

		first, second := CountTokens(once), CountTokens(twice)
		for _, token := range patternTokens {
			assert.Equal(t, first[token], second[token], "token %s", token)
		}
	})
}

func TestPipeline_NoPIIPassthrough(t *testing.T) {
	text := "built distributed systems in go\nled a team of four engineers\n"

	got, err := New(Options{Recognizer: staticRecognizer()}).Sanitize(text, Context{})
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

// Heuristic-tolerant: the recognizer may produce false positives, so only the
// absence of pattern tokens and the surviving non-token text are asserted.
func TestPipeline_NoPIIPassthroughHeuristic(t *testing.T) {
	text := "Designed event pipelines with Kafka and Postgres.\nMentored two interns."

	got, err := newLexiconPipeline(t, Options{}).Sanitize(text, Context{})
	require.NoError(t, err)

	counts := CountTokens(got)
	for _, token := range patternTokens {
		assert.Zero(t, counts[token], "token %s", token)
	}
	if got != text {
		t.Logf("recognizer false positive tolerated: %q", got)
	}
	assert.Contains(t, got, "Designed event pipelines with")
}

func TestPipeline_ConcurrentIsolation(t *testing.T) {
	p := newLexiconPipeline(t, Options{})

	const runs = 128
	results := make([]string, runs)

	var g errgroup.Group
	for i := 0; i < runs; i++ {
		g.Go(func() error {
			text := fmt.Sprintf("zed%04d wrote this. ref sentinel-%04d zed%04d@example.com", i, i, i)
			out, err := p.Sanitize(text, NewContext(fmt.Sprintf("ZED%04d", i)))
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i, got := range results {
		assert.Equal(t, fmt.Sprintf("[NAME] wrote this. ref sentinel-%04d [EMAIL]", i), got)
	}
}

func TestPipeline_InvalidInput(t *testing.T) {
	p := New(Options{})

	for name, text := range map[string]string{
		"invalid utf-8": "Jane \xff Doe",
		"nul byte":      "Jane\x00Doe",
	} {
		t.Run(name, func(t *testing.T) {
			got, report, err := p.Run(text, Context{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)

			var invalid *InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.NotEmpty(t, invalid.Reason)
			assert.Empty(t, got)
			assert.Nil(t, report)
		})
	}
}

func TestPipeline_EntityErrorPropagates(t *testing.T) {
	boom := errors.New("model unavailable")
	p := New(Options{Recognizer: RecognizerFunc(func(string) ([]Span, error) { return nil, boom })})

	got, err := p.Sanitize("jane@x.com", Context{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, strings.HasPrefix(err.Error(), StageEntities+": "), err.Error())
	assert.Empty(t, got)
}

func TestPipeline_DegradeOnEntityError(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	p := New(Options{
		Recognizer:           RecognizerFunc(func(string) ([]Span, error) { return nil, errors.New("model unavailable") }),
		DegradeOnEntityError: true,
		Logger:               zap.New(core),
	})

	got, report, err := p.Run("John Smith\njane@x.com", Context{})
	require.NoError(t, err)
	assert.Equal(t, "[NAME]\n[EMAIL]", got)

	require.Len(t, report.Steps, 3)
	assert.True(t, report.Steps[1].Skipped)
	assert.Contains(t, report.Steps[1].Reason, "model unavailable")

	entries := observed.FilterMessage("entity masking failed, continuing without it").All()
	require.Len(t, entries, 1)
	assert.Equal(t, StageEntities, entries[0].ContextMap()["stage"])
}

func TestPipeline_Report(t *testing.T) {
	p := New(Options{Recognizer: staticRecognizer(Span{Start: 0, End: 0, Category: CategoryPlace})})

	text := "Jane Doe\njane@x.com, 9876543210"
	got, report, err := p.Run(text, NewContext("Jane Doe"))
	require.NoError(t, err)
	assert.Equal(t, "[NAME]\n[EMAIL], [PHONE]", got)

	require.Len(t, report.Steps, 3)
	assert.Equal(t, StagePatterns, report.Steps[0].Stage)
	assert.Equal(t, map[Token]int{TokenEmail: 1, TokenPhone: 1}, report.Steps[0].Added)
	assert.Empty(t, report.Steps[1].Added)
	assert.Equal(t, map[Token]int{TokenName: 1}, report.Steps[2].Added)
	assert.Equal(t, map[Token]int{TokenEmail: 1, TokenPhone: 1, TokenName: 1}, report.Tokens())
	assert.Equal(t, len([]rune(text)), report.InputLength)
	assert.Equal(t, len([]rune(got)), report.OutputLength)
}

func TestPipeline_Describe(t *testing.T) {
	stages := New(Options{}).Describe()

	require.Len(t, stages, 3)
	assert.Equal(t, StagePatterns, stages[0].Name)
	assert.Equal(t, StageEntities, stages[1].Name)
	assert.Equal(t, StageNames, stages[2].Name)
	assert.Contains(t, stages[0].Description, "social_link")
	assert.Contains(t, stages[1].Description, "disabled")
}

func TestReportTokens_Nil(t *testing.T) {
	var r *Report
	assert.Empty(t, r.Tokens())
}
