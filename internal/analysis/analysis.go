package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/resume-guard/internal/logger"
	"github.com/spigell/resume-guard/internal/masking"
	"github.com/spigell/resume-guard/internal/review"
)

const (
	StageExtract = "extract"
	StageMask    = "mask"
	StageReview  = "review"
)

var (
	// ErrReviewerNotConfigured is returned by Analyze when no reviewer is set.
	ErrReviewerNotConfigured = errors.New("reviewer is not configured")
	// ErrNoText is returned when a document holds no extractable text, as
	// with scanned PDFs.
	ErrNoText = errors.New("document has no extractable text")
)

// StageError tells which step of an analysis failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage of err, or "" when err is not a StageError.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Extractor turns a stored résumé file into text.
type Extractor interface {
	ExtractFile(ctx context.Context, path, mimeType string) (string, error)
}

// Masker masks extracted text.
type Masker interface {
	Run(text string, mctx masking.Context) (string, *masking.Report, error)
}

// Document points at an uploaded or local résumé file.
type Document struct {
	Path     string
	MIMEType string
}

// Request is one analysis.
type Request struct {
	Document       Document
	JobDescription string
	KnownName      string
}

// Prepared is a masked résumé ready to be reviewed.
type Prepared struct {
	Masked string
	Report *masking.Report
}

// Result is a completed analysis.
type Result struct {
	Prepared
	Feedback *review.Feedback
}

// Analyzer chains extraction, masking and review. Only masked text ever
// reaches the reviewer.
type Analyzer struct {
	extractor Extractor
	masker    Masker
	reviewer  review.Reviewer
	logger    *zap.Logger
}

// New returns an Analyzer. reviewer may be nil when only Prepare is used.
func New(extractor Extractor, masker Masker, reviewer review.Reviewer, log *zap.Logger) *Analyzer {
	return &Analyzer{
		extractor: extractor,
		masker:    masker,
		reviewer:  reviewer,
		logger:    logger.WithFields(log, zap.String("component", "analysis")),
	}
}

// HasReviewer reports whether Analyze can reach a model.
func (a *Analyzer) HasReviewer() bool {
	return a.reviewer != nil
}

// Prepare extracts and masks the document.
func (a *Analyzer) Prepare(ctx context.Context, doc Document, knownName string) (*Prepared, error) {
	started := time.Now()

	text, err := a.extractor.ExtractFile(ctx, doc.Path, doc.MIMEType)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &StageError{Stage: StageExtract, Err: ErrNoText}
	}

	masked, report, err := a.masker.Run(text, masking.NewContext(knownName))
	if err != nil {
		return nil, &StageError{Stage: StageMask, Err: err}
	}

	a.logger.Info("resume processed and masked",
		append([]zap.Field{
			zap.Duration("took", time.Since(started)),
			zap.Int("text_runes", report.OutputLength),
			zap.Bool("known_name", knownName != ""),
		}, logger.CountFields("masked_", countByName(report.Tokens()))...)...,
	)

	return &Prepared{Masked: masked, Report: report}, nil
}

// Analyze prepares the document and sends the masked text for review.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	if a.reviewer == nil {
		return nil, &StageError{Stage: StageReview, Err: ErrReviewerNotConfigured}
	}

	prepared, err := a.Prepare(ctx, req.Document, req.KnownName)
	if err != nil {
		return nil, err
	}

	return a.Review(ctx, prepared, req.JobDescription)
}

// Review sends an already prepared résumé to the reviewer.
func (a *Analyzer) Review(ctx context.Context, prepared *Prepared, jobDescription string) (*Result, error) {
	if a.reviewer == nil {
		return nil, &StageError{Stage: StageReview, Err: ErrReviewerNotConfigured}
	}

	fb, err := a.reviewer.Review(ctx, review.Request{Resume: prepared.Masked, JobDescription: jobDescription})
	if err != nil {
		return nil, &StageError{Stage: StageReview, Err: err}
	}

	return &Result{Prepared: *prepared, Feedback: fb}, nil
}

func countByName(tokens map[masking.Token]int) map[string]int {
	out := make(map[string]int, len(tokens))
	for token, n := range tokens {
		out[string(token)] = n
	}
	return out
}
