package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/resume-guard/internal/logger"
	"github.com/spigell/resume-guard/internal/utils"
)

const defaultMaxLogLength = 200

// Options configures a Service.
type Options struct {
	// Provider names the backend in logs and errors, e.g. "openrouter".
	Provider string
	// RatePerMinute caps outbound generator calls. Zero disables throttling.
	RatePerMinute int
	MaxLogLength  int
	Logger        *zap.Logger
}

// Service builds the prompt, throttles and calls the generator, and parses
// the answer.
type Service struct {
	generator Generator
	provider  string
	limiter   *rate.Limiter
	logger    *zap.Logger
	maxLogLen int
}

// NewService returns a rate-limited reviewer backed by generator.
func NewService(generator Generator, opts Options) (*Service, error) {
	if generator == nil {
		return nil, errors.New("review generator is required")
	}

	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	var limiter *rate.Limiter
	if opts.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 1)
	}

	provider := strings.TrimSpace(opts.Provider)
	if provider == "" {
		provider = "unknown"
	}

	return &Service{
		generator: generator,
		provider:  provider,
		limiter:   limiter,
		logger:    logger.WithReviewer(opts.Logger, provider, generator.Model()),
		maxLogLen: maxLogLen,
	}, nil
}

// Review sends the masked résumé and job description to the model. The
// résumé must already be masked; Review does not mask.
func (s *Service) Review(ctx context.Context, req Request) (*Feedback, error) {
	if strings.TrimSpace(req.Resume) == "" {
		return nil, ErrEmptyResume
	}

	prompt := BuildPrompt(req.Resume, req.JobDescription)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: wait for rate limit: %w", s.provider, err)
		}
	}

	s.logger.Debug("review request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	started := time.Now()
	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.provider, err)
	}

	fb := ParseFeedback(raw)

	s.logger.Info("review completed",
		zap.Duration("took", time.Since(started)),
		zap.Bool("scored", fb.Scored),
		zap.Int("ats_score", fb.ATSScore),
		zap.Int("bullets", len(fb.Bullets)),
		zap.String("response_preview", utils.TruncateForLog(fb.Raw, s.maxLogLen)),
	)

	return fb, nil
}
