package masking

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/resume-guard/internal/logger"
)

const (
	StagePatterns = "patterns"
	StageEntities = "entities"
	StageNames    = "names"
)

// Context carries per-request masking configuration.
type Context struct {
	Name NameHint
}

// NewContext builds a Context from an optional known candidate name.
func NewContext(knownName string) Context {
	return Context{Name: HintFor(knownName)}
}

// Stage is a single pure text transformation of the pipeline.
type Stage interface {
	Name() string
	Description() string
	Apply(text string, mctx Context) (string, error)
}

// Step describes what a stage did during one run. Only token counts are
// recorded, never the masked values.
type Step struct {
	Stage   string
	Added   map[Token]int
	Skipped bool
	Reason  string
}

// Report summarises a pipeline run.
type Report struct {
	InputLength  int
	OutputLength int
	Steps        []Step
}

// Tokens sums the tokens added by every step.
func (r *Report) Tokens() map[Token]int {
	total := make(map[Token]int)
	if r == nil {
		return total
	}
	for _, step := range r.Steps {
		for token, n := range step.Added {
			total[token] += n
		}
	}
	return total
}

// StageInfo describes a configured stage.
type StageInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Options configures a Pipeline.
type Options struct {
	// Recognizer feeds both the entity stage and the person pass of the name
	// stage. Nil disables entity masking.
	Recognizer Recognizer
	// DegradeOnEntityError continues with pattern and name masking when the
	// recognizer fails instead of returning the error.
	DegradeOnEntityError bool
	Logger               *zap.Logger
}

// Pipeline runs patterns, entities and names in that fixed order. It holds no
// mutable state and may be shared between goroutines.
type Pipeline struct {
	stages  []Stage
	degrade bool
	logger  *zap.Logger
}

// New builds the fixed three-stage pipeline.
func New(opts Options) *Pipeline {
	return &Pipeline{
		stages: []Stage{
			&patternStage{masker: NewPatternMasker()},
			&entityStage{masker: NewEntityMasker(opts.Recognizer)},
			&nameStage{resolver: NewNameResolver(opts.Recognizer)},
		},
		degrade: opts.DegradeOnEntityError,
		logger:  logger.WithFields(opts.Logger, zap.String("component", "masking")),
	}
}

// Sanitize returns the masked text.
func (p *Pipeline) Sanitize(text string, mctx Context) (string, error) {
	masked, _, err := p.Run(text, mctx)
	return masked, err
}

// Run masks text and reports what every stage added.
func (p *Pipeline) Run(text string, mctx Context) (string, *Report, error) {
	if err := Validate(text); err != nil {
		return "", nil, err
	}
	if mctx.Name == nil {
		mctx.Name = NoHint{}
	}

	report := &Report{InputLength: utf8.RuneCountInString(text)}
	current := text

	for _, stage := range p.stages {
		next, err := stage.Apply(current, mctx)
		if err != nil {
			if stage.Name() == StageEntities && p.degrade {
				p.logger.Warn("entity masking failed, continuing without it",
					zap.String("stage", stage.Name()),
					zap.Error(err),
				)
				report.Steps = append(report.Steps, Step{Stage: stage.Name(), Skipped: true, Reason: err.Error()})
				continue
			}
			return "", nil, fmt.Errorf("%s: %w", stage.Name(), err)
		}

		step := Step{Stage: stage.Name(), Added: addedTokens(current, next)}
		report.Steps = append(report.Steps, step)

		p.logger.Debug("masking step",
			zap.String("stage", stage.Name()),
			zap.Any("tokens", tokenFields(step.Added)),
		)

		current = next
	}

	report.OutputLength = utf8.RuneCountInString(current)
	return current, report, nil
}

// Describe lists the stages in execution order.
func (p *Pipeline) Describe() []StageInfo {
	infos := make([]StageInfo, 0, len(p.stages))
	for _, stage := range p.stages {
		infos = append(infos, StageInfo{Name: stage.Name(), Description: stage.Description()})
	}
	return infos
}

// Validate rejects input that is not text.
func Validate(text string) error {
	if !utf8.ValidString(text) {
		return &InvalidInputError{Reason: "text is not valid UTF-8"}
	}
	if strings.IndexByte(text, 0) >= 0 {
		return &InvalidInputError{Reason: "text contains NUL bytes"}
	}
	return nil
}

func addedTokens(before, after string) map[Token]int {
	was := CountTokens(before)
	added := make(map[Token]int)
	for token, n := range CountTokens(after) {
		if diff := n - was[token]; diff > 0 {
			added[token] = diff
		}
	}
	return added
}

func tokenFields(tokens map[Token]int) map[string]int {
	out := make(map[string]int, len(tokens))
	for token, n := range tokens {
		out[string(token)] = n
	}
	return out
}

type patternStage struct {
	masker *PatternMasker
}

func (s *patternStage) Name() string { return StagePatterns }

func (s *patternStage) Description() string {
	names := make([]string, 0, len(s.masker.patterns))
	for _, p := range s.masker.patterns {
		names = append(names, p.Name)
	}
	return "regex masking of " + strings.Join(names, ", ")
}

func (s *patternStage) Apply(text string, _ Context) (string, error) {
	return s.masker.MaskPatterns(text), nil
}

type entityStage struct {
	masker *EntityMasker
}

func (s *entityStage) Name() string { return StageEntities }

func (s *entityStage) Description() string {
	if s.masker.recognizer == nil {
		return "named entity masking (disabled, no recognizer)"
	}
	return "named entity masking of people, places, organizations and dates"
}

func (s *entityStage) Apply(text string, _ Context) (string, error) {
	return s.masker.MaskEntities(text)
}

type nameStage struct {
	resolver *NameResolver
}

func (s *nameStage) Name() string { return StageNames }

func (s *nameStage) Description() string {
	return "candidate name masking by known name or first-line heuristic"
}

func (s *nameStage) Apply(text string, mctx Context) (string, error) {
	return s.resolver.MaskName(text, mctx.Name), nil
}
