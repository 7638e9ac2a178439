package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/spigell/resume-guard/internal/analysis"
	"github.com/spigell/resume-guard/internal/extract"
	"github.com/spigell/resume-guard/internal/masking"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"

	stdinName = "-"
)

type maskOptions struct {
	KnownName   string
	Format      string
	Concurrency int
}

type maskResult struct {
	File   string         `json:"file" yaml:"file"`
	Masked string         `json:"masked" yaml:"masked"`
	Tokens map[string]int `json:"tokens" yaml:"tokens"`
	Steps  []stepResult   `json:"steps" yaml:"steps"`
}

type stepResult struct {
	Stage   string         `json:"stage" yaml:"stage"`
	Added   map[string]int `json:"added,omitempty" yaml:"added,omitempty"`
	Skipped bool           `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Reason  string         `json:"reason,omitempty" yaml:"reason,omitempty"`
}

var maskCmd = &cobra.Command{
	Use:   "mask [files...]",
	Short: "Mask personal data in resume files (PDF, DOCX, HTML, TXT) or stdin",
	Run: func(cmd *cobra.Command, args []string) {
		logger, config := setup()
		defer logger.Sync()

		opts := maskOptions{
			KnownName:   flagString(cmd, "known-name"),
			Format:      flagString(cmd, "format"),
			Concurrency: flagInt(cmd, "concurrency"),
		}

		maskingCfg := config.Masking
		if r := flagString(cmd, "recognizer"); r != "" {
			cfg := MaskingConfig{}
			if maskingCfg != nil {
				cfg = *maskingCfg
			}
			cfg.Recognizer = r
			maskingCfg = &cfg
		}

		pipeline, err := newPipeline(maskingCfg, logger)
		if err != nil {
			logger.Fatal("building the masking pipeline", zap.Error(err))
		}

		results, err := maskInputs(cmd.Context(), extract.New(logger), pipeline, args, cmd.InOrStdin(), opts)
		if err != nil {
			logger.Fatal("masking", zap.Error(err))
		}

		if err := writeMaskResults(cmd.OutOrStdout(), results, opts.Format); err != nil {
			logger.Fatal("writing results", zap.Error(err))
		}

		logger.Debug("masked", zap.Int("inputs", len(results)))
	},
}

func init() {
	rootCmd.AddCommand(maskCmd)

	maskCmd.Flags().StringP("known-name", "n", "", "candidate name to mask wherever it appears")
	maskCmd.Flags().StringP("format", "o", FormatText, "output format: text, json or yaml")
	maskCmd.Flags().IntP("concurrency", "c", runtime.NumCPU(), "files masked in parallel")
	maskCmd.Flags().String("recognizer", "", "entity recognizer: lexicon, prose, both or none (overrides masking.recognizer)")
}

// maskInputs masks every path concurrently and returns results in argument
// order. No paths, or "-", reads plain text from stdin.
func maskInputs(ctx context.Context, ex analysis.Extractor, p *masking.Pipeline, paths []string, stdin io.Reader, opts maskOptions) ([]maskResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(paths) == 0 {
		paths = []string{stdinName}
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}

	var stdinText string
	for _, path := range paths {
		if path == stdinName {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("read stdin: %w", err)
			}
			stdinText = string(data)
			break
		}
	}

	mctx := masking.NewContext(opts.KnownName)
	results := make([]maskResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, path := range paths {
		g.Go(func() error {
			text := stdinText
			if path != stdinName {
				var err error
				if text, err = ex.ExtractFile(gctx, path, ""); err != nil {
					return err
				}
			}

			masked, report, err := p.Run(text, mctx)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			results[i] = newMaskResult(path, masked, report)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func newMaskResult(path, masked string, report *masking.Report) maskResult {
	res := maskResult{
		File:   path,
		Masked: masked,
		Tokens: tokenNames(report.Tokens()),
		Steps:  make([]stepResult, 0, len(report.Steps)),
	}
	for _, step := range report.Steps {
		res.Steps = append(res.Steps, stepResult{
			Stage:   step.Stage,
			Added:   tokenNames(step.Added),
			Skipped: step.Skipped,
			Reason:  step.Reason,
		})
	}
	return res
}

func tokenNames(tokens map[masking.Token]int) map[string]int {
	out := make(map[string]int, len(tokens))
	for token, n := range tokens {
		out[string(token)] = n
	}
	return out
}

func writeMaskResults(w io.Writer, results []maskResult, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return writeText(w, results)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeText(w io.Writer, results []maskResult) error {
	if len(results) == 1 {
		_, err := fmt.Fprintln(w, results[0].Masked)
		return err
	}

	for i, res := range results {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "==> %s <==\n%s\n%s\n", res.File, res.Masked, summary(res.Tokens)); err != nil {
			return err
		}
	}
	return nil
}

// summary renders token counts as "[EMAIL]=1 [PHONE]=2" in token order.
func summary(tokens map[string]int) string {
	order := make(map[string]int, len(masking.Tokens))
	for i, t := range masking.Tokens {
		order[string(t)] = i
	}

	keys := make([]string, 0, len(tokens))
	for k := range tokens {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return order[keys[i]] < order[keys[j]] })

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, tokens[k]))
	}
	if len(parts) == 0 {
		return "# nothing masked"
	}
	return "# " + strings.Join(parts, " ")
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return strings.TrimSpace(v)
}

func flagInt(cmd *cobra.Command, name string) int {
	v, _ := cmd.Flags().GetInt(name)
	return v
}
