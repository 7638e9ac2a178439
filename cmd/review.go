package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-guard/internal/analysis"
	"github.com/spigell/resume-guard/internal/extract"
	"github.com/spigell/resume-guard/internal/review"
	"github.com/spigell/resume-guard/internal/utils"
)

const (
	PromptYes         = "Yes, send the masked resume"
	PromptNo          = "No"
	PromptShowMasked  = "Show the masked resume"
	defaultPreviewLen = 400
)

var reviewCmd = &cobra.Command{
	Use:   "review <resume>",
	Short: "Mask a resume and send it with a job description for AI review",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runReview(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().String("job-description", "", "job description text")
	reviewCmd.Flags().String("job-file", "", "file with the job description")
	reviewCmd.Flags().StringP("known-name", "n", "", "candidate name to mask wherever it appears")
	reviewCmd.Flags().String("provider", "", "review provider: openrouter or gemini (overrides review.provider)")
	reviewCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation before sending the masked resume")
	reviewCmd.MarkFlagsMutuallyExclusive("job-description", "job-file")
}

func runReview(cmd *cobra.Command, path string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, config := setup()
	defer logger.Sync()

	jobDescription, err := jobDescriptionFrom(flagString(cmd, "job-description"), flagString(cmd, "job-file"))
	if err != nil {
		logger.Fatal("reading the job description", zap.Error(err))
	}

	reviewCfg := ReviewConfig{}
	if config.Review != nil {
		reviewCfg = *config.Review
	}
	if p := flagString(cmd, "provider"); p != "" {
		reviewCfg.Provider = p
	}

	pipeline, err := newPipeline(config.Masking, logger)
	if err != nil {
		logger.Fatal("building the masking pipeline", zap.Error(err))
	}

	reviewer, err := newReviewer(ctx, &reviewCfg, logger)
	if err != nil {
		logger.Fatal("building the reviewer", zap.Error(err))
	}

	analyzer := analysis.New(extract.New(logger), pipeline, reviewer, logger)

	prepared, err := analyzer.Prepare(ctx, analysis.Document{Path: path}, flagString(cmd, "known-name"))
	if err != nil {
		logger.Fatal("preparing the resume", zap.String("stage", analysis.StageOf(err)), zap.Error(err))
	}

	logger.Info("masked resume ready",
		zap.String("preview", utils.TruncateForLog(prepared.Masked, defaultPreviewLen)),
		zap.String("tokens", summary(tokenNames(prepared.Report.Tokens()))),
	)

	autoApprove, _ := cmd.Flags().GetBool("yes")
	if !autoApprove {
		ok, err := confirmSend(cmd.OutOrStdout(), prepared.Masked)
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if !ok {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	timeout := 30 * time.Second
	if config.Server != nil && config.Server.ReviewTimeout > 0 {
		timeout = config.Server.ReviewTimeout
	}
	reviewCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := analyzer.Review(reviewCtx, prepared, jobDescription)
	if err != nil {
		logger.Fatal("reviewing the resume", zap.Error(err))
	}

	printFeedback(cmd.OutOrStdout(), result.Feedback)
}

// confirmSend asks before anything leaves the machine. The masked text can
// be inspected first.
func confirmSend(out io.Writer, masked string) (bool, error) {
	prompt := promptui.Select{
		Label: "Send the masked resume for review?",
		Items: []string{PromptYes, PromptNo, PromptShowMasked},
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			return false, err
		}

		switch action {
		case PromptYes:
			return true, nil
		case PromptNo:
			return false, nil
		case PromptShowMasked:
			fmt.Fprintf(out, "%s\n\n", masked)
		default:
			return false, fmt.Errorf("invalid action: %s", action)
		}
	}
}

func jobDescriptionFrom(text, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return review.DefaultJobDescription, nil
	}
	return text, nil
}

func printFeedback(w io.Writer, fb *review.Feedback) {
	if fb == nil {
		fmt.Fprintln(w, review.NoFeedback)
		return
	}
	if fb.Scored && !strings.Contains(strings.ToLower(fb.Raw), "ats score") {
		fmt.Fprintf(w, "ATS Score: %d/100\n", fb.ATSScore)
	}
	fmt.Fprintln(w, fb.Raw)
}
