package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-guard/internal/analysis"
	"github.com/spigell/resume-guard/internal/applications"
	"github.com/spigell/resume-guard/internal/extract"
	"github.com/spigell/resume-guard/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resume analysis and application tracker HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :5000)")
	serveCmd.Flags().String("upload-dir", "", "directory for in-flight resume uploads (default uploads)")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.upload-dir", serveCmd.Flags().Lookup("upload-dir"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := setup()
	defer logger.Sync()

	logger.Info("starting the resume-guard server", zap.String("version", version))

	if config.Server == nil {
		logger.Fatal("server configuration is required")
	}

	pipeline, err := newPipeline(config.Masking, logger)
	if err != nil {
		logger.Fatal("building the masking pipeline", zap.Error(err))
	}

	// The server still masks and tracks applications without a reviewer;
	// analysis requests then answer 503.
	reviewer, err := newReviewer(ctx, config.Review, logger)
	if err != nil {
		logger.Warn("resume review is disabled", zap.Error(err))
	}

	analyzer := analysis.New(extract.New(logger), pipeline, reviewer, logger)

	var store server.ApplicationStore
	if config.Applications != nil && config.Applications.Enabled {
		apps, err := applications.Open(ctx, config.Applications.Path, logger)
		if err != nil {
			logger.Fatal("opening the applications store", zap.Error(err))
		}
		defer apps.Close()
		store = apps
	}

	srv := server.New(analyzer, pipeline, store, server.Options{
		UploadDir:      config.Server.UploadDir,
		MaxUploadBytes: config.Server.MaxUploadBytes,
		ReviewTimeout:  config.Server.ReviewTimeout,
		AllowedOrigins: config.Server.AllowedOrigins,
		Debug:          viper.GetBool("debug"),
		Logger:         logger,
	})

	if err := srv.Run(ctx, config.Server.Addr); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}

	logger.Info("stopped")
}
