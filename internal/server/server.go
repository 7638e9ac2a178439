package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/resume-guard/internal/analysis"
	"github.com/spigell/resume-guard/internal/applications"
	"github.com/spigell/resume-guard/internal/logger"
	"github.com/spigell/resume-guard/internal/masking"
)

const (
	defaultReviewTimeout   = 30 * time.Second
	defaultMaxUploadBytes  = 5 << 20
	defaultMaxMaskBytes    = 1 << 20
	defaultShutdownTimeout = 5 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// Options configures the HTTP server.
type Options struct {
	// UploadDir holds résumé uploads for the duration of one request.
	UploadDir      string
	MaxUploadBytes int64
	MaxMaskBytes   int64
	ReviewTimeout  time.Duration
	// AllowedOrigins enables CORS for the listed origins; "*" allows any.
	AllowedOrigins []string
	Debug          bool
	Logger         *zap.Logger
}

// ApplicationStore persists job applications.
type ApplicationStore interface {
	Create(ctx context.Context, in applications.Input) (*applications.Application, error)
	Get(ctx context.Context, id int64) (*applications.Application, error)
	List(ctx context.Context, f applications.Filter) ([]applications.Application, error)
	Update(ctx context.Context, id int64, p applications.Patch) (*applications.Application, error)
	Delete(ctx context.Context, id int64) error
}

// Server is the résumé analysis HTTP API.
type Server struct {
	analyzer *analysis.Analyzer
	pipeline *masking.Pipeline
	apps     ApplicationStore
	opts     Options
	logger   *zap.Logger
	engine   *gin.Engine
}

// New wires the routes. apps may be nil, in which case the application
// tracker routes are not registered.
func New(analyzer *analysis.Analyzer, pipeline *masking.Pipeline, apps ApplicationStore, opts Options) *Server {
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.MaxMaskBytes <= 0 {
		opts.MaxMaskBytes = defaultMaxMaskBytes
	}
	if opts.ReviewTimeout <= 0 {
		opts.ReviewTimeout = defaultReviewTimeout
	}

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		analyzer: analyzer,
		pipeline: pipeline,
		apps:     apps,
		opts:     opts,
		logger:   logger.WithFields(opts.Logger, zap.String("component", "server")),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = s.opts.MaxUploadBytes
	r.Use(requestID(), accessLog(s.logger), recovery(s.logger), securityHeaders(), cors(s.opts.AllowedOrigins))

	r.GET("/healthz", s.health)

	api := r.Group("/api")
	{
		a := api.Group("/analysis")
		a.POST("/jd", s.analyzeResume)
		a.POST("/mask", s.maskText)
		a.GET("/stages", s.stages)
	}

	if s.apps != nil {
		apps := api.Group("/applications")
		apps.POST("", s.createApplication)
		apps.GET("", s.listApplications)
		apps.GET("/:id", s.getApplication)
		apps.PATCH("/:id", s.updateApplication)
		apps.DELETE("/:id", s.deleteApplication)
	}

	return r
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if err := os.MkdirAll(s.opts.UploadDir, 0o750); err != nil {
		return fmt.Errorf("create upload dir %s: %w", s.opts.UploadDir, err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"reviewer": s.analyzer != nil && s.analyzer.HasReviewer(),
	})
}
