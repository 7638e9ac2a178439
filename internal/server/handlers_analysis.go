package server

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/resume-guard/internal/analysis"
	"github.com/spigell/resume-guard/internal/masking"
	"github.com/spigell/resume-guard/internal/review"
)

type analysisResponse struct {
	Feedback string   `json:"feedback"`
	ATSScore *int     `json:"ats_score,omitempty"`
	Bullets  []string `json:"bullets,omitempty"`
}

type maskRequest struct {
	Text      string `json:"text"`
	KnownName string `json:"known_name"`
}

type maskResponse struct {
	Masked string         `json:"masked"`
	Tokens map[string]int `json:"tokens"`
}

// analyzeResume handles POST /api/analysis/jd. The upload is stored only
// until its text has been extracted and masked.
func (s *Server) analyzeResume(c *gin.Context) {
	log := requestLogger(c, s.logger)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes+(1<<20))

	fh, err := c.FormFile("resume")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorBody(msgFileTooLarge, nil))
			return
		}
		c.JSON(http.StatusBadRequest, errorBody(msgNoFile, nil))
		return
	}
	if fh.Size > s.opts.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody(msgFileTooLarge, nil))
		return
	}
	if s.analyzer == nil || !s.analyzer.HasReviewer() {
		c.JSON(http.StatusServiceUnavailable, errorBody(msgReviewerMissing, nil))
		return
	}

	log.Info("resume analysis request received", zap.Int64("size", fh.Size))

	prepared, err := s.prepareUpload(c, fh)
	if err != nil {
		s.writeAnalysisError(c, log, err)
		return
	}

	jobDescription := strings.TrimSpace(c.PostForm("jobDescription"))
	if jobDescription == "" {
		jobDescription = review.DefaultJobDescription
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.ReviewTimeout)
	defer cancel()

	result, err := s.analyzer.Review(ctx, prepared, jobDescription)
	if err != nil {
		s.writeAnalysisError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, feedbackResponse(result.Feedback))
}

// prepareUpload stores the upload, extracts and masks it, and removes the
// file before returning.
func (s *Server) prepareUpload(c *gin.Context, fh *multipart.FileHeader) (*analysis.Prepared, error) {
	path, err := s.saveUpload(c, fh)
	if err != nil {
		return nil, &analysis.StageError{Stage: analysis.StageExtract, Err: err}
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("removing upload", zap.String("path", path), zap.Error(err))
		}
	}()

	return s.analyzer.Prepare(c.Request.Context(), analysis.Document{
		Path:     path,
		MIMEType: fh.Header.Get("Content-Type"),
	}, c.PostForm("knownName"))
}

// saveUpload writes the upload under a random name, keeping only the
// original extension for format detection.
func (s *Server) saveUpload(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(s.opts.UploadDir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.CreateTemp(s.opts.UploadDir, "resume-*"+strings.ToLower(filepath.Ext(fh.Filename)))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	path := f.Name()
	_ = f.Close()

	if err := c.SaveUploadedFile(fh, path); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

func (s *Server) writeAnalysisError(c *gin.Context, log *zap.Logger, err error) {
	status, message := analysisError(err)
	_ = c.Error(err)

	if status >= http.StatusInternalServerError {
		log.Error("resume analysis failed", zap.String("stage", analysis.StageOf(err)), zap.Error(err))
	} else {
		log.Info("resume analysis rejected", zap.String("stage", analysis.StageOf(err)), zap.Error(err))
	}

	c.JSON(status, errorBody(message, err))
}

func feedbackResponse(fb *review.Feedback) analysisResponse {
	resp := analysisResponse{Feedback: review.NoFeedback}
	if fb == nil {
		return resp
	}
	if fb.Raw != "" {
		resp.Feedback = fb.Raw
	}
	if fb.Scored {
		score := fb.ATSScore
		resp.ATSScore = &score
	}
	resp.Bullets = fb.Bullets
	return resp
}

// maskText handles POST /api/analysis/mask.
func (s *Server) maskText(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxMaskBytes)

	var req maskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(msgInvalidRequestBody, err))
		return
	}

	masked, report, err := s.pipeline.Run(req.Text, masking.NewContext(req.KnownName))
	if err != nil {
		status, message := analysisError(&analysis.StageError{Stage: analysis.StageMask, Err: err})
		if status == http.StatusUnprocessableEntity {
			c.JSON(status, errorBody(message, err))
			return
		}
		requestLogger(c, s.logger).Error("masking failed", zap.Error(err))
		c.JSON(status, errorBody(message, nil))
		return
	}

	tokens := make(map[string]int)
	for token, n := range report.Tokens() {
		tokens[string(token)] = n
	}

	c.JSON(http.StatusOK, maskResponse{Masked: masked, Tokens: tokens})
}

// stages handles GET /api/analysis/stages.
func (s *Server) stages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stages": s.pipeline.Describe()})
}
