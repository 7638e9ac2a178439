package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/resume-guard/internal/analysis"
	"github.com/spigell/resume-guard/internal/applications"
	"github.com/spigell/resume-guard/internal/extract"
	"github.com/spigell/resume-guard/internal/masking"
	"github.com/spigell/resume-guard/internal/review"
)

// User-facing messages of the analysis endpoint.
const (
	msgNoFile             = "No resume file uploaded."
	msgFileTooLarge       = "Resume file is too large."
	msgUnsupportedFormat  = "Unsupported file format."
	msgExtractFailed      = "Failed to extract resume text."
	msgNoText             = "No text could be extracted from the resume."
	msgMaskFailed         = "Resume text could not be masked."
	msgReviewerMissing    = "Resume reviewer is not configured."
	msgReviewTimeout      = "Resume review timed out."
	msgUnexpected         = "Unexpected server error"
	msgInvalidRequestBody = "Invalid request body."
)

func errorBody(message string, err error) gin.H {
	body := gin.H{"message": message}
	if err != nil {
		body["error"] = err.Error()
	}
	return body
}

// analysisError maps an analysis failure to a status code and message.
func analysisError(err error) (int, string) {
	switch analysis.StageOf(err) {
	case analysis.StageExtract:
		if errors.Is(err, extract.ErrUnsupportedFormat) {
			return http.StatusBadRequest, msgUnsupportedFormat
		}
		if errors.Is(err, analysis.ErrNoText) {
			return http.StatusUnprocessableEntity, msgNoText
		}
		return http.StatusInternalServerError, msgExtractFailed
	case analysis.StageMask:
		if errors.Is(err, masking.ErrInvalidInput) {
			return http.StatusUnprocessableEntity, msgMaskFailed
		}
		return http.StatusInternalServerError, msgMaskFailed
	case analysis.StageReview:
		if errors.Is(err, analysis.ErrReviewerNotConfigured) {
			return http.StatusServiceUnavailable, msgReviewerMissing
		}
		if errors.Is(err, review.ErrEmptyResume) {
			return http.StatusUnprocessableEntity, msgNoText
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, msgReviewTimeout
		}
	}
	return http.StatusInternalServerError, msgUnexpected
}

// storeError writes the response for an application store failure.
func storeError(c *gin.Context, log *zap.Logger, err error) {
	var verr *applications.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorBody(verr.Error(), nil))
	case errors.Is(err, applications.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody("Application not found.", nil))
	default:
		log.Error("application store failed", zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody(msgUnexpected, nil))
	}
}
