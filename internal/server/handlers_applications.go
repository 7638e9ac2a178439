package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/spigell/resume-guard/internal/applications"
)

func (s *Server) createApplication(c *gin.Context) {
	var in applications.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(msgInvalidRequestBody, err))
		return
	}

	app, err := s.apps.Create(c.Request.Context(), in)
	if err != nil {
		storeError(c, requestLogger(c, s.logger), err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

func (s *Server) listApplications(c *gin.Context) {
	filter := applications.Filter{
		UserID: c.Query("user_id"),
		Status: c.Query("status"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, errorBody("limit must be a non-negative integer.", nil))
			return
		}
		filter.Limit = limit
	}

	apps, err := s.apps.List(c.Request.Context(), filter)
	if err != nil {
		storeError(c, requestLogger(c, s.logger), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

func (s *Server) getApplication(c *gin.Context) {
	id, ok := applicationID(c)
	if !ok {
		return
	}

	app, err := s.apps.Get(c.Request.Context(), id)
	if err != nil {
		storeError(c, requestLogger(c, s.logger), err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (s *Server) updateApplication(c *gin.Context) {
	id, ok := applicationID(c)
	if !ok {
		return
	}

	var patch applications.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(msgInvalidRequestBody, err))
		return
	}

	app, err := s.apps.Update(c.Request.Context(), id, patch)
	if err != nil {
		storeError(c, requestLogger(c, s.logger), err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (s *Server) deleteApplication(c *gin.Context) {
	id, ok := applicationID(c)
	if !ok {
		return
	}

	if err := s.apps.Delete(c.Request.Context(), id); err != nil {
		storeError(c, requestLogger(c, s.logger), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func applicationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorBody("Invalid application id.", nil))
		return 0, false
	}
	return id, true
}
