package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weftlabs/weft/internal/builder"
	"github.com/weftlabs/weft/pkg/api"
)

func (s *Server) createSession(c *gin.Context) {
	var req api.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	status, err := s.orchestrator.Initialize(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, status)
}

func (s *Server) listSessions(c *gin.Context) {
	ctx := c.Request.Context()
	ids, err := s.orchestrator.List(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	sessions := make([]*api.SessionStatus, 0, len(ids))
	for _, id := range ids {
		status, err := s.orchestrator.Status(ctx, id)
		if err != nil {
			continue
		}
		sessions = append(sessions, status)
	}
	c.JSON(http.StatusOK, api.SessionListResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}

func (s *Server) getSession(c *gin.Context) {
	st, err := s.orchestrator.State(
		c.Request.Context(), sessionID(c),
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) advanceSession(c *gin.Context) {
	status, err := s.orchestrator.Advance(
		c.Request.Context(), sessionID(c),
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) submitClarification(c *gin.Context) {
	var req api.ClarificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	status, err := s.orchestrator.SubmitClarification(
		c.Request.Context(), sessionID(c), &req,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) exportWorkflow(c *gin.Context) {
	res, err := s.orchestrator.ExportWorkflow(
		c.Request.Context(), sessionID(c),
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func sessionID(c *gin.Context) api.SessionID {
	return api.SessionID(c.Param("sessionID"))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, api.ErrorResponse{
		Error:  err.Error(),
		Status: http.StatusBadRequest,
	})
}

// writeError maps pipeline error kinds to HTTP statuses. External-service
// failures surface as 502 with the retryable flag set so pollers know a
// repeat advance may succeed
func writeError(c *gin.Context, err error) {
	typed := builder.AsError(err)

	status := http.StatusInternalServerError
	switch typed.Kind {
	case builder.ErrKindValidation:
		status = http.StatusBadRequest
	case builder.ErrKindNotFound:
		status = http.StatusNotFound
	case builder.ErrKindConflict:
		status = http.StatusConflict
	case builder.ErrKindExternal:
		status = http.StatusBadGateway
	}

	c.JSON(status, api.ErrorResponse{
		Error:     typed.Error(),
		Status:    status,
		Retryable: typed.Retryable(),
	})
}
