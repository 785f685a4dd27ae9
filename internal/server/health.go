package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weftlabs/weft/pkg/api"
)

const serviceName = "weft"

// handleHealth reports service health including registry connectivity. A
// broken registry degrades the service rather than failing it; sessions
// can still be read and exported
func (s *Server) handleHealth(c *gin.Context) {
	res := api.HealthResponse{
		Service:  serviceName,
		Status:   "healthy",
		Registry: "connected",
	}

	status := http.StatusOK
	if err := s.registry.HealthCheck(c.Request.Context()); err != nil {
		res.Status = "degraded"
		res.Registry = err.Error()
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, res)
}
