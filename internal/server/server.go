package server

import (
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/kode4food/timebox"

	"github.com/weftlabs/weft/internal/builder"
	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/internal/util"
)

// Server implements the HTTP API for the workflow builder
type Server struct {
	orchestrator *builder.Orchestrator
	registry     registry.Service
	eventHub     timebox.EventHub
	sockets      util.Set[*Client]
	mu           sync.Mutex
}

// NewServer creates a new HTTP API server
func NewServer(
	o *builder.Orchestrator, svc registry.Service, hub timebox.EventHub,
) *Server {
	return &Server{
		orchestrator: o,
		registry:     svc,
		eventHub:     hub,
		sockets:      util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", s.handleHealth)

	// Session endpoints
	sess := router.Group("/session")
	{
		sess.GET("", s.listSessions)
		sess.GET("/", s.listSessions)
		sess.POST("", s.createSession)
		sess.POST("/", s.createSession)
		sess.GET("/:sessionID", s.getSession)
		sess.POST("/:sessionID/advance", s.advanceSession)
		sess.POST("/:sessionID/clarification", s.submitClarification)
		sess.GET("/:sessionID/workflow", s.exportWorkflow)
	}

	// WebSocket
	router.GET("/ws", s.handleWebSocket)

	return router
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections.
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
