// Package server exposes the local voxnote HTTP API: a read/delete view
// over the note collection plus pipeline status. No business logic lives
// here.
package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/calegray/voxnote/internal/config"
	"github.com/calegray/voxnote/internal/notes"
	"github.com/calegray/voxnote/internal/pipeline"
)

// StatusSource reports pipeline state for the status endpoint. A nil source
// reads as idle.
type StatusSource interface {
	Snapshot() pipeline.RunStatus
}

// Server represents the HTTP server.
type Server struct {
	config *config.Config
	logger *slog.Logger
	router *gin.Engine
	repo   *notes.Repository
	status StatusSource
}

// New creates a Server around an open repository. status may be nil when no
// pipeline runs in this process.
func New(cfg *config.Config, logger *slog.Logger, repo *notes.Repository, status StatusSource) *Server {
	// Set Gin mode based on environment
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	server := &Server{
		config: cfg,
		logger: logger,
		router: router,
		repo:   repo,
		status: status,
	}

	setupSecurityMiddleware(router, cfg, logger)
	server.setupRoutes()

	return server
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run starts the HTTP server.
func Run(s *Server) error {
	s.logger.Info("server listening", "port", s.config.Port)
	return s.router.Run(":" + s.config.Port)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api/v1")
	{
		api.GET("/notes", s.handleListNotes)
		api.GET("/notes/:id", s.handleGetNote)
		api.DELETE("/notes/:id", s.handleDeleteNote)
		api.GET("/status", s.handleStatus)
	}
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "voxnote",
	})
}

// handleListNotes serves one newest-first page of the collection.
func (s *Server) handleListNotes(c *gin.Context) {
	page := 0
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a non-negative integer"})
			return
		}
		page = parsed
	}

	notesPage, err := s.repo.LoadPage(c.Request.Context(), page)
	if err != nil {
		s.logger.Error("failed to load notes page", "page", page, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notes": notesPage,
		"page":  page,
		"total": s.repo.Len(),
	})
}

func (s *Server) handleGetNote(c *gin.Context) {
	n, ok := s.repo.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
		return
	}
	c.JSON(http.StatusOK, n)
}

// handleDeleteNote removes a note and its audio artifact. Unknown ids
// succeed; the endpoint is idempotent.
func (s *Server) handleDeleteNote(c *gin.Context) {
	id := c.Param("id")
	if err := s.repo.Delete(c.Request.Context(), id); err != nil {
		s.logger.Error("failed to delete note", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete note"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStatus(c *gin.Context) {
	state := pipeline.StateIdle
	lastError := ""
	if s.status != nil {
		snap := s.status.Snapshot()
		state = snap.State
		if snap.Err != nil {
			lastError = snap.Err.Error()
		}
	}

	resp := gin.H{
		"state": state,
		"notes": s.repo.Len(),
	}
	if lastError != "" {
		resp["lastError"] = lastError
	}
	c.JSON(http.StatusOK, resp)
}
