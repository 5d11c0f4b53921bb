package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hostpilot/internal/models"
)

const maxMCPBody = 1 << 20

type MCPHandler interface {
	HandleMessage(ctx context.Context, body []byte) []byte
}

type Monitor interface {
	Snapshot(ctx context.Context) models.MetricsSnapshot
	LastSnapshot() (models.MetricsSnapshot, bool)
	Running() bool
	Alerts() []models.AlertEvent
	ClearAlerts()
}

type Store interface {
	Recent(ctx context.Context, limit int) ([]models.RemoteOperation, error)
	RecentForTarget(ctx context.Context, target string, limit int) ([]models.RemoteOperation, error)
	ListTargets(ctx context.Context) ([]models.RemoteTarget, error)
}

// Pinger reports whether the backing database is usable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	mcp     MCPHandler
	monitor Monitor
	store   Store
	db      Pinger
	log     *slog.Logger
}

func NewServer(mcp MCPHandler, monitor Monitor, store Store, db Pinger, logger *slog.Logger) *Server {
	return &Server{mcp: mcp, monitor: monitor, store: store, db: db, log: logger}
}

func (s *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logMiddleware(s.log))

	r.POST("/mcp", s.handleMCP)
	r.GET("/healthz", s.handleHealthz)
	r.GET("/readyz", s.handleReadyz)

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/alerts", s.handleAlerts)
	api.DELETE("/alerts", s.handleClearAlerts)
	api.GET("/operations", s.handleOperations)
	api.GET("/targets", s.handleTargets)
	return r
}

func (s *Server) handleMCP(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMCPBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body"})
		return
	}
	resp := s.mcp.HandleMessage(c.Request.Context(), body)
	if resp == nil {
		c.Status(http.StatusAccepted)
		return
	}
	c.Data(http.StatusOK, "application/json", resp)
}

// handleStatus serves the last tick's snapshot when monitoring is running
// and samples on demand otherwise.
func (s *Server) handleStatus(c *gin.Context) {
	snap, ok := s.monitor.LastSnapshot()
	if !ok || !s.monitor.Running() {
		snap = s.monitor.Snapshot(c.Request.Context())
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshot":    snap,
		"monitoring":  s.monitor.Running(),
		"alert_count": len(s.monitor.Alerts()),
	})
}

func (s *Server) handleAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": s.monitor.Alerts()})
}

func (s *Server) handleClearAlerts(c *gin.Context) {
	s.monitor.ClearAlerts()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleOperations(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	var (
		ops []models.RemoteOperation
		err error
	)
	if target := c.Query("target"); target != "" {
		ops, err = s.store.RecentForTarget(c.Request.Context(), target, limit)
	} else {
		ops, err = s.store.Recent(c.Request.Context(), limit)
	}
	if err != nil {
		s.log.Error("read operations failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read operations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"operations": ops})
}

func (s *Server) handleTargets(c *gin.Context) {
	targets, err := s.store.ListTargets(c.Request.Context())
	if err != nil {
		s.log.Error("list targets failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list targets"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"targets": targets})
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleReadyz(c *gin.Context) {
	if err := s.db.PingContext(c.Request.Context()); err != nil {
		c.String(http.StatusServiceUnavailable, "db not ready")
		return
	}
	c.String(http.StatusOK, "ready")
}
