// Package httpapi exposes the External-Collaborator surface (C9) over
// HTTP: scan submission, status, cancellation, event streaming, tenant
// history and audit trail, plus an admin registry-reload route, built on
// gin and gin-contrib/cors. No route serves a stored ScanResult or a
// tenant's usage counters.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scancore/engine/internal/audit"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/orchestrator"
	"github.com/scancore/engine/internal/tenant"
)

// Orchestrator is the subset of *orchestrator.Orchestrator the HTTP
// layer drives.
type Orchestrator interface {
	Submit(ctx context.Context, req domain.ScanRequest) (uuid.UUID, error)
	Cancel(jobID uuid.UUID) error
	Query(jobID uuid.UUID) (domain.ScanJob, error)
	Stream(jobID uuid.UUID) (<-chan domain.ScanEvent, error)
}

// ResultStore serves a tenant's persisted compliance history.
type ResultStore interface {
	QueryHistory(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]domain.ComplianceHistoryPoint, error)
}

// RegistryReloader is the admin-facing slice of *registry.Registry: force
// the Pattern & Rule Registry (C1) to re-seed its active snapshot.
type RegistryReloader interface {
	ReloadDefaults() error
}

// Server wires the gin engine against the orchestrator and its
// supporting collaborators.
type Server struct {
	engine       *gin.Engine
	orchestrator Orchestrator
	results      ResultStore
	auditReader  audit.Reader
	registry     RegistryReloader
	logger       *zap.Logger
	corsOrigins  []string
}

func NewServer(orch Orchestrator, results ResultStore, auditReader audit.Reader, registry RegistryReloader, principals tenant.PrincipalResolver, logger *zap.Logger, corsOrigins []string) *Server {
	s := &Server{
		engine:       gin.New(),
		orchestrator: orch,
		results:      results,
		auditReader:  auditReader,
		registry:     registry,
		logger:       logger,
		corsOrigins:  corsOrigins,
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	s.engine.Use(tenant.NewMiddleware(principals).Gin())

	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)

	v1 := s.engine.Group("/v1")
	v1.POST("/scans", s.handleSubmit)
	v1.GET("/scans/:id", s.handleQuery)
	v1.DELETE("/scans/:id", s.handleCancel)
	v1.GET("/scans/:id/events", s.handleStream)
	v1.GET("/tenants/:id/history", s.handleHistory)
	v1.GET("/tenants/:id/audit", s.handleAudit)

	s.engine.POST("/admin/registry/reload", s.handleRegistryReload)
}

// handleRegistryReload backs `scancore registry reload`: it is the only
// reachable trigger for Registry.Reload outside the periodic poller.
func (s *Server) handleRegistryReload(c *gin.Context) {
	if err := s.registry.ReloadDefaults(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type submitRequest struct {
	ScanType string            `json:"scan_type" binding:"required"`
	Target   domain.ScanTarget `json:"target"`
	Options  domain.ScanOptions `json:"options"`
}

func (s *Server) handleSubmit(c *gin.Context) {
	principal, err := tenant.FromContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var body submitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := domain.ScanRequest{
		TenantID: principal.TenantID,
		Principal: domain.Principal{
			TenantID: principal.TenantID, UserID: principal.UserID, Roles: principal.Roles,
		},
		ScanType:    body.ScanType,
		Target:      body.Target,
		Options:     body.Options,
		SubmittedAt: time.Now(),
	}

	jobID, err := s.orchestrator.Submit(c.Request.Context(), req)
	if err != nil {
		writeRejection(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "state": domain.JobQueued})
}

func writeRejection(c *gin.Context, err error) {
	if rej, ok := err.(*orchestrator.Rejection); ok {
		status := http.StatusTooManyRequests
		switch rej.Code {
		case "RejectedLicense":
			status = http.StatusForbidden
		case "RejectedUnknownScanType":
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": rej.Code, "reason": rej.Reason})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (s *Server) handleQuery(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	job, err := s.orchestrator.Query(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id": job.JobID, "state": job.State, "progress_pct": job.ProgressPct,
	})
}

func (s *Server) handleCancel(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	if err := s.orchestrator.Cancel(jobID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleStream serves the job's ScanEvent stream as SSE until a terminal
// event closes the channel, per the Stream(job_id) contract.
func (s *Server) handleStream(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	events, err := s.orchestrator.Stream(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()
	flusher, canFlush := c.Writer.(http.Flusher)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(string(ev.Kind), ev)
			if canFlush {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleHistory(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return
	}
	now := time.Now()
	from := now.AddDate(0, 0, -90)
	points, err := s.results.QueryHistory(c.Request.Context(), tenantID, from, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

func (s *Server) handleAudit(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, err := audit.List(c.Request.Context(), s.auditReader, tenantID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
