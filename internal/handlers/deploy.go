package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
	"github.com/pandeptwidyaop/deploy-manager/internal/services"
)

// DeployHandler serves the build and restore endpoints of an instance.
type DeployHandler struct {
	deployService *services.DeployService
	auditService  *services.AuditService
}

// NewDeployHandler creates a new DeployHandler instance.
func NewDeployHandler(deployService *services.DeployService, auditService *services.AuditService) *DeployHandler {
	return &DeployHandler{
		deployService: deployService,
		auditService:  auditService,
	}
}

// Status returns the repository state of the instance.
// GET /api/instances/:name/build
func (h *DeployHandler) Status(c *gin.Context) {
	st, err := h.deployService.Status(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, st)
}

// Build runs a build and responds with the commands and output once it finished.
// POST /api/instances/:name/build
func (h *DeployHandler) Build(c *gin.Context) {
	var req models.BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	name := c.Param("name")
	job, err := h.deployService.Build(c.Request.Context(), name, req.BuildOptions)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, services.ActionBuild, name, job)
	c.JSON(http.StatusOK, job.Result())
}

// Backups lists the backups of the instance, newest first.
// GET /api/instances/:name/backups
func (h *DeployHandler) Backups(c *gin.Context) {
	ids, err := h.deployService.Backups(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ids)
}

// Restore restores a backup and responds with the commands and output.
// POST /api/instances/:name/restore
func (h *DeployHandler) Restore(c *gin.Context) {
	var req models.RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	name := c.Param("name")
	job, err := h.deployService.Restore(c.Request.Context(), name, req.RestoreOptions)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, services.ActionRestore, name, job)
	c.JSON(http.StatusOK, job.Result())
}

func (h *DeployHandler) audit(c *gin.Context, action, instance string, job *models.Job) {
	if h.auditService == nil {
		return
	}
	_ = h.auditService.Log(services.AuditLog{
		Action:    action,
		Instance:  instance,
		JobID:     job.ID,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		Details:   map[string]any{"status": job.Status},
	})
}
