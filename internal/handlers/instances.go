package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
	"github.com/pandeptwidyaop/deploy-manager/internal/services"
)

// InstanceHandler handles HTTP requests for instance management.
type InstanceHandler struct {
	instanceService *services.InstanceService
	auditService    *services.AuditService
}

// NewInstanceHandler creates a new InstanceHandler instance.
func NewInstanceHandler(instanceService *services.InstanceService, auditService *services.AuditService) *InstanceHandler {
	return &InstanceHandler{
		instanceService: instanceService,
		auditService:    auditService,
	}
}

// List returns all instances keyed by name.
func (h *InstanceHandler) List(c *gin.Context) {
	instances, err := h.instanceService.List()
	if err != nil {
		respondError(c, err)
		return
	}

	out := make(map[string]models.Instance, len(instances))
	for _, inst := range instances {
		out[inst.Name] = inst
	}
	c.JSON(http.StatusOK, out)
}

// Get returns a single instance by name.
func (h *InstanceHandler) Get(c *gin.Context) {
	inst, err := h.instanceService.Get(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, inst)
}

// Create creates a new instance.
func (h *InstanceHandler) Create(c *gin.Context) {
	var req models.CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	inst, err := h.instanceService.Create(req.Name, req.Record)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, services.ActionInstanceCreate, inst.Name, nil)
	c.JSON(http.StatusCreated, inst)
}

// Update replaces the record of an instance.
func (h *InstanceHandler) Update(c *gin.Context) {
	var req models.UpdateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	inst, err := h.instanceService.Update(c.Param("name"), req.Record)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, services.ActionInstanceUpdate, inst.Name, nil)
	c.JSON(http.StatusOK, inst)
}

// Delete removes an instance.
func (h *InstanceHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.instanceService.Delete(name); err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, services.ActionInstanceDelete, name, nil)
	c.Status(http.StatusNoContent)
}

func (h *InstanceHandler) audit(c *gin.Context, action, instance string, details map[string]any) {
	logAudit(c, h.auditService, action, instance, details)
}

// logAudit records a change made by the request; a nil service records nothing.
func logAudit(c *gin.Context, svc *services.AuditService, action, instance string, details map[string]any) {
	if svc == nil {
		return
	}
	_ = svc.Log(services.AuditLog{
		Action:    action,
		Instance:  instance,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		Details:   details,
	})
}
