package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
	"github.com/pandeptwidyaop/deploy-manager/internal/services"
)

// RestHandler handles HTTP requests for backend service instances.
type RestHandler struct {
	restService  *services.RestService
	auditService *services.AuditService
}

// NewRestHandler creates a new RestHandler instance.
func NewRestHandler(restService *services.RestService, auditService *services.AuditService) *RestHandler {
	return &RestHandler{
		restService:  restService,
		auditService: auditService,
	}
}

// List returns all backend service instances keyed by name.
func (h *RestHandler) List(c *gin.Context) {
	list, err := h.restService.List()
	if err != nil {
		respondError(c, err)
		return
	}

	out := make(map[string]models.RestInstance, len(list))
	for _, inst := range list {
		out[inst.Name] = inst
	}
	c.JSON(http.StatusOK, out)
}

func (h *RestHandler) Get(c *gin.Context) {
	inst, err := h.restService.Get(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

func (h *RestHandler) Create(c *gin.Context) {
	var req models.CreateRestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	inst, err := h.restService.Create(req.Name, req.Record)
	if err != nil {
		respondError(c, err)
		return
	}

	logAudit(c, h.auditService, services.ActionRestCreate, inst.Name, nil)
	c.JSON(http.StatusCreated, inst)
}

func (h *RestHandler) Update(c *gin.Context) {
	var req models.UpdateRestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	inst, err := h.restService.Update(c.Param("name"), req.Record)
	if err != nil {
		respondError(c, err)
		return
	}

	logAudit(c, h.auditService, services.ActionRestUpdate, inst.Name, nil)
	c.JSON(http.StatusOK, inst)
}

func (h *RestHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.restService.Delete(name); err != nil {
		respondError(c, err)
		return
	}

	logAudit(c, h.auditService, services.ActionRestDelete, name, nil)
	c.Status(http.StatusNoContent)
}

// Status returns the repository state and supervisord programs of a backend
// service instance.
// GET /api/rest/:name/build
func (h *RestHandler) Status(c *gin.Context) {
	st, err := h.restService.Status(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
