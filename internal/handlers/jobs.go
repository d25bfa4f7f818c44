package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/deploy-manager/internal/services"
)

// JobHandler serves the job history.
type JobHandler struct {
	executorService *services.ExecutorService
}

// NewJobHandler creates a new JobHandler instance.
func NewJobHandler(executorService *services.ExecutorService) *JobHandler {
	return &JobHandler{executorService: executorService}
}

// List returns recent jobs, newest first.
// GET /api/jobs?instance=&limit=&offset=
func (h *JobHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, err := h.executorService.ListJobs(c.Query("instance"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Get returns one job.
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.executorService.GetJob(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}
