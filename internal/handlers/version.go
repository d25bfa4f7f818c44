package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/deploy-manager/internal/version"
)

type VersionHandler struct{}

func NewVersionHandler() *VersionHandler {
	return &VersionHandler{}
}

// Get returns the server build information.
// GET /api/version
func (h *VersionHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, version.Info())
}
