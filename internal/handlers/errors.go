// Package handlers provides the HTTP handlers of the management API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pandeptwidyaop/deploy-manager/internal/manage"
	"github.com/pandeptwidyaop/deploy-manager/internal/services"
	"github.com/pandeptwidyaop/deploy-manager/internal/validation"
)

// respondError writes err in the API error shape with a status and code
// derived from the service error.
func respondError(c *gin.Context, err error) {
	var fields validation.FieldErrors
	if errors.As(err, &fields) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":   manage.CodeDataFields,
			"error":  "invalid fields",
			"fields": fields,
		})
		return
	}

	status, code := http.StatusInternalServerError, manage.CodeGeneric
	switch {
	case errors.Is(err, services.ErrInstanceNotFound),
		errors.Is(err, services.ErrJobNotFound),
		errors.Is(err, services.ErrBackupNotFound):
		status, code = http.StatusNotFound, manage.CodeNotFound
	case errors.Is(err, services.ErrInstanceExists):
		status, code = http.StatusConflict, manage.CodeDBDuplicate
	case errors.Is(err, services.ErrInstanceBusy):
		status, code = http.StatusConflict, manage.CodeBusy
	case errors.Is(err, services.ErrCheckoutNotAllowed),
		errors.Is(err, services.ErrNoBackupsDir):
		status, code = http.StatusBadRequest, manage.CodeBadRequest
	case errors.Is(err, services.ErrNotRepository):
		status, code = http.StatusUnprocessableEntity, manage.CodeBadRequest
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, gin.H{"code": code, "error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"code": manage.CodeBadRequest, "error": err.Error()})
}
