package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/deploy-manager/internal/manage"
)

// BodySizeLimit limits the maximum request body size.
// maxBytes is the maximum allowed body size in bytes.
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet ||
			c.Request.Method == http.MethodHead ||
			c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxBytes {
			abort(c, http.StatusRequestEntityTooLarge, manage.CodeBadRequest, "request body too large")
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

		c.Next()
	}
}

// DefaultBodyLimit returns middleware with a 64KB limit, plenty for descriptors
// and job requests.
func DefaultBodyLimit() gin.HandlerFunc {
	return BodySizeLimit(64 << 10)
}
