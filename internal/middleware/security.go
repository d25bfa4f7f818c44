package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders adds the response headers of a JSON API that is never
// rendered in a browser frame and never cached.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
