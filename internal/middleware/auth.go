// Package middleware provides HTTP middleware for authentication, logging, and rate limiting.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/deploy-manager/internal/manage"
)

// TokenAuth requires "Authorization: Bearer <token>" on every request. An
// empty token disables the check.
func TokenAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			abort(c, http.StatusUnauthorized, manage.CodeUnauthorized, "unauthorized")
			return
		}

		c.Next()
	}
}

func abort(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "error": message})
}
