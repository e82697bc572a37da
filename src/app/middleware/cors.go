package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// CORS adds CORS headers for allowed origins and short-circuits OPTIONS
// preflight requests. An allow list containing "*" admits any origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	const (
		allowedMethods = "GET, POST, PATCH, OPTIONS"
		allowedHeaders = "Content-Type, X-Admin-Token, X-Request-ID"
		maxAge         = "600"
	)
	wildcard := slices.Contains(allowedOrigins, "*")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case wildcard:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(allowedOrigins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", allowedMethods)
		c.Header("Access-Control-Allow-Headers", allowedHeaders)
		c.Header("Access-Control-Expose-Headers", RequestIDHeader)
		c.Header("Access-Control-Max-Age", maxAge)

		// For preflight requests, return immediately.
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
