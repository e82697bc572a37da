package middleware

import (
	"github.com/gin-gonic/gin"

	"postcontest/src/app/http/response"
	"postcontest/src/core/usecase"
)

// AdminTokenHeader carries the shared admin token.
const AdminTokenHeader = "X-Admin-Token"

// AdminAuth rejects requests whose X-Admin-Token does not match the
// configured admin token. With no token configured every request is rejected.
func AdminAuth(auth *usecase.AdminAuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.Authorize(c.GetHeader(AdminTokenHeader)); err != nil {
			response.FromDomainError(c, err, GetRequestID(c))
			c.Abort()
			return
		}
		c.Next()
	}
}
