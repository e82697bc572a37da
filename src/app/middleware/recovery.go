package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"postcontest/src/app/http/response"
	"postcontest/src/infra/logger"
)

// Recovery turns a panicking handler into a 500 with the standard error body.
// Register it first so it wraps every other middleware.
//
// A panic that happens after the handler began writing cannot change the
// status line; in that case the connection is left to gin and only the log
// line is emitted.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			requestID := GetRequestID(c)
			logger.WithRequestID(log, requestID).Error("panic recovered",
				"panic", fmt.Sprint(rec),
				"route", c.FullPath(),
				"method", c.Request.Method,
				"stack", string(debug.Stack()),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.InternalError(c, requestID)
			c.Abort()
		}()

		c.Next()
	}
}
