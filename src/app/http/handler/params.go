package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"postcontest/src/app/http/response"
	"postcontest/src/app/middleware"
)

// pathID parses a positive int64 path parameter. On failure it writes a 400
// and returns false.
func pathID(c *gin.Context, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid "+label+" id", middleware.GetRequestID(c))
		return 0, false
	}
	return id, true
}

// bindJSON binds the request body. On failure it writes a 400 and returns false.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.BadRequest(c, "invalid payload: "+err.Error(), middleware.GetRequestID(c))
		return false
	}
	return true
}

func fail(c *gin.Context, err error) {
	c.Error(err) // recorded in Gin context; logged by middleware
	response.FromDomainError(c, err, middleware.GetRequestID(c))
}
