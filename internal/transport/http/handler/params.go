package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tokenchat/internal/transport/http/response"
)

const statusSuccess = "success"

// uintParam reads a positive integer path parameter, answering 400 when it
// is missing or malformed.
func uintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
}
