package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tokenchat/internal/ai"
	"tokenchat/internal/app"
)

const (
	CodeOK                   = 0
	CodeBadRequest           = 40000
	CodeUnauthorized         = 40100
	CodeForbidden            = 40300
	CodeQuotaExceeded        = 40301
	CodeNotFound             = 40400
	CodeConversationNotFound = 40401
	CodeUnknownUser          = 40402
	CodeSupportBotNotFound   = 40403
	CodeInternalServer       = 50000
	CodeGatewayFailed        = 50200
	CodeGatewayTimeout       = 50400
)

// APIResponse is the envelope for failed requests.
type APIResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// OK writes data as the response body.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.AbortWithStatusJSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// FromError maps a service error onto its status and envelope. Internal
// failures are logged by the request logger, not echoed to the client.
func FromError(c *gin.Context, err error) {
	_ = c.Error(err)

	var gatewayErr *ai.GatewayError
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		Error(c, http.StatusBadRequest, CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrQuotaExceeded):
		Error(c, http.StatusForbidden, CodeQuotaExceeded, "Insufficient tokens")
	case errors.Is(err, app.ErrConversationNotFound):
		Error(c, http.StatusNotFound, CodeConversationNotFound, "Conversation not found")
	case errors.Is(err, app.ErrUnknownUser):
		Error(c, http.StatusNotFound, CodeUnknownUser, "User not found")
	case errors.Is(err, app.ErrSupportBotNotFound):
		Error(c, http.StatusNotFound, CodeSupportBotNotFound, "Support bot not found")
	case errors.Is(err, ai.ErrGatewayTimeout):
		Error(c, http.StatusGatewayTimeout, CodeGatewayTimeout, "AI service timed out")
	case errors.As(err, &gatewayErr), errors.Is(err, ai.ErrGatewayUnavailable):
		Error(c, http.StatusBadGateway, CodeGatewayFailed, "AI service request failed")
	default:
		Error(c, http.StatusInternalServerError, CodeInternalServer, "internal server error")
	}
}
