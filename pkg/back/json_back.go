package back

import (
	"net/http"

	"github.com/Brownie44l1/leaf-api/pkg/xerr"
	"github.com/Brownie44l1/leaf-api/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Result writes data on success, or the mapped error response.
func Result(c *gin.Context, data any, err error) {
	if err == nil {
		Success(c, data)
		return
	}
	Fail(c, err)
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Fail converts err into a status code and {"error": ...} body. Internal
// failures are logged with their cause; caller faults at warn level.
func Fail(c *gin.Context, err error) {
	re := xerr.As(err)
	status := xerr.HTTPStatus(re)

	fields := []zap.Field{
		zap.String("request_id", c.GetString(RequestIDKey)),
		zap.String("kind", re.Kind.String()),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		zlog.Error("request failed", fields...)
	} else {
		zlog.Warn("request rejected", fields...)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: re.Error()})
}

// RequestIDKey is the gin context key holding the per-request id.
const RequestIDKey = "request_id"
