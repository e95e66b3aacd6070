package response

import (
	"net/http"

	appErr "bingoledger/pkg/errors"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeServerError  = 500
)

type Response struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error writes a failure envelope. The HTTP status mirrors code.
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Success: false,
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

// FromError maps a service error onto the envelope by its kind.
func FromError(c *gin.Context, err error) {
	Error(c, CodeOf(err), appErr.MessageOf(err))
}

func CodeOf(err error) int {
	switch appErr.KindOf(err) {
	case appErr.KindInvalidInput:
		return CodeParamError
	case appErr.KindUnauthorized:
		return CodeUnauthorized
	case appErr.KindNotFound:
		return CodeNotFound
	case appErr.KindInvalidState:
		return CodeConflict
	default:
		return CodeServerError
	}
}
