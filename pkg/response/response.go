package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Application-level error codes. Each failure kind gets its own code so
// callers do not have to inspect messages.
const (
	CodeBadRequest    = 4000
	CodeNotFound      = 4040
	CodeTooMany       = 4290
	CodeInternal      = 5000
	CodeConfiguration = 5001
	CodeTemplate      = 5002
	CodeStorage       = 5003
	CodeUpstream      = 5020
)

// ErrorBody is the error payload. "detail" mirrors the shape the frontend
// already reads.
type ErrorBody struct {
	Code   int    `json:"code"`
	Detail string `json:"detail"`
}

// MessageBody is returned by operations that have nothing but a confirmation.
type MessageBody struct {
	Message string `json:"message"`
}

// AppError represents a structured application error with HTTP status and error code.
type AppError struct {
	HTTPStatus int    // HTTP status code (e.g. 400, 404, 500)
	Code       int    // Application-level error code
	Message    string // Human-readable error message
	Err        error  // underlying cause, if any
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError whose message is taken from err.
func New(status, code int, err error) *AppError {
	return &AppError{HTTPStatus: status, Code: code, Message: err.Error(), Err: err}
}

// --- Gin response helpers ---

// OK sends a 200 response with data as the whole body.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Message sends a 200 response carrying only a confirmation message.
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, MessageBody{Message: msg})
}

// Error sends an error response. If err is an *AppError, its code and status
// are used; otherwise a generic 500 internal server error is returned.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorBody{
			Code:   appErr.Code,
			Detail: appErr.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorBody{
		Code:   CodeInternal,
		Detail: err.Error(),
	})
}

// Convenience error response functions

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Code: CodeBadRequest, Detail: msg})
}

func TooManyRequests(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorBody{Code: CodeTooMany, Detail: msg})
}
