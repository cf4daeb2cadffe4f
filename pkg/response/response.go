// Package response writes the JSON envelope every HTTP endpoint returns.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body wraps every payload. Exactly one of Data or Error is set.
type Body struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Body{Success: true, Data: data})
}

// Fail writes an error envelope with the given status.
func Fail(c *gin.Context, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	c.JSON(status, Body{Error: msg})
}

// Abort is Fail for middleware: it also stops the handler chain.
func Abort(c *gin.Context, status int, msg string) {
	Fail(c, status, msg)
	c.Abort()
}

func OK(c *gin.Context, data any)       { success(c, http.StatusOK, data) }
func Created(c *gin.Context, data any)  { success(c, http.StatusCreated, data) }
func Accepted(c *gin.Context, data any) { success(c, http.StatusAccepted, data) }

func NoContent(c *gin.Context) { c.Status(http.StatusNoContent) }

func BadRequest(c *gin.Context, msg string)   { Fail(c, http.StatusBadRequest, msg) }
func Unauthorized(c *gin.Context, msg string) { Fail(c, http.StatusUnauthorized, msg) }
func Forbidden(c *gin.Context, msg string)    { Fail(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)     { Fail(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)     { Fail(c, http.StatusConflict, msg) }

// UnprocessableEntity reports generated output that could not be understood.
func UnprocessableEntity(c *gin.Context, msg string) { Fail(c, http.StatusUnprocessableEntity, msg) }

// BadGateway reports an upstream failure.
func BadGateway(c *gin.Context, msg string) { Fail(c, http.StatusBadGateway, msg) }

func ServiceUnavailable(c *gin.Context, msg string) { Fail(c, http.StatusServiceUnavailable, msg) }
func Internal(c *gin.Context, msg string)           { Fail(c, http.StatusInternalServerError, msg) }
