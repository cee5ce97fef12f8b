// Package respond renders the uniform response envelope used by every endpoint.
package respond

import (
	"github.com/gin-gonic/gin"
)

const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// Envelope is the wire shape of every response:
// {"status":"SUCCESS","data":...} or {"status":"ERROR","error":{...}}.
type Envelope struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody carries the machine code and human message of a failure.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes a SUCCESS envelope with the given HTTP status and payload.
func Success(c *gin.Context, httpStatus int, data interface{}) {
	c.JSON(httpStatus, Envelope{Status: StatusSuccess, Data: data})
}

// Error writes an ERROR envelope and aborts the handler chain.
func Error(c *gin.Context, httpStatus int, code, message string) {
	c.AbortWithStatusJSON(httpStatus, Envelope{
		Status: StatusError,
		Error:  &ErrorBody{Code: code, Message: message},
	})
}
