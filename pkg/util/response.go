package util

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
}

func HandleSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, SuccessResponse{
		Status:  statusCode,
		Message: message,
		Data:    data,
		Meta:    nil,
	})
}

func HandleSuccessMeta(c *gin.Context, statusCode int, message string, data, meta interface{}) {
	c.JSON(statusCode, SuccessResponse{
		Status:  statusCode,
		Message: message,
		Data:    data,
		Meta:    meta,
	})
}

type ErrorResponse struct {
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Status  int         `json:"status"`
}

func HandleError(c *gin.Context, statusCode int, err error) {
	HandleErrorDetails(c, statusCode, err, nil)
}

// HandleErrorDetails is HandleError with a machine-readable payload, e.g.
// the failing field of a validation error.
func HandleErrorDetails(c *gin.Context, statusCode int, err error, details interface{}) {
	if statusCode >= 500 {
		LogError("request failed", err, zap.String("path", c.FullPath()), zap.Int("status", statusCode))
	} else {
		LogInfo("request rejected", zap.String("path", c.FullPath()), zap.Int("status", statusCode), zap.Error(err))
	}
	c.JSON(statusCode, ErrorResponse{
		Error:   err.Error(),
		Details: details,
		Status:  statusCode,
	})
}
