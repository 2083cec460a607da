package controllers

import (
	"context"
	"errors"
	"net/http"

	"khoomi-api-io/checkout/internal/auth"
	"khoomi-api-io/checkout/internal/common"
	"khoomi-api-io/checkout/internal/validators"
	"khoomi-api-io/checkout/pkg/apiclient"
	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/services"
	"khoomi-api-io/checkout/pkg/util"

	"github.com/gin-gonic/gin"
)

// LoginPath is where clients send users whose session needs a login.
var LoginPath = "/login"

// WithTimeout derives the handler context from the request so a client
// disconnect cancels upstream work.
func WithTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), common.REQUEST_TIMEOUT_SECS)
}

// SetupControllerContext returns the request context and the caller's
// session.
func SetupControllerContext(c *gin.Context) (context.Context, context.CancelFunc, models.Session) {
	ctx, cancel := WithTimeout(c)
	return ctx, cancel, auth.SessionFrom(c)
}

// HandleServiceError maps service errors onto HTTP statuses.
func HandleServiceError(c *gin.Context, err error) {
	var (
		inputErr    *validators.InputValidationError
		notFoundErr *services.OrderNotFoundError
		apiErr      *apiclient.APIError
	)

	switch {
	case errors.As(err, &inputErr):
		util.HandleErrorDetails(c, http.StatusBadRequest, err, gin.H{"field": inputErr.Field, "tag": inputErr.Tag})
	case errors.Is(err, services.ErrCartBusy):
		util.HandleError(c, http.StatusConflict, err)
	case errors.Is(err, services.ErrLoginRequired):
		util.HandleErrorDetails(c, http.StatusUnauthorized, services.ErrLoginRequired, gin.H{"redirect": LoginPath})
	case errors.As(err, &notFoundErr):
		util.HandleErrorDetails(c, http.StatusNotFound, err, gin.H{"orderId": notFoundErr.OrderId, "retryable": notFoundErr.Retryable})
	case errors.Is(err, services.ErrCartItemNotFound):
		util.HandleError(c, http.StatusNotFound, err)
	case errors.Is(err, services.ErrMissingRedirectURL):
		util.HandleError(c, http.StatusBadGateway, err)
	case errors.As(err, &apiErr):
		util.HandleErrorDetails(c, upstreamStatus(apiErr), errors.New(apiErr.Message), gin.H{"retryable": apiErr.IsTransient()})
	case errors.Is(err, context.DeadlineExceeded):
		util.HandleError(c, http.StatusGatewayTimeout, err)
	case errors.Is(err, context.Canceled):
		// client went away
		c.Status(499)
	default:
		util.HandleError(c, http.StatusInternalServerError, err)
	}
}

// upstreamStatus passes client errors through and reports upstream
// failures as a bad gateway.
func upstreamStatus(err *apiclient.APIError) int {
	switch {
	case err.Status == 0:
		return http.StatusServiceUnavailable
	case err.Status >= 400 && err.Status < 500:
		return err.Status
	}
	return http.StatusBadGateway
}

// bindJSON decodes the body into req, answering 400 on malformed JSON.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		util.HandleError(c, http.StatusBadRequest, err)
		return false
	}
	return true
}
