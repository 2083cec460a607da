package services

import (
	"fmt"
	"net/http"
	"strings"

	"khoomi-api-io/checkout/internal/validators"
	"khoomi-api-io/checkout/pkg/apiclient"

	"github.com/pkg/errors"
)

var (
	ErrCartBusy           = errors.New("another cart update is still in progress")
	ErrCartItemNotFound   = errors.New("cart item not found")
	ErrLoginRequired      = errors.New("login required")
	ErrMissingRedirectURL = errors.New("payment gateway did not return a redirect URL")
	ErrAddressRequired    = errors.New("a delivery address is required")
)

// OrderNotFoundError ends the order status chain. Retryable is set when a
// transient failure may have hidden the order.
type OrderNotFoundError struct {
	OrderId   string
	Retryable bool
	Cause     error
}

func (e *OrderNotFoundError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("order %s could not be loaded, please retry", e.OrderId)
	}
	return fmt.Sprintf("order %s not found", e.OrderId)
}

func (e *OrderNotFoundError) Unwrap() error { return e.Cause }

func emptyCartError() error {
	return &validators.InputValidationError{
		Message: "cart is empty",
		Field:   "cart",
		Tag:     "required",
	}
}

func asAPIError(err error) (*apiclient.APIError, bool) {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func isNotFound(err error) bool {
	apiErr, ok := asAPIError(err)
	if !ok {
		return false
	}
	return apiErr.IsNotFound() || strings.Contains(strings.ToLower(apiErr.Message), "not found")
}

func isUnauthorized(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.IsUnauthorized()
}

// isGuestSignal reports a reply telling us the order belongs to a guest
// checkout and must be read through guest tracking.
func isGuestSignal(err error) bool {
	apiErr, ok := asAPIError(err)
	if !ok {
		return false
	}
	if apiErr.IsUnauthorized() || apiErr.Status == http.StatusForbidden {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "guest")
}

func isTransient(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.IsTransient()
}

// authError maps an upstream 401 on a flow with no guest fallback to
// ErrLoginRequired.
func authError(err error) error {
	if isUnauthorized(err) {
		return errors.Wrap(ErrLoginRequired, err.Error())
	}
	return err
}
