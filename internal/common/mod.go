package common

import (
	"strings"
	"time"

	"khoomi-api-io/checkout/internal/validators"
)

var Validate = validators.New()

const (
	REQUEST_TIMEOUT_SECS  = 30 * time.Second
	UPSTREAM_TIMEOUT_SECS = 15 * time.Second
	DELIVERY_RATE_TIMEOUT = 3 * time.Second

	GUEST_SESSION_COOKIE = "kh_guest"
	GUEST_SESSION_TTL    = 7 * 24 * time.Hour
	ORDER_DRAFT_TTL      = 30 * 24 * time.Hour
	MUTATION_LOCK_TTL    = 15 * time.Second

	ORDER_DRAFT_COLLECTION = "OrderDraft"
)

// ValidateStruct runs the shared validator and reports the first failing
// field as an InputValidationError.
func ValidateStruct(s interface{}) error {
	return validators.Translate(Validate.Struct(s))
}

// IsEmptyString checks if a string is empty
func IsEmptyString(s string) bool {
	return strings.TrimSpace(s) == ""
}
