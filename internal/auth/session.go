package auth

import (
	"fmt"
	"strings"

	"khoomi-api-io/checkout/pkg/models"

	"github.com/gin-gonic/gin"
)

const (
	ContextTokenKey   = "kh_token"
	ContextGuestIdKey = "kh_guest_id"
)

// ExtractBearerToken extracts the Bearer token from the Authorization header
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is empty")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("authorization header does not start with 'Bearer '")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", fmt.Errorf("token is empty")
	}

	return token, nil
}

// SessionFrom returns the session the auth and guest middleware attached
// to the request.
func SessionFrom(c *gin.Context) models.Session {
	return models.Session{
		Token:   c.GetString(ContextTokenKey),
		GuestId: c.GetString(ContextGuestIdKey),
	}
}
