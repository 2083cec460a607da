package auth

import (
	"errors"
	"time"

	"khoomi-api-io/checkout/pkg/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OptionalAuth forwards a bearer token when the request carries one.
// Requests without a usable token continue as guests.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token, err := ExtractBearerToken(header)
		if err != nil {
			util.LogInfo("ignoring malformed authorization header", zap.Error(err))
			c.Next()
			return
		}

		_, err = PrecheckToken(token, secret, time.Now())
		switch {
		case errors.Is(err, ErrTokenExpired):
			util.LogInfo("expired token, continuing as guest", zap.String("path", c.FullPath()))
			c.Header("X-Auth-Expired", "true")
		case errors.Is(err, ErrTokenMalformed) && secret != "":
			util.LogWarning("token failed verification, continuing as guest", zap.Error(err))
		default:
			// opaque tokens are left for the commerce API to judge
			c.Set(ContextTokenKey, token)
		}
		c.Next()
	}
}
