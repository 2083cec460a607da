package middleware

import (
	"net/http"
	"strings"
	"time"

	"khoomi-api-io/checkout/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const GuestIdHeader = "X-Guest-Id"

// GuestSession gives every request a stable guest id. It is read from the
// cookie or the X-Guest-Id header, and minted when neither is present.
func GuestSession(cookieName string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := guestIdFromRequest(c, cookieName)
		if id == "" {
			id = uuid.NewString()
		}

		c.SetSameSite(sameSite(c))
		c.SetCookie(cookieName, id, int(ttl.Seconds()), "/", getDomainFromRequest(c), isHTTPS(c), true)
		c.Header(GuestIdHeader, id)
		c.Set(auth.ContextGuestIdKey, id)
		c.Next()
	}
}

func guestIdFromRequest(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil {
		if id, err := uuid.Parse(v); err == nil {
			return id.String()
		}
	}
	if id, err := uuid.Parse(strings.TrimSpace(c.GetHeader(GuestIdHeader))); err == nil {
		return id.String()
	}
	return ""
}

func sameSite(c *gin.Context) http.SameSite {
	if isHTTPS(c) {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func getDomainFromRequest(ctx *gin.Context) string {
	host := ctx.Request.Host

	// Remove port
	if colonIndex := strings.LastIndex(host, ":"); colonIndex != -1 {
		host = host[:colonIndex]
	}

	if host == "localhost" || host == "127.0.0.1" || host == "" {
		return ""
	}

	// For production domains (khoomi.com, api.khoomi.com, etc.)
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return "." + strings.Join(parts[len(parts)-2:], ".")
	}

	return host
}

func isHTTPS(ctx *gin.Context) bool {
	if ctx.Request.TLS != nil {
		return true
	}

	if ctx.GetHeader("X-Forwarded-Proto") == "https" {
		return true
	}

	return ctx.GetHeader("X-Forwarded-Ssl") == "on"
}
