package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"khoomi-api-io/checkout/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func guestRouter(seen *string) *gin.Engine {
	router := gin.New()
	router.Use(GuestSession("kh_guest", time.Hour))
	router.GET("/", func(c *gin.Context) {
		*seen = auth.SessionFrom(c).GuestId
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestGuestSessionMintsId(t *testing.T) {
	var seen string
	router := guestRouter(&seen)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(GuestIdHeader))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "kh_guest", cookies[0].Name)
	assert.Equal(t, seen, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestGuestSessionReusesCookieOrHeader(t *testing.T) {
	var seen string
	router := guestRouter(&seen)
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "kh_guest", Value: id})
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, id, seen)

	other := uuid.NewString()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(GuestIdHeader, other)
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, other, seen)
}

func TestGuestSessionRejectsForgedIds(t *testing.T) {
	var seen string
	router := guestRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "kh_guest", Value: "../../admin"})
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEqual(t, "../../admin", seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestCorsPreflight(t *testing.T) {
	router := gin.New()
	router.Use(CorsMiddleware([]string{"https://shop.example.com"}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiterInMemory(t *testing.T) {
	router := gin.New()
	router.Use(GuestSession("kh_guest", time.Hour), KhoomiRateLimiter(nil, time.Minute, 2))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	id := uuid.NewString()
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(GuestIdHeader, id)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterKeysOnClientAddress(t *testing.T) {
	router := gin.New()
	router.Use(GuestSession("kh_guest", time.Hour), KhoomiRateLimiter(nil, time.Minute, 2))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		req.Header.Set("Authorization", "Bearer "+uuid.NewString())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	rejected := 0
	for i := 0; i < 20; i++ {
		if send("10.0.0.1:5000") == http.StatusTooManyRequests {
			rejected++
		}
	}
	assert.Equal(t, 18, rejected)
	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000"))
}
