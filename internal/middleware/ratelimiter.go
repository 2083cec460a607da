package middleware

import (
	"net/http"
	"time"

	"khoomi-api-io/checkout/pkg/util"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// KhoomiRateLimiter limits each client to limit requests per rate. Counters
// live in redis when a client is given, in memory otherwise.
func KhoomiRateLimiter(client *redis.Client, rate time.Duration, limit uint) gin.HandlerFunc {
	var store ratelimit.Store
	if client != nil {
		store = ratelimit.RedisStore(&ratelimit.RedisOptions{
			RedisClient: client,
			Rate:        rate,
			Limit:       limit,
		})
	} else {
		store = ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
			Rate:  rate,
			Limit: limit,
		})
	}

	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			util.HandleError(c, http.StatusTooManyRequests,
				errors.New("Too many requests. Try again in "+time.Until(info.ResetTime).Round(time.Second).String()))
		},
		KeyFunc: rateLimitKey,
	})
}

// rateLimitKey buckets by client address. Guest ids and bearer tokens are
// client supplied, so they never pick the bucket.
func rateLimitKey(c *gin.Context) string {
	return "rl:ip:" + c.ClientIP()
}
