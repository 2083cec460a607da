package routers

import (
	"time"

	"khoomi-api-io/checkout/config"
	"khoomi-api-io/checkout/internal/auth"
	"khoomi-api-io/checkout/internal/common"
	"khoomi-api-io/checkout/internal/container"
	"khoomi-api-io/checkout/internal/middleware"
	"khoomi-api-io/checkout/pkg/controllers"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// InitRoute creates the gin router for the checkout edge. redisClient backs
// the rate limiter and may be nil.
func InitRoute(cfg config.Config, serviceContainer *container.ServiceContainer, redisClient *redis.Client) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.CorsMiddleware(cfg.AllowedOrigins))

	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = 10
	}
	api := router.Group("/v1",
		auth.OptionalAuth(cfg.Secret),
		middleware.GuestSession(common.GUEST_SESSION_COOKIE, serviceContainer.Sessions.TTL()),
		middleware.KhoomiRateLimiter(redisClient, rateWindow(cfg), rateLimit),
	)
	{
		api.GET("/ping", controllers.Ping)

		cartRoutes(api, serviceContainer)
		checkoutRoutes(api, serviceContainer)
		orderRoutes(api, serviceContainer)
	}

	return router
}

func rateWindow(cfg config.Config) time.Duration {
	if cfg.RateLimitWindow > 0 {
		return cfg.RateLimitWindow
	}
	return time.Second
}

// cartRoutes configures cart endpoints shared by guests and signed-in users
func cartRoutes(api *gin.RouterGroup, serviceContainer *container.ServiceContainer) {
	cartController := serviceContainer.GetCartController()

	cart := api.Group("/cart")
	cart.GET("", cartController.GetCart())
	cart.DELETE("", cartController.ClearCart())

	cart.POST("/items", cartController.AddItem())
	cart.PUT("/items/:itemId", cartController.UpdateItem())
	cart.DELETE("/items/:itemId", cartController.RemoveItem())

	cart.POST("/promo", cartController.ApplyPromo())
	cart.DELETE("/promo", cartController.RemovePromo())
}

// checkoutRoutes configures the checkout flow endpoints
func checkoutRoutes(api *gin.RouterGroup, serviceContainer *container.ServiceContainer) {
	checkoutController := serviceContainer.GetCheckoutController()

	checkout := api.Group("/checkout")
	checkout.PUT("/address", checkoutController.SaveAddress())
	checkout.GET("/address", checkoutController.GetAddress())
	checkout.POST("/quote", checkoutController.Quote())
	checkout.GET("/step", checkoutController.GetStep())
	checkout.POST("/step", checkoutController.AdvanceStep())
	checkout.POST("/orders", checkoutController.PlaceOrder())
}

// orderRoutes configures order lookups and payment verification
func orderRoutes(api *gin.RouterGroup, serviceContainer *container.ServiceContainer) {
	orderController := serviceContainer.GetOrderController()

	api.GET("/orders", orderController.ListOrders())
	api.GET("/orders/:orderId", orderController.GetOrder())
	api.GET("/payments/verify", orderController.VerifyPayment())
}
