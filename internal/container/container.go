package container

import (
	"khoomi-api-io/checkout/config"
	"khoomi-api-io/checkout/internal/common"
	"khoomi-api-io/checkout/internal/events"
	"khoomi-api-io/checkout/pkg/controllers"
	"khoomi-api-io/checkout/pkg/pricing"
	"khoomi-api-io/checkout/pkg/services"

	"github.com/redis/go-redis/v9"
)

// Dependencies are the external clients the services run on. Nil clients
// fall back to in-process implementations.
type Dependencies struct {
	Config    config.Config
	API       services.CommerceAPI
	Redis     *redis.Client
	Drafts    services.DraftRepository
	Publisher events.Publisher
	Rates     pricing.RateSource
}

type ServiceContainer struct {
	CartService     services.CartService
	CheckoutService services.CheckoutService
	OrderService    services.OrderService
	Sessions        *services.GuestSessionStore
	Publisher       events.Publisher

	CartController     *controllers.CartController
	CheckoutController *controllers.CheckoutController
	OrderController    *controllers.OrderController
}

func NewServiceContainer(deps Dependencies) *ServiceContainer {
	var (
		backend services.SessionBackend
		guard   services.MutationGuard
	)
	if deps.Redis != nil {
		backend = services.NewRedisSessionBackend(deps.Redis)
		guard = services.NewRedisMutationGuard(deps.Redis, common.MUTATION_LOCK_TTL)
	} else {
		backend = services.NewMemorySessionBackend()
		guard = services.NewLocalMutationGuard()
	}

	drafts := deps.Drafts
	if drafts == nil {
		drafts = services.NewMemoryDraftRepository()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	ttl := deps.Config.GuestSessionTTL
	if ttl <= 0 {
		ttl = common.GUEST_SESSION_TTL
	}

	sessions := services.NewGuestSessionStore(backend, ttl)
	resolver := pricing.NewDeliveryChargeResolver(
		pricing.DefaultTierTable(),
		deps.Rates,
		pricing.NewCalculator(deps.Config.FreeDeliveryThreshold),
	)

	cartService := services.NewCartStateStore(
		services.NewServerCartAdapter(deps.API),
		services.NewGuestCartAdapter(sessions, deps.API),
		guard,
		publisher,
	)
	assembler := services.NewOrderAssembler(deps.API, resolver, sessions, drafts)
	dispatcher := services.NewPaymentDispatcher(deps.API, cartService, sessions, publisher)
	checkoutService := services.NewCheckoutService(cartService, sessions, resolver, assembler, dispatcher, publisher)
	orderService := services.NewOrderStatusView(deps.API, sessions, drafts)

	return &ServiceContainer{
		CartService:     cartService,
		CheckoutService: checkoutService,
		OrderService:    orderService,
		Sessions:        sessions,
		Publisher:       publisher,

		CartController:     controllers.InitCartController(cartService),
		CheckoutController: controllers.InitCheckoutController(checkoutService),
		OrderController:    controllers.InitOrderController(orderService),
	}
}

// GetCartController returns the cart controller instance
func (sc *ServiceContainer) GetCartController() *controllers.CartController {
	return sc.CartController
}

// GetCheckoutController returns the checkout controller instance
func (sc *ServiceContainer) GetCheckoutController() *controllers.CheckoutController {
	return sc.CheckoutController
}

// GetOrderController returns the order controller instance
func (sc *ServiceContainer) GetOrderController() *controllers.OrderController {
	return sc.OrderController
}
