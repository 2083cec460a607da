package services

import (
	"context"

	"khoomi-api-io/checkout/pkg/apiclient"
	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/pricing"
)

// CommerceAPI is the part of the commerce REST API the services rely on.
// *apiclient.Client implements it.
type CommerceAPI interface {
	GetCart(ctx context.Context, token string) (models.Cart, error)
	CreateCart(ctx context.Context, token string) (models.Cart, error)
	AddToCart(ctx context.Context, token string, item models.CartItemRequest) error
	RemoveFromCart(ctx context.Context, token, itemId string) error
	UpdateCartItem(ctx context.Context, token, itemId string, quantity int) error
	ApplyPromo(ctx context.Context, token string, req apiclient.ApplyPromoRequest) (models.Cart, error)
	RemovePromo(ctx context.Context, token string) error
	ClearCart(ctx context.Context, token string) error
	ClearCartDirect(ctx context.Context, token string) error

	CreateOrder(ctx context.Context, token string, payload models.OrderPayload) (models.Order, error)
	CreateGuestOrder(ctx context.Context, payload models.OrderPayload) (models.Order, error)
	GetOrder(ctx context.Context, token, orderId string) (models.Order, error)
	TrackGuestOrder(ctx context.Context, orderId string) (models.Order, error)
	ListOrders(ctx context.Context, token string) ([]models.Order, error)

	InitiatePayment(ctx context.Context, token, orderId string, req apiclient.PaymentRequest) (apiclient.PaymentResult, error)
	VerifyPayment(ctx context.Context, token, paymentId, orderId string) (apiclient.PaymentVerification, error)
	SendOrderSMS(ctx context.Context, token, orderId string) error
}

// CartService defines the interface for cart operations shared by guest and
// signed-in sessions
type CartService interface {
	GetCart(ctx context.Context, session models.Session) (models.Cart, error)
	EnsureCart(ctx context.Context, session models.Session) (models.Cart, error)
	AddItem(ctx context.Context, session models.Session, req models.CartItemRequest) (models.Cart, error)
	RemoveItem(ctx context.Context, session models.Session, itemId string) (models.Cart, error)
	UpdateItemQuantity(ctx context.Context, session models.Session, itemId string, quantity int) (models.Cart, error)
	ApplyPromoCode(ctx context.Context, session models.Session, code string) (models.Cart, error)
	RemovePromoCode(ctx context.Context, session models.Session) (models.Cart, error)
	ClearCart(ctx context.Context, session models.Session) error
}

// CheckoutService defines the interface for the checkout flow
type CheckoutService interface {
	SaveAddress(ctx context.Context, session models.Session, address models.Address) (pricing.DeliveryQuote, error)
	GetAddress(ctx context.Context, session models.Session) (models.Address, bool)
	Quote(ctx context.Context, session models.Session, req models.QuoteRequest) (QuoteResponse, error)
	CurrentStep(ctx context.Context, session models.Session) models.CheckoutStep
	AdvanceStep(ctx context.Context, session models.Session, event models.CheckoutEvent) (models.CheckoutStep, error)
	PlaceOrder(ctx context.Context, session models.Session, req models.PlaceOrderRequest) (PlaceOrderResult, error)
}

// OrderService defines the interface for order lookups after checkout
type OrderService interface {
	GetOrderStatus(ctx context.Context, session models.Session, orderId string, landing LandingContext) (OrderView, error)
	ListOrders(ctx context.Context, session models.Session) ([]models.Order, error)
	VerifyPayment(ctx context.Context, session models.Session, paymentId, orderId string) (apiclient.PaymentVerification, error)
}

// CartClearer empties every copy of a session's cart.
type CartClearer interface {
	ClearCart(ctx context.Context, session models.Session) error
}
