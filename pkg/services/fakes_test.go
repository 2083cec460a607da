package services

import (
	"context"
	"net/http"
	"sync"
	"time"

	"khoomi-api-io/checkout/pkg/apiclient"
	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/pricing"

	"github.com/shopspring/decimal"
)

// fakeAPI is an in-memory commerce API. Zero values behave like a healthy
// upstream with one server cart per token.
type fakeAPI struct {
	mu sync.Mutex

	carts       map[string]*models.Cart
	createDelay time.Duration

	clearErr    error
	promo       *models.PromoDetails
	promoErr    error
	orderErr    error
	orderId     string
	payment     apiclient.PaymentResult
	paymentErr  error
	getOrder    func(token, id string) (models.Order, error)
	trackOrder  func(id string) (models.Order, error)
	verifyReply apiclient.PaymentVerification

	calls map[string]int

	lastPayload models.OrderPayload
	lastPayment apiclient.PaymentRequest
	lastToken   string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		carts:   make(map[string]*models.Cart),
		calls:   make(map[string]int),
		orderId: "ord-1",
	}
}

func (f *fakeAPI) hit(name string) {
	f.calls[name]++
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) seedCart(token string, items ...models.CartItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart := models.Cart{Id: "cart-" + token, Items: items}
	pricing.Recalculate(&cart)
	f.carts[token] = &cart
}

func notFound(msg string) error {
	return &apiclient.APIError{Status: http.StatusNotFound, Message: msg}
}

func (f *fakeAPI) GetCart(_ context.Context, token string) (models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("GetCart")
	cart, ok := f.carts[token]
	if !ok {
		return models.Cart{}, notFound("Cart not found")
	}
	return *cart, nil
}

func (f *fakeAPI) CreateCart(_ context.Context, token string) (models.Cart, error) {
	if f.createDelay > 0 {
		time.Sleep(f.createDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("CreateCart")
	cart := models.Cart{Id: "cart-" + token, Items: []models.CartItem{}}
	f.carts[token] = &cart
	return cart, nil
}

func (f *fakeAPI) AddToCart(_ context.Context, token string, req models.CartItemRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("AddToCart")
	cart := f.carts[token]
	cart.Items = append(cart.Items, models.CartItem{
		Id:              req.ProductId,
		ProductId:       req.ProductId,
		Quantity:        req.Quantity,
		Price:           req.Price,
		DiscountedPrice: req.UnitDiscountedPrice(),
	})
	pricing.Recalculate(cart)
	return nil
}

func (f *fakeAPI) RemoveFromCart(_ context.Context, token, itemId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("RemoveFromCart")
	cart := f.carts[token]
	i, ok := cart.FindItem(itemId)
	if !ok {
		return notFound("Item not found")
	}
	cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	pricing.Recalculate(cart)
	return nil
}

func (f *fakeAPI) UpdateCartItem(_ context.Context, token, itemId string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("UpdateCartItem")
	cart := f.carts[token]
	i, ok := cart.FindItem(itemId)
	if !ok {
		return notFound("Item not found")
	}
	cart.Items[i].Quantity = quantity
	pricing.Recalculate(cart)
	return nil
}

func (f *fakeAPI) ApplyPromo(_ context.Context, token string, req apiclient.ApplyPromoRequest) (models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("ApplyPromo")
	if f.promoErr != nil {
		return models.Cart{}, f.promoErr
	}
	promo := *f.promo
	promo.Code = req.Code
	if token == "" {
		return models.Cart{PromoDetails: &promo}, nil
	}
	cart := f.carts[token]
	cart.PromoDetails = &promo
	pricing.Recalculate(cart)
	return *cart, nil
}

func (f *fakeAPI) RemovePromo(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("RemovePromo")
	cart := f.carts[token]
	cart.PromoDetails = nil
	pricing.Recalculate(cart)
	return nil
}

func (f *fakeAPI) ClearCart(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("ClearCart")
	if f.clearErr != nil {
		return f.clearErr
	}
	if cart, ok := f.carts[token]; ok {
		cart.Items = []models.CartItem{}
		cart.PromoDetails = nil
		pricing.Recalculate(cart)
	}
	return nil
}

func (f *fakeAPI) ClearCartDirect(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("ClearCartDirect")
	if cart, ok := f.carts[token]; ok {
		cart.Items = []models.CartItem{}
		pricing.Recalculate(cart)
	}
	return nil
}

func (f *fakeAPI) placed(payload models.OrderPayload) (models.Order, error) {
	f.lastPayload = payload
	if f.orderErr != nil {
		return models.Order{}, f.orderErr
	}
	return models.Order{
		Id:                   f.orderId,
		OrderItems:           payload.OrderItems,
		TotalDiscountedPrice: payload.TotalDiscountedPrice,
		DeliveryCharge:       payload.DeliveryCharge,
	}, nil
}

func (f *fakeAPI) CreateOrder(_ context.Context, token string, payload models.OrderPayload) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("CreateOrder")
	f.lastToken = token
	return f.placed(payload)
}

func (f *fakeAPI) CreateGuestOrder(_ context.Context, payload models.OrderPayload) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("CreateGuestOrder")
	f.lastToken = ""
	return f.placed(payload)
}

func (f *fakeAPI) GetOrder(_ context.Context, token, orderId string) (models.Order, error) {
	f.mu.Lock()
	f.hit("GetOrder")
	fn := f.getOrder
	f.mu.Unlock()
	if fn == nil {
		return models.Order{}, notFound("Order not found")
	}
	return fn(token, orderId)
}

func (f *fakeAPI) TrackGuestOrder(_ context.Context, orderId string) (models.Order, error) {
	f.mu.Lock()
	f.hit("TrackGuestOrder")
	fn := f.trackOrder
	f.mu.Unlock()
	if fn == nil {
		return models.Order{}, notFound("Order not found")
	}
	return fn(orderId)
}

func (f *fakeAPI) ListOrders(_ context.Context, token string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("ListOrders")
	f.lastToken = token
	return []models.Order{{Id: f.orderId, OrderStatus: models.OrderStatusPlaced}}, nil
}

func (f *fakeAPI) InitiatePayment(_ context.Context, token, orderId string, req apiclient.PaymentRequest) (apiclient.PaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("InitiatePayment")
	f.lastPayment = req
	return f.payment, f.paymentErr
}

func (f *fakeAPI) VerifyPayment(_ context.Context, token, paymentId, orderId string) (apiclient.PaymentVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("VerifyPayment")
	return f.verifyReply, nil
}

func (f *fakeAPI) SendOrderSMS(_ context.Context, token, orderId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit("SendOrderSMS")
	return nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func item(id, price, discounted string, qty int) models.CartItem {
	return models.CartItem{
		Id:              id,
		ProductId:       id,
		Quantity:        qty,
		Price:           dec(price),
		DiscountedPrice: dec(discounted),
	}
}

func dhakaAddress() models.Address {
	return models.Address{
		FirstName:     "Nusrat",
		LastName:      "Jahan",
		StreetAddress: "House 12, Road 5",
		City:          "Dhaka",
		Zone:          "Mirpur",
		Area:          "Section 10",
		ZipCode:       "1216",
		Mobile:        "01712345678",
	}
}
