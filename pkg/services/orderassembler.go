package services

import (
	"context"
	"time"

	"khoomi-api-io/checkout/internal/common"
	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/pricing"
	"khoomi-api-io/checkout/pkg/util"

	"go.uber.org/zap"
)

// OrderAssembler turns a cart and address into an order submission. Guest
// and signed-in checkouts share every step except the endpoint.
type OrderAssembler struct {
	api      CommerceAPI
	resolver *pricing.DeliveryChargeResolver
	sessions *GuestSessionStore
	drafts   DraftRepository
}

func NewOrderAssembler(api CommerceAPI, resolver *pricing.DeliveryChargeResolver, sessions *GuestSessionStore, drafts DraftRepository) *OrderAssembler {
	return &OrderAssembler{api: api, resolver: resolver, sessions: sessions, drafts: drafts}
}

// Validate checks the cart and address without touching the network.
func (a *OrderAssembler) Validate(cart models.Cart, address models.Address) error {
	if cart.IsEmpty() {
		return emptyCartError()
	}
	return common.ValidateStruct(address)
}

// Assemble prices the cart for the payment option and maps it onto the
// order payload.
func (a *OrderAssembler) Assemble(ctx context.Context, session models.Session, cart models.Cart, address models.Address, option models.PaymentOption) (models.OrderPayload, models.PriceBreakdown) {
	base := a.resolver.BaseCharge(ctx, address.Destination())
	breakdown := a.resolver.Calculator().Breakdown(cart, option, base.Base, base.Degraded)

	items := make([]models.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, models.OrderItem{
			ProductId:       item.ProductId,
			Title:           item.Title,
			Image:           item.Image,
			Size:            item.Size,
			Color:           item.Color,
			Quantity:        item.Quantity,
			Price:           item.Price,
			DiscountedPrice: item.DiscountedPrice,
		})
	}

	payload := models.OrderPayload{
		OrderItems:           items,
		ShippingAddress:      address,
		TotalPrice:           cart.TotalPrice,
		ProductDiscount:      cart.ProductDiscount,
		PromoCodeDiscount:    cart.PromoCodeDiscount,
		DeliveryCharge:       breakdown.DeliveryCharge,
		TotalDiscountedPrice: breakdown.OrderTotal,
		PaymentOption:        option,
		IsGuestCheckout:      session.IsGuest(),
	}
	if cart.PromoDetails != nil {
		payload.PromoCode = cart.PromoDetails.Code
	}
	return payload, breakdown
}

// Submit stores the pre-submission draft, posts the order and records the
// draft again under the new order id.
func (a *OrderAssembler) Submit(ctx context.Context, session models.Session, payload models.OrderPayload, breakdown models.PriceBreakdown) (models.Order, error) {
	draft := models.OrderDraft{
		Payload:      payload,
		AmountDueNow: breakdown.AmountDueNow,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.sessions.SetOrderDraft(ctx, session.Key(), draft); err != nil {
		util.LogWarning("could not cache order draft", zap.Error(err))
	}

	var (
		order models.Order
		err   error
	)
	if session.IsGuest() {
		order, err = a.api.CreateGuestOrder(ctx, payload)
	} else {
		order, err = a.api.CreateOrder(ctx, session.Token, payload)
	}
	if err != nil {
		return models.Order{}, authError(err)
	}

	draft.OrderId = order.Id
	if err := a.sessions.SetOrderDraft(ctx, session.Key(), draft); err != nil {
		util.LogWarning("could not cache order draft", zap.String("order", order.Id), zap.Error(err))
	}
	if a.drafts != nil {
		if err := a.drafts.Save(ctx, session.Key(), draft); err != nil {
			util.LogWarning("could not persist order draft", zap.String("order", order.Id), zap.Error(err))
		}
	}

	if order.PaymentOption == "" {
		order.PaymentOption = payload.PaymentOption
	}
	if order.OrderStatus == "" {
		order.OrderStatus = models.OrderStatusPlaced
	}
	return order, nil
}
