package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentOption string

const (
	PaymentOptionCOD    PaymentOption = "cod"
	PaymentOptionBkash  PaymentOption = "bkash"
	PaymentOptionOnline PaymentOption = "online"
	PaymentOptionOutlet PaymentOption = "outlet"
)

func ParsePaymentOption(option string) (PaymentOption, error) {
	switch strings.ToLower(strings.TrimSpace(option)) {
	case "cod":
		return PaymentOptionCOD, nil
	case "bkash":
		return PaymentOptionBkash, nil
	case "online":
		return PaymentOptionOnline, nil
	case "outlet":
		return PaymentOptionOutlet, nil
	}

	return "", fmt.Errorf("invalid payment option: %q", option)
}

// UsesGateway reports whether the option pays through a redirect gateway.
func (p PaymentOption) UsesGateway() bool {
	return p == PaymentOptionOnline || p == PaymentOptionBkash
}

// OutletChoice is the sub-choice presented for outlet pickup.
type OutletChoice string

const (
	OutletChoiceCash   OutletChoice = "cash"
	OutletChoiceOnline OutletChoice = "online"
)

func ParseOutletChoice(choice string) (OutletChoice, error) {
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "":
		return "", nil
	case "cash":
		return OutletChoiceCash, nil
	case "online":
		return OutletChoiceOnline, nil
	}
	return "", fmt.Errorf("invalid outlet choice: %q", choice)
}

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var ErrInvalidOrderStatus = errors.New("invalid order status")

func ParseOrderStatus(status string) (OrderStatus, error) {
	switch OrderStatus(strings.ToUpper(strings.TrimSpace(status))) {
	case OrderStatusPlaced:
		return OrderStatusPlaced, nil
	case OrderStatusConfirmed:
		return OrderStatusConfirmed, nil
	case OrderStatusShipped:
		return OrderStatusShipped, nil
	case OrderStatusDelivered:
		return OrderStatusDelivered, nil
	case OrderStatusCancelled:
		return OrderStatusCancelled, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOrderStatus, status)
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered, OrderStatusCancelled},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

type OrderItem struct {
	ProductId       string          `json:"product"`
	Title           string          `json:"title,omitempty"`
	Image           string          `json:"image,omitempty"`
	Size            string          `json:"size,omitempty"`
	Color           string          `json:"color,omitempty"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	DiscountedPrice decimal.Decimal `json:"discountedPrice"`
}

type Order struct {
	Id                   string          `json:"_id"`
	OrderItems           []OrderItem     `json:"orderItems"`
	ShippingAddress      Address         `json:"shippingAddress"`
	TotalPrice           decimal.Decimal `json:"totalPrice"`
	ProductDiscount      decimal.Decimal `json:"productDiscount"`
	PromoCodeDiscount    decimal.Decimal `json:"promoCodeDiscount"`
	DeliveryCharge       decimal.Decimal `json:"deliveryCharge"`
	TotalDiscountedPrice decimal.Decimal `json:"totalDiscountedPrice"`
	PaymentOption        PaymentOption   `json:"paymentOption"`
	OrderStatus          OrderStatus     `json:"orderStatus"`
	CreatedAt            time.Time       `json:"createdAt"`
}

// OrderPayload is the body submitted to the order endpoints.
type OrderPayload struct {
	OrderItems           []OrderItem     `json:"orderItems"`
	ShippingAddress      Address         `json:"shippingAddress"`
	TotalPrice           decimal.Decimal `json:"totalPrice"`
	ProductDiscount      decimal.Decimal `json:"productDiscount"`
	PromoCodeDiscount    decimal.Decimal `json:"promoCodeDiscount"`
	PromoCode            string          `json:"promoCode,omitempty"`
	DeliveryCharge       decimal.Decimal `json:"deliveryCharge"`
	TotalDiscountedPrice decimal.Decimal `json:"totalDiscountedPrice"`
	PaymentOption        PaymentOption   `json:"paymentOption"`
	IsGuestCheckout      bool            `json:"isGuestCheckout,omitempty"`
}

// OrderDraft is the pre-submission snapshot kept for degraded order views.
type OrderDraft struct {
	OrderId      string          `json:"orderId,omitempty"`
	Payload      OrderPayload    `json:"payload"`
	AmountDueNow decimal.Decimal `json:"amountDueNow"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Order reconstructs a minimal order from the draft.
func (d OrderDraft) Order() Order {
	return Order{
		Id:                   d.OrderId,
		OrderItems:           d.Payload.OrderItems,
		ShippingAddress:      d.Payload.ShippingAddress,
		TotalPrice:           d.Payload.TotalPrice,
		ProductDiscount:      d.Payload.ProductDiscount,
		PromoCodeDiscount:    d.Payload.PromoCodeDiscount,
		DeliveryCharge:       d.Payload.DeliveryCharge,
		TotalDiscountedPrice: d.Payload.TotalDiscountedPrice,
		PaymentOption:        d.Payload.PaymentOption,
		OrderStatus:          OrderStatusPlaced,
		CreatedAt:            d.CreatedAt,
	}
}
