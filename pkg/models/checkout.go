package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type CheckoutStep string

const (
	CheckoutStepAddress      CheckoutStep = "address"
	CheckoutStepSummary      CheckoutStep = "summary"
	CheckoutStepPayment      CheckoutStep = "payment"
	CheckoutStepConfirmation CheckoutStep = "confirmation"
)

type CheckoutEvent string

const (
	CheckoutEventNext    CheckoutEvent = "next"
	CheckoutEventBack    CheckoutEvent = "back"
	CheckoutEventConfirm CheckoutEvent = "confirm"
)

type stepTransition struct {
	from  CheckoutStep
	event CheckoutEvent
}

// Payment only leaves for confirmation through a confirmed dispatch.
var checkoutTransitions = map[stepTransition]CheckoutStep{
	{CheckoutStepAddress, CheckoutEventNext}:    CheckoutStepSummary,
	{CheckoutStepSummary, CheckoutEventBack}:    CheckoutStepAddress,
	{CheckoutStepSummary, CheckoutEventNext}:    CheckoutStepPayment,
	{CheckoutStepPayment, CheckoutEventBack}:    CheckoutStepSummary,
	{CheckoutStepPayment, CheckoutEventConfirm}: CheckoutStepConfirmation,
}

func ParseCheckoutStep(step string) (CheckoutStep, error) {
	switch CheckoutStep(strings.ToLower(strings.TrimSpace(step))) {
	case "", CheckoutStepAddress:
		return CheckoutStepAddress, nil
	case CheckoutStepSummary:
		return CheckoutStepSummary, nil
	case CheckoutStepPayment:
		return CheckoutStepPayment, nil
	case CheckoutStepConfirmation:
		return CheckoutStepConfirmation, nil
	}
	return "", fmt.Errorf("invalid checkout step: %q", step)
}

// Transition applies event to the current step.
func (s CheckoutStep) Transition(event CheckoutEvent) (CheckoutStep, error) {
	next, ok := checkoutTransitions[stepTransition{s, event}]
	if !ok {
		return s, fmt.Errorf("checkout step %q does not accept %q", s, event)
	}
	return next, nil
}

type CheckoutStepRequest struct {
	Event CheckoutEvent `json:"event" validate:"required,oneof=next back"`
}

// Session identifies who a request acts for. Token is empty for guests.
type Session struct {
	Token   string
	GuestId string
}

func (s Session) IsGuest() bool {
	return s.Token == ""
}

// Key scopes per-session state; it prefers the guest id because that is
// stable across login.
func (s Session) Key() string {
	if s.GuestId != "" {
		return s.GuestId
	}
	return s.Token
}

type QuoteRequest struct {
	PaymentOption string   `json:"paymentOption" validate:"required,oneof=cod bkash online outlet"`
	Address       *Address `json:"address,omitempty"`
}

type PlaceOrderRequest struct {
	PaymentOption string   `json:"paymentOption" validate:"required,oneof=cod bkash online outlet"`
	OutletChoice  string   `json:"outletChoice" validate:"omitempty,oneof=cash online"`
	Address       *Address `json:"address,omitempty"`
}

// PriceBreakdown is the checkout quote for one payment option.
type PriceBreakdown struct {
	PaymentOption       PaymentOption   `json:"paymentOption"`
	ProductPrice        decimal.Decimal `json:"productPrice"`
	ProductDiscount     decimal.Decimal `json:"productDiscount"`
	PromoCodeDiscount   decimal.Decimal `json:"promoCodeDiscount"`
	DiscountedSubtotal  decimal.Decimal `json:"discountedSubtotal"`
	BaseDeliveryCharge  decimal.Decimal `json:"baseDeliveryCharge"`
	DeliveryCharge      decimal.Decimal `json:"deliveryCharge"`
	DeliveryWaived      bool            `json:"deliveryWaived"`
	DeliveryDegraded    bool            `json:"deliveryDegraded"`
	OrderTotal          decimal.Decimal `json:"orderTotal"`
	AmountDueNow        decimal.Decimal `json:"amountDueNow"`
	PayableOnDelivery   decimal.Decimal `json:"payableOnDelivery"`
	SavingsPercentage   int64           `json:"savingsPercentage"`
	FreeDeliveryMinimum decimal.Decimal `json:"freeDeliveryMinimum"`
}
