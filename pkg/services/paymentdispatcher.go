package services

import (
	"context"
	"time"

	"khoomi-api-io/checkout/internal/events"
	"khoomi-api-io/checkout/pkg/apiclient"
	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentStatus string

const (
	PaymentConfirmed      PaymentStatus = "confirmed"
	PaymentRedirect       PaymentStatus = "redirect"
	PaymentChoiceRequired PaymentStatus = "choice_required"
)

type PaymentOutcome struct {
	Status       PaymentStatus         `json:"status"`
	OrderId      string                `json:"orderId,omitempty"`
	RedirectURL  string                `json:"redirectUrl,omitempty"`
	AmountDueNow decimal.Decimal       `json:"amountDueNow"`
	Choices      []models.OutletChoice `json:"choices,omitempty"`
	Message      string                `json:"message,omitempty"`
}

// OutletChoices are offered when outlet pickup is chosen without saying
// how the customer pays.
var OutletChoices = []models.OutletChoice{models.OutletChoiceCash, models.OutletChoiceOnline}

// PaymentDispatcher settles a placed order according to its payment option.
type PaymentDispatcher struct {
	api      CommerceAPI
	carts    CartClearer
	sessions *GuestSessionStore
	events   events.Publisher
}

func NewPaymentDispatcher(api CommerceAPI, carts CartClearer, sessions *GuestSessionStore, publisher events.Publisher) *PaymentDispatcher {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &PaymentDispatcher{api: api, carts: carts, sessions: sessions, events: publisher}
}

// NeedsChoice reports whether option cannot be dispatched until the
// customer picks an outlet payment method.
func NeedsChoice(option models.PaymentOption, choice models.OutletChoice) bool {
	return option == models.PaymentOptionOutlet && choice == ""
}

func ChoiceRequired(amountDue decimal.Decimal) PaymentOutcome {
	return PaymentOutcome{
		Status:       PaymentChoiceRequired,
		AmountDueNow: amountDue,
		Choices:      OutletChoices,
		Message:      "choose to pay at the outlet in cash or online",
	}
}

// Dispatch settles order. On success the cart is cleared and checkout moves
// to confirmation; on failure nothing is changed.
func (d *PaymentDispatcher) Dispatch(ctx context.Context, session models.Session, order models.Order, option models.PaymentOption, choice models.OutletChoice, amountDue decimal.Decimal) (PaymentOutcome, error) {
	if NeedsChoice(option, choice) {
		return ChoiceRequired(amountDue), nil
	}

	outcome, err := d.settle(ctx, session, order, option, choice, amountDue)
	if err != nil {
		return PaymentOutcome{}, err
	}
	if err := ctx.Err(); err != nil {
		return PaymentOutcome{}, err
	}

	d.complete(ctx, session, order, option, outcome)
	return outcome, nil
}

func (d *PaymentDispatcher) settle(ctx context.Context, session models.Session, order models.Order, option models.PaymentOption, choice models.OutletChoice, amountDue decimal.Decimal) (PaymentOutcome, error) {
	outcome := PaymentOutcome{OrderId: order.Id, AmountDueNow: amountDue}

	switch {
	case option == models.PaymentOptionCOD:
		res, err := d.api.InitiatePayment(ctx, session.Token, order.Id, apiclient.PaymentRequest{
			PaymentOption: option,
			Amount:        amountDue,
			IsGuest:       session.IsGuest(),
		})
		if err != nil {
			return PaymentOutcome{}, authError(err)
		}
		outcome.Message = res.Message
		if res.RedirectURL != "" {
			outcome.Status = PaymentRedirect
			outcome.RedirectURL = res.RedirectURL
		} else {
			outcome.Status = PaymentConfirmed
		}
		return outcome, nil

	case option == models.PaymentOptionOutlet:
		if choice == models.OutletChoiceCash {
			outcome.Status = PaymentConfirmed
			outcome.Message = "pay at the outlet on pickup"
			return outcome, nil
		}
		return d.gateway(ctx, session, outcome, option, choice)

	case option.UsesGateway():
		return d.gateway(ctx, session, outcome, option, "")
	}
	return PaymentOutcome{}, &apiclient.APIError{Message: "unsupported payment option " + string(option)}
}

// gateway starts a redirect payment. A reply without a redirect URL is a
// hard failure and is never retried.
func (d *PaymentDispatcher) gateway(ctx context.Context, session models.Session, outcome PaymentOutcome, option models.PaymentOption, choice models.OutletChoice) (PaymentOutcome, error) {
	res, err := d.api.InitiatePayment(ctx, session.Token, outcome.OrderId, apiclient.PaymentRequest{
		PaymentOption: option,
		OutletChoice:  choice,
		Amount:        outcome.AmountDueNow,
		IsGuest:       session.IsGuest(),
	})
	if err != nil {
		return PaymentOutcome{}, authError(err)
	}
	if res.Confirmed {
		outcome.Status = PaymentConfirmed
		outcome.Message = res.Message
		return outcome, nil
	}
	if res.RedirectURL == "" {
		return PaymentOutcome{}, ErrMissingRedirectURL
	}
	outcome.Status = PaymentRedirect
	outcome.RedirectURL = res.RedirectURL
	return outcome, nil
}

// complete runs the success side effects. None of them can undo a placed
// order, so failures are only logged.
func (d *PaymentDispatcher) complete(ctx context.Context, session models.Session, order models.Order, option models.PaymentOption, outcome PaymentOutcome) {
	if err := d.carts.ClearCart(ctx, session); err != nil {
		util.LogError("cart clear after payment failed", err, zap.String("order", order.Id))
	}
	if err := d.sessions.SetStep(ctx, session.Key(), models.CheckoutStepConfirmation); err != nil {
		util.LogWarning("could not store checkout step", zap.Error(err))
	}

	events.Emit(ctx, d.events, events.Event{
		Type:          events.EventPurchase,
		Session:       session.Key(),
		OrderId:       order.Id,
		PaymentOption: string(option),
		Value:         order.TotalDiscountedPrice,
		Items:         len(order.OrderItems),
		Payload:       string(outcome.Status),
	})

	if outcome.Status == PaymentConfirmed {
		smsCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := d.api.SendOrderSMS(smsCtx, session.Token, order.Id); err != nil {
			util.LogWarning("order sms failed", zap.String("order", order.Id), zap.Error(err))
		}
	}
}
