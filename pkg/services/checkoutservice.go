package services

import (
	"context"
	"fmt"

	"khoomi-api-io/checkout/internal/common"
	"khoomi-api-io/checkout/internal/events"
	"khoomi-api-io/checkout/internal/validators"
	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/pricing"

	"golang.org/x/sync/errgroup"
)

type QuoteResponse struct {
	Selected models.PriceBreakdown                          `json:"selected"`
	Options  map[models.PaymentOption]models.PriceBreakdown `json:"options"`
	Delivery pricing.DeliveryQuote                          `json:"delivery"`
	Cart     models.Cart                                    `json:"cart"`
}

type PlaceOrderResult struct {
	Order     *models.Order         `json:"order,omitempty"`
	Breakdown models.PriceBreakdown `json:"breakdown"`
	Payment   PaymentOutcome        `json:"payment"`
}

var allPaymentOptions = []models.PaymentOption{
	models.PaymentOptionCOD, models.PaymentOptionBkash,
	models.PaymentOptionOnline, models.PaymentOptionOutlet,
}

// CheckoutServiceImpl implements the CheckoutService interface
type CheckoutServiceImpl struct {
	carts      *CartStateStore
	sessions   *GuestSessionStore
	resolver   *pricing.DeliveryChargeResolver
	assembler  *OrderAssembler
	dispatcher *PaymentDispatcher
	events     events.Publisher
}

func NewCheckoutService(carts *CartStateStore, sessions *GuestSessionStore, resolver *pricing.DeliveryChargeResolver, assembler *OrderAssembler, dispatcher *PaymentDispatcher, publisher events.Publisher) CheckoutService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &CheckoutServiceImpl{
		carts:      carts,
		sessions:   sessions,
		resolver:   resolver,
		assembler:  assembler,
		dispatcher: dispatcher,
		events:     publisher,
	}
}

// SaveAddress validates and stores the delivery address, returning the
// destination's base delivery charge.
func (cs *CheckoutServiceImpl) SaveAddress(ctx context.Context, session models.Session, address models.Address) (pricing.DeliveryQuote, error) {
	if err := common.ValidateStruct(address); err != nil {
		return pricing.DeliveryQuote{}, err
	}
	if err := cs.sessions.SetSelectedAddress(ctx, session.Key(), address); err != nil {
		return pricing.DeliveryQuote{}, err
	}
	if session.IsGuest() {
		if err := cs.sessions.SetAddress(ctx, session.Key(), address); err != nil {
			return pricing.DeliveryQuote{}, err
		}
	}
	return cs.resolver.BaseCharge(ctx, address.Destination()), nil
}

// GetAddress returns the selected address, falling back to the guest one.
func (cs *CheckoutServiceImpl) GetAddress(ctx context.Context, session models.Session) (models.Address, bool) {
	if addr, ok := cs.sessions.GetSelectedAddress(ctx, session.Key()); ok {
		return addr, true
	}
	if session.IsGuest() {
		return cs.sessions.GetAddress(ctx, session.Key())
	}
	return models.Address{}, false
}

func (cs *CheckoutServiceImpl) resolveAddress(ctx context.Context, session models.Session, override *models.Address) (models.Address, bool) {
	if override != nil {
		return *override, true
	}
	return cs.GetAddress(ctx, session)
}

// loadCheckout fetches the cart and the address concurrently.
func (cs *CheckoutServiceImpl) loadCheckout(ctx context.Context, session models.Session, override *models.Address) (models.Cart, models.Address, bool, error) {
	var (
		cart    models.Cart
		address models.Address
		found   bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cart, err = cs.carts.EnsureCart(gctx, session)
		return err
	})
	g.Go(func() error {
		address, found = cs.resolveAddress(gctx, session, override)
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.Cart{}, models.Address{}, false, err
	}
	return cart, address, found, nil
}

// Quote prices the cart for every payment option against the address.
func (cs *CheckoutServiceImpl) Quote(ctx context.Context, session models.Session, req models.QuoteRequest) (QuoteResponse, error) {
	if err := common.ValidateStruct(req); err != nil {
		return QuoteResponse{}, err
	}
	option, err := models.ParsePaymentOption(req.PaymentOption)
	if err != nil {
		return QuoteResponse{}, &validators.InputValidationError{Message: err.Error(), Field: "paymentOption", Tag: "oneof"}
	}

	cart, address, found, err := cs.loadCheckout(ctx, session, req.Address)
	if err != nil {
		return QuoteResponse{}, err
	}
	if !found {
		return QuoteResponse{}, &validators.InputValidationError{Message: ErrAddressRequired.Error(), Field: "address", Tag: "required"}
	}

	delivery := cs.resolver.BaseCharge(ctx, address.Destination())
	calc := cs.resolver.Calculator()
	resp := QuoteResponse{
		Options:  make(map[models.PaymentOption]models.PriceBreakdown, len(allPaymentOptions)),
		Delivery: delivery,
		Cart:     cart,
	}
	for _, opt := range allPaymentOptions {
		resp.Options[opt] = calc.Breakdown(cart, opt, delivery.Base, delivery.Degraded)
	}
	resp.Selected = resp.Options[option]
	return resp, nil
}

func (cs *CheckoutServiceImpl) CurrentStep(ctx context.Context, session models.Session) models.CheckoutStep {
	return cs.sessions.GetStep(ctx, session.Key())
}

// AdvanceStep moves checkout along its transition table. Leaving the
// address step needs a valid saved address, leaving summary a non-empty
// cart.
func (cs *CheckoutServiceImpl) AdvanceStep(ctx context.Context, session models.Session, event models.CheckoutEvent) (models.CheckoutStep, error) {
	current := cs.CurrentStep(ctx, session)
	if event == models.CheckoutEventConfirm {
		return current, &validators.InputValidationError{
			Message: "confirmation is reached by placing an order",
			Field:   "event",
			Tag:     "oneof",
		}
	}
	if current == models.CheckoutStepConfirmation && event == models.CheckoutEventNext {
		// a finished checkout starts over
		current = models.CheckoutStepAddress
	}

	next, err := current.Transition(event)
	if err != nil {
		return current, &validators.InputValidationError{Message: err.Error(), Field: "event", Tag: "transition"}
	}

	if event == models.CheckoutEventNext {
		switch current {
		case models.CheckoutStepAddress:
			address, ok := cs.GetAddress(ctx, session)
			if !ok {
				return current, &validators.InputValidationError{Message: ErrAddressRequired.Error(), Field: "address", Tag: "required"}
			}
			if err := common.ValidateStruct(address); err != nil {
				return current, err
			}
		case models.CheckoutStepSummary:
			cart, err := cs.carts.EnsureCart(ctx, session)
			if err != nil {
				return current, err
			}
			if cart.IsEmpty() {
				return current, emptyCartError()
			}
			events.Emit(ctx, cs.events, events.Event{
				Type:    events.EventBeginCheckout,
				Session: session.Key(),
				Value:   cart.TotalDiscountedPrice,
				Items:   cart.ItemCount(),
			})
		}
	}

	if err := cs.sessions.SetStep(ctx, session.Key(), next); err != nil {
		return current, err
	}
	return next, nil
}

// PlaceOrder validates, submits and pays for the session's cart. The cart
// stays locked against other mutations for the whole call.
func (cs *CheckoutServiceImpl) PlaceOrder(ctx context.Context, session models.Session, req models.PlaceOrderRequest) (PlaceOrderResult, error) {
	if err := common.ValidateStruct(req); err != nil {
		return PlaceOrderResult{}, err
	}
	option, err := models.ParsePaymentOption(req.PaymentOption)
	if err != nil {
		return PlaceOrderResult{}, &validators.InputValidationError{Message: err.Error(), Field: "paymentOption", Tag: "oneof"}
	}
	choice, err := models.ParseOutletChoice(req.OutletChoice)
	if err != nil {
		return PlaceOrderResult{}, &validators.InputValidationError{Message: err.Error(), Field: "outletChoice", Tag: "oneof"}
	}
	if req.Address != nil {
		if err := common.ValidateStruct(*req.Address); err != nil {
			return PlaceOrderResult{}, err
		}
	}

	ctx, release, err := cs.carts.Lock(ctx, session)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	defer release()

	cart, address, found, err := cs.loadCheckout(ctx, session, req.Address)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	if cart.IsEmpty() {
		return PlaceOrderResult{}, emptyCartError()
	}
	if !found {
		return PlaceOrderResult{}, &validators.InputValidationError{Message: ErrAddressRequired.Error(), Field: "address", Tag: "required"}
	}
	if err := cs.assembler.Validate(cart, address); err != nil {
		return PlaceOrderResult{}, err
	}

	payload, breakdown := cs.assembler.Assemble(ctx, session, cart, address, option)
	if NeedsChoice(option, choice) {
		return PlaceOrderResult{Breakdown: breakdown, Payment: ChoiceRequired(breakdown.AmountDueNow)}, nil
	}

	order, err := cs.assembler.Submit(ctx, session, payload, breakdown)
	if err != nil {
		return PlaceOrderResult{}, err
	}

	outcome, err := cs.dispatcher.Dispatch(ctx, session, order, option, choice, breakdown.AmountDueNow)
	if err != nil {
		return PlaceOrderResult{Order: &order, Breakdown: breakdown}, fmt.Errorf("order %s placed but payment failed: %w", order.Id, err)
	}
	return PlaceOrderResult{Order: &order, Breakdown: breakdown, Payment: outcome}, nil
}
