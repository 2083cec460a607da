package services

import (
	"context"
	"testing"

	"khoomi-api-io/checkout/internal/events"
	"khoomi-api-io/checkout/internal/validators"
	"khoomi-api-io/checkout/pkg/apiclient"
	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	*cartFixture
	drafts     *MemoryDraftRepository
	assembler  *OrderAssembler
	dispatcher *PaymentDispatcher
	checkout   CheckoutService
	orders     OrderService
}

func newCheckoutFixture() *checkoutFixture {
	f := newCartFixture()
	drafts := NewMemoryDraftRepository()
	resolver := pricing.NewDeliveryChargeResolver(pricing.DefaultTierTable(), nil, pricing.Calculator{})
	assembler := NewOrderAssembler(f.api, resolver, f.sessions, drafts)
	dispatcher := NewPaymentDispatcher(f.api, f.store, f.sessions, f.events)
	return &checkoutFixture{
		cartFixture: f,
		drafts:      drafts,
		assembler:   assembler,
		dispatcher:  dispatcher,
		checkout:    NewCheckoutService(f.store, f.sessions, resolver, assembler, dispatcher, f.events),
		orders:      NewOrderStatusView(f.api, f.sessions, drafts),
	}
}

func (f *checkoutFixture) guestWithCart(t *testing.T, price string) {
	t.Helper()
	_, err := f.store.AddItem(context.Background(), guest, models.CartItemRequest{ProductId: "p1", Quantity: 1, Price: dec(price)})
	require.NoError(t, err)
	_, err = f.checkout.SaveAddress(context.Background(), guest, dhakaAddress())
	require.NoError(t, err)
}

func (f *checkoutFixture) memberWithCart(t *testing.T, price string) {
	t.Helper()
	f.api.seedCart("tok", item("p1", price, price, 1))
	_, err := f.checkout.SaveAddress(context.Background(), member, dhakaAddress())
	require.NoError(t, err)
}

func TestAssemblerValidatesBeforeNetwork(t *testing.T) {
	f := newCheckoutFixture()
	cart := models.Cart{Items: []models.CartItem{item("p1", "500", "500", 1)}}
	addr := dhakaAddress()
	addr.Mobile = ""

	err := f.assembler.Validate(cart, addr)
	var verr *validators.InputValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "mobile", verr.Field)

	err = f.assembler.Validate(models.Cart{}, dhakaAddress())
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cart", verr.Field)
}

func TestPlaceOrderRejectsInvalidAddressWithoutSubmitting(t *testing.T) {
	f := newCheckoutFixture()
	f.guestWithCart(t, "500")
	addr := dhakaAddress()
	addr.Mobile = "12345"

	_, err := f.checkout.PlaceOrder(context.Background(), guest, models.PlaceOrderRequest{PaymentOption: "cod", Address: &addr})
	var verr *validators.InputValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "mobile", verr.Field)
	assert.Equal(t, 0, f.api.count("CreateGuestOrder"))
	assert.Equal(t, 0, f.api.count("InitiatePayment"))
}

func TestPlaceOrderCODConfirmed(t *testing.T) {
	f := newCheckoutFixture()
	f.guestWithCart(t, "1000")
	f.api.payment = apiclient.PaymentResult{Confirmed: true, Message: "Order confirmed with Cash on Delivery"}
	ctx := context.Background()

	res, err := f.checkout.PlaceOrder(ctx, guest, models.PlaceOrderRequest{PaymentOption: "cod"})
	require.NoError(t, err)

	assert.Equal(t, PaymentConfirmed, res.Payment.Status)
	assert.Equal(t, "ord-1", res.Payment.OrderId)
	assert.Equal(t, "60", res.Payment.AmountDueNow.String())
	assert.Equal(t, "1060", res.Breakdown.OrderTotal.String())
	assert.Equal(t, "1000", res.Breakdown.PayableOnDelivery.String())

	assert.Equal(t, 1, f.api.count("CreateGuestOrder"))
	assert.True(t, f.api.lastPayload.IsGuestCheckout)
	assert.Equal(t, "1060", f.api.lastPayload.TotalDiscountedPrice.String())
	assert.Equal(t, "60", f.api.lastPayload.DeliveryCharge.String())
	assert.Equal(t, "60", f.api.lastPayment.Amount.String())

	assert.True(t, f.sessions.GetCart(ctx, guest.Key()).IsEmpty())
	assert.Equal(t, models.CheckoutStepConfirmation, f.checkout.CurrentStep(ctx, guest))
	assert.Len(t, f.events.OfType(events.EventPurchase), 1)
	assert.Equal(t, 1, f.api.count("SendOrderSMS"))

	draft, err := f.drafts.FindByOrderId(ctx, guest.Key(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "1060", draft.Payload.TotalDiscountedPrice.String())
}

func TestPlaceOrderMemberUsesAccountEndpoint(t *testing.T) {
	f := newCheckoutFixture()
	f.memberWithCart(t, "1000")
	f.api.payment = apiclient.PaymentResult{Confirmed: true}

	_, err := f.checkout.PlaceOrder(context.Background(), member, models.PlaceOrderRequest{PaymentOption: "cod"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.api.count("CreateOrder"))
	assert.Equal(t, 0, f.api.count("CreateGuestOrder"))
	assert.Equal(t, "tok", f.api.lastToken)
	assert.False(t, f.api.lastPayload.IsGuestCheckout)
	assert.Equal(t, 1, f.api.count("ClearCart"))
}

func TestPlaceOrderOnlineRedirect(t *testing.T) {
	f := newCheckoutFixture()
	f.memberWithCart(t, "2500")
	f.api.payment = apiclient.PaymentResult{RedirectURL: "https://pay.example/session/abc"}

	res, err := f.checkout.PlaceOrder(context.Background(), member, models.PlaceOrderRequest{PaymentOption: "online"})
	require.NoError(t, err)

	assert.Equal(t, PaymentRedirect, res.Payment.Status)
	assert.Equal(t, "https://pay.example/session/abc", res.Payment.RedirectURL)
	assert.Equal(t, "2500", res.Payment.AmountDueNow.String())
	assert.True(t, res.Breakdown.DeliveryWaived)
	assert.Equal(t, 1, f.api.count("ClearCart"))
	assert.Equal(t, 0, f.api.count("SendOrderSMS"))
}

func TestPlaceOrderMissingRedirectLeavesCart(t *testing.T) {
	f := newCheckoutFixture()
	f.memberWithCart(t, "800")
	f.api.payment = apiclient.PaymentResult{}

	res, err := f.checkout.PlaceOrder(context.Background(), member, models.PlaceOrderRequest{PaymentOption: "bkash"})
	require.ErrorIs(t, err, ErrMissingRedirectURL)
	require.NotNil(t, res.Order)
	assert.Equal(t, "ord-1", res.Order.Id)

	assert.Equal(t, 1, f.api.count("InitiatePayment"))
	assert.Equal(t, 0, f.api.count("ClearCart"))
	assert.False(t, f.api.carts["tok"].IsEmpty())
	assert.Empty(t, f.events.OfType(events.EventPurchase))
	assert.NotEqual(t, models.CheckoutStepConfirmation, f.checkout.CurrentStep(context.Background(), member))
}

func TestPlaceOrderOutletChoice(t *testing.T) {
	f := newCheckoutFixture()
	f.guestWithCart(t, "1000")
	ctx := context.Background()

	res, err := f.checkout.PlaceOrder(ctx, guest, models.PlaceOrderRequest{PaymentOption: "outlet"})
	require.NoError(t, err)
	assert.Equal(t, PaymentChoiceRequired, res.Payment.Status)
	assert.Equal(t, []models.OutletChoice{models.OutletChoiceCash, models.OutletChoiceOnline}, res.Payment.Choices)
	assert.Equal(t, "1000", res.Payment.AmountDueNow.String())
	assert.Nil(t, res.Order)
	assert.Equal(t, 0, f.api.count("CreateGuestOrder"))

	res, err = f.checkout.PlaceOrder(ctx, guest, models.PlaceOrderRequest{PaymentOption: "outlet", OutletChoice: "cash"})
	require.NoError(t, err)
	assert.Equal(t, PaymentConfirmed, res.Payment.Status)
	assert.Equal(t, 0, f.api.count("InitiatePayment"))
	assert.Equal(t, "0", res.Breakdown.DeliveryCharge.String())
	assert.True(t, f.sessions.GetCart(ctx, guest.Key()).IsEmpty())
}

func TestPlaceOrderOutletOnlineUsesGateway(t *testing.T) {
	f := newCheckoutFixture()
	f.guestWithCart(t, "1000")
	f.api.payment = apiclient.PaymentResult{RedirectURL: "https://pay.example/outlet"}

	res, err := f.checkout.PlaceOrder(context.Background(), guest, models.PlaceOrderRequest{PaymentOption: "outlet", OutletChoice: "online"})
	require.NoError(t, err)
	assert.Equal(t, PaymentRedirect, res.Payment.Status)
	assert.Equal(t, models.OutletChoiceOnline, f.api.lastPayment.OutletChoice)
	assert.True(t, f.api.lastPayment.IsGuest)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newCheckoutFixture()
	_, err := f.checkout.SaveAddress(context.Background(), guest, dhakaAddress())
	require.NoError(t, err)

	_, err = f.checkout.PlaceOrder(context.Background(), guest, models.PlaceOrderRequest{PaymentOption: "cod"})
	var verr *validators.InputValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cart", verr.Field)
}

func TestPlaceOrderWhileCartBusy(t *testing.T) {
	f := newCheckoutFixture()
	f.guestWithCart(t, "1000")

	_, release, err := f.store.Lock(context.Background(), guest)
	require.NoError(t, err)
	defer release()

	_, err = f.checkout.PlaceOrder(context.Background(), guest, models.PlaceOrderRequest{PaymentOption: "cod"})
	assert.ErrorIs(t, err, ErrCartBusy)
}

func TestQuoteAllOptions(t *testing.T) {
	f := newCheckoutFixture()
	f.guestWithCart(t, "1000")

	q, err := f.checkout.Quote(context.Background(), guest, models.QuoteRequest{PaymentOption: "cod"})
	require.NoError(t, err)

	assert.Equal(t, pricing.TierPrimary, q.Delivery.Tier)
	assert.Equal(t, models.PaymentOptionCOD, q.Selected.PaymentOption)
	assert.Equal(t, "60", q.Selected.AmountDueNow.String())

	want := map[models.PaymentOption][2]string{
		models.PaymentOptionCOD:    {"1060", "60"},
		models.PaymentOptionOnline: {"1060", "1060"},
		models.PaymentOptionBkash:  {"1060", "1060"},
		models.PaymentOptionOutlet: {"1000", "1000"},
	}
	require.Len(t, q.Options, len(want))
	for option, amounts := range want {
		b := q.Options[option]
		assert.Equal(t, amounts[0], b.OrderTotal.String(), "%s total", option)
		assert.Equal(t, amounts[1], b.AmountDueNow.String(), "%s due now", option)
	}
}

func TestQuoteNeedsAddress(t *testing.T) {
	f := newCheckoutFixture()
	_, err := f.checkout.Quote(context.Background(), guest, models.QuoteRequest{PaymentOption: "cod"})
	var verr *validators.InputValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "address", verr.Field)
}

func TestSaveAddressReturnsTier(t *testing.T) {
	f := newCheckoutFixture()
	addr := dhakaAddress()
	addr.City, addr.Zone, addr.Area = "Gazipur", "Tongi", "Station Road"

	quote, err := f.checkout.SaveAddress(context.Background(), guest, addr)
	require.NoError(t, err)
	assert.Equal(t, pricing.TierSuburb, quote.Tier)
	assert.Equal(t, "90", quote.Base.String())

	got, ok := f.checkout.GetAddress(context.Background(), guest)
	require.True(t, ok)
	assert.Equal(t, "Gazipur", got.City)
}

func TestAdvanceStepGuards(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	var verr *validators.InputValidationError

	_, err := f.checkout.AdvanceStep(ctx, guest, models.CheckoutEventNext)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "address", verr.Field)

	_, err = f.checkout.SaveAddress(ctx, guest, dhakaAddress())
	require.NoError(t, err)
	step, err := f.checkout.AdvanceStep(ctx, guest, models.CheckoutEventNext)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStepSummary, step)

	_, err = f.checkout.AdvanceStep(ctx, guest, models.CheckoutEventNext)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cart", verr.Field)

	_, err = f.store.AddItem(ctx, guest, models.CartItemRequest{ProductId: "p1", Quantity: 1, Price: dec("100")})
	require.NoError(t, err)
	step, err = f.checkout.AdvanceStep(ctx, guest, models.CheckoutEventNext)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStepPayment, step)
	assert.Len(t, f.events.OfType(events.EventBeginCheckout), 1)

	step, err = f.checkout.AdvanceStep(ctx, guest, models.CheckoutEventBack)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStepSummary, step)

	_, err = f.checkout.AdvanceStep(ctx, guest, models.CheckoutEventConfirm)
	assert.Error(t, err)
	assert.Equal(t, models.CheckoutStepSummary, f.checkout.CurrentStep(ctx, guest))
}

func TestAdvanceStepBackFromAddressRejected(t *testing.T) {
	f := newCheckoutFixture()
	_, err := f.checkout.AdvanceStep(context.Background(), guest, models.CheckoutEventBack)
	var verr *validators.InputValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "transition", verr.Tag)
}

func TestPlaceOrderRejectsOverrideAddressBeforeUpstream(t *testing.T) {
	f := newCheckoutFixture()
	address := dhakaAddress()
	address.Mobile = ""

	_, err := f.checkout.PlaceOrder(context.Background(), member, models.PlaceOrderRequest{
		PaymentOption: "cod",
		Address:       &address,
	})
	var invalid *validators.InputValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "mobile", invalid.Field)
	assert.Equal(t, 0, f.api.count("GetCart"))
	assert.Equal(t, 0, f.api.count("CreateCart"))
	assert.Equal(t, 0, f.api.count("CreateOrder"))
}
