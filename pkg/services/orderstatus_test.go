package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"khoomi-api-io/checkout/pkg/apiclient"
	"khoomi-api-io/checkout/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placedOrder(id string) models.Order {
	return models.Order{Id: id, OrderStatus: models.OrderStatusPlaced, PaymentOption: models.PaymentOptionCOD}
}

func transientErr() error {
	return &apiclient.APIError{Status: http.StatusServiceUnavailable, Message: "upstream unavailable", Transient: true}
}

func TestOrderStatusFromAccount(t *testing.T) {
	f := newCheckoutFixture()
	f.api.getOrder = func(token, id string) (models.Order, error) {
		assert.Equal(t, "tok", token)
		return placedOrder(id), nil
	}

	view, err := f.orders.GetOrderStatus(context.Background(), member, "ord-9", LandingContext{})
	require.NoError(t, err)
	assert.Equal(t, OrderSourceAccount, view.Source)
	assert.Equal(t, models.OrderStatusPlaced, view.Order.OrderStatus)
	assert.False(t, view.Optimistic)
	assert.Equal(t, 0, f.api.count("TrackGuestOrder"))
}

func TestOrderStatusFallsBackToGuestTracking(t *testing.T) {
	f := newCheckoutFixture()
	f.api.getOrder = func(string, string) (models.Order, error) {
		return models.Order{}, &apiclient.APIError{Status: http.StatusUnauthorized, Message: "jwt expired"}
	}
	f.api.trackOrder = func(id string) (models.Order, error) { return placedOrder(id), nil }

	view, err := f.orders.GetOrderStatus(context.Background(), member, "ord-9", LandingContext{})
	require.NoError(t, err)
	assert.Equal(t, OrderSourceGuest, view.Source)
}

func TestOrderStatusGuestSkipsAccountLookup(t *testing.T) {
	f := newCheckoutFixture()
	f.api.trackOrder = func(id string) (models.Order, error) { return placedOrder(id), nil }

	view, err := f.orders.GetOrderStatus(context.Background(), guest, "ord-9", LandingContext{})
	require.NoError(t, err)
	assert.Equal(t, OrderSourceGuest, view.Source)
	assert.Equal(t, 0, f.api.count("GetOrder"))
}

func TestOrderStatusGenuineNotFound(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.orders.GetOrderStatus(context.Background(), guest, "ord-404", LandingContext{})
	var notFound *OrderNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.False(t, notFound.Retryable)
	assert.Equal(t, "ord-404", notFound.OrderId)
}

func TestOrderStatusTransientWithoutLandingIsRetryable(t *testing.T) {
	f := newCheckoutFixture()
	f.api.trackOrder = func(string) (models.Order, error) { return models.Order{}, transientErr() }
	require.NoError(t, f.sessions.SetOrderDraft(context.Background(), guest.Key(), models.OrderDraft{OrderId: "ord-1"}))

	_, err := f.orders.GetOrderStatus(context.Background(), guest, "ord-1", LandingContext{})
	var notFound *OrderNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.True(t, notFound.Retryable)
}

func TestOrderStatusDegradedFromSessionDraft(t *testing.T) {
	f := newCheckoutFixture()
	f.api.trackOrder = func(string) (models.Order, error) { return models.Order{}, transientErr() }
	draft := models.OrderDraft{
		Payload: models.OrderPayload{
			OrderItems:           []models.OrderItem{{ProductId: "p1", Quantity: 1, Price: dec("1000")}},
			TotalDiscountedPrice: dec("1060"),
			PaymentOption:        models.PaymentOptionCOD,
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.sessions.SetOrderDraft(context.Background(), guest.Key(), draft))

	view, err := f.orders.GetOrderStatus(context.Background(), guest, "ord-1", LandingContext{PaymentId: "pay-1"})
	require.NoError(t, err)
	assert.True(t, view.Degraded)
	assert.Equal(t, OrderSourceDraft, view.Source)
	assert.Equal(t, "ord-1", view.Order.Id)
	assert.Equal(t, "1060", view.Order.TotalDiscountedPrice.String())
}

func TestOrderStatusIgnoresDraftForOtherOrder(t *testing.T) {
	f := newCheckoutFixture()
	require.NoError(t, f.sessions.SetOrderDraft(context.Background(), guest.Key(), models.OrderDraft{OrderId: "ord-other"}))

	_, err := f.orders.GetOrderStatus(context.Background(), guest, "ord-1", LandingContext{PaymentId: "pay-1"})
	var notFound *OrderNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestOrderStatusDegradedFromStoredDraft(t *testing.T) {
	f := newCheckoutFixture()
	require.NoError(t, f.drafts.Save(context.Background(), guest.Key(), models.OrderDraft{
		OrderId: "ord-7",
		Payload: models.OrderPayload{TotalDiscountedPrice: dec("500")},
	}))

	view, err := f.orders.GetOrderStatus(context.Background(), guest, "ord-7", LandingContext{Confirmation: true, PaymentOption: "online"})
	require.NoError(t, err)
	assert.True(t, view.Degraded)
	assert.Equal(t, "500", view.Order.TotalDiscountedPrice.String())
	assert.False(t, view.Optimistic)
}

func TestOrderStatusNeverServesAnotherSessionsDraft(t *testing.T) {
	f := newCheckoutFixture()
	require.NoError(t, f.drafts.Save(context.Background(), "guest:someone-else", models.OrderDraft{
		OrderId: "ord-42",
		Payload: models.OrderPayload{TotalDiscountedPrice: dec("500")},
	}))

	_, err := f.orders.GetOrderStatus(context.Background(), guest, "ord-42", LandingContext{Confirmation: true})
	var notFound *OrderNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ord-42", notFound.OrderId)
}

func TestMemoryDraftRepositoryScopesBySession(t *testing.T) {
	repo := NewMemoryDraftRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "owner", models.OrderDraft{OrderId: "ord-1"}))

	draft, err := repo.FindByOrderId(ctx, "owner", "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", draft.OrderId)

	_, err = repo.FindByOrderId(ctx, "intruder", "ord-1")
	assert.ErrorIs(t, err, ErrDraftNotFound)
	_, err = repo.FindByOrderId(ctx, "", "ord-1")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestOrderStatusOptimisticConfirmation(t *testing.T) {
	tests := []struct {
		name       string
		landing    LandingContext
		optimistic bool
	}{
		{"cod confirmation", LandingContext{Confirmation: true, PaymentOption: "cod"}, true},
		{"outlet confirmation", LandingContext{Confirmation: true, PaymentOption: "outlet"}, true},
		{"online landing", LandingContext{Confirmation: true, PaymentOption: "online"}, false},
		{"plain lookup", LandingContext{PaymentOption: "cod"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture()
			f.api.trackOrder = func(id string) (models.Order, error) { return placedOrder(id), nil }

			view, err := f.orders.GetOrderStatus(context.Background(), guest, "ord-1", tt.landing)
			require.NoError(t, err)
			assert.Equal(t, tt.optimistic, view.Optimistic)
			if tt.optimistic {
				assert.Equal(t, models.OrderStatusConfirmed, view.Order.OrderStatus)
			} else {
				assert.Equal(t, models.OrderStatusPlaced, view.Order.OrderStatus)
			}
		})
	}
}

func TestOrderStatusRequiresId(t *testing.T) {
	f := newCheckoutFixture()
	_, err := f.orders.GetOrderStatus(context.Background(), guest, " ", LandingContext{})
	assert.Error(t, err)
	assert.Equal(t, 0, f.api.count("TrackGuestOrder"))
}

func TestListOrdersNeedsLogin(t *testing.T) {
	f := newCheckoutFixture()
	_, err := f.orders.ListOrders(context.Background(), guest)
	assert.ErrorIs(t, err, ErrLoginRequired)

	orders, err := f.orders.ListOrders(context.Background(), member)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, "tok", f.api.lastToken)
}

func TestVerifyPayment(t *testing.T) {
	f := newCheckoutFixture()
	f.api.verifyReply = apiclient.PaymentVerification{OrderId: "ord-1", PaymentId: "pay-1", Status: "PAID"}

	_, err := f.orders.VerifyPayment(context.Background(), guest, "", "ord-1")
	assert.Error(t, err)

	res, err := f.orders.VerifyPayment(context.Background(), guest, "pay-1", "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "PAID", res.Status)
}

func TestOrderStatusNormalizesUpstreamStatus(t *testing.T) {
	f := newCheckoutFixture()
	f.api.trackOrder = func(id string) (models.Order, error) {
		order := placedOrder(id)
		order.OrderStatus = "delivered"
		return order, nil
	}

	view, err := f.orders.GetOrderStatus(context.Background(), guest, "ord-1", LandingContext{Confirmation: true, PaymentOption: "cod"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, view.Order.OrderStatus)
	assert.False(t, view.Optimistic)
	assert.True(t, view.Final)
}
