package services

import (
	"context"
	"strings"

	"khoomi-api-io/checkout/internal/validators"
	"khoomi-api-io/checkout/pkg/apiclient"
	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/util"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type OrderSource string

const (
	OrderSourceAccount OrderSource = "account"
	OrderSourceGuest   OrderSource = "guest"
	OrderSourceDraft   OrderSource = "draft"
)

// LandingContext carries the query of a payment return page.
type LandingContext struct {
	PaymentId     string `form:"payment_id"`
	Status        string `form:"status"`
	PaymentOption string `form:"payment_option"`
	Confirmation  bool   `form:"confirmation"`
}

// IsPaymentLanding reports whether the lookup follows a checkout or
// gateway return. Only those may fall back to a cached draft.
func (l LandingContext) IsPaymentLanding() bool {
	return l.PaymentId != "" || l.Confirmation
}

func (l LandingContext) confirmsOffline() bool {
	if !l.Confirmation {
		return false
	}
	option, err := models.ParsePaymentOption(l.PaymentOption)
	if err != nil {
		return false
	}
	return option == models.PaymentOptionCOD || option == models.PaymentOptionOutlet
}

type OrderView struct {
	Order      models.Order `json:"order"`
	Source     OrderSource  `json:"source"`
	Degraded   bool         `json:"degraded"`
	Optimistic bool         `json:"optimistic"`
	// Final is set once the order can no longer change; clients stop
	// polling.
	Final bool `json:"final"`
}

// OrderStatusView implements OrderService. A lookup walks the account
// endpoint, then guest tracking, then the cached draft.
type OrderStatusView struct {
	api      CommerceAPI
	sessions *GuestSessionStore
	drafts   DraftRepository
}

func NewOrderStatusView(api CommerceAPI, sessions *GuestSessionStore, drafts DraftRepository) OrderService {
	return &OrderStatusView{api: api, sessions: sessions, drafts: drafts}
}

func (v *OrderStatusView) GetOrderStatus(ctx context.Context, session models.Session, orderId string, landing LandingContext) (OrderView, error) {
	orderId = strings.TrimSpace(orderId)
	if orderId == "" {
		return OrderView{}, validators.Required("orderId")
	}

	var lastErr error
	tryGuest := session.IsGuest()
	if !session.IsGuest() {
		order, err := v.api.GetOrder(ctx, session.Token, orderId)
		if err == nil {
			return v.view(order, OrderSourceAccount, landing), nil
		}
		lastErr = err
		tryGuest = isGuestSignal(err)
	}

	if tryGuest {
		order, err := v.api.TrackGuestOrder(ctx, orderId)
		if err == nil {
			return v.view(order, OrderSourceGuest, landing), nil
		}
		lastErr = err
	}

	if err := ctx.Err(); err != nil {
		return OrderView{}, err
	}

	if landing.IsPaymentLanding() {
		if draft, ok := v.findDraft(ctx, session, orderId); ok {
			util.LogWarning("serving order from draft", zap.String("order", orderId), zap.Error(lastErr))
			order := draft.Order()
			order.Id = orderId
			view := v.view(order, OrderSourceDraft, landing)
			view.Degraded = true
			return view, nil
		}
	}

	return OrderView{}, &OrderNotFoundError{
		OrderId:   orderId,
		Retryable: retryable(lastErr),
		Cause:     lastErr,
	}
}

// retryable is true unless the upstream positively said the order does
// not exist.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := asAPIError(err); !ok {
		return true
	}
	return isTransient(err) && !isNotFound(err)
}

func (v *OrderStatusView) view(order models.Order, source OrderSource, landing LandingContext) OrderView {
	if status, err := models.ParseOrderStatus(string(order.OrderStatus)); err == nil {
		order.OrderStatus = status
	}
	view := OrderView{Order: order, Source: source}
	if landing.confirmsOffline() && order.OrderStatus == models.OrderStatusPlaced &&
		order.OrderStatus.CanTransitionTo(models.OrderStatusConfirmed) {
		view.Order.OrderStatus = models.OrderStatusConfirmed
		view.Optimistic = true
	}
	view.Final = view.Order.OrderStatus.IsTerminal()
	return view
}

func (v *OrderStatusView) findDraft(ctx context.Context, session models.Session, orderId string) (models.OrderDraft, bool) {
	if draft, ok := v.sessions.GetOrderDraft(ctx, session.Key()); ok {
		if draft.OrderId == "" || draft.OrderId == orderId {
			return draft, true
		}
	}
	if v.drafts == nil {
		return models.OrderDraft{}, false
	}
	draft, err := v.drafts.FindByOrderId(ctx, session.Key(), orderId)
	if err != nil {
		if !errors.Is(err, ErrDraftNotFound) {
			util.LogError("order draft lookup failed", err, zap.String("order", orderId))
		}
		return models.OrderDraft{}, false
	}
	return draft, true
}

func (v *OrderStatusView) ListOrders(ctx context.Context, session models.Session) ([]models.Order, error) {
	if session.IsGuest() {
		return nil, ErrLoginRequired
	}
	orders, err := v.api.ListOrders(ctx, session.Token)
	if err != nil {
		return nil, authError(err)
	}
	return orders, nil
}

func (v *OrderStatusView) VerifyPayment(ctx context.Context, session models.Session, paymentId, orderId string) (apiclient.PaymentVerification, error) {
	if strings.TrimSpace(paymentId) == "" {
		return apiclient.PaymentVerification{}, validators.Required("paymentId")
	}
	if strings.TrimSpace(orderId) == "" {
		return apiclient.PaymentVerification{}, validators.Required("orderId")
	}
	res, err := v.api.VerifyPayment(ctx, session.Token, paymentId, orderId)
	if err != nil {
		return apiclient.PaymentVerification{}, authError(err)
	}
	return res, nil
}
