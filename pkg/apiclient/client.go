package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/util"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Client talks to the commerce REST API. Calls are never retried here;
// order and payment submissions must not be duplicated.
type Client struct {
	baseURL string
	http    *resty.Client
	direct  *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		direct: &http.Client{Timeout: timeout},
	}
}

type call struct {
	method string
	path   string
	token  string
	body   interface{}
	params map[string]string
	query  map[string]string
}

func (c *Client) do(ctx context.Context, in call) (Result, error) {
	req := c.http.R().SetContext(ctx)
	if in.token != "" {
		req.SetAuthToken(in.token)
	}
	if in.body != nil {
		req.SetBody(in.body)
	}
	if len(in.params) > 0 {
		req.SetPathParams(in.params)
	}
	if len(in.query) > 0 {
		req.SetQueryParams(in.query)
	}

	resp, err := req.Execute(in.method, in.path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{Outcome: RecoverableError}, errors.Wrapf(ctxErr, "%s %s", in.method, in.path)
		}
		apiErr := &APIError{Message: "commerce API unreachable: " + err.Error(), Transient: true}
		return Result{Outcome: RecoverableError, Err: apiErr}, apiErr
	}

	res := Classify(resp.StatusCode(), resp.Body())
	if res.Outcome != Success {
		util.LogInfo("upstream call failed",
			zap.String("method", in.method),
			zap.String("path", in.path),
			zap.Int("status", res.Status),
			zap.String("outcome", res.Outcome.String()),
		)
		return res, res.Err
	}
	return res, nil
}

func decodeData(res Result, out interface{}) error {
	if len(res.Data) == 0 || string(res.Data) == "null" {
		return nil
	}
	return errors.Wrap(json.Unmarshal(res.Data, out), "decode upstream data")
}

func (c *Client) GetCart(ctx context.Context, token string) (models.Cart, error) {
	var cart models.Cart
	res, err := c.do(ctx, call{method: http.MethodGet, path: "/api/cart", token: token})
	if err != nil {
		return cart, err
	}
	err = decodeData(res, &cart)
	return cart, err
}

func (c *Client) CreateCart(ctx context.Context, token string) (models.Cart, error) {
	var cart models.Cart
	res, err := c.do(ctx, call{method: http.MethodPost, path: "/api/cart", token: token})
	if err != nil {
		return cart, err
	}
	err = decodeData(res, &cart)
	return cart, err
}

func (c *Client) AddToCart(ctx context.Context, token string, item models.CartItemRequest) error {
	item.DiscountedPrice = decimal.NewNullDecimal(item.UnitDiscountedPrice())
	_, err := c.do(ctx, call{method: http.MethodPut, path: "/api/cart/add", token: token, body: item})
	return err
}

func (c *Client) RemoveFromCart(ctx context.Context, token, itemId string) error {
	_, err := c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/api/cart/remove/{id}",
		token:  token,
		params: map[string]string{"id": itemId},
	})
	return err
}

func (c *Client) UpdateCartItem(ctx context.Context, token, itemId string, quantity int) error {
	_, err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/api/cart/update/{id}",
		token:  token,
		params: map[string]string{"id": itemId},
		body:   models.CartQuantityRequest{Quantity: quantity},
	})
	return err
}

// ApplyPromo validates a code upstream. Guests call it without a token and
// pass their subtotal; the reply carries the promo details either on a
// cart or on its own.
func (c *Client) ApplyPromo(ctx context.Context, token string, req ApplyPromoRequest) (models.Cart, error) {
	var cart models.Cart
	res, err := c.do(ctx, call{method: http.MethodPost, path: "/api/cart/apply-promo", token: token, body: req})
	if err != nil {
		return cart, err
	}
	if err := decodeData(res, &cart); err != nil {
		return cart, err
	}
	if cart.PromoDetails == nil {
		var promo models.PromoDetails
		if err := decodeData(res, &promo); err == nil && promo.Code != "" {
			cart.PromoDetails = &promo
		}
	}
	if cart.PromoDetails == nil {
		return cart, &APIError{Status: res.Status, Message: "promo response carried no promo details"}
	}
	return cart, nil
}

func (c *Client) RemovePromo(ctx context.Context, token string) error {
	_, err := c.do(ctx, call{method: http.MethodDelete, path: "/api/cart/remove-promo", token: token})
	return err
}

func (c *Client) ClearCart(ctx context.Context, token string) error {
	_, err := c.do(ctx, call{method: http.MethodDelete, path: "/api/cart/clear", token: token})
	return err
}

// ClearCartDirect clears the cart with a bare HTTP request that shares
// nothing with the resty client. It is the last step of cart recovery.
func (c *Client) ClearCartDirect(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/cart/clear", nil)
	if err != nil {
		return errors.Wrap(err, "build direct clear request")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.direct.Do(req)
	if err != nil {
		return &APIError{Message: "direct cart clear failed: " + err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &APIError{Status: resp.StatusCode, Message: "direct cart clear rejected", Transient: transientStatus(resp.StatusCode)}
}

func (c *Client) CreateOrder(ctx context.Context, token string, payload models.OrderPayload) (models.Order, error) {
	return c.submitOrder(ctx, "/api/orders", token, payload)
}

func (c *Client) CreateGuestOrder(ctx context.Context, payload models.OrderPayload) (models.Order, error) {
	return c.submitOrder(ctx, "/api/orders/guest", "", payload)
}

func (c *Client) submitOrder(ctx context.Context, path, token string, payload models.OrderPayload) (models.Order, error) {
	var order models.Order
	res, err := c.do(ctx, call{method: http.MethodPost, path: path, token: token, body: payload})
	if err != nil {
		return order, err
	}
	if err := decodeData(res, &order); err != nil {
		return order, err
	}
	if order.Id == "" {
		return order, &APIError{Status: res.Status, Message: "order response carried no order id"}
	}
	return order, nil
}

func (c *Client) GetOrder(ctx context.Context, token, orderId string) (models.Order, error) {
	return c.fetchOrder(ctx, "/api/orders/{id}", token, orderId)
}

func (c *Client) TrackGuestOrder(ctx context.Context, orderId string) (models.Order, error) {
	return c.fetchOrder(ctx, "/api/orders/guest/track/{id}", "", orderId)
}

func (c *Client) fetchOrder(ctx context.Context, path, token, orderId string) (models.Order, error) {
	var order models.Order
	res, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   path,
		token:  token,
		params: map[string]string{"id": orderId},
	})
	if err != nil {
		return order, err
	}
	if err := decodeData(res, &order); err != nil {
		return order, err
	}
	if order.Id == "" {
		return order, &APIError{Status: http.StatusNotFound, Message: "order not found"}
	}
	return order, nil
}

func (c *Client) ListOrders(ctx context.Context, token string) ([]models.Order, error) {
	var orders []models.Order
	res, err := c.do(ctx, call{method: http.MethodGet, path: "/api/orders/user", token: token})
	if err != nil {
		return nil, err
	}
	err = decodeData(res, &orders)
	return orders, err
}

// InitiatePayment starts payment for an order. A confirmed result means the
// order needs no further payment step; otherwise RedirectURL is set.
func (c *Client) InitiatePayment(ctx context.Context, token, orderId string, req PaymentRequest) (PaymentResult, error) {
	res, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/payments/{orderId}",
		token:  token,
		params: map[string]string{"orderId": orderId},
		body:   req,
	})
	if err != nil {
		return PaymentResult{}, err
	}

	out := PaymentResult{Message: res.Message, RedirectURL: redirectURL(res)}
	if out.RedirectURL == "" && res.Marker {
		out.Confirmed = true
	}
	return out, nil
}

func (c *Client) VerifyPayment(ctx context.Context, token, paymentId, orderId string) (PaymentVerification, error) {
	var v PaymentVerification
	res, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/payments",
		token:  token,
		query:  map[string]string{"payment_id": paymentId, "order_id": orderId},
	})
	if err != nil {
		return v, err
	}
	if err := decodeData(res, &v); err != nil {
		return v, err
	}
	if v.OrderId == "" {
		v.OrderId = orderId
	}
	if v.PaymentId == "" {
		v.PaymentId = paymentId
	}
	return v, nil
}

func (c *Client) SendOrderSMS(ctx context.Context, token, orderId string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/orders/{id}/send-sms",
		token:  token,
		params: map[string]string{"id": orderId},
	})
	return err
}
