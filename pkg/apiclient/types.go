package apiclient

import (
	"encoding/json"
	"strings"

	"khoomi-api-io/checkout/pkg/models"

	"github.com/shopspring/decimal"
)

type ApplyPromoRequest struct {
	Code            string           `json:"code"`
	IsGuestCheckout bool             `json:"isGuestCheckout,omitempty"`
	Subtotal        *decimal.Decimal `json:"subtotal,omitempty"`
}

type PaymentRequest struct {
	PaymentOption models.PaymentOption `json:"paymentOption"`
	OutletChoice  models.OutletChoice  `json:"outletChoice,omitempty"`
	Amount        decimal.Decimal      `json:"amount"`
	IsGuest       bool                 `json:"isGuestCheckout,omitempty"`
}

type PaymentResult struct {
	Confirmed   bool   `json:"confirmed"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Message     string `json:"message,omitempty"`
}

type PaymentVerification struct {
	OrderId   string          `json:"orderId"`
	PaymentId string          `json:"paymentId"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
}

var paidStatuses = map[string]bool{
	"paid": true, "success": true, "successful": true,
	"completed": true, "valid": true, "validated": true,
}

func (v PaymentVerification) Paid() bool {
	return paidStatuses[strings.ToLower(strings.TrimSpace(v.Status))]
}

// redirectURLKeys lists the field names gateways use for the payment page.
var redirectURLKeys = []string{"url", "redirectUrl", "redirectURL", "GatewayPageURL", "bkashURL", "paymentUrl"}

// redirectURL finds the gateway URL in the reply data, or at the top level
// of the body, or as the data value itself.
func redirectURL(res Result) string {
	var s string
	if err := json.Unmarshal(res.Data, &s); err == nil && isHTTPURL(s) {
		return s
	}
	for _, raw := range []json.RawMessage{res.Data, res.Body} {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		for _, key := range redirectURLKeys {
			var u string
			if err := json.Unmarshal(fields[key], &u); err == nil && isHTTPURL(u) {
				return u
			}
		}
	}
	return ""
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
