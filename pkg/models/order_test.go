package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPaymentOptionUsesGateway(t *testing.T) {
	tests := []struct {
		option PaymentOption
		want   bool
	}{
		{PaymentOptionOnline, true},
		{PaymentOptionBkash, true},
		{PaymentOptionCOD, false},
		{PaymentOptionOutlet, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.option), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.option.UsesGateway())
		})
	}
}

func TestCartItemNormalize(t *testing.T) {
	tests := []struct {
		name       string
		price      string
		discounted string
		want       string
	}{
		{"free line stays free", "300", "0", "0"},
		{"negative falls back to price", "300", "-5", "300"},
		{"above price clamps", "300", "450", "300"},
		{"regular discount kept", "300", "250", "250"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := CartItem{Price: decimal.RequireFromString(tt.price), DiscountedPrice: decimal.RequireFromString(tt.discounted)}
			item.Normalize()
			assert.True(t, decimal.RequireFromString(tt.want).Equal(item.DiscountedPrice), "got %s", item.DiscountedPrice)
		})
	}
}
