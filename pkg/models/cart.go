package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func init() {
	// The commerce API speaks plain JSON numbers for every amount.
	decimal.MarshalJSONWithoutQuotes = true
}

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

type PromoDetails struct {
	Code              string           `json:"code" validate:"required"`
	DiscountType      DiscountType     `json:"discountType" validate:"oneof=PERCENTAGE FIXED"`
	DiscountAmount    decimal.Decimal  `json:"discountAmount"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount,omitempty"`
}

type CartItem struct {
	Id              string          `json:"_id"`
	ProductId       string          `json:"productId" validate:"required"`
	Title           string          `json:"title,omitempty"`
	Image           string          `json:"image,omitempty"`
	Size            string          `json:"size,omitempty"`
	Color           string          `json:"color,omitempty"`
	Quantity        int             `json:"quantity" validate:"gte=1"`
	Price           decimal.Decimal `json:"price"`
	DiscountedPrice decimal.Decimal `json:"discountedPrice"`
}

// GuestItemKey is the stable identity of a guest cart line.
func GuestItemKey(productId, size, color string) string {
	return fmt.Sprintf("%s:%s:%s", productId, size, color)
}

// Normalize clamps prices so that 0 <= discountedPrice <= price. A zero
// discounted price is a free line and is kept.
func (ci *CartItem) Normalize() {
	if ci.Price.IsNegative() {
		ci.Price = decimal.Zero
	}
	if ci.DiscountedPrice.IsNegative() {
		ci.DiscountedPrice = ci.Price
	}
	if ci.DiscountedPrice.GreaterThan(ci.Price) {
		ci.DiscountedPrice = ci.Price
	}
}

func (ci CartItem) LineTotal() decimal.Decimal {
	return ci.Price.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

func (ci CartItem) LineDiscount() decimal.Decimal {
	return ci.Price.Sub(ci.DiscountedPrice).Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

type Cart struct {
	Id                   string          `json:"_id,omitempty"`
	Items                []CartItem      `json:"items"`
	TotalPrice           decimal.Decimal `json:"totalPrice"`
	ProductDiscount      decimal.Decimal `json:"productDiscount"`
	PromoCodeDiscount    decimal.Decimal `json:"promoCodeDiscount"`
	Discount             decimal.Decimal `json:"discount"`
	TotalDiscountedPrice decimal.Decimal `json:"totalDiscountedPrice"`
	PromoDetails         *PromoDetails   `json:"promoDetails,omitempty"`
	DeliveryCharge       decimal.Decimal `json:"deliveryCharge"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c Cart) FindItem(id string) (int, bool) {
	for i, item := range c.Items {
		if item.Id == id {
			return i, true
		}
	}
	return -1, false
}

type CartItemRequest struct {
	ProductId       string              `json:"productId" validate:"required,notundefined"`
	Title           string              `json:"title"`
	Image           string              `json:"image"`
	Size            string              `json:"size" validate:"notundefined"`
	Color           string              `json:"color" validate:"notundefined"`
	Quantity        int                 `json:"quantity" validate:"gte=1,lte=50"`
	Price           decimal.Decimal     `json:"price"`
	DiscountedPrice decimal.NullDecimal `json:"discountedPrice"`
}

// UnitDiscountedPrice is the requested discounted price, or the list price
// when the request left it out.
func (r CartItemRequest) UnitDiscountedPrice() decimal.Decimal {
	if r.DiscountedPrice.Valid {
		return r.DiscountedPrice.Decimal
	}
	return r.Price
}

type CartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=1,lte=50"`
}

type PromoCodeRequest struct {
	Code string `json:"code" validate:"required,notundefined,max=64"`
}
