package pricing

import (
	"khoomi-api-io/checkout/pkg/models"

	"github.com/shopspring/decimal"
)

// DefaultFreeDeliveryThreshold is the discounted subtotal at which gateway
// payments ship for free.
var DefaultFreeDeliveryThreshold = decimal.NewFromInt(2200)

var hundred = decimal.NewFromInt(100)

// Calculator holds the pure price rules. The zero value uses the default
// free-delivery threshold.
type Calculator struct {
	FreeDeliveryThreshold decimal.Decimal
}

func NewCalculator(threshold decimal.Decimal) Calculator {
	return Calculator{FreeDeliveryThreshold: threshold}
}

func (c Calculator) threshold() decimal.Decimal {
	if c.FreeDeliveryThreshold.IsPositive() {
		return c.FreeDeliveryThreshold
	}
	return DefaultFreeDeliveryThreshold
}

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ProductPrice recovers the delivery-free product price from a combined total.
func ProductPrice(totalPrice, deliveryCharge decimal.Decimal) decimal.Decimal {
	return clamp(totalPrice.Sub(deliveryCharge))
}

type FinalPriceInput struct {
	ProductPrice    decimal.Decimal
	ProductDiscount decimal.Decimal
	PromoDiscount   decimal.Decimal
	DeliveryCharge  decimal.Decimal
	PaymentOption   models.PaymentOption
}

// DiscountedProductPrice is the product price after both discounts.
func DiscountedProductPrice(productPrice, productDiscount, promoDiscount decimal.Decimal) decimal.Decimal {
	return clamp(productPrice.Sub(productDiscount).Sub(promoDiscount))
}

// Waives reports whether the delivery charge is dropped for the option at
// the given discounted subtotal.
func (c Calculator) Waives(option models.PaymentOption, discounted decimal.Decimal) bool {
	switch option {
	case models.PaymentOptionOutlet:
		return true
	case models.PaymentOptionOnline, models.PaymentOptionBkash:
		return discounted.GreaterThanOrEqual(c.threshold())
	}
	return false
}

// FinalPrice is the amount payable at order submission. For cash on
// delivery that is the delivery charge alone; the rest is collected at the
// door.
func (c Calculator) FinalPrice(in FinalPriceInput) decimal.Decimal {
	discounted := DiscountedProductPrice(in.ProductPrice, in.ProductDiscount, in.PromoDiscount)
	delivery := clamp(in.DeliveryCharge)
	if c.Waives(in.PaymentOption, discounted) {
		delivery = decimal.Zero
	}

	if in.PaymentOption == models.PaymentOptionCOD {
		return delivery
	}
	return discounted.Add(delivery)
}

// SavingsPercentage is round(100 * discount / total), 0 for an empty total.
func SavingsPercentage(totalDiscount, totalPrice decimal.Decimal) int64 {
	if !totalPrice.IsPositive() {
		return 0
	}
	return clamp(totalDiscount).Mul(hundred).Div(totalPrice).Round(0).IntPart()
}

// PromoDiscount is the discount a promo grants on subtotal. Percentages are
// capped by MaxDiscountAmount; every result is clamped to [0, subtotal].
func PromoDiscount(promo *models.PromoDetails, subtotal decimal.Decimal) decimal.Decimal {
	subtotal = clamp(subtotal)
	if promo == nil || subtotal.IsZero() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch promo.DiscountType {
	case models.DiscountTypePercentage:
		discount = subtotal.Mul(clamp(promo.DiscountAmount)).Div(hundred).Round(2)
		if promo.MaxDiscountAmount != nil && promo.MaxDiscountAmount.IsPositive() {
			discount = decimal.Min(discount, *promo.MaxDiscountAmount)
		}
	case models.DiscountTypeFixed:
		discount = clamp(promo.DiscountAmount)
	default:
		return decimal.Zero
	}

	return decimal.Min(discount, subtotal)
}

// Recalculate derives every cart total from its items and promo. Items are
// normalised in place. Delivery is left untouched and excluded from
// TotalDiscountedPrice.
func Recalculate(cart *models.Cart) {
	total := decimal.Zero
	productDiscount := decimal.Zero
	for i := range cart.Items {
		cart.Items[i].Normalize()
		total = total.Add(cart.Items[i].LineTotal())
		productDiscount = productDiscount.Add(cart.Items[i].LineDiscount())
	}

	promoDiscount := PromoDiscount(cart.PromoDetails, total.Sub(productDiscount))

	cart.TotalPrice = total
	cart.ProductDiscount = productDiscount
	cart.PromoCodeDiscount = promoDiscount
	cart.Discount = productDiscount.Add(promoDiscount)
	cart.TotalDiscountedPrice = clamp(total.Sub(cart.Discount))
}

// Reconcile recomputes the item-derived totals of an upstream cart and keeps
// its promo discount, clamped to the discounted subtotal. It reports whether
// any total changed.
func Reconcile(cart *models.Cart) bool {
	before := []decimal.Decimal{cart.TotalPrice, cart.ProductDiscount, cart.PromoCodeDiscount, cart.Discount, cart.TotalDiscountedPrice}

	total := decimal.Zero
	productDiscount := decimal.Zero
	for i := range cart.Items {
		cart.Items[i].Normalize()
		total = total.Add(cart.Items[i].LineTotal())
		productDiscount = productDiscount.Add(cart.Items[i].LineDiscount())
	}
	promoDiscount := decimal.Min(clamp(cart.PromoCodeDiscount), clamp(total.Sub(productDiscount)))

	cart.TotalPrice = total
	cart.ProductDiscount = productDiscount
	cart.PromoCodeDiscount = promoDiscount
	cart.Discount = productDiscount.Add(promoDiscount)
	cart.TotalDiscountedPrice = clamp(total.Sub(cart.Discount))

	after := []decimal.Decimal{cart.TotalPrice, cart.ProductDiscount, cart.PromoCodeDiscount, cart.Discount, cart.TotalDiscountedPrice}
	for i := range before {
		if !before[i].Equal(after[i]) {
			return true
		}
	}
	return false
}

// Breakdown builds the checkout quote for a cart under a payment option.
// baseDelivery is the destination charge before waivers.
func (c Calculator) Breakdown(cart models.Cart, option models.PaymentOption, baseDelivery decimal.Decimal, degraded bool) models.PriceBreakdown {
	discounted := DiscountedProductPrice(cart.TotalPrice, cart.ProductDiscount, cart.PromoCodeDiscount)
	waived := c.Waives(option, discounted)

	delivery := clamp(baseDelivery)
	if waived {
		delivery = decimal.Zero
	}

	dueNow := c.FinalPrice(FinalPriceInput{
		ProductPrice:    cart.TotalPrice,
		ProductDiscount: cart.ProductDiscount,
		PromoDiscount:   cart.PromoCodeDiscount,
		DeliveryCharge:  baseDelivery,
		PaymentOption:   option,
	})
	orderTotal := discounted.Add(delivery)

	return models.PriceBreakdown{
		PaymentOption:       option,
		ProductPrice:        cart.TotalPrice,
		ProductDiscount:     cart.ProductDiscount,
		PromoCodeDiscount:   cart.PromoCodeDiscount,
		DiscountedSubtotal:  discounted,
		BaseDeliveryCharge:  clamp(baseDelivery),
		DeliveryCharge:      delivery,
		DeliveryWaived:      waived,
		DeliveryDegraded:    degraded,
		OrderTotal:          orderTotal,
		AmountDueNow:        dueNow,
		PayableOnDelivery:   clamp(orderTotal.Sub(dueNow)),
		SavingsPercentage:   SavingsPercentage(cart.ProductDiscount.Add(cart.PromoCodeDiscount), cart.TotalPrice),
		FreeDeliveryMinimum: c.threshold(),
	}
}
