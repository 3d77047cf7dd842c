// Package pricing computes line and cart totals. Every function is pure.
package pricing

import (
	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/shopspring/decimal"
)

// PlaceholderName is shown for line items whose product snapshot is missing.
const PlaceholderName = "منتج غير متوفر"

// UnitPrice returns the effective price of one unit. A positive precomputed totalPrice is
// authoritative; otherwise the price is derived from base price, option surcharges and add-ons.
func UnitPrice(item cart.LineItem) decimal.Decimal {
	if item.TotalPrice != nil && item.TotalPrice.IsPositive() {
		return *item.TotalPrice
	}
	return DerivedUnitPrice(item)
}

// DerivedUnitPrice ignores totalPrice and always derives the price client-side.
func DerivedUnitPrice(item cart.LineItem) decimal.Decimal {
	price := basePrice(item)
	for _, surcharge := range item.OptionsPricing {
		price = price.Add(surcharge)
	}
	if item.AddOnsPrice != nil {
		price = price.Add(*item.AddOnsPrice)
	}
	return price
}

func basePrice(item cart.LineItem) decimal.Decimal {
	if item.BasePrice != nil {
		return *item.BasePrice
	}
	if item.Product != nil {
		return item.Product.Price
	}
	return decimal.Zero
}

// LineTotal is the unit price times the quantity.
func LineTotal(item cart.LineItem) decimal.Decimal {
	return UnitPrice(item).Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// Subtotal sums the line totals; an empty cart is zero.
func Subtotal(items []cart.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LineTotal(item))
	}
	return total
}

// Count sums quantities, the number a cart badge shows.
func Count(items []cart.LineItem) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// DisplayName returns the product name or the placeholder when the snapshot is gone.
func DisplayName(item cart.LineItem) string {
	if item.Product == nil || item.Product.Name == "" {
		return PlaceholderName
	}
	return item.Product.Name
}

// Totals is the order summary shown at checkout.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Summarize applies a coupon discount (capped at the subtotal) and a shipping fee.
func Summarize(items []cart.LineItem, discount, shipping decimal.Decimal) Totals {
	subtotal := Subtotal(items)
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Total:    subtotal.Sub(discount).Add(shipping),
	}
}
