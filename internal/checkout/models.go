package checkout

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-cart/internal/pricing"
	"github.com/angelmondragon/storefront-cart/internal/reconciler"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCard           PaymentMethod = "card"
	PaymentWallet         PaymentMethod = "wallet"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
)

// RequiresConfirmation reports whether the method goes through the payment step.
func (m PaymentMethod) RequiresConfirmation() bool {
	return m != PaymentCashOnDelivery
}

// AppliedCoupon is the coupon held for the checkout session.
type AppliedCoupon struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Coupon         json.RawMessage `json:"coupon,omitempty"`
}

type Customer struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Email   string `json:"email" validate:"required"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	Notes   string `json:"notes,omitempty"`
}

// OrderInput is what the shopper submits. Confirm answers the payment
// confirmation prompt for methods other than cash on delivery.
type OrderInput struct {
	Customer      Customer      `json:"customer"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Confirm       bool          `json:"confirm"`
}

// Summary is the checkout screen: priced lines, coupon and totals.
type Summary struct {
	Items    []helpers.OrderItem `json:"items"`
	Count    int                 `json:"count"`
	Coupon   *AppliedCoupon      `json:"coupon,omitempty"`
	Totals   pricing.Totals      `json:"totals"`
	Currency string              `json:"currency"`
	Notices  []reconciler.Notice `json:"notices"`
}

// CouponRef is the coupon part of an order payload.
type CouponRef struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

// OrderPayload is submitted to the order service.
type OrderPayload struct {
	UserID        string              `json:"userId,omitempty"`
	Customer      Customer            `json:"customer"`
	Items         []helpers.OrderItem `json:"items"`
	PaymentMethod PaymentMethod       `json:"paymentMethod"`
	PaymentID     string              `json:"paymentId,omitempty"`
	Coupon        *CouponRef          `json:"coupon,omitempty"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Discount      decimal.Decimal     `json:"discount"`
	Shipping      decimal.Decimal     `json:"shipping"`
	Total         decimal.Decimal     `json:"total"`
	Currency      string              `json:"currency"`
}

// Confirmation is the record kept for the order confirmation page.
type Confirmation struct {
	OrderID       string              `json:"orderId"`
	Customer      Customer            `json:"customer"`
	Items         []helpers.OrderItem `json:"items"`
	PaymentMethod PaymentMethod       `json:"paymentMethod"`
	PaymentID     string              `json:"paymentId,omitempty"`
	Coupon        *CouponRef          `json:"coupon,omitempty"`
	Totals        pricing.Totals      `json:"totals"`
	Currency      string              `json:"currency"`
	PlacedAt      time.Time           `json:"placedAt"`
	Response      json.RawMessage     `json:"response,omitempty"`
}

// PlaceOrderResult carries the confirmation and the route to navigate to.
type PlaceOrderResult struct {
	Order    Confirmation        `json:"order"`
	Redirect string              `json:"redirect"`
	Notices  []reconciler.Notice `json:"notices"`
}

// ConfirmationRoute is the page showing a placed order.
func ConfirmationRoute(orderID string) string {
	return "/order-confirmation/" + orderID
}
