package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-cart/internal/pricing"
	"github.com/angelmondragon/storefront-cart/internal/reconciler"
	"github.com/angelmondragon/storefront-cart/pkg/backend"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	msgMissingFields       = "يرجى ملء جميع الحقول المطلوبة"
	msgPaymentMethod       = "يرجى اختيار طريقة الدفع"
	msgEmptyCart           = "السلة فارغة"
	msgCouponRequired      = "يرجى إدخال كود الخصم"
	msgPaymentNotConfirmed = "لم يتم تأكيد الدفع"
	msgNoLastOrder         = "لا يوجد طلب سابق"
)

type cartService interface {
	Load(ctx context.Context, id cart.Identity) (*reconciler.Result, error)
	Clear(ctx context.Context, id cart.Identity) (*reconciler.Result, error)
}

type couponValidator interface {
	ValidateCoupon(ctx context.Context, token, code string, totalAmount decimal.Decimal) (*backend.CouponResult, error)
}

type orderSubmitter interface {
	PlaceOrder(ctx context.Context, token string, payload any) (*backend.OrderResult, error)
}

// Service runs the checkout screen: coupon handling, totals and order placement.
type Service interface {
	ApplyCoupon(ctx context.Context, id cart.Identity, code string) (*Summary, error)
	RemoveCoupon(ctx context.Context, id cart.Identity) (*Summary, error)
	Summary(ctx context.Context, id cart.Identity) (*Summary, error)
	PlaceOrder(ctx context.Context, id cart.Identity, input OrderInput) (*PlaceOrderResult, error)
	LastOrder(ctx context.Context, sessionID string) (*Confirmation, error)
}

type ServiceParams struct {
	Carts    cartService
	Repo     Repository
	Coupons  couponValidator
	Orders   orderSubmitter
	Payments PaymentConfirmer
	Shipping decimal.Decimal
	Currency string
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	carts    cartService
	repo     Repository
	coupons  couponValidator
	orders   orderSubmitter
	payments PaymentConfirmer
	shipping decimal.Decimal
	currency string
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order submitter required")
	}
	if params.Payments == nil {
		params.Payments = SimulatedConfirmer{}
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Clock == nil {
		params.Clock = time.Now
	}
	return &service{
		carts:    params.Carts,
		repo:     params.Repo,
		coupons:  params.Coupons,
		orders:   params.Orders,
		payments: params.Payments,
		shipping: params.Shipping,
		currency: params.Currency,
		logg:     params.Logger,
		now:      params.Clock,
	}, nil
}

// ApplyCoupon validates code against the current subtotal and keeps it for the
// session. A rejected code leaves the previous coupon in place.
func (s *service) ApplyCoupon(ctx context.Context, id cart.Identity, code string) (*Summary, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgCouponRequired)
	}

	res, err := s.carts.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := s.coupons.ValidateCoupon(ctx, id.Token, code, pricing.Subtotal(res.Items))
	if err != nil {
		return nil, err
	}

	applied := AppliedCoupon{Code: code, DiscountAmount: result.DiscountAmount, Coupon: result.Coupon}
	if err := s.repo.SaveCoupon(ctx, id.SessionID, applied); err != nil {
		return nil, err
	}
	return s.summarize(res, &applied), nil
}

func (s *service) RemoveCoupon(ctx context.Context, id cart.Identity) (*Summary, error) {
	if err := s.repo.ClearCoupon(ctx, id.SessionID); err != nil {
		return nil, err
	}
	return s.Summary(ctx, id)
}

func (s *service) Summary(ctx context.Context, id cart.Identity) (*Summary, error) {
	res, err := s.carts.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	coupon, err := s.repo.AppliedCoupon(ctx, id.SessionID)
	if err != nil {
		return nil, err
	}
	return s.summarize(res, coupon), nil
}

// PlaceOrder validates the form, confirms payment when needed and submits the
// order. The cart and coupon are cleared only after the order is accepted.
func (s *service) PlaceOrder(ctx context.Context, id cart.Identity, input OrderInput) (*PlaceOrderResult, error) {
	input.Customer = trimCustomer(input.Customer)
	if err := helpers.ValidateFields(input.Customer, msgMissingFields); err != nil {
		return nil, err
	}
	method := struct {
		PaymentMethod PaymentMethod `json:"paymentMethod" validate:"required,oneof=cash_on_delivery card wallet bank_transfer"`
	}{PaymentMethod: input.PaymentMethod}
	if err := helpers.ValidateFields(method, msgPaymentMethod); err != nil {
		return nil, err
	}

	summary, err := s.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(summary.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgEmptyCart)
	}

	var paymentID string
	if input.PaymentMethod.RequiresConfirmation() {
		if !input.Confirm {
			return nil, pkgerrors.New(pkgerrors.CodePaymentDeclined, msgPaymentNotConfirmed)
		}
		payment, err := s.payments.Confirm(ctx, input.PaymentMethod, summary.Totals.Total)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePaymentDeclined, err, msgPaymentNotConfirmed)
		}
		if !payment.Success {
			return nil, pkgerrors.New(pkgerrors.CodePaymentDeclined, msgPaymentNotConfirmed)
		}
		paymentID = payment.PaymentID
	}

	payload := OrderPayload{
		UserID:        id.UserID,
		Customer:      input.Customer,
		Items:         summary.Items,
		PaymentMethod: input.PaymentMethod,
		PaymentID:     paymentID,
		Coupon:        couponRef(summary.Coupon, summary.Totals.Discount),
		Subtotal:      summary.Totals.Subtotal,
		Discount:      summary.Totals.Discount,
		Shipping:      summary.Totals.Shipping,
		Total:         summary.Totals.Total,
		Currency:      summary.Currency,
	}
	placed, err := s.orders.PlaceOrder(ctx, id.Token, payload)
	if err != nil {
		s.logg.WarnErr(ctx, "checkout.order_rejected", err)
		return nil, err
	}

	confirmation := Confirmation{
		OrderID:       placed.OrderID,
		Customer:      payload.Customer,
		Items:         payload.Items,
		PaymentMethod: payload.PaymentMethod,
		PaymentID:     paymentID,
		Coupon:        payload.Coupon,
		Totals:        summary.Totals,
		Currency:      payload.Currency,
		PlacedAt:      s.now().UTC(),
		Response:      placed.Raw,
	}
	ctx = s.logg.WithField(ctx, "order_id", placed.OrderID)
	s.logg.Info(ctx, "checkout.order_placed")

	result := &PlaceOrderResult{
		Order:    confirmation,
		Redirect: ConfirmationRoute(placed.OrderID),
		Notices:  []reconciler.Notice{},
	}
	if err := s.repo.SaveLastOrder(ctx, id.SessionID, confirmation); err != nil {
		s.logg.WarnErr(ctx, "checkout.last_order_persist_failed", err)
	}
	cleared, err := s.carts.Clear(ctx, id)
	if err != nil {
		s.logg.WarnErr(ctx, "checkout.cart_clear_failed", err)
	} else {
		result.Notices = append(result.Notices, cleared.Notices...)
	}
	if err := s.repo.ClearCoupon(ctx, id.SessionID); err != nil {
		s.logg.WarnErr(ctx, "checkout.coupon_clear_failed", err)
	}
	return result, nil
}

func (s *service) LastOrder(ctx context.Context, sessionID string) (*Confirmation, error) {
	order, err := s.repo.LastOrder(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgNoLastOrder)
	}
	return order, nil
}

func (s *service) summarize(res *reconciler.Result, coupon *AppliedCoupon) *Summary {
	discount := decimal.Zero
	if coupon != nil {
		discount = coupon.DiscountAmount
	}
	notices := res.Notices
	if notices == nil {
		notices = []reconciler.Notice{}
	}
	return &Summary{
		Items:    helpers.SnapshotItems(res.Items),
		Count:    pricing.Count(res.Items),
		Coupon:   coupon,
		Totals:   pricing.Summarize(res.Items, discount, s.shipping),
		Currency: s.currency,
		Notices:  notices,
	}
}

func couponRef(coupon *AppliedCoupon, discount decimal.Decimal) *CouponRef {
	if coupon == nil {
		return nil
	}
	return &CouponRef{Code: coupon.Code, DiscountAmount: discount}
}

func trimCustomer(c Customer) Customer {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)
	c.Address = strings.TrimSpace(c.Address)
	c.City = strings.TrimSpace(c.City)
	c.Notes = strings.TrimSpace(c.Notes)
	return c
}
