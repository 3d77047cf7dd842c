package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
	"github.com/shopspring/decimal"
)

const (
	defaultTimeout               = 10 * time.Second
	responseBodyReadLimit  int64 = 4096
	successBodyReadLimit   int64 = 4 << 20
	bearerPrefix                 = "Bearer "
	operationListCart            = "cart.list"
	operationAppendItem          = "cart.append"
	operationUpdateQuantity      = "cart.update_quantity"
	operationRemoveItem          = "cart.remove"
	operationClearCart           = "cart.clear"
	operationPlaceOrder          = "order.create"
	operationValidateCoupon      = "coupon.validate"
)

var errBaseURLRequired = errors.New("storefront backend base url is required")

// Client talks to the storefront REST backend: cart, order and coupon services.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *metrics.RemoteCallMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithMetrics records every call on the given collectors.
func WithMetrics(m *metrics.RemoteCallMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a backend client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return client, nil
}

// Attachments mirrors the customization data accepted by the cart service.
type Attachments struct {
	Images []string `json:"images"`
	Text   string   `json:"text"`
}

// AppendItemRequest is the body of an add-to-cart call.
type AppendItemRequest struct {
	ProductID       string                     `json:"productId"`
	Quantity        int                        `json:"quantity"`
	SelectedOptions map[string]string          `json:"selectedOptions"`
	OptionsPricing  map[string]decimal.Decimal `json:"optionsPricing"`
	Attachments     *Attachments               `json:"attachments,omitempty"`
	ProductName     string                     `json:"productName,omitempty"`
	Price           decimal.Decimal            `json:"price"`
	Image           string                     `json:"image,omitempty"`
}

// OrderResult is the order service's answer to a successful submission.
type OrderResult struct {
	OrderID string
	Raw     json.RawMessage
}

// CouponResult is a validated coupon and the discount it grants.
type CouponResult struct {
	Coupon         json.RawMessage
	DiscountAmount decimal.Decimal
}

// ListCart fetches the user's cart in whatever shape the service returns it.
func (c *Client) ListCart(ctx context.Context, token, userID string) (json.RawMessage, error) {
	var body json.RawMessage
	err := c.do(ctx, operationListCart, http.MethodGet, c.cartPath(userID), token, nil, &body, false)
	return body, err
}

func (c *Client) AppendItem(ctx context.Context, token, userID string, req AppendItemRequest) error {
	return c.do(ctx, operationAppendItem, http.MethodPost, c.cartPath(userID), token, req, nil, false)
}

func (c *Client) UpdateQuantity(ctx context.Context, token, userID, itemID string, quantity int) error {
	body := map[string]int{"quantity": quantity}
	return c.do(ctx, operationUpdateQuantity, http.MethodPut, c.cartPath(userID, itemID), token, body, nil, false)
}

func (c *Client) RemoveItem(ctx context.Context, token, userID, itemID string) error {
	return c.do(ctx, operationRemoveItem, http.MethodDelete, c.cartPath(userID, itemID), token, nil, nil, false)
}

func (c *Client) ClearCart(ctx context.Context, token, userID string) error {
	return c.do(ctx, operationClearCart, http.MethodDelete, c.cartPath(userID), token, nil, nil, false)
}

// PlaceOrder submits an order payload. A 4xx rejection surfaces as a validation
// error carrying the service's message.
func (c *Client) PlaceOrder(ctx context.Context, token string, payload any) (*OrderResult, error) {
	var raw json.RawMessage
	if err := c.do(ctx, operationPlaceOrder, http.MethodPost, "/checkout", token, payload, &raw, true); err != nil {
		return nil, err
	}

	var resp struct {
		OrderID string `json:"orderId"`
		ID      string `json:"_id"`
		Order   struct {
			ID      string `json:"id"`
			MongoID string `json:"_id"`
		} `json:"order"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode order response")
	}
	orderID := firstNonEmpty(resp.OrderID, resp.ID, resp.Order.ID, resp.Order.MongoID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order response missing order id")
	}
	return &OrderResult{OrderID: orderID, Raw: raw}, nil
}

// ValidateCoupon asks the coupon service whether code applies to totalAmount.
func (c *Client) ValidateCoupon(ctx context.Context, token, code string, totalAmount decimal.Decimal) (*CouponResult, error) {
	body := struct {
		Code        string          `json:"code"`
		TotalAmount decimal.Decimal `json:"totalAmount"`
	}{Code: code, TotalAmount: totalAmount}

	var resp struct {
		Coupon         json.RawMessage `json:"coupon"`
		DiscountAmount decimal.Decimal `json:"discountAmount"`
	}
	if err := c.do(ctx, operationValidateCoupon, http.MethodPost, "/coupons/validate", token, body, &resp, true); err != nil {
		return nil, err
	}
	return &CouponResult{Coupon: resp.Coupon, DiscountAmount: resp.DiscountAmount}, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, in, out any, rejectionsAreValidation bool) (err error) {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "storefront backend client not configured")
	}
	started := time.Now()
	defer func() { c.metrics.Observe(op, started, err) }()

	var body io.Reader
	if in != nil {
		payload, marshalErr := json.Marshal(in)
		if marshalErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, marshalErr, "marshal "+op+" request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build "+op+" request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", bearerPrefix+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return statusError(op, resp.StatusCode, raw, rejectionsAreValidation)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, successBodyReadLimit))
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, successBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+op+" response")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("null")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+op+" response")
	}
	return nil
}

// statusError maps a non-2xx response. The service's "message" field, when
// present, becomes the user-facing message.
func statusError(op string, status int, raw []byte, rejectionsAreValidation bool) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(raw, &payload)
	message := firstNonEmpty(payload.Message, payload.Error)
	cause := fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(raw)))

	details := map[string]any{"operation": op, "status": status}
	if rejectionsAreValidation && status >= 400 && status < 500 && status != http.StatusUnauthorized {
		if message == "" {
			message = op + " rejected"
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, message).WithDetails(details)
	}
	if status == http.StatusUnauthorized {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, cause, firstNonEmpty(message, "storefront backend rejected credentials"))
	}
	if message == "" {
		message = op + " request failed"
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, message).WithDetails(details)
}

func (c *Client) cartPath(userID string, itemID ...string) string {
	path := "/user/" + url.PathEscape(userID) + "/cart"
	for _, id := range itemID {
		path += "/" + url.PathEscape(id)
	}
	return path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
