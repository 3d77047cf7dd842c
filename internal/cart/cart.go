package cart

import (
	"github.com/shopspring/decimal"
)

// AddOn is an optional paid service attached to a line item.
type AddOn struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
}

// Attachments holds customer-supplied customization data. Pricing ignores it.
type Attachments struct {
	Images []string `json:"images"`
	Text   string   `json:"text"`
}

// Product is the catalog snapshot embedded in a line item for display. It may be stale.
type Product struct {
	Name               string           `json:"name"`
	Price              decimal.Decimal  `json:"price"`
	MainImage          string           `json:"mainImage,omitempty"`
	OriginalPrice      *decimal.Decimal `json:"originalPrice,omitempty"`
	AdditionalServices []AddOn          `json:"additionalServices,omitempty"`
	IsAvailable        *bool            `json:"isAvailable,omitempty"`
	ProductType        string           `json:"productType,omitempty"`
}

// LineItem is one entry of a cart: a product plus chosen options, add-ons and quantity.
type LineItem struct {
	ID              string                     `json:"id"`
	ProductID       string                     `json:"productId"`
	Quantity        int                        `json:"quantity"`
	SelectedOptions map[string]string          `json:"selectedOptions,omitempty"`
	OptionsPricing  map[string]decimal.Decimal `json:"optionsPricing,omitempty"`
	AddOns          []AddOn                    `json:"addOns,omitempty"`
	Attachments     *Attachments               `json:"attachments,omitempty"`
	BasePrice       *decimal.Decimal           `json:"basePrice,omitempty"`
	AddOnsPrice     *decimal.Decimal           `json:"addOnsPrice,omitempty"`
	TotalPrice      *decimal.Decimal           `json:"totalPrice,omitempty"`
	Product         *Product                   `json:"product,omitempty"`
}

// Identity scopes a cart either to an anonymous browser session or to an authenticated user.
type Identity struct {
	SessionID string
	UserID    string
	Token     string
}

// Authenticated reports whether the remote cart service is authoritative for this identity.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// IndexOf returns the position of the item with the given id, or -1.
func IndexOf(items []LineItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// Without returns a copy of items minus the item with the given id.
func Without(items []LineItem, id string) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

// WithQuantity returns a copy of items where the matching item carries qty.
func WithQuantity(items []LineItem, id string, qty int) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	if idx := IndexOf(out, id); idx >= 0 {
		out[idx].Quantity = qty
	}
	return out
}

// Empty returns the canonical empty cart.
func Empty() []LineItem {
	return []LineItem{}
}
