// Package views derives what each cart surface renders from a reconciled cart.
package views

import (
	"context"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/pricing"
	"github.com/angelmondragon/storefront-cart/internal/reconciler"
	"github.com/shopspring/decimal"
)

// Loader runs the reconciler's load algorithm.
type Loader interface {
	Load(ctx context.Context, id cart.Identity) (*reconciler.Result, error)
}

// MirrorLoader can also answer from the persisted mirror without a remote call.
type MirrorLoader interface {
	Loader
	Mirrored(ctx context.Context, id cart.Identity) ([]cart.LineItem, error)
}

// Line is one rendered cart row.
type Line struct {
	ID              string            `json:"id"`
	ProductID       string            `json:"productId"`
	Name            string            `json:"name"`
	Image           string            `json:"image,omitempty"`
	Quantity        int               `json:"quantity"`
	SelectedOptions map[string]string `json:"selectedOptions,omitempty"`
	AddOns          []cart.AddOn      `json:"addOns,omitempty"`
	UnitPrice       decimal.Decimal   `json:"unitPrice"`
	LineTotal       decimal.Decimal   `json:"lineTotal"`
	OriginalPrice   *decimal.Decimal  `json:"originalPrice,omitempty"`
	Available       bool              `json:"available"`
}

func buildLine(item cart.LineItem) Line {
	line := Line{
		ID:              item.ID,
		ProductID:       item.ProductID,
		Name:            pricing.DisplayName(item),
		Quantity:        item.Quantity,
		SelectedOptions: item.SelectedOptions,
		AddOns:          item.AddOns,
		UnitPrice:       pricing.UnitPrice(item),
		LineTotal:       pricing.LineTotal(item),
		Available:       true,
	}
	if p := item.Product; p != nil {
		line.Image = p.MainImage
		line.OriginalPrice = p.OriginalPrice
		if p.IsAvailable != nil {
			line.Available = *p.IsAvailable
		}
	}
	return line
}

func buildLines(items []cart.LineItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, buildLine(item))
	}
	return lines
}

func notices(res *reconciler.Result) []reconciler.Notice {
	if res == nil || res.Notices == nil {
		return []reconciler.Notice{}
	}
	return res.Notices
}
