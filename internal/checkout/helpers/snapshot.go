package helpers

import (
	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/pricing"
	"github.com/shopspring/decimal"
)

// OrderItem freezes a line item at order time: the product's name and price as
// shown to the shopper, not a live catalog reference.
type OrderItem struct {
	ItemID          string                     `json:"itemId"`
	ProductID       string                     `json:"productId"`
	Name            string                     `json:"name"`
	Image           string                     `json:"image,omitempty"`
	Price           decimal.Decimal            `json:"price"`
	Quantity        int                        `json:"quantity"`
	SelectedOptions map[string]string          `json:"selectedOptions,omitempty"`
	OptionsPricing  map[string]decimal.Decimal `json:"optionsPricing,omitempty"`
	AddOns          []cart.AddOn               `json:"addOns,omitempty"`
	Attachments     *cart.Attachments          `json:"attachments,omitempty"`
	UnitPrice       decimal.Decimal            `json:"unitPrice"`
	LineTotal       decimal.Decimal            `json:"lineTotal"`
}

// SnapshotItems copies the priced cart into order lines.
func SnapshotItems(items []cart.LineItem) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, item := range items {
		line := OrderItem{
			ItemID:          item.ID,
			ProductID:       item.ProductID,
			Name:            pricing.DisplayName(item),
			Quantity:        item.Quantity,
			SelectedOptions: copyOptions(item.SelectedOptions),
			OptionsPricing:  copyPricing(item.OptionsPricing),
			AddOns:          append([]cart.AddOn(nil), item.AddOns...),
			Attachments:     item.Attachments,
			UnitPrice:       pricing.UnitPrice(item),
			LineTotal:       pricing.LineTotal(item),
		}
		line.Price = line.UnitPrice
		if item.Product != nil {
			line.Price = item.Product.Price
			line.Image = item.Product.MainImage
		}
		out = append(out, line)
	}
	return out
}

func copyOptions(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyPricing(in map[string]decimal.Decimal) map[string]decimal.Decimal {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
