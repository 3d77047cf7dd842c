package views

import (
	"context"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/pricing"
	"github.com/angelmondragon/storefront-cart/internal/reconciler"
	"github.com/shopspring/decimal"
)

// CartPage is the full shopping cart screen.
type CartPage struct {
	Lines    []Line              `json:"lines"`
	Subtotal decimal.Decimal     `json:"subtotal"`
	Count    int                 `json:"count"`
	Empty    bool                `json:"empty"`
	Notices  []reconciler.Notice `json:"notices"`
}

// NewCartPage renders a reconciled cart as the shopping cart screen.
func NewCartPage(res *reconciler.Result) CartPage {
	items := cart.Empty()
	if res != nil && res.Items != nil {
		items = res.Items
	}
	return CartPage{
		Lines:    buildLines(items),
		Subtotal: pricing.Subtotal(items),
		Count:    pricing.Count(items),
		Empty:    len(items) == 0,
		Notices:  notices(res),
	}
}

// Page loads the cart on every request; it keeps no view of its own.
type Page struct {
	loader Loader
}

func NewPage(loader Loader) *Page {
	return &Page{loader: loader}
}

func (p *Page) Render(ctx context.Context, id cart.Identity) (CartPage, error) {
	res, err := p.loader.Load(ctx, id)
	if err != nil {
		return CartPage{}, err
	}
	return NewCartPage(res), nil
}
