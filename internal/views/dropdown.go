package views

import (
	"context"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/pricing"
	"github.com/angelmondragon/storefront-cart/internal/reconciler"
	"github.com/shopspring/decimal"
)

// mirrorFirst returns the session's mirrored cart when it has items and only
// runs a full load when it is empty. The mirror is rewritten before every
// change notification, so no per-process view is kept.
func mirrorFirst(ctx context.Context, loader MirrorLoader, id cart.Identity) ([]cart.LineItem, *reconciler.Result, error) {
	items, err := loader.Mirrored(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if len(items) > 0 {
		return items, nil, nil
	}
	res, err := loader.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return res.Items, res, nil
}

// DropdownView is the compact cart preview under the header icon.
type DropdownView struct {
	Lines    []Line              `json:"lines"`
	Subtotal decimal.Decimal     `json:"subtotal"`
	Count    int                 `json:"count"`
	Notices  []reconciler.Notice `json:"notices"`
}

type Dropdown struct {
	loader MirrorLoader
}

func NewDropdown(loader MirrorLoader) *Dropdown {
	return &Dropdown{loader: loader}
}

func (d *Dropdown) Render(ctx context.Context, id cart.Identity) (DropdownView, error) {
	items, res, err := mirrorFirst(ctx, d.loader, id)
	if err != nil {
		return DropdownView{}, err
	}
	return DropdownView{
		Lines:    buildLines(items),
		Subtotal: pricing.Subtotal(items),
		Count:    pricing.Count(items),
		Notices:  notices(res),
	}, nil
}

// FloatingView is the floating cart button: a count bubble and running total.
type FloatingView struct {
	Count    int                 `json:"count"`
	Subtotal decimal.Decimal     `json:"subtotal"`
	Visible  bool                `json:"visible"`
	Notices  []reconciler.Notice `json:"notices"`
}

type FloatingButton struct {
	loader MirrorLoader
}

func NewFloatingButton(loader MirrorLoader) *FloatingButton {
	return &FloatingButton{loader: loader}
}

func (f *FloatingButton) Render(ctx context.Context, id cart.Identity) (FloatingView, error) {
	items, res, err := mirrorFirst(ctx, f.loader, id)
	if err != nil {
		return FloatingView{}, err
	}
	count := pricing.Count(items)
	return FloatingView{
		Count:    count,
		Subtotal: pricing.Subtotal(items),
		Visible:  count > 0,
		Notices:  notices(res),
	}, nil
}
