package views

import (
	"context"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/mirror"
	"github.com/angelmondragon/storefront-cart/internal/reconciler"
)

type BadgeSource string

const (
	BadgeFromUser   BadgeSource = "cached"
	BadgeFromLast   BadgeSource = "last"
	BadgeFromNone   BadgeSource = "none"
	BadgeFromReload BadgeSource = "reload"
)

// BadgeView is the navbar cart count.
type BadgeView struct {
	Count   int                 `json:"count"`
	Source  BadgeSource         `json:"source"`
	Notices []reconciler.Notice `json:"notices"`
}

// Badge answers from the denormalized counts the reconciler persists after
// every load and write, and corrects them with Refresh.
type Badge struct {
	loader Loader
	store  *mirror.Store
}

func NewBadge(loader Loader, store *mirror.Store) *Badge {
	return &Badge{loader: loader, store: store}
}

// Count returns the per-user cached count, then the last known count, then zero.
func (b *Badge) Count(ctx context.Context, id cart.Identity) (BadgeView, error) {
	if n, ok, err := b.store.CachedCount(ctx, id.SessionID, id.UserID); err != nil {
		return BadgeView{}, err
	} else if ok {
		return BadgeView{Count: n, Source: BadgeFromUser, Notices: []reconciler.Notice{}}, nil
	}
	if n, ok, err := b.store.LastCount(ctx, id.SessionID); err != nil {
		return BadgeView{}, err
	} else if ok {
		return BadgeView{Count: n, Source: BadgeFromLast, Notices: []reconciler.Notice{}}, nil
	}
	return BadgeView{Source: BadgeFromNone, Notices: []reconciler.Notice{}}, nil
}

// Refresh recomputes the count from a load. The load itself rewrites the
// persisted counts.
func (b *Badge) Refresh(ctx context.Context, id cart.Identity) (BadgeView, error) {
	res, err := b.loader.Load(ctx, id)
	if err != nil {
		return BadgeView{}, err
	}
	return BadgeView{Count: res.Count, Source: BadgeFromReload, Notices: notices(res)}, nil
}
