package checkout

import (
	"context"

	"github.com/angelmondragon/storefront-cart/internal/mirror"
)

// Repository keeps the checkout session's coupon and last order in the mirror.
type Repository interface {
	AppliedCoupon(ctx context.Context, sessionID string) (*AppliedCoupon, error)
	SaveCoupon(ctx context.Context, sessionID string, coupon AppliedCoupon) error
	ClearCoupon(ctx context.Context, sessionID string) error
	LastOrder(ctx context.Context, sessionID string) (*Confirmation, error)
	SaveLastOrder(ctx context.Context, sessionID string, order Confirmation) error
}

type repository struct {
	store *mirror.Store
}

// NewRepository builds a checkout repository over the session mirror.
func NewRepository(store *mirror.Store) Repository {
	if store == nil {
		return nil
	}
	return &repository{store: store}
}

func (r *repository) AppliedCoupon(ctx context.Context, sessionID string) (*AppliedCoupon, error) {
	var coupon AppliedCoupon
	ok, err := r.store.Load(ctx, sessionID, mirror.KeyAppliedCoupon, &coupon)
	if err != nil || !ok || coupon.Code == "" {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) SaveCoupon(ctx context.Context, sessionID string, coupon AppliedCoupon) error {
	return r.store.Save(ctx, sessionID, mirror.KeyAppliedCoupon, coupon)
}

func (r *repository) ClearCoupon(ctx context.Context, sessionID string) error {
	return r.store.Remove(ctx, sessionID, mirror.KeyAppliedCoupon)
}

func (r *repository) LastOrder(ctx context.Context, sessionID string) (*Confirmation, error) {
	var order Confirmation
	ok, err := r.store.Load(ctx, sessionID, mirror.KeyLastOrder, &order)
	if err != nil || !ok {
		return nil, err
	}
	return &order, nil
}

func (r *repository) SaveLastOrder(ctx context.Context, sessionID string, order Confirmation) error {
	return r.store.Save(ctx, sessionID, mirror.KeyLastOrder, order)
}
