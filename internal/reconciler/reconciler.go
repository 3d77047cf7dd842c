// Package reconciler produces the authoritative cart for a session and keeps the
// persisted mirror in step with every mutation. The remote cart service wins when
// it answers with items; the mirror is both fallback and cache.
package reconciler

import (
	"context"
	"encoding/json"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/events"
	"github.com/angelmondragon/storefront-cart/internal/mirror"
	"github.com/angelmondragon/storefront-cart/internal/pricing"
	"github.com/angelmondragon/storefront-cart/pkg/backend"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// RemoteCart is the subset of the storefront backend the reconciler drives.
type RemoteCart interface {
	ListCart(ctx context.Context, token, userID string) (json.RawMessage, error)
	AppendItem(ctx context.Context, token, userID string, req backend.AppendItemRequest) error
	UpdateQuantity(ctx context.Context, token, userID, itemID string, quantity int) error
	RemoveItem(ctx context.Context, token, userID, itemID string) error
	ClearCart(ctx context.Context, token, userID string) error
}

// Source tells where a result's items came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceMirror Source = "mirror"
	SourceEmpty  Source = "empty"
)

// Result is the cart after a load or mutation plus any non-blocking notices.
type Result struct {
	Items   []cart.LineItem `json:"items"`
	Count   int             `json:"count"`
	Source  Source          `json:"source"`
	Notices []Notice        `json:"notices"`
}

func (r *Result) warn(message string) {
	r.Notices = append(r.Notices, Notice{Level: NoticeWarning, Message: message})
}

type Service struct {
	remote  RemoteCart
	store   *mirror.Store
	bus     *events.Bus
	metrics *metrics.RemoteCallMetrics
	logg    *logger.Logger
}

type ServiceParams struct {
	Remote  RemoteCart
	Store   *mirror.Store
	Bus     *events.Bus
	Metrics *metrics.RemoteCallMetrics
	Logger  *logger.Logger
}

func NewService(params ServiceParams) *Service {
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		remote:  params.Remote,
		store:   params.Store,
		bus:     params.Bus,
		metrics: params.Metrics,
		logg:    logg,
	}
}

// Load returns the session's cart: the remote cart when it is non-empty,
// otherwise the mirror, otherwise the empty cart.
func (s *Service) Load(ctx context.Context, id cart.Identity) (*Result, error) {
	ctx = s.scope(ctx, id)
	res := &Result{}

	if id.Authenticated() {
		items, err := s.fetchRemote(ctx, id)
		if err != nil {
			s.logg.WarnErr(ctx, "reconciler.load_remote_failed", err)
			res.warn(NoticeLoadFailed)
		} else if len(items) > 0 {
			if err := s.saveMirror(ctx, id, items); err != nil {
				return nil, err
			}
			res.Items, res.Source = items, SourceRemote
			s.recordCount(ctx, id, res)
			return res, nil
		}
	}

	items, err := s.mirrorFor(ctx, id)
	if err != nil {
		return nil, err
	}
	res.Items, res.Source = items, SourceMirror
	if len(items) == 0 {
		res.Source = SourceEmpty
	}
	s.recordCount(ctx, id, res)
	return res, nil
}

// Mirrored returns the persisted mirror without contacting the remote service.
func (s *Service) Mirrored(ctx context.Context, id cart.Identity) ([]cart.LineItem, error) {
	return s.mirrorFor(ctx, id)
}

// Add appends item to the cart, creating the cart implicitly. Authenticated
// carts are appended remotely and re-read; a remote failure keeps a local copy.
func (s *Service) Add(ctx context.Context, id cart.Identity, item cart.LineItem) (*Result, error) {
	ctx = s.scope(ctx, id)
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	res := &Result{}

	if id.Authenticated() {
		err := s.remote.AppendItem(ctx, id.Token, id.UserID, appendRequest(item))
		if err == nil {
			items, fetchErr := s.fetchRemote(ctx, id)
			if fetchErr == nil && len(items) > 0 {
				if err := s.saveMirror(ctx, id, items); err != nil {
					return nil, err
				}
				res.Items, res.Source = items, SourceRemote
				s.afterWrite(ctx, id, res, events.KindCartUpdated)
				return res, nil
			}
			if fetchErr != nil {
				s.logg.WarnErr(ctx, "reconciler.add_reload_failed", fetchErr)
			}
		} else {
			s.logg.WarnErr(ctx, "reconciler.add_remote_failed", err)
			res.warn(NoticeAddLocalOnly)
		}
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	err := s.mutateMirror(ctx, id, res, func(items []cart.LineItem) []cart.LineItem {
		return append(items, item)
	})
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, id, res, events.KindCartUpdated)
	return res, nil
}

// UpdateQuantity sets an item's quantity. A quantity below 1 removes the item.
// The local copy is updated even when the remote call fails.
func (s *Service) UpdateQuantity(ctx context.Context, id cart.Identity, itemID string, quantity int) (*Result, error) {
	if quantity < 1 {
		return s.Remove(ctx, id, itemID)
	}
	ctx = s.scope(ctx, id)
	res := &Result{}

	if id.Authenticated() {
		if err := s.remote.UpdateQuantity(ctx, id.Token, id.UserID, itemID, quantity); err != nil {
			s.logg.WarnErr(ctx, "reconciler.update_remote_failed", err)
			res.warn(NoticeQuantityLocalOnly)
		}
	}

	err := s.mutateMirror(ctx, id, res, func(items []cart.LineItem) []cart.LineItem {
		return cart.WithQuantity(items, itemID, quantity)
	})
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, id, res, events.KindCartUpdated)
	return res, nil
}

func (s *Service) Remove(ctx context.Context, id cart.Identity, itemID string) (*Result, error) {
	ctx = s.scope(ctx, id)
	res := &Result{}

	if id.Authenticated() {
		if err := s.remote.RemoveItem(ctx, id.Token, id.UserID, itemID); err != nil {
			s.logg.WarnErr(ctx, "reconciler.remove_remote_failed", err)
			res.warn(NoticeRemoveLocalOnly)
		}
	}

	err := s.mutateMirror(ctx, id, res, func(items []cart.LineItem) []cart.LineItem {
		return cart.Without(items, itemID)
	})
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, id, res, events.KindCartUpdated)
	return res, nil
}

func (s *Service) Clear(ctx context.Context, id cart.Identity) (*Result, error) {
	ctx = s.scope(ctx, id)
	res := &Result{}

	if id.Authenticated() {
		if err := s.remote.ClearCart(ctx, id.Token, id.UserID); err != nil {
			s.logg.WarnErr(ctx, "reconciler.clear_remote_failed", err)
			res.warn(NoticeClearLocalOnly)
		}
	}

	if err := s.saveMirror(ctx, id, cart.Empty()); err != nil {
		return nil, err
	}
	res.Items, res.Source = cart.Empty(), SourceEmpty
	s.afterWrite(ctx, id, res, events.KindCartCleared)
	return res, nil
}

// MergeOnLogin appends every anonymous mirror item to the user's remote cart.
// Individual append failures are logged and skipped; the merge is never
// all-or-nothing. The remote cart is then re-read and replaces the mirror.
// A mirror that already holds a user's cart is never merged: the same user
// only reloads, and another user's cart is discarded.
func (s *Service) MergeOnLogin(ctx context.Context, id cart.Identity) (*Result, error) {
	ctx = s.scope(ctx, id)
	if !id.Authenticated() {
		return s.Load(ctx, id)
	}

	owner, err := s.store.CartOwner(ctx, id.SessionID)
	if err != nil {
		return nil, err
	}
	local, err := s.store.Cart(ctx, id.SessionID)
	if err != nil {
		return nil, err
	}

	anonymous := local
	switch {
	case owner == id.UserID:
		anonymous = nil
	case owner != "":
		s.logg.Warn(s.logg.WithField(ctx, "previous_owner", owner), "reconciler.merge_foreign_mirror")
		anonymous, local = nil, cart.Empty()
	}

	var mergeErr error
	for _, item := range anonymous {
		appendErr := s.remote.AppendItem(ctx, id.Token, id.UserID, appendRequest(item))
		s.metrics.IncMerged(appendErr)
		mergeErr = multierr.Append(mergeErr, appendErr)
	}
	if mergeErr != nil {
		failed := len(multierr.Errors(mergeErr))
		fields := map[string]any{"merge_failed": failed, "merge_total": len(anonymous)}
		s.logg.WarnErr(s.logg.WithFields(ctx, fields), "reconciler.merge_partial", mergeErr)
	}

	res := &Result{}
	items, err := s.fetchRemote(ctx, id)
	if err != nil {
		s.logg.WarnErr(ctx, "reconciler.merge_reload_failed", err)
		res.warn(NoticeLoadFailed)
		res.Items, res.Source = local, SourceMirror
	} else {
		res.Items, res.Source = items, SourceRemote
	}
	// The owner is recorded even when the reload failed so the anonymous
	// items are never appended twice.
	if err := s.saveMirror(ctx, id, res.Items); err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		res.Source = SourceEmpty
	}
	s.afterWrite(ctx, id, res, events.KindCartMerged)
	return res, nil
}

// Login stores the profile blob and merges the anonymous cart into the user's.
func (s *Service) Login(ctx context.Context, id cart.Identity, profile json.RawMessage) (*Result, error) {
	if err := s.store.SaveUser(ctx, id.SessionID, profile); err != nil {
		return nil, err
	}
	return s.MergeOnLogin(ctx, id)
}

// Logout forgets the session's cart, profile and cached counts.
func (s *Service) Logout(ctx context.Context, id cart.Identity) (*Result, error) {
	ctx = s.scope(ctx, id)
	if err := s.store.ForgetSession(ctx, id.SessionID, id.UserID); err != nil {
		return nil, err
	}
	res := &Result{Items: cart.Empty(), Source: SourceEmpty, Notices: []Notice{}}
	s.publish(ctx, id, events.KindCartCleared, 0)
	s.publish(ctx, id, events.KindCartCountChanged, 0)
	return res, nil
}

func (s *Service) fetchRemote(ctx context.Context, id cart.Identity) ([]cart.LineItem, error) {
	raw, err := s.remote.ListCart(ctx, id.Token, id.UserID)
	if err != nil {
		return nil, err
	}
	items, err := cart.Parse(raw)
	if err != nil {
		return nil, err
	}
	if drifted := priceDrift(items); len(drifted) > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "item_ids", drifted), "reconciler.price_drift")
	}
	return items, nil
}

// priceDrift lists items whose backend totalPrice disagrees with the derived unit price.
// totalPrice still wins; the log exists to validate that against real payloads.
func priceDrift(items []cart.LineItem) []string {
	var ids []string
	for _, item := range items {
		if item.TotalPrice == nil || !item.TotalPrice.IsPositive() {
			continue
		}
		if !item.TotalPrice.Equal(pricing.DerivedUnitPrice(item)) {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

// saveMirror replaces the mirrored cart and, for a signed-in identity, records
// whose cart it now holds.
func (s *Service) saveMirror(ctx context.Context, id cart.Identity, items []cart.LineItem) error {
	if err := s.store.SaveCart(ctx, id.SessionID, items); err != nil {
		return err
	}
	if id.Authenticated() {
		return s.store.SetCartOwner(ctx, id.SessionID, id.UserID)
	}
	return nil
}

// mirrorFor reads the mirror, hiding a cart that belongs to another user.
func (s *Service) mirrorFor(ctx context.Context, id cart.Identity) ([]cart.LineItem, error) {
	if id.Authenticated() {
		owner, err := s.store.CartOwner(ctx, id.SessionID)
		if err != nil {
			return nil, err
		}
		if owner != "" && owner != id.UserID {
			return cart.Empty(), nil
		}
	}
	return s.store.Cart(ctx, id.SessionID)
}

// mutateMirror is a whole-value read-modify-write of the mirrored cart.
func (s *Service) mutateMirror(ctx context.Context, id cart.Identity, res *Result, fn func([]cart.LineItem) []cart.LineItem) error {
	items, err := s.mirrorFor(ctx, id)
	if err != nil {
		return err
	}
	items = fn(items)
	if err := s.saveMirror(ctx, id, items); err != nil {
		return err
	}
	res.Items, res.Source = items, SourceMirror
	if len(items) == 0 {
		res.Source = SourceEmpty
	}
	return nil
}

func (s *Service) afterWrite(ctx context.Context, id cart.Identity, res *Result, kind events.Kind) {
	s.recordCount(ctx, id, res)
	s.publish(ctx, id, kind, res.Count)
	s.publish(ctx, id, events.KindCartCountChanged, res.Count)
}

// recordCount caches the count for the badge. Failures only cost a stale badge.
func (s *Service) recordCount(ctx context.Context, id cart.Identity, res *Result) {
	if res.Items == nil {
		res.Items = cart.Empty()
	}
	if res.Notices == nil {
		res.Notices = []Notice{}
	}
	res.Count = pricing.Count(res.Items)
	if err := s.store.SetLastCount(ctx, id.SessionID, res.Count); err != nil {
		s.logg.WarnErr(ctx, "reconciler.count_cache_failed", err)
	}
	if err := s.store.SetCachedCount(ctx, id.SessionID, id.UserID, res.Count); err != nil {
		s.logg.WarnErr(ctx, "reconciler.count_cache_failed", err)
	}
}

func (s *Service) publish(ctx context.Context, id cart.Identity, kind events.Kind, count int) {
	s.bus.Publish(ctx, events.Event{
		Kind:      kind,
		SessionID: id.SessionID,
		UserID:    id.UserID,
		Count:     &count,
	})
}

func (s *Service) scope(ctx context.Context, id cart.Identity) context.Context {
	ctx = s.logg.WithSessionID(ctx, id.SessionID)
	if id.UserID != "" {
		ctx = s.logg.WithUserID(ctx, id.UserID)
	}
	return ctx
}

func appendRequest(item cart.LineItem) backend.AppendItemRequest {
	req := backend.AppendItemRequest{
		ProductID:       item.ProductID,
		Quantity:        item.Quantity,
		SelectedOptions: item.SelectedOptions,
		OptionsPricing:  item.OptionsPricing,
		ProductName:     pricing.DisplayName(item),
		Price:           pricing.UnitPrice(item),
	}
	if req.SelectedOptions == nil {
		req.SelectedOptions = map[string]string{}
	}
	if req.OptionsPricing == nil {
		req.OptionsPricing = map[string]decimal.Decimal{}
	}
	if item.Attachments != nil {
		req.Attachments = &backend.Attachments{Images: item.Attachments.Images, Text: item.Attachments.Text}
	}
	if item.Product != nil {
		req.Price = item.Product.Price
		req.Image = item.Product.MainImage
	}
	return req
}
