package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/events"
	"github.com/angelmondragon/storefront-cart/internal/mirror"
	"github.com/angelmondragon/storefront-cart/pkg/backend"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNetwork = errors.New("dial tcp: connection refused")

type fakeRemote struct {
	mu        sync.Mutex
	items     []cart.LineItem
	listErr   error
	writeErr  error
	appendErr func(req backend.AppendItemRequest) error
	calls     []string
	appended  []backend.AppendItemRequest
}

func (f *fakeRemote) ListCart(_ context.Context, _, _ string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	raw, err := json.Marshal(map[string]any{"cart": f.items})
	return raw, err
}

func (f *fakeRemote) AppendItem(_ context.Context, _, _ string, req backend.AppendItemRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "append")
	if f.appendErr != nil {
		if err := f.appendErr(req); err != nil {
			return err
		}
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.appended = append(f.appended, req)
	f.items = append(f.items, cart.LineItem{ID: "srv-" + req.ProductID, ProductID: req.ProductID, Quantity: req.Quantity})
	return nil
}

func (f *fakeRemote) UpdateQuantity(_ context.Context, _, _, itemID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update:"+itemID)
	if f.writeErr != nil {
		return f.writeErr
	}
	f.items = cart.WithQuantity(f.items, itemID, quantity)
	return nil
}

func (f *fakeRemote) RemoveItem(_ context.Context, _, _, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "remove:"+itemID)
	if f.writeErr != nil {
		return f.writeErr
	}
	f.items = cart.Without(f.items, itemID)
	return nil
}

func (f *fakeRemote) ClearCart(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "clear")
	if f.writeErr != nil {
		return f.writeErr
	}
	f.items = nil
	return nil
}

type harness struct {
	svc    *Service
	remote *fakeRemote
	store  *mirror.Store
	events []events.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{remote: &fakeRemote{}, store: mirror.New(mirror.NewMemoryKV(), nil)}
	bus := events.NewBus(nil)
	bus.Subscribe(func(_ context.Context, evt events.Event) {
		h.events = append(h.events, evt)
	})
	h.svc = NewService(ServiceParams{Remote: h.remote, Store: h.store, Bus: bus})
	return h
}

func (h *harness) kinds() []events.Kind {
	out := make([]events.Kind, 0, len(h.events))
	for _, evt := range h.events {
		out = append(out, evt.Kind)
	}
	return out
}

var (
	guest = cart.Identity{SessionID: "s1"}
	user  = cart.Identity{SessionID: "s1", UserID: "u1", Token: "tok"}
)

func TestLoadGuestEmpty(t *testing.T) {
	h := newHarness(t)
	res, err := h.svc.Load(context.Background(), guest)
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.Equal(t, SourceEmpty, res.Source)
	assert.Empty(t, h.remote.calls)
}

func TestLoadRemoteWinsAndOverwritesMirror(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveCart(ctx, "s1", []cart.LineItem{{ID: "local", Quantity: 1}}))
	h.remote.items = []cart.LineItem{{ID: "r1", ProductID: "p1", Quantity: 2}, {ID: "r2", ProductID: "p2", Quantity: 3}}

	res, err := h.svc.Load(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, 5, res.Count)
	assert.Empty(t, res.Notices)

	mirrored, err := h.store.Cart(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, mirrored, 2)
	assert.Equal(t, "r1", mirrored[0].ID)

	cached, ok, err := h.store.CachedCount(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, cached)
	last, _, _ := h.store.LastCount(ctx, "s1")
	assert.Equal(t, 5, last)
}

func TestLoadRemoteEmptyFallsBackToMirror(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveCart(ctx, "s1", []cart.LineItem{{ID: "local", Quantity: 2}}))

	res, err := h.svc.Load(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, SourceMirror, res.Source)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "local", res.Items[0].ID)
	assert.Empty(t, res.Notices)
}

func TestLoadRemoteFailureKeepsMirror(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	local := []cart.LineItem{{ID: "a", Quantity: 1}, {ID: "b", Quantity: 1}}
	require.NoError(t, h.store.SaveCart(ctx, "s1", local))
	h.remote.listErr = errNetwork

	res, err := h.svc.Load(ctx, user)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "a", res.Items[0].ID)
	assert.Equal(t, "b", res.Items[1].ID)
	require.Len(t, res.Notices, 1)
	assert.Equal(t, NoticeLoadFailed, res.Notices[0].Message)
	assert.Equal(t, NoticeWarning, res.Notices[0].Level)
}

func TestAddGuestAppendsWithGeneratedID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Add(ctx, guest, cart.LineItem{ProductID: "p1", Quantity: 0})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.NotEmpty(t, res.Items[0].ID)
	assert.Equal(t, 1, res.Items[0].Quantity)
	assert.Equal(t, 1, res.Count)
	assert.Empty(t, h.remote.calls)
	assert.Equal(t, []events.Kind{events.KindCartUpdated, events.KindCartCountChanged}, h.kinds())

	hint, ok := h.events[1].CountHint()
	assert.True(t, ok)
	assert.Equal(t, 1, hint)
}

func TestAddAuthenticatedRoundTrips(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := cart.LineItem{
		ProductID:      "p9",
		Quantity:       2,
		OptionsPricing: map[string]decimal.Decimal{"size": decimal.NewFromInt(5)},
		Product:        &cart.Product{Name: "Cake", Price: decimal.NewFromInt(50), MainImage: "cake.png"},
	}

	res, err := h.svc.Add(ctx, user, item)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "srv-p9", res.Items[0].ID)
	assert.Equal(t, []string{"append", "list"}, h.remote.calls)

	require.Len(t, h.remote.appended, 1)
	sent := h.remote.appended[0]
	assert.Equal(t, "Cake", sent.ProductName)
	assert.Equal(t, "cake.png", sent.Image)
	assert.True(t, sent.Price.Equal(decimal.NewFromInt(50)))
	assert.NotNil(t, sent.SelectedOptions)
}

func TestAddAuthenticatedRemoteFailureKeepsLocal(t *testing.T) {
	h := newHarness(t)
	h.remote.writeErr = errNetwork

	res, err := h.svc.Add(context.Background(), user, cart.LineItem{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Len(t, res.Notices, 1)
	assert.Equal(t, NoticeAddLocalOnly, res.Notices[0].Message)
}

func TestUpdateQuantityToZeroRemovesEverywhere(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.items = []cart.LineItem{{ID: "x", Quantity: 3}, {ID: "y", Quantity: 1}}
	require.NoError(t, h.store.SaveCart(ctx, "s1", h.remote.items))

	res, err := h.svc.UpdateQuantity(ctx, user, "x", 0)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "y", res.Items[0].ID)
	assert.Contains(t, h.remote.calls, "remove:x")
	require.Len(t, h.remote.items, 1)

	mirrored, _ := h.store.Cart(ctx, "s1")
	assert.Equal(t, -1, cart.IndexOf(mirrored, "x"))
	assert.Contains(t, h.kinds(), events.KindCartUpdated)
}

func TestUpdateQuantityRemoteFailureAppliesLocally(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveCart(ctx, "s1", []cart.LineItem{{ID: "x", Quantity: 1}}))
	h.remote.writeErr = errNetwork

	res, err := h.svc.UpdateQuantity(ctx, user, "x", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Items[0].Quantity)
	assert.Equal(t, 4, res.Count)
	require.Len(t, res.Notices, 1)
	assert.Equal(t, NoticeQuantityLocalOnly, res.Notices[0].Message)

	mirrored, _ := h.store.Cart(ctx, "s1")
	assert.Equal(t, 4, mirrored[0].Quantity)
}

func TestRemoveGuestNeverCallsRemote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveCart(ctx, "s1", []cart.LineItem{{ID: "x", Quantity: 1}}))

	res, err := h.svc.Remove(ctx, guest, "x")
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, SourceEmpty, res.Source)
	assert.Empty(t, h.remote.calls)
}

func TestClear(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveCart(ctx, "s1", []cart.LineItem{{ID: "x", Quantity: 2}}))
	h.remote.writeErr = errNetwork

	res, err := h.svc.Clear(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.Count)
	require.Len(t, res.Notices, 1)
	assert.Equal(t, NoticeClearLocalOnly, res.Notices[0].Message)
	assert.Equal(t, []events.Kind{events.KindCartCleared, events.KindCartCountChanged}, h.kinds())

	mirrored, _ := h.store.Cart(ctx, "s1")
	assert.Empty(t, mirrored)
}

func TestMergeOnLoginToleratesPartialFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveCart(ctx, "s1", []cart.LineItem{
		{ID: "a", ProductID: "p1", Quantity: 1},
		{ID: "b", ProductID: "bad", Quantity: 1},
		{ID: "c", ProductID: "p3", Quantity: 2},
	}))
	h.remote.items = []cart.LineItem{{ID: "existing", ProductID: "p0", Quantity: 1}}
	h.remote.appendErr = func(req backend.AppendItemRequest) error {
		if req.ProductID == "bad" {
			return errNetwork
		}
		return nil
	}

	res, err := h.svc.MergeOnLogin(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	assert.Empty(t, res.Notices)

	ids := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"existing", "srv-p1", "srv-p3"}, ids)

	mirrored, _ := h.store.Cart(ctx, "s1")
	assert.Len(t, mirrored, 3)
	assert.Contains(t, h.kinds(), events.KindCartMerged)
}

func TestMergeOnLoginReloadFailureKeepsLocal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveCart(ctx, "s1", []cart.LineItem{{ID: "a", ProductID: "p1", Quantity: 1}}))
	h.remote.listErr = errNetwork

	res, err := h.svc.MergeOnLogin(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, SourceMirror, res.Source)
	require.Len(t, res.Items, 1)
	require.Len(t, res.Notices, 1)
}

func TestRepeatedLoginDoesNotGrowRemoteCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.items = []cart.LineItem{{ID: "r1", ProductID: "p1", Quantity: 1}}

	_, err := h.svc.Load(ctx, user)
	require.NoError(t, err)
	owner, err := h.store.CartOwner(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)

	res, err := h.svc.Login(ctx, user, nil)
	require.NoError(t, err)
	res, err = h.svc.Login(ctx, user, nil)
	require.NoError(t, err)

	assert.Empty(t, h.remote.appended)
	assert.Len(t, h.remote.items, 1)
	assert.Equal(t, 1, res.Count)
	assert.Contains(t, h.kinds(), events.KindCartMerged)
}

func TestMergeAfterGuestCartRunsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Add(ctx, guest, cart.LineItem{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, user, nil)
	require.NoError(t, err)
	_, err = h.svc.Login(ctx, user, nil)
	require.NoError(t, err)

	require.Len(t, h.remote.appended, 1)
	assert.Len(t, h.remote.items, 1)
}

func TestMergeReloadFailureStillRecordsOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveCart(ctx, "s1", []cart.LineItem{{ID: "a", ProductID: "p1", Quantity: 1}}))
	h.remote.listErr = errNetwork

	_, err := h.svc.MergeOnLogin(ctx, user)
	require.NoError(t, err)
	_, err = h.svc.MergeOnLogin(ctx, user)
	require.NoError(t, err)

	assert.Len(t, h.remote.appended, 1)
}

func TestLoginDiscardsAnotherUsersMirror(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.items = []cart.LineItem{{ID: "a-1", ProductID: "pa", Quantity: 3}}
	_, err := h.svc.Load(ctx, user)
	require.NoError(t, err)

	other := cart.Identity{SessionID: "s1", UserID: "u2", Token: "tok2"}
	h.remote.items = nil
	res, err := h.svc.Login(ctx, other, nil)
	require.NoError(t, err)

	assert.Empty(t, h.remote.appended)
	assert.Empty(t, res.Items)
	assert.Equal(t, SourceEmpty, res.Source)
	owner, _ := h.store.CartOwner(ctx, "s1")
	assert.Equal(t, "u2", owner)
	mirrored, _ := h.store.Cart(ctx, "s1")
	assert.Empty(t, mirrored)
}

func TestLoadHidesAnotherUsersMirror(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveCart(ctx, "s1", []cart.LineItem{{ID: "a", Quantity: 2}}))
	require.NoError(t, h.store.SetCartOwner(ctx, "s1", "u9"))

	res, err := h.svc.Load(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, SourceEmpty, res.Source)
}

func TestLoginStoresProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Login(ctx, user, json.RawMessage(`{"name":"Omar"}`))
	require.NoError(t, err)
	profile, err := h.store.User(ctx, "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Omar"}`, string(profile))
}

func TestLogoutForgetsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SaveCart(ctx, "s1", []cart.LineItem{{ID: "a", Quantity: 1}}))
	require.NoError(t, h.store.SetCachedCount(ctx, "s1", "u1", 1))

	res, err := h.svc.Logout(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	mirrored, _ := h.store.Cart(ctx, "s1")
	assert.Empty(t, mirrored)
	_, ok, _ := h.store.CachedCount(ctx, "s1", "u1")
	assert.False(t, ok)
	assert.Contains(t, h.kinds(), events.KindCartCleared)
}

func TestPriceDriftFlagsDisagreeingTotals(t *testing.T) {
	agree := decimal.NewFromInt(55)
	disagree := decimal.NewFromInt(70)
	zero := decimal.Zero
	product := &cart.Product{Name: "Cake", Price: decimal.NewFromInt(50)}
	surcharge := map[string]decimal.Decimal{"size": decimal.NewFromInt(5)}

	items := []cart.LineItem{
		{ID: "a", Quantity: 1, Product: product, OptionsPricing: surcharge, TotalPrice: &agree},
		{ID: "b", Quantity: 1, Product: product, OptionsPricing: surcharge, TotalPrice: &disagree},
		{ID: "c", Quantity: 1, Product: product, TotalPrice: &zero},
		{ID: "d", Quantity: 1, Product: product},
	}
	assert.Equal(t, []string{"b"}, priceDrift(items))
	assert.Empty(t, priceDrift(nil))
}
