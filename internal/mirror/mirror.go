package mirror

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

// Entry names inside a session namespace.
const (
	KeyCart          = "cart"
	KeyCartOwner     = "cartOwner"
	KeyLastCartCount = "lastCartCount"
	KeyLastOrder     = "lastOrder"
	KeyUser          = "user"
	KeyAppliedCoupon = "appliedCoupon"

	countKeyPrefix = "cartCount_"
)

// CountKey names the cached item count of one user identity.
func CountKey(userID string) string {
	return countKeyPrefix + userID
}

// Store is the typed view over a KV for one deployment. Every method is scoped
// to a browser session id.
type Store struct {
	kv   KV
	logg *logger.Logger
}

func New(kv KV, logg *logger.Logger) *Store {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{kv: kv, logg: logg}
}

// Cart returns the mirrored cart. Missing or corrupt data reads as an empty cart.
func (s *Store) Cart(ctx context.Context, sessionID string) ([]cart.LineItem, error) {
	raw, ok, err := s.kv.Get(ctx, sessionID, KeyCart)
	if err != nil {
		return nil, storageErr(err, "read cart mirror")
	}
	if !ok {
		return cart.Empty(), nil
	}
	items, err := cart.Decode([]byte(raw))
	if err != nil {
		s.logg.WarnErr(ctx, "mirror.cart_corrupt", err)
	}
	return items, nil
}

// SaveCart replaces the mirrored cart.
func (s *Store) SaveCart(ctx context.Context, sessionID string, items []cart.LineItem) error {
	raw, err := cart.Encode(items)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart mirror")
	}
	if err := s.kv.Set(ctx, sessionID, KeyCart, string(raw)); err != nil {
		return storageErr(err, "write cart mirror")
	}
	return nil
}

// CartOwner is the user whose remote cart the mirror holds; empty for an
// anonymous cart.
func (s *Store) CartOwner(ctx context.Context, sessionID string) (string, error) {
	owner, ok, err := s.kv.Get(ctx, sessionID, KeyCartOwner)
	if err != nil {
		return "", storageErr(err, "read cart owner")
	}
	if !ok {
		return "", nil
	}
	return owner, nil
}

func (s *Store) SetCartOwner(ctx context.Context, sessionID, userID string) error {
	if userID == "" {
		return nil
	}
	if err := s.kv.Set(ctx, sessionID, KeyCartOwner, userID); err != nil {
		return storageErr(err, "write cart owner")
	}
	return nil
}

// ClearCart writes the empty sequence rather than dropping the entry.
func (s *Store) ClearCart(ctx context.Context, sessionID string) error {
	return s.SaveCart(ctx, sessionID, cart.Empty())
}

// CachedCount returns the count cached for userID, or false when none exists.
func (s *Store) CachedCount(ctx context.Context, sessionID, userID string) (int, bool, error) {
	if userID == "" {
		return 0, false, nil
	}
	return s.readInt(ctx, sessionID, CountKey(userID))
}

func (s *Store) SetCachedCount(ctx context.Context, sessionID, userID string, count int) error {
	if userID == "" {
		return nil
	}
	return s.writeInt(ctx, sessionID, CountKey(userID), count)
}

// LastCount is the last successfully computed count, used while offline.
func (s *Store) LastCount(ctx context.Context, sessionID string) (int, bool, error) {
	return s.readInt(ctx, sessionID, KeyLastCartCount)
}

func (s *Store) SetLastCount(ctx context.Context, sessionID string, count int) error {
	return s.writeInt(ctx, sessionID, KeyLastCartCount, count)
}

// Load decodes the JSON entry name into dest. It reports false when the entry is
// missing or unreadable.
func (s *Store) Load(ctx context.Context, sessionID, name string, dest any) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, sessionID, name)
	if err != nil {
		return false, storageErr(err, "read "+name)
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.logg.WarnErr(s.logg.WithField(ctx, "entry", name), "mirror.entry_corrupt", err)
		return false, nil
	}
	return true, nil
}

// Save replaces the JSON entry name with value.
func (s *Store) Save(ctx context.Context, sessionID, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode "+name)
	}
	if err := s.kv.Set(ctx, sessionID, name, string(raw)); err != nil {
		return storageErr(err, "write "+name)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, sessionID string, names ...string) error {
	if err := s.kv.Delete(ctx, sessionID, names...); err != nil {
		return storageErr(err, "delete mirror entries")
	}
	return nil
}

// User returns the stored profile blob, or nil when absent.
func (s *Store) User(ctx context.Context, sessionID string) (json.RawMessage, error) {
	var profile json.RawMessage
	ok, err := s.Load(ctx, sessionID, KeyUser, &profile)
	if err != nil || !ok {
		return nil, err
	}
	return profile, nil
}

func (s *Store) SaveUser(ctx context.Context, sessionID string, profile json.RawMessage) error {
	if len(profile) == 0 {
		return nil
	}
	return s.Save(ctx, sessionID, KeyUser, profile)
}

// ForgetSession drops the cart and its owner, the profile and every count known for userID.
func (s *Store) ForgetSession(ctx context.Context, sessionID, userID string) error {
	names := []string{KeyCart, KeyCartOwner, KeyUser, KeyLastCartCount, KeyAppliedCoupon}
	if userID != "" {
		names = append(names, CountKey(userID))
	}
	return s.Remove(ctx, sessionID, names...)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

func (s *Store) readInt(ctx context.Context, sessionID, name string) (int, bool, error) {
	raw, ok, err := s.kv.Get(ctx, sessionID, name)
	if err != nil {
		return 0, false, storageErr(err, "read "+name)
	}
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

func (s *Store) writeInt(ctx context.Context, sessionID, name string, n int) error {
	if err := s.kv.Set(ctx, sessionID, name, strconv.Itoa(n)); err != nil {
		return storageErr(err, "write "+name)
	}
	return nil
}

func storageErr(err error, msg string) error {
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
