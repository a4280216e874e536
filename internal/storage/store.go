package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Hemanshudhaduk/Velora/internal/domain"
)

// Keys persisted by the storefront client.
const (
	KeyToken    = "velora_token"
	KeyUser     = "velora_user"
	KeyCart     = "velora_cart"
	KeyWishlist = "velora_wish"
)

// KV is the narrow key-value contract the session and cart stores persist through.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(keys ...string) error
}

// Adapter adds typed accessors over a KV. Values are used only to bootstrap before the
// first backend round trip and are never treated as authoritative afterwards.
type Adapter struct {
	kv KV
}

// NewAdapter wraps kv; a nil kv yields an in-memory store.
func NewAdapter(kv KV) *Adapter {
	if kv == nil {
		kv = NewMemoryStore()
	}
	return &Adapter{kv: kv}
}

// Token returns the persisted bearer token.
func (a *Adapter) Token() string {
	v, _ := a.kv.Get(KeyToken)
	return strings.TrimSpace(v)
}

// SetToken persists the bearer token; an empty token removes it.
func (a *Adapter) SetToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return a.kv.Delete(KeyToken)
	}
	return a.kv.Set(KeyToken, token)
}

// User returns the persisted profile snapshot.
func (a *Adapter) User() (*domain.User, bool) {
	var u domain.User
	if !a.getJSON(KeyUser, &u) {
		return nil, false
	}
	return &u, true
}

// SetUser persists the profile snapshot; nil removes it.
func (a *Adapter) SetUser(u *domain.User) error {
	if u == nil {
		return a.kv.Delete(KeyUser)
	}
	return a.setJSON(KeyUser, u)
}

// ClearAuth removes token and user.
func (a *Adapter) ClearAuth() error {
	return a.kv.Delete(KeyToken, KeyUser)
}

// Cart returns the legacy cart snapshot.
func (a *Adapter) Cart() []domain.CartItem {
	var items []domain.CartItem
	a.getJSON(KeyCart, &items)
	return items
}

// SetCart persists the legacy cart snapshot.
func (a *Adapter) SetCart(items []domain.CartItem) error {
	return a.setJSON(KeyCart, items)
}

// Wishlist returns the legacy wishlist snapshot.
func (a *Adapter) Wishlist() []domain.WishlistItem {
	var items []domain.WishlistItem
	a.getJSON(KeyWishlist, &items)
	return items
}

// SetWishlist persists the legacy wishlist snapshot.
func (a *Adapter) SetWishlist(items []domain.WishlistItem) error {
	return a.setJSON(KeyWishlist, items)
}

func (a *Adapter) getJSON(key string, out any) bool {
	raw, ok := a.kv.Get(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

func (a *Adapter) setJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return a.kv.Set(key, string(data))
}

// ErrInvalidKey is returned for empty keys.
var ErrInvalidKey = errors.New("storage: empty key")
