package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/session"
	"github.com/Hemanshudhaduk/Velora/internal/storage"
)

const (
	pathCartList     = "/api/cart/list"
	pathCartAdd      = "/api/cart/add"
	pathCartItem     = "/api/cart"
	pathWishlistList = "/api/wishlist/list"
	pathWishlistAdd  = "/api/wishlist/add"
	pathWishlistItem = "/api/wishlist"
)

var (
	errSessionRequired = errors.New("cart store: session is required")

	// ErrItemNotFound reports an id absent from the cached collection.
	ErrItemNotFound = errors.New("cart store: item not found")

	// ErrRefreshAfterWrite reports a write the backend accepted whose follow-up refresh
	// failed. The cached collection is stale until the next successful refresh.
	ErrRefreshAfterWrite = errors.New("cart store: write applied but refresh failed")
)

// Session is the subset of the session holder the store needs.
type Session interface {
	IsAuthenticated() bool
	AuthenticatedRequest(ctx context.Context, method, path string, call session.Call) (*apiclient.Envelope, error)
}

// Deps wires the store.
type Deps struct {
	Session Session
	// Snapshots receives the legacy cart/wishlist arrays after every refresh. Optional.
	Snapshots *storage.Adapter
	Logger    *zap.Logger
}

// Store caches the shopper's cart and wishlist. The backend is the source of truth: every
// successful write is followed by a refresh and nothing is spliced in locally, except
// through the explicit *Local operations.
type Store struct {
	session   Session
	snapshots *storage.Adapter
	logger    *zap.Logger

	mu       sync.RWMutex
	cart     []domain.CartItem
	wishlist []domain.WishlistItem
}

// New constructs a Store.
func New(deps Deps) (*Store, error) {
	if deps.Session == nil {
		return nil, errSessionRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{session: deps.Session, snapshots: deps.Snapshots, logger: logger}, nil
}

// Hydrate seeds the caches from persisted snapshots before the first refresh.
func (s *Store) Hydrate() {
	if s.snapshots == nil {
		return
	}
	cart := s.snapshots.Cart()
	wish := s.snapshots.Wishlist()
	s.mu.Lock()
	s.cart = cart
	s.wishlist = wish
	s.mu.Unlock()
}

// Clear empties both caches and their snapshots.
func (s *Store) Clear() {
	s.setCart(nil)
	s.setWishlist(nil)
}

// Items returns a copy of the cart lines. The copy doubles as the snapshot handed back
// to RestoreCartItems.
func (s *Store) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CartItem(nil), s.cart...)
}

// Wishlist returns a copy of the wishlist entries.
func (s *Store) Wishlist() []domain.WishlistItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.WishlistItem(nil), s.wishlist...)
}

// Count is the sum of quantities over all lines.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, item := range s.cart {
		total += item.Quantity
	}
	return total
}

// WishlistCount is the number of wishlist entries.
func (s *Store) WishlistCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wishlist)
}

// Subtotal sums unit price times quantity, computed on every call.
func (s *Store) Subtotal() decimal.Decimal {
	return Subtotal(s.Items())
}

// Subtotal sums unit price times quantity over items.
func Subtotal(items []domain.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// RefreshCart replaces the cached cart with the backend's list. Without a session the
// cart is empty.
func (s *Store) RefreshCart(ctx context.Context) error {
	if !s.session.IsAuthenticated() {
		s.setCart(nil)
		return nil
	}
	env, err := s.session.AuthenticatedRequest(ctx, http.MethodGet, pathCartList, session.Call{})
	if err != nil {
		return fmt.Errorf("cart store: refresh cart: %w", err)
	}
	s.setCart(domain.NormalizeList(env.Data.List("cartItems", "cart_items", "items"), domain.NormalizeCartItem))
	return nil
}

// RefreshWishlist replaces the cached wishlist with the backend's list. Without a
// session the wishlist is empty.
func (s *Store) RefreshWishlist(ctx context.Context) error {
	if !s.session.IsAuthenticated() {
		s.setWishlist(nil)
		return nil
	}
	env, err := s.session.AuthenticatedRequest(ctx, http.MethodGet, pathWishlistList, session.Call{})
	if err != nil {
		return fmt.Errorf("cart store: refresh wishlist: %w", err)
	}
	s.setWishlist(domain.NormalizeList(env.Data.List("wishlistItems", "wishlist_items", "items"), domain.NormalizeWishlistItem))
	return nil
}

// Refresh reloads cart and wishlist.
func (s *Store) Refresh(ctx context.Context) error {
	cartErr := s.RefreshCart(ctx)
	wishErr := s.RefreshWishlist(ctx)
	return errors.Join(cartErr, wishErr)
}

// AddToCart adds quantity units of productID in size.
func (s *Store) AddToCart(ctx context.Context, productID, size string, quantity int) error {
	productID = strings.TrimSpace(productID)
	size = strings.TrimSpace(size)
	fields := make(map[string]string)
	if productID == "" {
		fields["productId"] = "Product is required"
	}
	if size == "" {
		fields["selectedSize"] = "Please select a size"
	}
	if quantity <= 0 {
		fields["quantity"] = "Quantity must be at least 1"
	}
	if err := domain.NewValidationError(fields); err != nil {
		return err
	}
	if !s.session.IsAuthenticated() {
		return domain.ErrUnauthenticated
	}

	_, err := s.session.AuthenticatedRequest(ctx, http.MethodPost, pathCartAdd, session.Call{
		Body: map[string]any{"productId": productID, "selectedSize": size, "quantity": quantity},
	})
	if err != nil {
		return fmt.Errorf("cart store: add to cart: %w", err)
	}
	return s.refreshCartAfterWrite(ctx)
}

// RemoveFromCart deletes a cart line.
func (s *Store) RemoveFromCart(ctx context.Context, cartItemID string) error {
	if strings.TrimSpace(cartItemID) == "" {
		return ErrItemNotFound
	}
	if !s.session.IsAuthenticated() {
		return domain.ErrUnauthenticated
	}
	_, err := s.session.AuthenticatedRequest(ctx, http.MethodDelete, itemPath(pathCartItem, cartItemID), session.Call{})
	if err != nil {
		return fmt.Errorf("cart store: remove from cart: %w", err)
	}
	return s.refreshCartAfterWrite(ctx)
}

// UpdateCartQuantity sets a line's quantity. Quantities outside [1, availableStock]
// are rejected without a network call.
func (s *Store) UpdateCartQuantity(ctx context.Context, cartItemID string, quantity int) error {
	if err := s.checkQuantity(cartItemID, quantity); err != nil {
		return err
	}
	if !s.session.IsAuthenticated() {
		return domain.ErrUnauthenticated
	}
	_, err := s.session.AuthenticatedRequest(ctx, http.MethodPut, itemPath(pathCartItem, cartItemID), session.Call{
		Body: map[string]int{"quantity": quantity},
	})
	if err != nil {
		return fmt.Errorf("cart store: update quantity: %w", err)
	}
	return s.refreshCartAfterWrite(ctx)
}

// AddToWishlist saves productID.
func (s *Store) AddToWishlist(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.NewValidationError(map[string]string{"productId": "Product is required"})
	}
	if !s.session.IsAuthenticated() {
		return domain.ErrUnauthenticated
	}
	_, err := s.session.AuthenticatedRequest(ctx, http.MethodPost, pathWishlistAdd, session.Call{
		Body: map[string]string{"productId": productID},
	})
	if err != nil {
		return fmt.Errorf("cart store: add to wishlist: %w", err)
	}
	return s.refreshWishlistAfterWrite(ctx)
}

// RemoveFromWishlist deletes a wishlist entry.
func (s *Store) RemoveFromWishlist(ctx context.Context, wishlistItemID string) error {
	if strings.TrimSpace(wishlistItemID) == "" {
		return ErrItemNotFound
	}
	if !s.session.IsAuthenticated() {
		return domain.ErrUnauthenticated
	}
	_, err := s.session.AuthenticatedRequest(ctx, http.MethodDelete, itemPath(pathWishlistItem, wishlistItemID), session.Call{})
	if err != nil {
		return fmt.Errorf("cart store: remove from wishlist: %w", err)
	}
	return s.refreshWishlistAfterWrite(ctx)
}

// IsInWishlist checks the cached wishlist from the last successful refresh.
func (s *Store) IsInWishlist(productID string) bool {
	_, ok := s.WishlistEntry(productID)
	return ok
}

// WishlistEntry returns the cached wishlist entry for productID.
func (s *Store) WishlistEntry(productID string) (domain.WishlistItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.wishlist {
		if item.ProductID == productID {
			return item, true
		}
	}
	return domain.WishlistItem{}, false
}

// MoveToCart adds one unit of the entry's first available size to the cart and only
// then removes the entry. A rejected add leaves the wishlist untouched; an accepted add
// whose refresh failed still removes the entry and reports ErrRefreshAfterWrite.
func (s *Store) MoveToCart(ctx context.Context, wishlistItemID string) error {
	item, ok := s.wishlistItem(wishlistItemID)
	if !ok {
		return ErrItemNotFound
	}
	sizes := domain.AvailableSizes(item.AvailableSizes)
	if len(sizes) == 0 {
		return fmt.Errorf("cart store: move %s: %w", item.ProductName, domain.ErrOutOfStock)
	}
	addErr := s.AddToCart(ctx, item.ProductID, sizes[0].Size, 1)
	if addErr != nil && !errors.Is(addErr, ErrRefreshAfterWrite) {
		return addErr
	}
	if err := s.RemoveFromWishlist(ctx, item.ID); err != nil {
		if !errors.Is(err, ErrRefreshAfterWrite) {
			s.logger.Warn("moved item still on wishlist", zap.String("wishlist_item_id", item.ID), zap.Error(err))
		}
		return errors.Join(addErr, err)
	}
	return addErr
}

// UpdateCartQuantityLocal changes a cached line without contacting the backend. Callers
// keep the result of Items() taken beforehand and pass it to RestoreCartItems if the
// follow-up confirmation fails.
func (s *Store) UpdateCartQuantityLocal(cartItemID string, quantity int) error {
	if err := s.checkQuantity(cartItemID, quantity); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cart {
		if s.cart[i].ID == cartItemID {
			s.cart[i].Quantity = quantity
		}
	}
	return nil
}

// RemoveFromCartLocal drops a cached line without contacting the backend.
func (s *Store) RemoveFromCartLocal(cartItemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.cart[:0:0]
	for _, item := range s.cart {
		if item.ID != cartItemID {
			kept = append(kept, item)
		}
	}
	s.cart = kept
}

// RestoreCartItems replaces the cached cart with a snapshot taken before a local mutation.
func (s *Store) RestoreCartItems(snapshot []domain.CartItem) {
	s.mu.Lock()
	s.cart = append([]domain.CartItem(nil), snapshot...)
	s.mu.Unlock()
}

func (s *Store) refreshCartAfterWrite(ctx context.Context) error {
	if err := s.RefreshCart(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshAfterWrite, err)
	}
	return nil
}

func (s *Store) refreshWishlistAfterWrite(ctx context.Context) error {
	if err := s.RefreshWishlist(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshAfterWrite, err)
	}
	return nil
}

func (s *Store) checkQuantity(cartItemID string, quantity int) error {
	s.mu.RLock()
	var (
		item  domain.CartItem
		found bool
	)
	for _, c := range s.cart {
		if c.ID == cartItemID {
			item, found = c, true
			break
		}
	}
	s.mu.RUnlock()
	if !found {
		return ErrItemNotFound
	}
	if quantity < 1 {
		return domain.NewValidationError(map[string]string{"quantity": "Quantity must be at least 1"})
	}
	if quantity > item.AvailableStock {
		return fmt.Errorf("cart store: only %d of %s left: %w", item.AvailableStock, item.ProductName, domain.ErrOutOfStock)
	}
	return nil
}

func (s *Store) wishlistItem(id string) (domain.WishlistItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.wishlist {
		if item.ID == id {
			return item, true
		}
	}
	return domain.WishlistItem{}, false
}

func (s *Store) setCart(items []domain.CartItem) {
	s.mu.Lock()
	s.cart = items
	s.mu.Unlock()
	if s.snapshots != nil {
		if err := s.snapshots.SetCart(items); err != nil {
			s.logger.Warn("persist cart snapshot", zap.Error(err))
		}
	}
}

func (s *Store) setWishlist(items []domain.WishlistItem) {
	s.mu.Lock()
	s.wishlist = items
	s.mu.Unlock()
	if s.snapshots != nil {
		if err := s.snapshots.SetWishlist(items); err != nil {
			s.logger.Warn("persist wishlist snapshot", zap.Error(err))
		}
	}
}

func itemPath(base, id string) string {
	return path.Join(base, strings.TrimSpace(id))
}
