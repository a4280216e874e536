package cart_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/cart"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/session"
	"github.com/Hemanshudhaduk/Velora/internal/storage"
)

type call struct {
	method string
	path   string
	body   any
}

// fakeSession serves cart/wishlist endpoints from in-memory lists.
type fakeSession struct {
	mu       sync.Mutex
	authed   bool
	calls    []call
	cart     []map[string]any
	wishlist []map[string]any
	fail     map[string]error
}

func newFakeSession() *fakeSession {
	return &fakeSession{authed: true, fail: map[string]error{}}
}

func (f *fakeSession) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authed
}

func (f *fakeSession) AuthenticatedRequest(_ context.Context, method, path string, c session.Call) (*apiclient.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: method, path: path, body: c.Body})
	if err, ok := f.fail[method+" "+path]; ok {
		return nil, err
	}
	switch {
	case path == "/api/cart/list":
		return envelope(map[string]any{"cartItems": toAny(f.cart)}), nil
	case path == "/api/wishlist/list":
		return envelope(map[string]any{"wishlistItems": toAny(f.wishlist)}), nil
	case path == "/api/cart/add":
		body := c.Body.(map[string]any)
		f.cart = append(f.cart, map[string]any{
			"id": "c-" + body["productId"].(string), "productId": body["productId"], "selectedSize": body["selectedSize"],
			"quantity": json.Number("1"), "currentPrice": json.Number("500"), "availableStock": json.Number("3"),
		})
		return envelope(nil), nil
	case path == "/api/wishlist/add":
		id := c.Body.(map[string]string)["productId"]
		f.wishlist = append(f.wishlist, map[string]any{"id": "w-" + id, "productId": id})
		return envelope(nil), nil
	case method == http.MethodDelete && len(path) > len("/api/wishlist/") && path[:len("/api/wishlist/")] == "/api/wishlist/":
		id := path[len("/api/wishlist/"):]
		f.wishlist = remove(f.wishlist, id)
		return envelope(nil), nil
	case method == http.MethodDelete:
		f.cart = remove(f.cart, path[len("/api/cart/"):])
		return envelope(nil), nil
	case method == http.MethodPut:
		id := path[len("/api/cart/"):]
		for _, item := range f.cart {
			if item["id"] == id {
				item["quantity"] = json.Number(itoa(c.Body.(map[string]int)["quantity"]))
			}
		}
		return envelope(nil), nil
	}
	return nil, &apiclient.RequestError{Status: http.StatusNotFound, Message: "Not found"}
}

func (f *fakeSession) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func envelope(data map[string]any) *apiclient.Envelope {
	if data == nil {
		data = map[string]any{}
	}
	return &apiclient.Envelope{Status: http.StatusOK, Data: domain.Raw(data)}
}

func toAny(items []map[string]any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}

func remove(items []map[string]any, id string) []map[string]any {
	out := items[:0:0]
	for _, item := range items {
		if item["id"] != id {
			out = append(out, item)
		}
	}
	return out
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newStore(t *testing.T, sess *fakeSession) *cart.Store {
	t.Helper()
	store, err := cart.New(cart.Deps{Session: sess})
	require.NoError(t, err)
	return store
}

func TestRefreshUnauthenticatedIsEmpty(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.cart = []map[string]any{{"id": "c1", "quantity": json.Number("2"), "availableStock": json.Number("5")}}
	store := newStore(t, sess)
	require.NoError(t, store.RefreshCart(context.Background()))
	require.Equal(t, 2, store.Count())

	sess.mu.Lock()
	sess.authed = false
	sess.mu.Unlock()
	require.NoError(t, store.Refresh(context.Background()))
	require.Empty(t, store.Items())
	require.Equal(t, 0, store.Count())
}

func TestCountAndSubtotal(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.cart = []map[string]any{
		{"id": "c1", "quantity": json.Number("2"), "currentPrice": json.Number("250"), "availableStock": json.Number("5")},
		{"id": "c2", "quantity": json.Number("3"), "currentPrice": "99.50", "availableStock": json.Number("5")},
	}
	store := newStore(t, sess)
	require.NoError(t, store.RefreshCart(context.Background()))

	require.Equal(t, 5, store.Count())
	require.True(t, store.Subtotal().Equal(decimal.RequireFromString("798.5")), store.Subtotal().String())

	first := store.Items()
	require.NoError(t, store.RefreshCart(context.Background()))
	require.Equal(t, first, store.Items())
}

func TestAddToCartValidatesBeforeNetwork(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	store := newStore(t, sess)

	var vErr *domain.ValidationError
	require.True(t, errors.As(store.AddToCart(context.Background(), "p1", "", 1), &vErr))
	require.True(t, errors.As(store.AddToCart(context.Background(), "p1", "M", 0), &vErr))
	require.Equal(t, 0, sess.networkCalls())

	require.NoError(t, store.AddToCart(context.Background(), "p1", "M", 1))
	require.Len(t, store.Items(), 1)
	require.Equal(t, "M", store.Items()[0].Size)
}

func TestAddToCartFailureLeavesCart(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.fail["POST /api/cart/add"] = &apiclient.RequestError{Status: http.StatusBadRequest, Message: "Insufficient stock"}
	store := newStore(t, sess)

	err := store.AddToCart(context.Background(), "p1", "M", 1)
	require.Error(t, err)
	require.Equal(t, "Insufficient stock", apiclient.Message(err))
	require.Empty(t, store.Items())
}

func TestAddToCartRefreshFailureIsNotAFailedAdd(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.fail["GET /api/cart/list"] = &apiclient.RequestError{Status: http.StatusBadGateway, Message: "Bad gateway"}
	store := newStore(t, sess)

	err := store.AddToCart(context.Background(), "p1", "M", 1)
	require.ErrorIs(t, err, cart.ErrRefreshAfterWrite)
	require.Equal(t, "Bad gateway", apiclient.Message(err))
	require.Len(t, sess.cart, 1)

	delete(sess.fail, "GET /api/cart/list")
	require.NoError(t, store.RefreshCart(context.Background()))
	require.Len(t, store.Items(), 1)
}

func TestUpdateQuantityBounds(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.cart = []map[string]any{{"id": "c1", "quantity": json.Number("1"), "availableStock": json.Number("3")}}
	store := newStore(t, sess)
	require.NoError(t, store.RefreshCart(context.Background()))
	before := sess.networkCalls()

	require.ErrorIs(t, store.UpdateCartQuantity(context.Background(), "c1", 4), domain.ErrOutOfStock)
	var vErr *domain.ValidationError
	require.True(t, errors.As(store.UpdateCartQuantity(context.Background(), "c1", 0), &vErr))
	require.ErrorIs(t, store.UpdateCartQuantity(context.Background(), "missing", 1), cart.ErrItemNotFound)
	require.Equal(t, before, sess.networkCalls())

	require.NoError(t, store.UpdateCartQuantity(context.Background(), "c1", 3))
	require.Equal(t, 3, store.Count())
}

func TestWishlistMembershipFollowsRefresh(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	store := newStore(t, sess)

	require.False(t, store.IsInWishlist("p1"))
	require.NoError(t, store.AddToWishlist(context.Background(), "p1"))
	require.True(t, store.IsInWishlist("p1"))

	entry, ok := store.WishlistEntry("p1")
	require.True(t, ok)
	require.NoError(t, store.RemoveFromWishlist(context.Background(), entry.ID))
	require.False(t, store.IsInWishlist("p1"))
}

func TestMoveToCart(t *testing.T) {
	t.Parallel()

	t.Run("adds first available size then removes", func(t *testing.T) {
		t.Parallel()
		sess := newFakeSession()
		sess.wishlist = []map[string]any{{
			"id": "w1", "productId": "p1",
			"availableSizes": []any{
				map[string]any{"size": "S", "stock": json.Number("0")},
				map[string]any{"size": "L", "stock": json.Number("4")},
			},
		}}
		store := newStore(t, sess)
		require.NoError(t, store.RefreshWishlist(context.Background()))

		require.NoError(t, store.MoveToCart(context.Background(), "w1"))
		require.Equal(t, 0, store.WishlistCount())
		require.Len(t, store.Items(), 1)
		require.Equal(t, "L", store.Items()[0].Size)

		sess.mu.Lock()
		defer sess.mu.Unlock()
		var order []string
		for _, c := range sess.calls {
			order = append(order, c.method+" "+c.path)
		}
		require.Equal(t, []string{
			"GET /api/wishlist/list",
			"POST /api/cart/add",
			"GET /api/cart/list",
			"DELETE /api/wishlist/w1",
			"GET /api/wishlist/list",
		}, order)
	})

	t.Run("failed add keeps wishlist", func(t *testing.T) {
		t.Parallel()
		sess := newFakeSession()
		sess.wishlist = []map[string]any{{"id": "w1", "productId": "p1", "availableSizes": []any{map[string]any{"size": "M", "stock": json.Number("2")}}}}
		sess.fail["POST /api/cart/add"] = &apiclient.RequestError{Status: http.StatusConflict, Message: "Out of stock"}
		store := newStore(t, sess)
		require.NoError(t, store.RefreshWishlist(context.Background()))

		require.Error(t, store.MoveToCart(context.Background(), "w1"))
		require.Equal(t, 1, store.WishlistCount())
	})

	t.Run("accepted add with failed refresh still removes entry", func(t *testing.T) {
		t.Parallel()
		sess := newFakeSession()
		sess.wishlist = []map[string]any{{"id": "w1", "productId": "p1", "availableSizes": []any{map[string]any{"size": "M", "stock": json.Number("2")}}}}
		store := newStore(t, sess)
		require.NoError(t, store.RefreshWishlist(context.Background()))
		sess.mu.Lock()
		sess.fail["GET /api/cart/list"] = &apiclient.RequestError{Status: http.StatusBadGateway, Message: "Bad gateway"}
		sess.mu.Unlock()

		err := store.MoveToCart(context.Background(), "w1")
		require.ErrorIs(t, err, cart.ErrRefreshAfterWrite)
		require.Equal(t, 0, store.WishlistCount())

		sess.mu.Lock()
		defer sess.mu.Unlock()
		require.Len(t, sess.cart, 1)
		require.Empty(t, sess.wishlist)
	})

	t.Run("no sizes fails without network", func(t *testing.T) {
		t.Parallel()
		sess := newFakeSession()
		sess.wishlist = []map[string]any{{"id": "w1", "productId": "p1", "availableSizes": []any{}}}
		store := newStore(t, sess)
		require.NoError(t, store.RefreshWishlist(context.Background()))
		before := sess.networkCalls()

		require.ErrorIs(t, store.MoveToCart(context.Background(), "w1"), domain.ErrOutOfStock)
		require.Equal(t, before, sess.networkCalls())
		require.Equal(t, 1, store.WishlistCount())
	})
}

func TestLocalMutationsAndRestore(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.cart = []map[string]any{
		{"id": "c1", "quantity": json.Number("1"), "availableStock": json.Number("5")},
		{"id": "c2", "quantity": json.Number("2"), "availableStock": json.Number("5")},
	}
	store := newStore(t, sess)
	require.NoError(t, store.RefreshCart(context.Background()))
	before := sess.networkCalls()

	snapshot := store.Items()
	require.NoError(t, store.UpdateCartQuantityLocal("c1", 4))
	store.RemoveFromCartLocal("c2")
	require.Equal(t, 4, store.Count())
	require.Equal(t, before, sess.networkCalls())

	store.RestoreCartItems(snapshot)
	require.Equal(t, 3, store.Count())
	require.Len(t, store.Items(), 2)
}

func TestSnapshotsPersistAfterRefresh(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.cart = []map[string]any{{"id": "c1", "quantity": json.Number("2"), "availableStock": json.Number("5")}}
	snapshots := storage.NewAdapter(storage.NewMemoryStore())
	store, err := cart.New(cart.Deps{Session: sess, Snapshots: snapshots})
	require.NoError(t, err)
	require.NoError(t, store.RefreshCart(context.Background()))
	require.Len(t, snapshots.Cart(), 1)

	other, err := cart.New(cart.Deps{Session: sess, Snapshots: snapshots})
	require.NoError(t, err)
	other.Hydrate()
	require.Equal(t, 2, other.Count())

	other.Clear()
	require.Empty(t, snapshots.Cart())
}
