package storage_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/storage"
)

var (
	hashKey  = []byte("0123456789abcdef0123456789abcdef")
	blockKey = []byte("fedcba9876543210")
)

func TestAdapterRoundTripsSessionSnapshot(t *testing.T) {
	t.Parallel()

	a := storage.NewAdapter(nil)
	require.Equal(t, "", a.Token())
	_, ok := a.User()
	require.False(t, ok)

	require.NoError(t, a.SetToken("tok"))
	require.NoError(t, a.SetUser(&domain.User{ID: "u1", Email: "a@x.in"}))
	require.Equal(t, "tok", a.Token())
	u, ok := a.User()
	require.True(t, ok)
	require.Equal(t, "u1", u.ID)

	require.NoError(t, a.ClearAuth())
	require.Equal(t, "", a.Token())
	_, ok = a.User()
	require.False(t, ok)
}

func TestAdapterLegacyCartSnapshot(t *testing.T) {
	t.Parallel()

	a := storage.NewAdapter(storage.NewMemoryStore())
	items := []domain.CartItem{{ID: "c1", ProductID: "p1", Size: "M", Quantity: 2, UnitPrice: decimal.NewFromInt(400), AvailableStock: 5, InStock: true}}
	require.NoError(t, a.SetCart(items))

	got := a.Cart()
	require.Len(t, got, 1)
	require.True(t, got[0].UnitPrice.Equal(decimal.NewFromInt(400)))
	require.Equal(t, 2, got[0].Quantity)

	require.Empty(t, a.Wishlist())
}

func TestFileStorePersistsAcrossOpens(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := storage.OpenFileStore(storage.FileConfig{Dir: dir, HashKey: hashKey, BlockKey: blockKey})
	require.NoError(t, err)
	require.NoError(t, store.Set(storage.KeyToken, "secret-token"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	require.False(t, strings.Contains(string(raw), "secret-token"), "token must not be stored in clear text")

	reopened, err := storage.OpenFileStore(storage.FileConfig{Dir: dir, HashKey: hashKey, BlockKey: blockKey})
	require.NoError(t, err)
	v, ok := reopened.Get(storage.KeyToken)
	require.True(t, ok)
	require.Equal(t, "secret-token", v)

	require.NoError(t, reopened.Delete(storage.KeyToken, storage.KeyUser))
	_, ok = reopened.Get(storage.KeyToken)
	require.False(t, ok)
}

func TestFileStoreDiscardsTamperedState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := storage.OpenFileStore(storage.FileConfig{Dir: dir, HashKey: hashKey})
	require.NoError(t, err)
	require.NoError(t, store.Set(storage.KeyToken, "tok"))

	otherKey := []byte("another-hash-key-another-hash-ke")
	reopened, err := storage.OpenFileStore(storage.FileConfig{Dir: dir, HashKey: otherKey})
	require.NoError(t, err)
	_, ok := reopened.Get(storage.KeyToken)
	require.False(t, ok)
}

func TestFileStorePlainJSONWithoutKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := storage.OpenFileStore(storage.FileConfig{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, store.Set(storage.KeyUser, `{"id":"u1"}`))

	raw, err := os.ReadFile(filepath.Join(dir, "state"))
	require.NoError(t, err)
	require.Contains(t, string(raw), storage.KeyUser)
}

func TestOpenFileStoreValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := storage.OpenFileStore(storage.FileConfig{})
	require.Error(t, err)
	_, err = storage.OpenFileStore(storage.FileConfig{Dir: t.TempDir(), BlockKey: blockKey})
	require.Error(t, err)
}
