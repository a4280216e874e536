package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/cart"
	"github.com/Hemanshudhaduk/Velora/internal/checkout"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/paywidget"
	"github.com/Hemanshudhaduk/Velora/internal/session"
	"github.com/Hemanshudhaduk/Velora/internal/storage"
)

func TestExecuteClosesAppWhenCommandFails(t *testing.T) {
	widget := paywidget.New(paywidget.Config{Addr: "127.0.0.1:0"})
	c := &cli{}
	root := &cobra.Command{
		Use:           "velora",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			c.app = &app{logger: zap.NewNop(), widget: widget}
			require.NoError(t, widget.Start())
			return errors.New("backend unavailable")
		},
	}
	root.SetArgs([]string{})

	err := c.execute(context.Background(), root)
	require.EqualError(t, err, "backend unavailable")
	require.Nil(t, c.app)

	_, err = widget.Open(context.Background(), checkout.GatewayOrder{})
	require.ErrorIs(t, err, paywidget.ErrClosed)
}

// backendCart answers cart list and quantity updates with one line.
type backendCart struct {
	stock   int
	updates int
}

func (b *backendCart) IsAuthenticated() bool { return true }

func (b *backendCart) AuthenticatedRequest(_ context.Context, method, path string, _ session.Call) (*apiclient.Envelope, error) {
	switch {
	case method == http.MethodGet && path == "/api/cart/list":
		line := map[string]any{"id": "c1", "productId": "p1", "quantity": json.Number("1"), "availableStock": json.Number(strconv.Itoa(b.stock))}
		return &apiclient.Envelope{Status: http.StatusOK, Data: domain.Raw{"cartItems": []any{line}}}, nil
	case method == http.MethodPut && path == "/api/cart/c1":
		b.updates++
		return &apiclient.Envelope{Status: http.StatusOK, Data: domain.Raw{}}, nil
	}
	return nil, &apiclient.RequestError{Status: http.StatusNotFound, Message: "Not found"}
}

func TestUpdateCartLineUsesBackendStock(t *testing.T) {
	snapshots := storage.NewAdapter(storage.NewMemoryStore())
	require.NoError(t, snapshots.SetCart([]domain.CartItem{{ID: "c1", ProductID: "p1", Quantity: 1, AvailableStock: 3}}))

	backend := &backendCart{stock: 10}
	store, err := cart.New(cart.Deps{Session: backend, Snapshots: snapshots})
	require.NoError(t, err)
	store.Hydrate()

	require.NoError(t, updateCartLine(context.Background(), store, "c1", 5))
	require.Equal(t, 1, backend.updates)

	backend.stock = 4
	require.ErrorIs(t, updateCartLine(context.Background(), store, "c1", 5), domain.ErrOutOfStock)
	require.Equal(t, 1, backend.updates)
}
