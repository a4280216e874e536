package checkout_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/checkout"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/session"
)

type recordedCall struct {
	method string
	path   string
	call   session.Call
}

type fakeSession struct {
	mu     sync.Mutex
	authed bool
	calls  []recordedCall
	fail   map[string]error
	orders int
}

func newFakeSession() *fakeSession {
	return &fakeSession{authed: true, fail: map[string]error{}}
}

func (s *fakeSession) IsAuthenticated() bool { return s.authed }

func (s *fakeSession) User() (domain.User, bool) {
	return domain.User{ID: "u1", FirstName: "Asha", LastName: "Rao", Email: "asha@velora.in", Phone: "9876543210"}, s.authed
}

func (s *fakeSession) AuthenticatedRequest(_ context.Context, method, path string, call session.Call) (*apiclient.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, recordedCall{method: method, path: path, call: call})
	if err := s.fail[path]; err != nil {
		return nil, err
	}
	switch path {
	case "/api/order/create":
		s.orders++
		return ok(domain.Raw{"order": map[string]any{"id": "o1", "orderNumber": "VEL-1001"}}), nil
	case "/api/razorpay/create-order":
		return ok(domain.Raw{"razorpay": map[string]any{
			"keyId":    "rzp_test_key",
			"orderId":  "order_gw1",
			"amount":   89000.0,
			"currency": "INR",
		}}), nil
	}
	return ok(domain.Raw{}), nil
}

func (s *fakeSession) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.path)
	}
	return out
}

func (s *fakeSession) find(path string) (recordedCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.path == path {
			return c, true
		}
	}
	return recordedCall{}, false
}

func ok(data domain.Raw) *apiclient.Envelope {
	return &apiclient.Envelope{Status: http.StatusOK, Data: data}
}

type fakeCart struct {
	items     []domain.CartItem
	refreshes int
}

func (c *fakeCart) Items() []domain.CartItem { return c.items }

func (c *fakeCart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (c *fakeCart) RefreshCart(context.Context) error {
	c.refreshes++
	return nil
}

func cartOf800() *fakeCart {
	return &fakeCart{items: []domain.CartItem{{ID: "c1", ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(400), AvailableStock: 5}}}
}

type scriptedWidget struct {
	event  checkout.WidgetEvent
	opened []checkout.GatewayOrder
}

func (w *scriptedWidget) Open(_ context.Context, order checkout.GatewayOrder) (<-chan checkout.WidgetEvent, error) {
	w.opened = append(w.opened, order)
	ch := make(chan checkout.WidgetEvent, 1)
	ch <- w.event
	close(ch)
	return ch, nil
}

func newOrchestrator(t *testing.T, sess *fakeSession, cart *fakeCart, widget checkout.PaymentWidget) *checkout.Orchestrator {
	t.Helper()
	o, err := checkout.New(checkout.Deps{
		Session: sess,
		Cart:    cart,
		Widget:  widget,
		IDGen:   func() string { return "01HZKEY" },
	})
	require.NoError(t, err)
	return o
}

func TestBeginGuards(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.authed = false
	o := newOrchestrator(t, sess, cartOf800(), nil)
	require.ErrorIs(t, o.Begin(context.Background()), domain.ErrUnauthenticated)

	o = newOrchestrator(t, newFakeSession(), &fakeCart{}, nil)
	require.ErrorIs(t, o.Begin(context.Background()), checkout.ErrEmptyCart)

	_, err := o.PlaceOrder(context.Background())
	require.ErrorIs(t, err, checkout.ErrNotStarted)
}

func TestQuoteFollowsPaymentMethod(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, newFakeSession(), cartOf800(), nil)
	require.NoError(t, o.Begin(context.Background()))

	require.Equal(t, "890", o.Quote().Total.String())
	require.NoError(t, o.SetPaymentMethod(domain.PaymentCOD))
	require.Equal(t, "959", o.Quote().Total.String())
	require.NoError(t, o.SetPaymentMethod(domain.PaymentOnline))
	require.Equal(t, "890", o.Quote().Total.String())
}

func TestPlaceOrderRequiresAddress(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	o := newOrchestrator(t, sess, cartOf800(), nil)
	require.NoError(t, o.Begin(context.Background()))

	_, err := o.PlaceOrder(context.Background())
	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Empty(t, sess.paths())
}

func TestCashOnDelivery(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	cart := cartOf800()
	o := newOrchestrator(t, sess, cart, nil)
	require.NoError(t, o.Begin(context.Background()))
	require.NoError(t, o.SelectAddress("a1", ""))
	require.Equal(t, checkout.StateReviewing, o.State())
	require.NoError(t, o.SetPaymentMethod(domain.PaymentCOD))
	require.NoError(t, o.SetNotes(" leave at door "))

	out, err := o.PlaceOrder(context.Background())
	require.NoError(t, err)
	require.Equal(t, checkout.StateSuccess, out.State)
	require.Equal(t, "VEL-1001", out.Order.OrderNumber)
	require.Equal(t, "959", out.Quote.Total.String())
	require.Equal(t, []string{"/api/order/create", "/api/payment/cod"}, sess.paths())
	require.Equal(t, 2, cart.refreshes)

	create, _ := sess.find("/api/order/create")
	require.Equal(t, "01HZKEY", create.call.IdempotencyKey)
	require.Equal(t, map[string]string{
		"shippingAddressId": "a1",
		"billingAddressId":  "a1",
		"paymentMethod":     "cod",
		"customerNotes":     "leave at door",
	}, create.call.Body)

	cod, _ := sess.find("/api/payment/cod")
	require.Equal(t, map[string]string{"orderId": "o1"}, cod.call.Body)
}

func TestCashOnDeliveryFailureKeepsOrderPending(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.fail["/api/payment/cod"] = &apiclient.RequestError{Status: http.StatusInternalServerError, Message: "COD unavailable"}
	o := newOrchestrator(t, sess, cartOf800(), nil)
	require.NoError(t, o.Begin(context.Background()))
	require.NoError(t, o.SelectAddress("a1", "a2"))
	require.NoError(t, o.SetPaymentMethod(domain.PaymentCOD))

	out, err := o.PlaceOrder(context.Background())
	require.Error(t, err)
	require.Equal(t, "COD unavailable", apiclient.Message(err))
	require.Equal(t, checkout.StateOrderCreated, out.State)

	delete(sess.fail, "/api/payment/cod")
	out, err = o.PlaceOrder(context.Background())
	require.NoError(t, err)
	require.Equal(t, checkout.StateSuccess, out.State)
	require.Equal(t, 1, sess.orders)
}

func TestOnlinePaymentVerified(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	widget := &scriptedWidget{event: checkout.WidgetEvent{
		Kind:           checkout.EventCompleted,
		GatewayOrderID: "order_gw1",
		PaymentID:      "pay_1",
		Signature:      "sig",
	}}
	o := newOrchestrator(t, sess, cartOf800(), widget)
	require.NoError(t, o.Begin(context.Background()))
	require.NoError(t, o.SelectAddress("a1", ""))

	out, err := o.PlaceOrder(context.Background())
	require.NoError(t, err)
	require.Equal(t, checkout.StateSuccess, out.State)
	require.Equal(t, "890", out.Quote.Total.String())

	require.Len(t, widget.opened, 1)
	require.Equal(t, "rzp_test_key", widget.opened[0].KeyID)
	require.Equal(t, int64(89000), widget.opened[0].Amount)
	require.Equal(t, "Asha Rao", widget.opened[0].Customer.Name)

	verify, found := sess.find("/api/razorpay/verify-payment")
	require.True(t, found)
	require.Equal(t, map[string]string{
		"razorpayOrderId":   "order_gw1",
		"razorpayPaymentId": "pay_1",
		"razorpaySignature": "sig",
	}, verify.call.Body)

	for _, p := range sess.paths() {
		require.False(t, strings.HasPrefix(p, "/api/payment/cod"), "online order must not hit the COD endpoint")
	}
}

func TestOnlineVerificationFailureIsTerminal(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	sess.fail["/api/razorpay/verify-payment"] = &apiclient.RequestError{Status: http.StatusBadRequest, Message: "Invalid signature"}
	widget := &scriptedWidget{event: checkout.WidgetEvent{Kind: checkout.EventCompleted, PaymentID: "pay_1", Signature: "bad"}}
	o := newOrchestrator(t, sess, cartOf800(), widget)
	require.NoError(t, o.Begin(context.Background()))
	require.NoError(t, o.SelectAddress("a1", ""))

	out, err := o.PlaceOrder(context.Background())
	require.ErrorIs(t, err, domain.ErrPaymentVerification)
	require.Equal(t, checkout.StatePaymentFailed, out.State)

	verify, _ := sess.find("/api/razorpay/verify-payment")
	require.Equal(t, "order_gw1", verify.call.Body.(map[string]string)["razorpayOrderId"])

	_, err = o.PlaceOrder(context.Background())
	require.ErrorIs(t, err, checkout.ErrInvalidState)
	require.ErrorIs(t, o.SelectAddress("a1", ""), checkout.ErrInvalidState)

	o.Reset()
	require.Equal(t, checkout.StateAddressSelection, o.State())
	_, found := o.Order()
	require.False(t, found)
}

func TestOnlineDismissed(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	o := newOrchestrator(t, sess, cartOf800(), &scriptedWidget{event: checkout.WidgetEvent{Kind: checkout.EventDismissed}})
	require.NoError(t, o.Begin(context.Background()))
	require.NoError(t, o.SelectAddress("a1", ""))

	out, err := o.PlaceOrder(context.Background())
	require.NoError(t, err)
	require.Equal(t, checkout.StateCancelled, out.State)
	_, verified := sess.find("/api/razorpay/verify-payment")
	require.False(t, verified)
}

func TestUnknownWidgetEventKeepsPaymentPending(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	o := newOrchestrator(t, sess, cartOf800(), &scriptedWidget{event: checkout.WidgetEvent{Kind: "failed", Reason: "card declined"}})
	require.NoError(t, o.Begin(context.Background()))
	require.NoError(t, o.SelectAddress("a1", ""))

	_, err := o.PlaceOrder(context.Background())
	require.Error(t, err)
	require.Equal(t, checkout.StateOnlinePaymentPending, o.State())
	_, verified := sess.find("/api/razorpay/verify-payment")
	require.False(t, verified)

	out, err := o.HandleWidgetEvent(context.Background(), checkout.WidgetEvent{Kind: checkout.EventDismissed})
	require.NoError(t, err)
	require.Equal(t, checkout.StateCancelled, out.State)
}

func TestOnlineWithoutWidgetStaysCreated(t *testing.T) {
	t.Parallel()

	sess := newFakeSession()
	o := newOrchestrator(t, sess, cartOf800(), nil)
	require.NoError(t, o.Begin(context.Background()))
	require.NoError(t, o.SelectAddress("a1", ""))

	out, err := o.PlaceOrder(context.Background())
	require.Error(t, err)
	require.Equal(t, checkout.StateOrderCreated, out.State)
	require.Equal(t, []string{"/api/order/create"}, sess.paths())
}

func TestHandleWidgetEventOutsidePendingState(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, newFakeSession(), cartOf800(), nil)
	_, err := o.HandleWidgetEvent(context.Background(), checkout.WidgetEvent{Kind: checkout.EventCompleted})
	require.ErrorIs(t, err, checkout.ErrInvalidState)
}
