package orders

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/session"
)

type stubSession struct {
	respond func(method, path string, call session.Call) (*apiclient.Envelope, error)
	calls   []string
}

func (s *stubSession) IsAuthenticated() bool { return true }

func (s *stubSession) AuthenticatedRequest(_ context.Context, method, path string, call session.Call) (*apiclient.Envelope, error) {
	s.calls = append(s.calls, method+" "+path)
	return s.respond(method, path, call)
}

func data(v map[string]any) *apiclient.Envelope {
	return &apiclient.Envelope{Status: http.StatusOK, Data: domain.Raw(v)}
}

func TestVisible(t *testing.T) {
	cases := []struct {
		method domain.PaymentMethod
		status domain.PaymentStatus
		want   bool
	}{
		{domain.PaymentCOD, domain.PaymentPending, true},
		{domain.PaymentCOD, domain.PaymentFailed, true},
		{domain.PaymentOnline, domain.PaymentSuccess, true},
		{domain.PaymentOnline, domain.PaymentPending, false},
		{domain.PaymentOnline, domain.PaymentFailed, false},
	}
	for _, tc := range cases {
		if got := Visible(domain.Order{PaymentMethod: tc.method, PaymentStatus: tc.status}); got != tc.want {
			t.Fatalf("Visible(%s/%s) = %v, want %v", tc.method, tc.status, got, tc.want)
		}
	}
}

func TestListFiltersUnpaidOnlineOrders(t *testing.T) {
	var query string
	stub := &stubSession{respond: func(method, path string, call session.Call) (*apiclient.Envelope, error) {
		query = call.Query.Encode()
		return data(map[string]any{
			"orders": []any{
				map[string]any{"id": "o1", "paymentMethod": "cod", "paymentStatus": "pending"},
				map[string]any{"id": "o2", "paymentMethod": "razorpay", "paymentStatus": "pending"},
				map[string]any{"id": "o3", "paymentMethod": "razorpay", "paymentStatus": "success"},
			},
			"pagination": map[string]any{"totalPages": 4.0},
		}), nil
	}}
	svc, err := New(Deps{Session: stub})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	page, err := svc.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if query != "limit=10&page=2" {
		t.Fatalf("unexpected query %q", query)
	}
	if len(page.Orders) != 2 || page.Orders[0].ID != "o1" || page.Orders[1].ID != "o3" {
		t.Fatalf("unexpected orders %+v", page.Orders)
	}
	if page.Hidden != 1 {
		t.Fatalf("expected 1 hidden order, got %d", page.Hidden)
	}
	if page.Pagination.TotalPages != 4 {
		t.Fatalf("expected 4 pages, got %d", page.Pagination.TotalPages)
	}
}

func TestGetHidesPendingOnlineOrder(t *testing.T) {
	stub := &stubSession{respond: func(method, path string, call session.Call) (*apiclient.Envelope, error) {
		return data(map[string]any{
			"order": map[string]any{"id": "o2", "paymentMethod": "razorpay", "paymentStatus": "pending"},
		}), nil
	}}
	svc, _ := New(Deps{Session: stub})
	if _, err := svc.Get(context.Background(), "o2"); !errors.Is(err, ErrOrderNotVisible) {
		t.Fatalf("expected ErrOrderNotVisible, got %v", err)
	}
}

func TestGetReadsSeparateItems(t *testing.T) {
	stub := &stubSession{respond: func(method, path string, call session.Call) (*apiclient.Envelope, error) {
		if path != "/api/order/o1" {
			t.Fatalf("unexpected path %s", path)
		}
		return data(map[string]any{
			"order":      map[string]any{"id": "o1", "orderNumber": "VEL-1001", "paymentMethod": "cod", "totalAmount": "959"},
			"orderItems": []any{map[string]any{"id": "i1", "quantity": 2.0, "unitPrice": 400.0, "productSnapshot": map[string]any{"product_name": "Tee", "size": "M"}}},
		}), nil
	}}
	svc, _ := New(Deps{Session: stub})
	order, err := svc.Get(context.Background(), "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].ProductName != "Tee" || order.Items[0].Size != "M" {
		t.Fatalf("unexpected items %+v", order.Items)
	}
	if order.TotalAmount.String() != "959" {
		t.Fatalf("unexpected total %s", order.TotalAmount)
	}
}

func TestCanCancelWindow(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	confirmed := domain.Order{Status: domain.OrderConfirmed, CreatedAt: created}

	if !CanCancel(confirmed, created.Add(time.Hour)) {
		t.Fatalf("expected cancellable after 1h")
	}
	if !CanCancel(confirmed, created.Add(24*time.Hour)) {
		t.Fatalf("expected cancellable at exactly 24h")
	}
	if CanCancel(confirmed, created.Add(25*time.Hour)) {
		t.Fatalf("expected not cancellable after 25h")
	}
	shipped := domain.Order{Status: domain.OrderShipped, CreatedAt: created}
	for _, elapsed := range []time.Duration{0, time.Minute, time.Hour} {
		if CanCancel(shipped, created.Add(elapsed)) {
			t.Fatalf("shipped order must never be cancellable")
		}
	}
}

func TestCancellationTimeRemaining(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	o := domain.Order{Status: domain.OrderPending, CreatedAt: created}
	cases := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, "1 day"},
		{time.Hour, "23 hours"},
		{23 * time.Hour, "1 hour"},
		{23*time.Hour + 30*time.Minute, "30 minutes"},
		{24 * time.Hour, ""},
		{30 * time.Hour, ""},
	}
	for _, tc := range cases {
		if got := CancellationTimeRemaining(o, created.Add(tc.elapsed)); got != tc.want {
			t.Fatalf("after %s: expected %q, got %q", tc.elapsed, tc.want, got)
		}
	}
}

func TestCancel(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	status := "confirmed"
	var reason string
	stub := &stubSession{respond: func(method, path string, call session.Call) (*apiclient.Envelope, error) {
		if method == http.MethodPost {
			reason = call.Body.(map[string]string)["reason"]
			status = "cancelled"
			return data(nil), nil
		}
		return data(map[string]any{
			"order": map[string]any{"id": "o1", "orderStatus": status, "paymentMethod": "cod", "createdAt": created.Format(time.RFC3339)},
		}), nil
	}}
	svc, _ := New(Deps{Session: stub, Clock: func() time.Time { return created.Add(2 * time.Hour) }})

	var vErr *domain.ValidationError
	if _, err := svc.Cancel(context.Background(), "o1", "  "); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(stub.calls) != 0 {
		t.Fatalf("expected no calls for empty reason, got %v", stub.calls)
	}

	order, err := svc.Cancel(context.Background(), "o1", "Ordered wrong size")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if reason != "Ordered wrong size" {
		t.Fatalf("unexpected reason %q", reason)
	}
	if order.Status != domain.OrderCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}

	if _, err := svc.Cancel(context.Background(), "o1", "again"); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("expected ErrNotCancellable, got %v", err)
	}
}
