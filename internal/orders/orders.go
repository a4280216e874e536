package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/session"
)

const (
	pathMyOrders = "/api/order/my-orders"
	pathOrder    = "/api/order"

	defaultPageSize = 10

	// CancellationWindow is how long after placement an order may be cancelled.
	CancellationWindow = 24 * time.Hour
)

var (
	errSessionRequired = errors.New("orders: session is required")

	// ErrOrderNotVisible hides online orders whose payment has not succeeded.
	ErrOrderNotVisible = errors.New("order not found or payment pending")
	// ErrNotCancellable reports an order outside its cancellation window or status.
	ErrNotCancellable = errors.New("order can no longer be cancelled")
)

// Session is the subset of the session holder the service needs.
type Session interface {
	IsAuthenticated() bool
	AuthenticatedRequest(ctx context.Context, method, path string, call session.Call) (*apiclient.Envelope, error)
}

// Deps wires the service.
type Deps struct {
	Session  Session
	PageSize int
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service reads and cancels the shopper's orders.
type Service struct {
	session  Session
	pageSize int
	now      func() time.Time
	logger   *zap.Logger
}

// New constructs a Service.
func New(deps Deps) (*Service, error) {
	if deps.Session == nil {
		return nil, errSessionRequired
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{session: deps.Session, pageSize: pageSize, now: clock, logger: logger}, nil
}

// Visible reports whether an order belongs in history views: cash on delivery orders
// always, online orders only once payment succeeded. COD payment status is advisory.
func Visible(o domain.Order) bool {
	return o.PaymentMethod == domain.PaymentCOD || o.PaymentStatus == domain.PaymentSuccess
}

// Page is one page of order history.
type Page struct {
	Orders     []domain.Order
	Pagination domain.Pagination
	// Hidden counts orders on this page suppressed by Visible.
	Hidden int
}

// List returns one page of visible orders.
func (s *Service) List(ctx context.Context, page int) (Page, error) {
	if !s.session.IsAuthenticated() {
		return Page{}, domain.ErrUnauthenticated
	}
	if page <= 0 {
		page = 1
	}
	env, err := s.session.AuthenticatedRequest(ctx, http.MethodGet, pathMyOrders, session.Call{
		Query: url.Values{
			"page":  {strconv.Itoa(page)},
			"limit": {strconv.Itoa(s.pageSize)},
		},
	})
	if err != nil {
		return Page{}, fmt.Errorf("orders: list: %w", err)
	}

	all := domain.NormalizeList(env.Data.List("orders"), func(r domain.Raw) domain.Order {
		return domain.NormalizeOrder(r, nil)
	})
	out := Page{Pagination: domain.NormalizePagination(env.Data.Object("pagination"), page, s.pageSize)}
	for _, o := range all {
		if Visible(o) {
			out.Orders = append(out.Orders, o)
			continue
		}
		out.Hidden++
	}
	if out.Hidden > 0 {
		s.logger.Debug("suppressed unpaid online orders", zap.Int("count", out.Hidden), zap.Int("page", page))
	}
	return out, nil
}

// Get fetches one order with its items. Orders failing Visible are reported as
// ErrOrderNotVisible.
func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, domain.ErrNotFound
	}
	env, err := s.session.AuthenticatedRequest(ctx, http.MethodGet, path.Join(pathOrder, id), session.Call{})
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders: get %s: %w", id, err)
	}
	raw := env.Data.Object("order")
	if raw == nil {
		return domain.Order{}, fmt.Errorf("orders: get %s: %w", id, domain.ErrNotFound)
	}
	order := domain.NormalizeOrder(raw, env.Data.List("orderItems", "order_items", "items"))
	if !Visible(order) {
		return domain.Order{}, ErrOrderNotVisible
	}
	return order, nil
}

// CanCancel reports whether o may still be cancelled at now.
func CanCancel(o domain.Order, now time.Time) bool {
	if o.Status != domain.OrderPending && o.Status != domain.OrderConfirmed {
		return false
	}
	if o.CreatedAt.IsZero() {
		return false
	}
	return now.Sub(o.CreatedAt) <= CancellationWindow
}

// CancellationTimeRemaining renders the time left to cancel, or "" once the window
// has passed.
func CancellationTimeRemaining(o domain.Order, now time.Time) string {
	if o.CreatedAt.IsZero() {
		return ""
	}
	remaining := CancellationWindow - now.Sub(o.CreatedAt)
	if remaining <= 0 {
		return ""
	}
	hours := remaining.Hours()
	switch {
	case hours < 1:
		return plural(int(math.Floor(remaining.Minutes())), "minute", true)
	case hours < 24:
		return plural(int(math.Floor(hours)), "hour", false)
	default:
		return plural(int(math.Floor(hours/24)), "day", false)
	}
}

func plural(n int, unit string, always bool) string {
	if always || n != 1 {
		return fmt.Sprintf("%d %ss", n, unit)
	}
	return fmt.Sprintf("%d %s", n, unit)
}

// Cancel cancels an order with the shopper's reason and returns the refreshed order.
func (s *Service) Cancel(ctx context.Context, id, reason string) (domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Order{}, domain.NewValidationError(map[string]string{"reason": "Please provide a reason for cancellation"})
	}
	order, err := s.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !CanCancel(order, s.now()) {
		return domain.Order{}, fmt.Errorf("orders: cancel %s: %w", order, ErrNotCancellable)
	}
	_, err = s.session.AuthenticatedRequest(ctx, http.MethodPost, path.Join(pathOrder, order.ID, "cancel"), session.Call{
		Body: map[string]string{"reason": reason},
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders: cancel %s: %w", order, err)
	}
	s.logger.Info("order cancelled", zap.String("order_id", order.ID), zap.String("order_number", order.OrderNumber))
	return s.Get(ctx, order.ID)
}
