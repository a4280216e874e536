package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/session"
)

const (
	pathCreateOrder    = "/api/order/create"
	pathConfirmCOD     = "/api/payment/cod"
	pathGatewayOrder   = "/api/razorpay/create-order"
	pathVerifyPayment  = "/api/razorpay/verify-payment"
	defaultStoreName   = "Velora"
	defaultDescription = "Order payment"
)

// State is a step of the checkout flow.
type State string

const (
	StateAddressSelection     State = "addressSelection"
	StateReviewing            State = "reviewing"
	StateOrderCreated         State = "orderCreated"
	StateOnlinePaymentPending State = "onlinePaymentPending"
	StateCODConfirmed         State = "codConfirmed"
	StateSuccess              State = "success"
	StatePaymentFailed        State = "paymentFailed"
	StateCancelled            State = "cancelled"
)

// Terminal reports whether the state ends an order attempt.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StatePaymentFailed, StateCancelled:
		return true
	}
	return false
}

var (
	// ErrEmptyCart blocks checkout until the cart has items.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrNotStarted is returned before Begin succeeded.
	ErrNotStarted = errors.New("checkout: not started")
	// ErrInvalidState reports an action not allowed in the current state.
	ErrInvalidState = errors.New("checkout: action not allowed in current state")
	// ErrInProgress rejects a second PlaceOrder while one is running.
	ErrInProgress = errors.New("checkout: order placement already in progress")
	// ErrWidgetClosed is returned when the widget event stream ends without an outcome.
	ErrWidgetClosed = errors.New("checkout: payment widget closed without an outcome")

	errSessionRequired = errors.New("checkout: session is required")
	errCartRequired    = errors.New("checkout: cart is required")
)

// Session is the subset of the session holder the orchestrator needs.
type Session interface {
	IsAuthenticated() bool
	User() (domain.User, bool)
	AuthenticatedRequest(ctx context.Context, method, path string, call session.Call) (*apiclient.Envelope, error)
}

// Cart is the subset of the cart store the orchestrator needs.
type Cart interface {
	Items() []domain.CartItem
	Subtotal() decimal.Decimal
	RefreshCart(ctx context.Context) error
}

// Deps wires the orchestrator.
type Deps struct {
	Session Session
	Cart    Cart
	// Widget hosts online payments. Online orders cannot complete without one.
	Widget  PaymentWidget
	Pricing *PricingRules
	// KeyID overrides the gateway key returned by the backend.
	KeyID  string
	IDGen  func() string
	Logger *zap.Logger
}

// PlacedOrder identifies an order created on the backend.
type PlacedOrder struct {
	ID          string
	OrderNumber string
	Method      domain.PaymentMethod
}

// Outcome summarises where an order attempt ended up.
type Outcome struct {
	State State
	Order PlacedOrder
	Quote Quote
}

// Orchestrator drives one order attempt from address selection to payment outcome.
type Orchestrator struct {
	session Session
	cart    Cart
	widget  PaymentWidget
	rules   PricingRules
	keyID   string
	newKey  func() string
	logger  *zap.Logger

	mu             sync.Mutex
	started        bool
	placing        bool
	state          State
	addressID      string
	billingID      string
	method         domain.PaymentMethod
	notes          string
	idempotencyKey string
	order          *PlacedOrder
	quote          Quote
	gateway        *GatewayOrder
}

// New constructs an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Session == nil {
		return nil, errSessionRequired
	}
	if deps.Cart == nil {
		return nil, errCartRequired
	}
	rules := DefaultPricingRules()
	if deps.Pricing != nil {
		rules = *deps.Pricing
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		session: deps.Session,
		cart:    deps.Cart,
		widget:  deps.Widget,
		rules:   rules,
		keyID:   strings.TrimSpace(deps.KeyID),
		newKey:  idGen,
		logger:  logger,
		state:   StateAddressSelection,
		method:  domain.PaymentOnline,
	}, nil
}

// Begin applies the entry guard: a signed-in session and a non-empty cart.
func (o *Orchestrator) Begin(ctx context.Context) error {
	if !o.session.IsAuthenticated() {
		return domain.ErrUnauthenticated
	}
	if err := o.cart.RefreshCart(ctx); err != nil {
		return fmt.Errorf("checkout: load cart: %w", err)
	}
	if len(o.cart.Items()) == 0 {
		return ErrEmptyCart
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = true
	if o.state.Terminal() {
		o.resetLocked()
	}
	return nil
}

// State returns the current step.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Order returns the order created in this attempt, if any.
func (o *Orchestrator) Order() (PlacedOrder, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.order == nil {
		return PlacedOrder{}, false
	}
	return *o.order, true
}

// SelectAddress chooses the shipping address and moves to review. An empty billingID
// bills to the shipping address.
func (o *Orchestrator) SelectAddress(shippingID, billingID string) error {
	shippingID = strings.TrimSpace(shippingID)
	if shippingID == "" {
		return domain.NewValidationError(map[string]string{"address": "Please select a delivery address"})
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	if billingID = strings.TrimSpace(billingID); billingID == "" {
		billingID = shippingID
	}
	if o.addressID != shippingID || o.billingID != billingID {
		o.idempotencyKey = ""
	}
	o.addressID = shippingID
	o.billingID = billingID
	o.transitionLocked(StateReviewing)
	return nil
}

// SetPaymentMethod switches between online payment and cash on delivery.
func (o *Orchestrator) SetPaymentMethod(method domain.PaymentMethod) error {
	if method != domain.PaymentCOD && method != domain.PaymentOnline {
		return domain.NewValidationError(map[string]string{"paymentMethod": "Select a payment method"})
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	if o.method != method {
		o.idempotencyKey = ""
	}
	o.method = method
	return nil
}

// SetNotes records optional delivery instructions.
func (o *Orchestrator) SetNotes(notes string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	if notes = strings.TrimSpace(notes); notes != o.notes {
		o.idempotencyKey = ""
	}
	o.notes = notes
	return nil
}

// Quote prices the current cart for the current payment method.
func (o *Orchestrator) Quote() Quote {
	o.mu.Lock()
	method := o.method
	o.mu.Unlock()
	return o.rules.Quote(o.cart.Subtotal(), method)
}

// PlaceOrder creates the order and runs its payment branch. Online orders block until
// the widget reports an outcome or ctx ends. A failed step leaves the state unchanged
// so the call can be repeated; an order already created is not created again.
func (o *Orchestrator) PlaceOrder(ctx context.Context) (Outcome, error) {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return Outcome{}, ErrNotStarted
	}
	if o.placing {
		o.mu.Unlock()
		return Outcome{}, ErrInProgress
	}
	switch o.state {
	case StateAddressSelection:
		o.mu.Unlock()
		return Outcome{}, domain.NewValidationError(map[string]string{"address": "Please select a delivery address"})
	case StateReviewing, StateOrderCreated:
	default:
		state := o.state
		o.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
	o.placing = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.placing = false
		o.mu.Unlock()
	}()

	order, err := o.ensureOrder(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if order.Method == domain.PaymentCOD {
		return o.confirmCOD(ctx, order)
	}
	return o.payOnline(ctx, order)
}

func (o *Orchestrator) ensureOrder(ctx context.Context) (PlacedOrder, error) {
	o.mu.Lock()
	if o.order != nil {
		order := *o.order
		o.mu.Unlock()
		return order, nil
	}
	if o.idempotencyKey == "" {
		o.idempotencyKey = o.newKey()
	}
	key := o.idempotencyKey
	body := map[string]string{
		"shippingAddressId": o.addressID,
		"billingAddressId":  o.billingID,
		"paymentMethod":     string(o.method),
		"customerNotes":     o.notes,
	}
	method := o.method
	o.mu.Unlock()
	quote := o.rules.Quote(o.cart.Subtotal(), method)

	env, err := o.session.AuthenticatedRequest(ctx, http.MethodPost, pathCreateOrder, session.Call{
		Body:           body,
		IdempotencyKey: key,
	})
	if err != nil {
		return PlacedOrder{}, fmt.Errorf("checkout: create order: %w", err)
	}
	raw := env.Data.Object("order")
	created := domain.NormalizeOrder(raw, nil)
	if created.ID == "" {
		return PlacedOrder{}, fmt.Errorf("checkout: create order: %w", &apiclient.RequestError{
			Status:  env.Status,
			Message: "Order creation returned no order",
		})
	}
	order := PlacedOrder{ID: created.ID, OrderNumber: created.OrderNumber, Method: method}

	o.mu.Lock()
	o.order = &order
	o.quote = quote
	o.transitionLocked(StateOrderCreated)
	o.mu.Unlock()
	o.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_method", string(method)),
	)
	return order, nil
}

func (o *Orchestrator) confirmCOD(ctx context.Context, order PlacedOrder) (Outcome, error) {
	_, err := o.session.AuthenticatedRequest(ctx, http.MethodPost, pathConfirmCOD, session.Call{
		Body: map[string]string{"orderId": order.ID},
	})
	if err != nil {
		// The order stays pending server-side; PlaceOrder retries only the confirmation.
		return o.outcome(), fmt.Errorf("checkout: confirm cash on delivery for %s: %w", order.OrderNumber, err)
	}
	o.mu.Lock()
	o.transitionLocked(StateCODConfirmed)
	o.mu.Unlock()

	return o.succeed(ctx), nil
}

func (o *Orchestrator) payOnline(ctx context.Context, order PlacedOrder) (Outcome, error) {
	if o.widget == nil {
		return o.outcome(), fmt.Errorf("checkout: %w", errWidgetRequired)
	}
	gateway, err := o.requestGatewayOrder(ctx, order)
	if err != nil {
		return o.outcome(), err
	}

	events, err := o.widget.Open(ctx, gateway)
	if err != nil {
		return o.outcome(), fmt.Errorf("checkout: open payment widget: %w", err)
	}
	o.mu.Lock()
	o.gateway = &gateway
	o.transitionLocked(StateOnlinePaymentPending)
	o.mu.Unlock()

	select {
	case ev, ok := <-events:
		if !ok {
			return o.outcome(), ErrWidgetClosed
		}
		return o.HandleWidgetEvent(ctx, ev)
	case <-ctx.Done():
		return o.outcome(), ctx.Err()
	}
}

func (o *Orchestrator) requestGatewayOrder(ctx context.Context, order PlacedOrder) (GatewayOrder, error) {
	env, err := o.session.AuthenticatedRequest(ctx, http.MethodPost, pathGatewayOrder, session.Call{
		Body: map[string]string{"orderId": order.ID},
	})
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("checkout: initialise payment for %s: %w", order.OrderNumber, err)
	}
	gateway := normalizeGatewayOrder(env.Data.Object("razorpay"), order)
	if o.keyID != "" {
		gateway.KeyID = o.keyID
	}
	if gateway.GatewayOrderID == "" {
		return GatewayOrder{}, fmt.Errorf("checkout: initialise payment for %s: %w", order.OrderNumber, &apiclient.RequestError{
			Status:  env.Status,
			Message: "Failed to initialize payment",
		})
	}
	if user, ok := o.session.User(); ok {
		if gateway.Customer.Name == "" {
			gateway.Customer.Name = user.DisplayName()
		}
		if gateway.Customer.Email == "" {
			gateway.Customer.Email = user.Email
		}
		if gateway.Customer.Contact == "" {
			gateway.Customer.Contact = user.Phone
		}
	}
	return gateway, nil
}

// HandleWidgetEvent applies a payment widget outcome to the pending online payment.
// A completed payment is only trusted after server-side verification.
func (o *Orchestrator) HandleWidgetEvent(ctx context.Context, ev WidgetEvent) (Outcome, error) {
	o.mu.Lock()
	if o.state != StateOnlinePaymentPending || o.order == nil || o.gateway == nil {
		state := o.state
		o.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
	order := *o.order
	gateway := *o.gateway
	o.mu.Unlock()

	logger := o.logger.With(zap.String("order_id", order.ID), zap.String("gateway_order_id", gateway.GatewayOrderID))

	switch ev.Kind {
	case EventDismissed:
		o.mu.Lock()
		o.transitionLocked(StateCancelled)
		o.mu.Unlock()
		logger.Info("payment widget dismissed", zap.String("reason", ev.Reason))
		return o.outcome(), nil

	case EventCompleted:
		gatewayOrderID := ev.GatewayOrderID
		if gatewayOrderID == "" {
			gatewayOrderID = gateway.GatewayOrderID
		}
		_, err := o.session.AuthenticatedRequest(ctx, http.MethodPost, pathVerifyPayment, session.Call{
			Body: map[string]string{
				"razorpayOrderId":   gatewayOrderID,
				"razorpayPaymentId": ev.PaymentID,
				"razorpaySignature": ev.Signature,
			},
		})
		if err != nil {
			o.mu.Lock()
			o.transitionLocked(StatePaymentFailed)
			o.mu.Unlock()
			logger.Warn("payment verification failed", zap.Error(err))
			return o.outcome(), fmt.Errorf("%w: %w", domain.ErrPaymentVerification, err)
		}
		logger.Info("payment verified", zap.String("payment_id", ev.PaymentID))
		return o.succeed(ctx), nil
	}
	return Outcome{}, fmt.Errorf("checkout: unknown widget event %q", ev.Kind)
}

func (o *Orchestrator) succeed(ctx context.Context) Outcome {
	o.mu.Lock()
	o.transitionLocked(StateSuccess)
	o.mu.Unlock()
	if err := o.cart.RefreshCart(ctx); err != nil {
		o.logger.Warn("refresh cart after order", zap.Error(err))
	}
	return o.outcome()
}

// Reset abandons the current attempt and returns to address selection.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resetLocked()
}

func (o *Orchestrator) resetLocked() {
	o.state = StateAddressSelection
	o.addressID = ""
	o.billingID = ""
	o.notes = ""
	o.idempotencyKey = ""
	o.order = nil
	o.quote = Quote{}
	o.gateway = nil
}

func (o *Orchestrator) editableLocked() error {
	if !o.started {
		return ErrNotStarted
	}
	if o.placing {
		return ErrInProgress
	}
	if o.state != StateAddressSelection && o.state != StateReviewing {
		return fmt.Errorf("%w: %s", ErrInvalidState, o.state)
	}
	return nil
}

func (o *Orchestrator) transitionLocked(next State) {
	if o.state == next {
		return
	}
	o.logger.Debug("checkout transition", zap.String("from", string(o.state)), zap.String("to", string(next)))
	o.state = next
}

// outcome reports the quote captured at order creation, since the cart empties on success.
func (o *Orchestrator) outcome() Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := Outcome{State: o.state}
	if o.order != nil {
		out.Order = *o.order
		out.Quote = o.quote
	}
	return out
}
