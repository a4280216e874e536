package checkout

import (
	"context"
	"errors"

	"github.com/Hemanshudhaduk/Velora/internal/domain"
)

var errWidgetRequired = errors.New("payment widget is not configured")

// EventKind is an outcome a payment widget reports. A failed attempt inside the widget
// is not an outcome: the shopper may retry until the widget completes or is dismissed.
type EventKind string

const (
	EventCompleted EventKind = "completed"
	EventDismissed EventKind = "dismissed"
)

// WidgetEvent is delivered by the payment widget. Completed events carry the gateway
// identifiers and signature to verify server-side.
type WidgetEvent struct {
	Kind           EventKind
	GatewayOrderID string
	PaymentID      string
	Signature      string
	Reason         string
}

// Customer prefills the widget's contact form.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// GatewayOrder is the single-use payment handle the widget is opened with.
type GatewayOrder struct {
	KeyID          string   `json:"key"`
	GatewayOrderID string   `json:"order_id"`
	Amount         int64    `json:"amount"`
	Currency       string   `json:"currency"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Customer       Customer `json:"prefill"`
	OrderID        string   `json:"-"`
	OrderNumber    string   `json:"-"`
}

// PaymentWidget hosts the external payment UI. Open returns a channel that delivers
// the outcome; the widget closes the channel after sending at most one event.
type PaymentWidget interface {
	Open(ctx context.Context, order GatewayOrder) (<-chan WidgetEvent, error)
}

// PaymentWidgetFunc adapts a function to PaymentWidget.
type PaymentWidgetFunc func(ctx context.Context, order GatewayOrder) (<-chan WidgetEvent, error)

// Open calls f.
func (f PaymentWidgetFunc) Open(ctx context.Context, order GatewayOrder) (<-chan WidgetEvent, error) {
	return f(ctx, order)
}

func normalizeGatewayOrder(r domain.Raw, order PlacedOrder) GatewayOrder {
	customer := r.Object("customerDetails", "customer_details", "prefill")
	g := GatewayOrder{
		KeyID:          r.String("keyId", "key_id", "key"),
		GatewayOrderID: r.String("orderId", "order_id", "id"),
		Amount:         r.Decimal("amount").IntPart(),
		Currency:       r.String("currency"),
		Name:           defaultStoreName,
		Description:    defaultDescription,
		Customer: Customer{
			Name:    customer.String("name"),
			Email:   customer.String("email"),
			Contact: customer.String("contact", "phone"),
		},
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
	}
	if g.Currency == "" {
		g.Currency = "INR"
	}
	if order.OrderNumber != "" {
		g.Description = "Order #" + order.OrderNumber
	}
	return g
}
