package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User is the identity record held by the session.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	Role         string    `json:"role,omitempty"`
	Verified     bool      `json:"isVerified,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// DisplayName prefers the full name, then username, then email.
func (u User) DisplayName() string {
	full := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	switch {
	case full != "":
		return full
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// SizeStock is one size option with its remaining stock.
type SizeStock struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

// AvailableSizes returns sizes with positive stock, preserving order.
func AvailableSizes(sizes []SizeStock) []SizeStock {
	out := make([]SizeStock, 0, len(sizes))
	for _, s := range sizes {
		if s.Stock > 0 && strings.TrimSpace(s.Size) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Category groups products in the catalog.
type Category struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Image       string
	Active      bool
}

// Product is a catalog entry.
type Product struct {
	ID            string
	Name          string
	Description   string
	SKU           string
	CategoryID    string
	CategoryName  string
	MainImage     string
	Images        []string
	OriginalPrice decimal.Decimal
	FinalPrice    decimal.Decimal
	Sizes         []SizeStock
	Active        bool
	Featured      bool
}

// Discounted reports whether the product sells below its original price.
func (p Product) Discounted() bool {
	return p.OriginalPrice.GreaterThan(p.FinalPrice) && p.FinalPrice.IsPositive()
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int
	Limit      int
	TotalPages int
	TotalItems int
}

// CartItem is one (product, size) line in the cart.
type CartItem struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"productId"`
	ProductName    string          `json:"productName"`
	Size           string          `json:"selectedSize"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"currentPrice"`
	Image          string          `json:"mainImage,omitempty"`
	AvailableStock int             `json:"availableStock"`
	InStock        bool            `json:"inStock"`
}

// LineTotal is unit price times quantity.
func (c CartItem) LineTotal() decimal.Decimal {
	return c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// WishlistItem is a saved product.
type WishlistItem struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"productId"`
	ProductName    string          `json:"productName"`
	Image          string          `json:"mainImage,omitempty"`
	Price          decimal.Decimal `json:"finalPrice"`
	Active         bool            `json:"isActive"`
	InStock        bool            `json:"inStock"`
	AvailableSizes []SizeStock     `json:"availableSizes"`
}

// AddressType tags an address.
type AddressType string

const (
	AddressHome  AddressType = "HOME"
	AddressWork  AddressType = "WORK"
	AddressOther AddressType = "OTHER"
)

// Address is a shipping destination owned by the user.
type Address struct {
	ID        string      `json:"id,omitempty"`
	FullName  string      `json:"fullName"`
	Phone     string      `json:"phone"`
	Line1     string      `json:"addressLine1"`
	Line2     string      `json:"addressLine2,omitempty"`
	City      string      `json:"city"`
	State     string      `json:"state"`
	Pincode   string      `json:"pincode"`
	Landmark  string      `json:"landmark,omitempty"`
	Country   string      `json:"country,omitempty"`
	Type      AddressType `json:"addressType"`
	IsDefault bool        `json:"isDefault"`
}

// OneLine renders the address on a single line.
func (a Address) OneLine() string {
	parts := []string{a.Line1}
	if a.Line2 != "" {
		parts = append(parts, a.Line2)
	}
	if a.Landmark != "" {
		parts = append(parts, a.Landmark)
	}
	parts = append(parts, a.City, a.State+" - "+a.Pincode)
	return strings.Join(parts, ", ")
}

// OrderStatus is the fulfilment status of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// PaymentStatus is the capture status of an order's payment.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// PaymentMethod is how the shopper pays.
type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "razorpay"
	PaymentCOD    PaymentMethod = "cod"
)

// ParsePaymentMethod accepts the wire values plus "online".
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cod", "cash", "cash_on_delivery":
		return PaymentCOD, true
	case "razorpay", "online", "card", "upi":
		return PaymentOnline, true
	}
	return "", false
}

// OrderItem is an immutable snapshot of a purchased line.
type OrderItem struct {
	ID          string
	ProductID   string
	ProductName string
	SKU         string
	Image       string
	Size        string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// Order is a placed order.
type Order struct {
	ID                 string
	OrderNumber        string
	Status             OrderStatus
	PaymentStatus      PaymentStatus
	PaymentMethod      PaymentMethod
	Subtotal           decimal.Decimal
	ShippingCharges    decimal.Decimal
	CODCharges         decimal.Decimal
	TaxAmount          decimal.Decimal
	TotalAmount        decimal.Decimal
	Items              []OrderItem
	ShippingAddress    *Address
	TrackingNumber     string
	Courier            string
	CustomerNotes      string
	CancellationReason string
	CreatedAt          time.Time
	ConfirmedAt        time.Time
	ShippedAt          time.Time
	DeliveredAt        time.Time
	CancelledAt        time.Time
}
