package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/Hemanshudhaduk/Velora/internal/domain"
)

// PricingRules are the advisory charges shown before an order is created. The backend
// computes the authoritative amounts.
type PricingRules struct {
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	CODFee                decimal.Decimal
	TaxRate               decimal.Decimal
}

// DefaultPricingRules mirrors the storefront's published charges.
func DefaultPricingRules() PricingRules {
	return PricingRules{
		FreeShippingThreshold: decimal.NewFromInt(1000),
		ShippingFee:           decimal.NewFromInt(50),
		CODFee:                decimal.NewFromInt(69),
		TaxRate:               decimal.RequireFromString("0.05"),
	}
}

// Quote is a priced summary for one subtotal and payment method.
type Quote struct {
	Method    domain.PaymentMethod
	Subtotal  decimal.Decimal
	Shipping  decimal.Decimal
	CODCharge decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
}

// FreeShipping reports whether the shipping fee was waived.
func (q Quote) FreeShipping() bool {
	return q.Shipping.IsZero()
}

// Quote prices subtotal for method.
func (r PricingRules) Quote(subtotal decimal.Decimal, method domain.PaymentMethod) Quote {
	q := Quote{
		Method:    method,
		Subtotal:  subtotal,
		Shipping:  decimal.Zero,
		CODCharge: decimal.Zero,
	}
	if subtotal.LessThan(r.FreeShippingThreshold) {
		q.Shipping = r.ShippingFee
	}
	if method == domain.PaymentCOD {
		q.CODCharge = r.CODFee
	}
	q.Tax = subtotal.Mul(r.TaxRate).Round(2)
	q.Total = subtotal.Add(q.Shipping).Add(q.CODCharge).Add(q.Tax)
	return q
}
