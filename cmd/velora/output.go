package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/Hemanshudhaduk/Velora/internal/checkout"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
)

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func row(tw *tabwriter.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(tw, strings.Join(parts, "\t"))
}

// minorToMajor converts gateway amounts in paise to rupees.
func minorToMajor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

func sizeList(sizes []domain.SizeStock) string {
	parts := make([]string, 0, len(sizes))
	for _, s := range sizes {
		parts = append(parts, fmt.Sprintf("%s(%d)", s.Size, s.Stock))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func (a *app) printCart() {
	items := a.cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Your cart is empty.")
		return
	}
	tw := newTable(a.out, "ID", "PRODUCT", "SIZE", "QTY", "PRICE", "TOTAL")
	for _, it := range items {
		row(tw, it.ID, it.ProductName, it.Size, it.Quantity, a.money.Format(it.UnitPrice), a.money.Format(it.LineTotal()))
	}
	_ = tw.Flush()
	fmt.Fprintf(a.out, "\n%d items, subtotal %s\n", a.cart.Count(), a.money.Format(a.cart.Subtotal()))
}

func (a *app) printWishlist() {
	items := a.cart.Wishlist()
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Your wishlist is empty.")
		return
	}
	tw := newTable(a.out, "ID", "PRODUCT", "PRICE", "SIZES")
	for _, it := range items {
		row(tw, it.ID, it.ProductName, a.money.Format(it.Price), sizeList(domain.AvailableSizes(it.AvailableSizes)))
	}
	_ = tw.Flush()
}

func (a *app) printQuote(q checkout.Quote) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	row(tw, "Subtotal", a.money.Format(q.Subtotal), "")
	if q.FreeShipping() {
		row(tw, "Shipping", "FREE", "")
	} else {
		row(tw, "Shipping", a.money.Format(q.Shipping), "")
	}
	if q.CODCharge.IsPositive() {
		row(tw, "COD charges", a.money.Format(q.CODCharge), "")
	}
	row(tw, "Tax", a.money.Format(q.Tax), "")
	row(tw, "Total", a.money.Format(q.Total), "")
	_ = tw.Flush()
}

func (a *app) printAddresses(addresses []domain.Address) {
	if len(addresses) == 0 {
		fmt.Fprintln(a.out, "No saved addresses.")
		return
	}
	tw := newTable(a.out, "ID", "NAME", "TYPE", "ADDRESS", "DEFAULT")
	for _, addr := range addresses {
		def := ""
		if addr.IsDefault {
			def = "yes"
		}
		row(tw, addr.ID, addr.FullName, addr.Type, addr.OneLine(), def)
	}
	_ = tw.Flush()
}

func (a *app) printProducts(products []domain.Product) {
	if len(products) == 0 {
		fmt.Fprintln(a.out, "No products found.")
		return
	}
	tw := newTable(a.out, "ID", "NAME", "PRICE", "SIZES")
	for _, p := range products {
		price := a.money.Format(p.FinalPrice)
		if p.Discounted() {
			price += " (was " + a.money.Format(p.OriginalPrice) + ")"
		}
		row(tw, p.ID, p.Name, price, sizeList(domain.AvailableSizes(p.Sizes)))
	}
	_ = tw.Flush()
}
